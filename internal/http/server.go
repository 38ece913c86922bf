package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"choreboard/internal/core"
	applog "choreboard/internal/log"
	"choreboard/internal/metrics"
	"choreboard/internal/middleware/ratelimit"
	"choreboard/internal/middleware/security"
	"choreboard/internal/middleware/trace"
	"choreboard/internal/services"
	"choreboard/internal/store"
)

// BoardService is the part of services.BoardService the API exposes.
type BoardService interface {
	Snapshot() services.Snapshot
	Status() services.Status
	Load(ctx context.Context) error
	MarkChore(ctx context.Context, childID, categoryID string) (services.MarkResult, error)
	UnmarkChore(ctx context.Context, childID, categoryID string) (services.MarkResult, error)
	UpdateChild(ctx context.Context, childID string, u services.ChildUpdate) (core.Child, error)
	AddCategory(ctx context.Context, name string) (core.Category, error)
	RequestCategoryDeletion(ctx context.Context, categoryID string) (services.DeletionRequest, error)
	ConfirmCategoryDeletion(ctx context.Context, token string) (core.Board, error)
	BeginArchive(ctx context.Context) error
	ConfirmArchive(ctx context.Context) (core.WeekSummary, error)
	FinalizeArchive(ctx context.Context) (services.ArchiveResult, error)
	CancelArchive(ctx context.Context) error
	PendingRewards() []core.ChildProgress
	Reminders() services.ReminderReport
}

// Suggester proposes a chore name. It never fails.
type Suggester interface {
	Suggest(ctx context.Context) string
}

// Deps are the collaborators of the server. Suggester, Pinger and Metrics
// may be nil.
type Deps struct {
	Board     BoardService
	Suggester Suggester
	Pinger    store.Pinger
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// RequestsPerMinute limits state-changing requests per client.
	RequestsPerMinute int
}

type Server struct {
	http.Server
	board     BoardService
	suggester Suggester
	pinger    store.Pinger
	metrics   *metrics.Metrics
	logger    *applog.Logger
	startedAt time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
}

const (
	suggestTimeout = 15 * time.Second
	readyTimeout   = 5 * time.Second
)

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		board:            deps.Board,
		suggester:        deps.Suggester,
		pinger:           deps.Pinger,
		metrics:          deps.Metrics,
		logger:           applog.Wrap(deps.Logger, applog.ComponentHTTP),
		startedAt:        time.Now(),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RequestsPerMinute}),
		securityDetector: security.NewDetector(deps.Logger),
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, deps.Logger, s.metrics.RequestServed)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("GET /api/board", s.handleBoard)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/board/reload", s.handleReload)

	mux.HandleFunc("POST /api/children/{id}/chores/{cat}/mark", s.handleMark)
	mux.HandleFunc("POST /api/children/{id}/chores/{cat}/unmark", s.handleUnmark)
	mux.HandleFunc("PATCH /api/children/{id}", s.handleUpdateChild)

	mux.HandleFunc("POST /api/categories", s.handleAddCategory)
	mux.HandleFunc("POST /api/categories/{id}/delete", s.handleRequestDeletion)
	mux.HandleFunc("POST /api/categories/deletions/{token}/confirm", s.handleConfirmDeletion)

	mux.HandleFunc("POST /api/archive", s.handleBeginArchive)
	mux.HandleFunc("POST /api/archive/confirm", s.handleConfirmArchive)
	mux.HandleFunc("POST /api/archive/finalize", s.handleFinalizeArchive)
	mux.HandleFunc("POST /api/archive/cancel", s.handleCancelArchive)

	mux.HandleFunc("GET /api/suggestion", s.handleSuggestion)
	mux.HandleFunc("GET /api/reminders", s.handleReminders)
	mux.HandleFunc("GET /api/rewards", s.handleRewards)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	})

	var h http.Handler = mux
	h = limit(h)
	h = s.securityDetector.Middleware(h)
	h = headers.Middleware(h)
	h = s.traceMiddleware.Middleware(h)
	s.Handler = h

	return s
}

// Shutdown stops the rate limiter and gracefully shuts the listener down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.Server.Shutdown(ctx)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports whether the board can be served and the backend is
// reachable. Local-only mode is ready: the board works without persistence.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	st := s.board.Status()
	checks["sync"] = st.State
	if st.Local {
		checks["persistence"] = "disabled"
	}

	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			checks["backend"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	} else {
		checks["backend"] = "not_configured"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
	}

	NewJSONResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}
