package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"choreboard/internal/cache"
	"choreboard/internal/core"
	applog "choreboard/internal/log"
	"choreboard/internal/metrics"
	"choreboard/internal/store"
)

// EventPublisher receives board events. Failures are logged and never fail
// the operation that produced the event.
type EventPublisher interface {
	PublishRewardEarned(ctx context.Context, r core.RewardEarned) error
	PublishWeekArchived(ctx context.Context, s core.WeekSummary) error
}

// BoardConfig tunes the board service.
type BoardConfig struct {
	SaveDebounce  time.Duration
	SaveTimeout   time.Duration
	FinalizeDelay time.Duration
	DeletionTTL   time.Duration

	// DisabledReason, when set, starts the service in local-only mode with
	// this message as the error status.
	DisabledReason string

	// OnReward is called after a mark crosses a reward tier.
	OnReward func(core.RewardEarned)

	Now func() time.Time
}

// maxPendingDeletions bounds outstanding deletion tokens; the oldest is
// dropped first.
const maxPendingDeletions = 64

func (c BoardConfig) withDefaults() BoardConfig {
	if c.SaveDebounce < 0 {
		c.SaveDebounce = 0
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = time.Minute
	}
	if c.DeletionTTL <= 0 {
		c.DeletionTTL = 5 * time.Minute
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// BoardService owns the in-memory board. Mutations apply locally at once and
// are persisted in the background; persistence failures never roll back
// local state.
type BoardService struct {
	gateway   store.Gateway
	publisher EventPublisher
	metrics   *metrics.Metrics
	cfg       BoardConfig
	logger    *applog.Logger
	debouncer *Debouncer

	mu              sync.Mutex
	board           core.Board
	status          Status
	disabled        bool
	loaded          bool
	dirtyChildren   bool
	dirtyCategories bool

	archive   archiveState
	deletions *cache.LRUCache[string]
}

// NewBoardService wires the service. publisher and m may be nil. A nil
// gateway is the same as a non-empty cfg.DisabledReason.
func NewBoardService(gateway store.Gateway, publisher EventPublisher, m *metrics.Metrics, cfg BoardConfig, logger *slog.Logger) *BoardService {
	cfg = cfg.withDefaults()
	s := &BoardService{
		gateway:   gateway,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
		logger:    applog.Wrap(logger, applog.ComponentBoard),
		board:     core.EmptyBoard(),
		archive:   archiveState{phase: ArchiveIdle},
		deletions: cache.NewLRUCache[string](maxPendingDeletions, cfg.DeletionTTL, cache.WithClock(cfg.Now)),
	}
	s.debouncer = NewDebouncer(cfg.SaveDebounce, s.persist)

	reason := cfg.DisabledReason
	if gateway == nil && reason == "" {
		reason = "Persistence is not configured. Changes are kept in memory only."
	}
	s.disabled = reason != ""
	if s.disabled {
		s.setStatusLocked(StateError, reason)
	} else {
		s.setStatusLocked(StateIdle, "")
	}
	return s
}

// Load performs the one-shot read of the remote document. In local-only mode
// it seeds the default board instead.
func (s *BoardService) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.archive.phase != ArchiveIdle {
		s.mu.Unlock()
		return ErrArchiveInProgress
	}
	if s.disabled {
		if s.loaded {
			s.mu.Unlock()
			return ErrPersistenceDisabled
		}
		s.board = core.DefaultBoard()
		s.loaded = true
		reason := s.status.Message
		s.mu.Unlock()
		s.logger.Warn("Persistence disabled, using default board", "reason", reason)
		return nil
	}
	loaded := s.loaded
	s.mu.Unlock()

	// Local changes not yet written would be lost by the reload. Before the
	// first successful load there is nothing of the store's to keep.
	if loaded {
		if s.debouncer.Pending() || s.isDirty() {
			s.debouncer.Flush()
		}
		if s.isDirty() {
			s.logger.Warn("Reload refused, local changes are unsaved", applog.FieldOperation, applog.OpLoad)
			return ErrUnsavedChanges
		}
	}

	s.mu.Lock()
	s.setStatusLocked(StateLoading, "")
	s.mu.Unlock()

	b, err := s.gateway.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.setStatusLocked(StateError, fmt.Sprintf("Loading failed: %v", err))
		s.logger.Error("Board load failed", applog.FieldOperation, applog.OpLoad, applog.FieldError, err)
		return fmt.Errorf("load board: %w", err)
	}
	s.board = b.Normalize()
	s.loaded = true
	s.dirtyChildren, s.dirtyCategories = false, false
	s.setStatusLocked(StateIdle, "")
	s.logger.Info("Board loaded",
		"children", len(s.board.Children),
		"categories", len(s.board.Categories))
	return nil
}

// Board returns a copy of the current board.
func (s *BoardService) Board() core.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Clone()
}

func (s *BoardService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// PersistenceEnabled is false in local-only mode.
func (s *BoardService) PersistenceEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.disabled
}

// Snapshot is the full read model served to clients.
type Snapshot struct {
	Board              core.Board   `json:"board"`
	Status             Status       `json:"status"`
	Archive            ArchivePhase `json:"archivePhase"`
	PersistenceEnabled bool         `json:"persistenceEnabled"`
}

func (s *BoardService) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Board:              s.board.Clone(),
		Status:             s.status,
		Archive:            s.archive.phase,
		PersistenceEnabled: !s.disabled,
	}
}

// MarkResult is the outcome of a mark or unmark. Reward is set only when the
// mark crossed into a higher tier.
type MarkResult struct {
	Board   core.Board         `json:"board"`
	Changed bool               `json:"changed"`
	Reward  *core.RewardEarned `json:"reward,omitempty"`
}

// MarkChore adds a checkmark. Unknown ids leave the board unchanged.
func (s *BoardService) MarkChore(ctx context.Context, childID, categoryID string) (MarkResult, error) {
	s.mu.Lock()
	if s.archive.phase != ArchiveIdle {
		s.mu.Unlock()
		return MarkResult{}, ErrArchiveInProgress
	}
	next, reward, changed := s.board.MarkChore(childID, categoryID)
	if changed {
		s.board = next
		s.dirtyChildren = true
	}
	res := MarkResult{Board: s.board.Clone(), Changed: changed, Reward: reward}
	s.mu.Unlock()

	if !changed {
		s.logger.Debug("Mark ignored", applog.NewFields().WithChore(childID, categoryID).ToSlice()...)
		return res, nil
	}
	s.metrics.ChoreMarked()
	s.schedule()

	if reward != nil {
		s.metrics.RewardEarned()
		applog.NewStructuredLogger(s.logger).LogRewardEarned(ctx, reward.ChildID, reward.ChildName, reward.Amount.String())
		s.publishReward(ctx, *reward)
		if s.cfg.OnReward != nil {
			s.cfg.OnReward(*reward)
		}
	}
	return res, nil
}

// UnmarkChore removes a checkmark if there is one. It never signals a reward.
func (s *BoardService) UnmarkChore(ctx context.Context, childID, categoryID string) (MarkResult, error) {
	s.mu.Lock()
	if s.archive.phase != ArchiveIdle {
		s.mu.Unlock()
		return MarkResult{}, ErrArchiveInProgress
	}
	next, changed := s.board.UnmarkChore(childID, categoryID)
	if changed {
		s.board = next
		s.dirtyChildren = true
	}
	res := MarkResult{Board: s.board.Clone(), Changed: changed}
	s.mu.Unlock()

	if changed {
		s.metrics.ChoreUnmarked()
		s.schedule()
	}
	return res, nil
}

// ChildUpdate holds the editable fields of a child. Nil fields are kept.
type ChildUpdate struct {
	Name          *string      `json:"name,omitempty"`
	AvatarID      *string      `json:"avatarId,omitempty"`
	TotalEarnings *core.Amount `json:"totalEarnings,omitempty"`
}

// UpdateChild edits a child's name, avatar or running total.
func (s *BoardService) UpdateChild(ctx context.Context, childID string, u ChildUpdate) (core.Child, error) {
	if u.Name != nil {
		if err := core.ValidateName(*u.Name); err != nil {
			return core.Child{}, err
		}
	}
	if u.TotalEarnings != nil && u.TotalEarnings.IsNegative() {
		return core.Child{}, ErrInvalidAmount
	}

	s.mu.Lock()
	if s.archive.phase != ArchiveIdle {
		s.mu.Unlock()
		return core.Child{}, ErrArchiveInProgress
	}
	next, ok := s.board.UpdateChild(childID, func(c *core.Child) {
		if u.Name != nil {
			c.Name = strings.TrimSpace(*u.Name)
		}
		if u.AvatarID != nil {
			c.AvatarID = *u.AvatarID
		}
		if u.TotalEarnings != nil {
			c.TotalEarnings = *u.TotalEarnings
		}
	})
	if !ok {
		s.mu.Unlock()
		return core.Child{}, fmt.Errorf("%w: %s", core.ErrChildNotFound, childID)
	}
	s.board = next
	s.dirtyChildren = true
	child, _ := s.board.Child(childID)
	s.mu.Unlock()

	s.schedule()
	return child.Clone(), nil
}

func (s *BoardService) RenameChild(ctx context.Context, childID, name string) (core.Child, error) {
	return s.UpdateChild(ctx, childID, ChildUpdate{Name: &name})
}

func (s *BoardService) SetAvatar(ctx context.Context, childID, avatarID string) (core.Child, error) {
	return s.UpdateChild(ctx, childID, ChildUpdate{AvatarID: &avatarID})
}

// SetTotalEarnings overwrites the displayed running total.
func (s *BoardService) SetTotalEarnings(ctx context.Context, childID string, total core.Amount) (core.Child, error) {
	return s.UpdateChild(ctx, childID, ChildUpdate{TotalEarnings: &total})
}

// AddCategory appends a new category with a generated id.
func (s *BoardService) AddCategory(ctx context.Context, name string) (core.Category, error) {
	if err := core.ValidateName(name); err != nil {
		return core.Category{}, err
	}

	s.mu.Lock()
	if s.disabled {
		s.mu.Unlock()
		return core.Category{}, ErrPersistenceDisabled
	}
	if !s.loaded {
		s.mu.Unlock()
		return core.Category{}, ErrNotLoaded
	}
	if s.archive.phase != ArchiveIdle {
		s.mu.Unlock()
		return core.Category{}, ErrArchiveInProgress
	}
	cat := core.Category{ID: "cat-" + uuid.NewString(), Name: strings.TrimSpace(name)}
	next, err := s.board.AddCategory(cat)
	if err != nil {
		s.mu.Unlock()
		return core.Category{}, err
	}
	s.board = next
	s.dirtyCategories = true
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Category added", applog.FieldCategoryID, cat.ID, "name", cat.Name)
	s.schedule()
	return cat, nil
}

// PendingRewards reports each child's weekly standing and the gap to the next
// tier.
func (s *BoardService) PendingRewards() []core.ChildProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Progress(s.board.Children)
}

// ReminderReport lists children with nothing marked this week.
type ReminderReport struct {
	Idle        []core.Child         `json:"idle"`
	Progress    []core.ChildProgress `json:"progress"`
	HasActivity bool                 `json:"hasActivity"`
}

// Reminders computes the weekly reminder content.
func (s *BoardService) Reminders() ReminderReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := ReminderReport{
		Idle:     core.Idle(s.board.Children),
		Progress: core.Progress(s.board.Children),
	}
	if r.Idle == nil {
		r.Idle = []core.Child{}
	}
	r.HasActivity = len(r.Idle) < len(s.board.Children)
	return r
}

// Flush writes pending changes now.
func (s *BoardService) Flush() {
	s.debouncer.Flush()
}

// Close writes pending changes and stops the debouncer.
func (s *BoardService) Close() error {
	if s.isDirty() {
		s.debouncer.Flush()
	}
	s.debouncer.Stop()
	return nil
}

func (s *BoardService) schedule() {
	s.mu.Lock()
	ok := !s.disabled && s.loaded
	s.mu.Unlock()
	if !ok {
		return
	}
	s.debouncer.Trigger()
}

func (s *BoardService) isDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyChildren || s.dirtyCategories
}

// persist writes the dirty parts of the board. It runs on the debouncer.
func (s *BoardService) persist() {
	s.mu.Lock()
	// Without a successful load the local board is a placeholder; writing it
	// would overwrite the stored document.
	if s.disabled || !s.loaded || (!s.dirtyChildren && !s.dirtyCategories) {
		s.mu.Unlock()
		return
	}
	var patch store.Patch
	if s.dirtyChildren {
		patch = patch.Merge(store.ChildrenPatch(s.board.Children))
	}
	if s.dirtyCategories {
		patch = patch.Merge(store.CategoriesPatch(s.board.Categories))
	}
	s.dirtyChildren, s.dirtyCategories = false, false
	s.setStatusLocked(StateSaving, "")
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SaveTimeout)
	defer cancel()
	start := time.Now()
	err := s.gateway.Save(ctx, patch)
	elapsed := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		// Keep the unsaved parts marked so the next write carries them.
		s.dirtyChildren = s.dirtyChildren || patch.Children != nil
		s.dirtyCategories = s.dirtyCategories || patch.Categories != nil
		s.setStatusLocked(StateError, fmt.Sprintf("Saving failed: %v", err))
		s.metrics.SaveFailed(elapsed)
		s.logger.Error("Board save failed",
			applog.FieldOperation, applog.OpSave,
			applog.FieldError, err,
			applog.FieldDuration, elapsed.Milliseconds())
		return
	}
	s.metrics.SaveSucceeded(elapsed)
	s.setStatusLocked(StateSaved, "")
	s.logger.Debug("Board saved", applog.FieldDuration, elapsed.Milliseconds())
}

func (s *BoardService) setStatusLocked(state SyncState, msg string) {
	s.status = Status{State: state, Message: msg, Local: s.disabled, UpdatedAt: s.cfg.Now()}
	s.metrics.SetStatus(string(state), AllStates)
}

func (s *BoardService) publishReward(ctx context.Context, r core.RewardEarned) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishRewardEarned(ctx, r)
	s.metrics.EventPublished("reward.earned", err)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish reward event",
			applog.FieldChildID, r.ChildID,
			applog.FieldError, err)
	}
}
