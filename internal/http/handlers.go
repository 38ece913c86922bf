package http

import (
	"context"
	"errors"
	"net/http"

	"choreboard/internal/core"
	applog "choreboard/internal/log"
	"choreboard/internal/services"
)

// fail writes the error response for err and logs unexpected failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if StatusForError(err) == http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, nil)
	}
	ErrorFrom(err).Write(w)
}

// parseBody reads the request body; on failure the error response has been
// written and nil is returned.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return nil
	}
	return p
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(s.board.Snapshot()).Write(w)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(s.board.Status()).Write(w)
}

// handleReload re-reads the remote document. Pending local writes are flushed
// first.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.board.Load(r.Context()); err != nil {
		if StatusForError(err) == http.StatusInternalServerError {
			// The remote document could not be read; local state is unchanged.
			ErrorResponse(http.StatusBadGateway, err.Error()).Write(w)
			return
		}
		s.fail(w, r, applog.OpLoad, err)
		return
	}
	NewJSONResponse().JSON(s.board.Snapshot()).Write(w)
}

func (s *Server) handleMark(w http.ResponseWriter, r *http.Request) {
	res, err := s.board.MarkChore(r.Context(), pathID(r, "id"), pathID(r, "cat"))
	if err != nil {
		s.fail(w, r, applog.OpMark, err)
		return
	}
	NewJSONResponse().JSON(res).Write(w)
}

func (s *Server) handleUnmark(w http.ResponseWriter, r *http.Request) {
	res, err := s.board.UnmarkChore(r.Context(), pathID(r, "id"), pathID(r, "cat"))
	if err != nil {
		s.fail(w, r, applog.OpUnmark, err)
		return
	}
	NewJSONResponse().JSON(res).Write(w)
}

func (s *Server) handleUpdateChild(w http.ResponseWriter, r *http.Request) {
	p := s.parseBody(w, r)
	if p == nil {
		return
	}

	var u services.ChildUpdate
	if p.Has("name") {
		name := p.Get("name")
		u.Name = &name
	}
	if p.Has("avatarId") {
		avatar := p.Get("avatarId")
		u.AvatarID = &avatar
	}
	if p.Has("totalEarnings") {
		total, err := p.Amount("totalEarnings")
		if err != nil {
			s.fail(w, r, applog.OpUpdate, err)
			return
		}
		u.TotalEarnings = &total
	}
	if u.Name == nil && u.AvatarID == nil && u.TotalEarnings == nil {
		BadRequestError("nothing to update: send name, avatarId or totalEarnings").Write(w)
		return
	}

	child, err := s.board.UpdateChild(r.Context(), pathID(r, "id"), u)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().JSON(child).Write(w)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	p := s.parseBody(w, r)
	if p == nil {
		return
	}
	cat, err := s.board.AddCategory(r.Context(), p.Get("name"))
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(cat).Write(w)
}

func (s *Server) handleRequestDeletion(w http.ResponseWriter, r *http.Request) {
	req, err := s.board.RequestCategoryDeletion(r.Context(), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().JSON(req).Write(w)
}

func (s *Server) handleConfirmDeletion(w http.ResponseWriter, r *http.Request) {
	board, err := s.board.ConfirmCategoryDeletion(r.Context(), pathID(r, "token"))
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().JSON(map[string]core.Board{"board": board}).Write(w)
}

func (s *Server) handleBeginArchive(w http.ResponseWriter, r *http.Request) {
	if err := s.board.BeginArchive(r.Context()); err != nil {
		s.fail(w, r, applog.OpArchive, err)
		return
	}
	NewJSONResponse().Status(http.StatusAccepted).JSON(map[string]services.ArchivePhase{
		"phase": services.ArchiveConfirming,
	}).Write(w)
}

func (s *Server) handleConfirmArchive(w http.ResponseWriter, r *http.Request) {
	summary, err := s.board.ConfirmArchive(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpArchive, err)
		return
	}
	NewJSONResponse().JSON(summary).Write(w)
}

// handleFinalizeArchive commits the archive. A failed save still returns 200:
// the archived board is kept locally and the status carries the error.
func (s *Server) handleFinalizeArchive(w http.ResponseWriter, r *http.Request) {
	res, err := s.board.FinalizeArchive(r.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.fail(w, r, applog.OpArchive, err)
		return
	}
	NewJSONResponse().JSON(res).Write(w)
}

func (s *Server) handleCancelArchive(w http.ResponseWriter, r *http.Request) {
	if err := s.board.CancelArchive(r.Context()); err != nil {
		s.fail(w, r, applog.OpArchive, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	if s.suggester == nil {
		ServiceUnavailableError("suggestions are not configured").Write(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), suggestTimeout)
	defer cancel()
	NewJSONResponse().JSON(map[string]string{"suggestion": s.suggester.Suggest(ctx)}).Write(w)
}

func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(s.board.Reminders()).Write(w)
}

func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(s.board.PendingRewards()).Write(w)
}
