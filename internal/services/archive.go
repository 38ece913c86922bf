package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"choreboard/internal/core"
	applog "choreboard/internal/log"
)

// ArchivePhase is where the two-step week archive stands.
type ArchivePhase string

const (
	ArchiveIdle       ArchivePhase = "idle"
	ArchiveConfirming ArchivePhase = "confirming"
	ArchiveSummary    ArchivePhase = "summary"
	ArchiveFinalizing ArchivePhase = "finalizing"
)

type archiveState struct {
	phase   ArchivePhase
	weekOf  string
	summary core.WeekSummary
}

// BeginArchive asks for confirmation of a week archive.
func (s *BoardService) BeginArchive(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled {
		return ErrPersistenceDisabled
	}
	if !s.loaded {
		return ErrNotLoaded
	}
	if s.archive.phase != ArchiveIdle {
		return ErrArchiveInProgress
	}
	s.archive = archiveState{phase: ArchiveConfirming}
	s.logger.InfoContext(ctx, "Archive requested")
	return nil
}

// ConfirmArchive computes the week summary shown before finalizing. Nothing
// is changed.
func (s *BoardService) ConfirmArchive(ctx context.Context) (core.WeekSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.archive.phase {
	case ArchiveConfirming, ArchiveSummary:
	case ArchiveFinalizing:
		return core.WeekSummary{}, ErrArchiveInProgress
	default:
		return core.WeekSummary{}, ErrArchiveNotStarted
	}
	weekOf := core.WeekLabel(s.cfg.Now())
	s.archive.phase = ArchiveSummary
	s.archive.weekOf = weekOf
	s.archive.summary = core.SummarizeWeek(s.board.Children, weekOf)
	return s.archive.summary, nil
}

// ArchiveResult is what FinalizeArchive committed.
type ArchiveResult struct {
	Summary core.WeekSummary `json:"summary"`
	Board   core.Board       `json:"board"`
	Status  Status           `json:"status"`
}

// FinalizeArchive applies the archive transform to every child and writes the
// board at once. A save failure keeps the archived board locally and is
// reported through the status, not as an error.
func (s *BoardService) FinalizeArchive(ctx context.Context) (ArchiveResult, error) {
	s.mu.Lock()
	switch s.archive.phase {
	case ArchiveSummary:
	case ArchiveFinalizing:
		s.mu.Unlock()
		return ArchiveResult{}, ErrArchiveInProgress
	default:
		s.mu.Unlock()
		return ArchiveResult{}, ErrArchiveNotConfirmed
	}
	s.archive.phase = ArchiveFinalizing
	weekOf := s.archive.weekOf
	s.mu.Unlock()

	if s.cfg.FinalizeDelay > 0 {
		t := time.NewTimer(s.cfg.FinalizeDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			s.mu.Lock()
			s.archive.phase = ArchiveSummary
			s.mu.Unlock()
			return ArchiveResult{}, ctx.Err()
		case <-t.C:
		}
	}

	s.mu.Lock()
	// Recomputed from the current children so the commit matches the board.
	summary := core.SummarizeWeek(s.board.Children, weekOf)
	s.board = s.board.ArchiveWeek(weekOf)
	s.dirtyChildren, s.dirtyCategories = true, true
	s.archive = archiveState{phase: ArchiveIdle}
	s.mu.Unlock()

	s.debouncer.Flush()
	s.metrics.WeekArchived()
	s.logger.InfoContext(ctx, "Week archived",
		applog.FieldWeekOf, weekOf,
		applog.FieldAmount, summary.Total.String(),
		"active_children", len(summary.Active()))

	if s.publisher != nil {
		err := s.publisher.PublishWeekArchived(ctx, summary)
		s.metrics.EventPublished("week.archived", err)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to publish archive event",
				applog.FieldWeekOf, weekOf,
				applog.FieldError, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return ArchiveResult{Summary: summary, Board: s.board.Clone(), Status: s.status}, nil
}

// CancelArchive abandons a pending archive. Finalization cannot be cancelled.
func (s *BoardService) CancelArchive(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.archive.phase == ArchiveFinalizing {
		return ErrArchiveInProgress
	}
	s.archive = archiveState{phase: ArchiveIdle}
	return nil
}

// ArchivePhase returns the current archive phase.
func (s *BoardService) ArchivePhase() ArchivePhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archive.phase
}

// DeletionRequest is returned by RequestCategoryDeletion. The category is
// deleted only when the token is confirmed.
type DeletionRequest struct {
	Token    string        `json:"token"`
	Category core.Category `json:"category"`
	// Affected counts the checkmarks that would be removed from children.
	Affected  int       `json:"affected"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RequestCategoryDeletion issues a single-use confirmation token.
func (s *BoardService) RequestCategoryDeletion(ctx context.Context, categoryID string) (DeletionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled {
		return DeletionRequest{}, ErrPersistenceDisabled
	}
	if !s.loaded {
		return DeletionRequest{}, ErrNotLoaded
	}
	if s.archive.phase != ArchiveIdle {
		return DeletionRequest{}, ErrArchiveInProgress
	}
	cat, ok := s.board.Category(categoryID)
	if !ok {
		return DeletionRequest{}, fmt.Errorf("%w: %s", core.ErrCategoryNotFound, categoryID)
	}

	s.deletions.CleanExpired()
	affected := 0
	for _, c := range s.board.Children {
		affected += c.Chores[categoryID]
	}
	req := DeletionRequest{
		Token:    uuid.NewString(),
		Category: cat,
		Affected: affected,
	}
	req.ExpiresAt = s.deletions.Set(req.Token, categoryID)
	return req, nil
}

// ConfirmCategoryDeletion removes the category and its counts from every
// child in one transition and writes both arrays at once. A category that is
// already gone makes this a no-op.
func (s *BoardService) ConfirmCategoryDeletion(ctx context.Context, token string) (core.Board, error) {
	s.mu.Lock()
	if s.disabled {
		s.mu.Unlock()
		return core.Board{}, ErrPersistenceDisabled
	}
	if s.archive.phase != ArchiveIdle {
		s.mu.Unlock()
		return core.Board{}, ErrArchiveInProgress
	}
	categoryID, ok := s.deletions.Take(token)
	if !ok {
		s.mu.Unlock()
		return core.Board{}, ErrUnknownDeletionToken
	}

	next, changed := s.board.DeleteCategory(categoryID)
	if changed {
		s.board = next
		s.dirtyChildren, s.dirtyCategories = true, true
	}
	s.mu.Unlock()

	if changed {
		s.logger.InfoContext(ctx, "Category deleted", applog.FieldCategoryID, categoryID)
		s.debouncer.Flush()
	}
	return s.Board(), nil
}
