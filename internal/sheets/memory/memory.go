package memory

import (
	"context"
	"fmt"
	"sync"

	"choreboard/internal/core"
	ports "choreboard/internal/sheets"
)

// Store keeps exported archive rows in memory. Used when no spreadsheet is
// configured and in tests.
type Store struct {
	mu   sync.Mutex
	rows [][]any
	err  error
}

var _ ports.ArchiveWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendArchive stores the rows and returns a synthetic row reference.
func (s *Store) AppendArchive(_ context.Context, sum core.WeekSummary) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	rows := ports.ArchiveRows(sum)
	if len(rows) == 0 {
		return "", nil
	}
	first := len(s.rows) + 1
	s.rows = append(s.rows, rows...)
	return fmt.Sprintf("mem:%d-%d", first, len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.rows...)
}

// FailWith makes later appends return err. A nil err clears it.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
