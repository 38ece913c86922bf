package memory

import (
	"context"
	"sync"

	"choreboard/internal/core"
	"choreboard/internal/store"
)

// Store keeps the board document in process memory.
type Store struct {
	mu    sync.Mutex
	board *core.Board
	saves int
}

func New() *Store {
	return &Store{}
}

// NewWithBoard returns a store that already holds b.
func NewWithBoard(b core.Board) *Store {
	b = b.Normalize()
	return &Store{board: &b}
}

// Load returns the stored board, seeding the default board on first use.
func (s *Store) Load(_ context.Context) (core.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board == nil {
		seed := core.DefaultBoard()
		s.board = &seed
		s.saves++
	}
	return s.board.Clone(), nil
}

// Save merges the patch into the stored board.
func (s *Store) Save(_ context.Context, p store.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := core.EmptyBoard()
	if s.board != nil {
		base = *s.board
	}
	next := p.Apply(base)
	s.board = &next
	s.saves++
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

// Saves returns how many writes the store has received, seeding included.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

var (
	_ store.Gateway = (*Store)(nil)
	_ store.Pinger  = (*Store)(nil)
)
