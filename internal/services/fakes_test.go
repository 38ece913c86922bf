package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"choreboard/internal/core"
	"choreboard/internal/store"
)

// fakeGateway records every patch it receives.
type fakeGateway struct {
	mu      sync.Mutex
	board   core.Board
	patches []store.Patch
	saveErr error
	loadErr error
	block   chan struct{}
	started chan struct{}
}

func newFakeGateway(b core.Board) *fakeGateway {
	return &fakeGateway{board: b}
}

func (g *fakeGateway) Load(context.Context) (core.Board, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loadErr != nil {
		return core.Board{}, g.loadErr
	}
	return g.board.Clone(), nil
}

func (g *fakeGateway) Save(ctx context.Context, p store.Patch) error {
	g.mu.Lock()
	block, started := g.block, g.started
	g.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.patches = append(g.patches, p)
	if g.saveErr != nil {
		return g.saveErr
	}
	g.board = p.Apply(g.board)
	return nil
}

func (g *fakeGateway) saves() []store.Patch {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]store.Patch(nil), g.patches...)
}

func (g *fakeGateway) stored() core.Board {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.board.Clone()
}

func (g *fakeGateway) failWith(err error) {
	g.mu.Lock()
	g.saveErr = err
	g.mu.Unlock()
}

type fakePublisher struct {
	mu       sync.Mutex
	rewards  []core.RewardEarned
	archives []core.WeekSummary
	err      error
}

func (p *fakePublisher) PublishRewardEarned(_ context.Context, r core.RewardEarned) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rewards = append(p.rewards, r)
	return p.err
}

func (p *fakePublisher) PublishWeekArchived(_ context.Context, s core.WeekSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.archives = append(p.archives, s)
	return p.err
}

var errUnavailable = errors.New("service unavailable")

func fixedNow() time.Time {
	return time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
}

func (g *fakeGateway) setLoadErr(err error) {
	g.mu.Lock()
	g.loadErr = err
	g.mu.Unlock()
}
