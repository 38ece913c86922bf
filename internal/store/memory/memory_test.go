package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choreboard/internal/core"
	"choreboard/internal/store"
)

func TestLoadSeedsDefaultBoard(t *testing.T) {
	s := New()

	b, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.DefaultBoard(), b)
	assert.Equal(t, 1, s.Saves())

	_, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Saves(), "seed is written once")
}

func TestSavePatchLeavesOtherFieldUntouched(t *testing.T) {
	ctx := context.Background()
	s := NewWithBoard(core.DefaultBoard())

	require.NoError(t, s.Save(ctx, store.CategoriesPatch([]core.Category{{ID: "only", Name: "Only"}})))

	b, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, b.Children, 3)
	assert.Equal(t, []core.Category{{ID: "only", Name: "Only"}}, b.Categories)
}

func TestLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewWithBoard(core.DefaultBoard())

	b, _ := s.Load(ctx)
	b.Children[0].Chores["cat1"] = 9

	again, _ := s.Load(ctx)
	assert.Empty(t, again.Children[0].Chores)
}
