package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBoard(chores Chores) Board {
	b := DefaultBoard()
	b.Categories = []Category{{ID: "catA", Name: "A"}, {ID: "catB", Name: "B"}, {ID: "catC", Name: "C"}}
	b.Children[0].Chores = chores
	return b
}

func TestMarkChoreTierCrossing(t *testing.T) {
	b := testBoard(Chores{"catA": 2, "catB": 2})

	next, reward, changed := b.MarkChore("child1", "catA")
	require.True(t, changed)
	require.NotNil(t, reward)
	assert.True(t, reward.Amount.Equal(NewAmount(2)))
	assert.Equal(t, "child1", reward.ChildID)
	assert.Equal(t, Chores{"catA": 3, "catB": 2}, next.Children[0].Chores)

	// receiver untouched
	assert.Equal(t, Chores{"catA": 2, "catB": 2}, b.Children[0].Chores)

	// same tier again: no signal
	_, reward, changed = next.MarkChore("child1", "catA")
	assert.True(t, changed)
	assert.Nil(t, reward)
}

func TestMarkChoreUnknownIDsAreNoops(t *testing.T) {
	b := testBoard(Chores{"catA": 1})

	next, reward, changed := b.MarkChore("nobody", "catA")
	assert.False(t, changed)
	assert.Nil(t, reward)
	assert.Equal(t, b, next)

	next, _, changed = b.MarkChore("child1", "missing")
	assert.False(t, changed)
	assert.Equal(t, Chores{"catA": 1}, next.Children[0].Chores)
}

func TestUnmarkChore(t *testing.T) {
	b := testBoard(Chores{"catA": 1, "catB": 2})

	next, changed := b.UnmarkChore("child1", "catA")
	require.True(t, changed)
	_, present := next.Children[0].Chores["catA"]
	assert.False(t, present, "zero count must be removed")

	next, changed = next.UnmarkChore("child1", "catA")
	assert.False(t, changed, "unmark at zero is a no-op")
	assert.Equal(t, Chores{"catB": 2}, next.Children[0].Chores)
}

func TestMarkThenUnmarkRestoresState(t *testing.T) {
	for _, start := range []Chores{{}, {"catA": 3}, {"catB": 1, "catC": 9}} {
		b := testBoard(start.Clone())
		marked, _, _ := b.MarkChore("child1", "catA")
		restored, changed := marked.UnmarkChore("child1", "catA")
		require.True(t, changed)
		assert.Equal(t, start, restored.Children[0].Chores)
	}
}

func TestDeleteCategory(t *testing.T) {
	b := testBoard(Chores{"catA": 1, "catB": 2})
	b.Children[1].Chores = Chores{"catB": 4}

	next, changed := b.DeleteCategory("catB")
	require.True(t, changed)
	for _, c := range next.Children {
		_, present := c.Chores["catB"]
		assert.False(t, present, "child %s still has catB", c.ID)
	}
	_, found := next.Category("catB")
	assert.False(t, found)
	assert.Len(t, next.Categories, 2)
	assert.Len(t, b.Categories, 3, "receiver untouched")

	same, changed := next.DeleteCategory("catB")
	assert.False(t, changed)
	assert.Equal(t, next, same)
}

func TestAddCategory(t *testing.T) {
	b := testBoard(nil)

	next, err := b.AddCategory(Category{ID: "cat-new", Name: "  Arroser  "})
	require.NoError(t, err)
	cat, ok := next.Category("cat-new")
	require.True(t, ok)
	assert.Equal(t, "Arroser", cat.Name)

	_, err = next.AddCategory(Category{ID: "cat-new", Name: "Again"})
	assert.ErrorIs(t, err, ErrDuplicateCategory)

	_, err = next.AddCategory(Category{ID: "x", Name: "   "})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestArchiveWeekWithActivity(t *testing.T) {
	prior := WeeklyArchive{WeekOf: "9 octobre 2026", TotalChores: 12, Earnings: NewAmount(5)}
	children := []Child{{
		ID: "child1", Name: "Alex",
		Chores:        Chores{"catA": 3, "catB": 2},
		TotalEarnings: NewAmount(10),
		Archive:       []WeeklyArchive{prior},
	}}

	out := ArchiveWeek(children, "16 octobre 2026")
	require.Len(t, out, 1)
	got := out[0]
	assert.Empty(t, got.Chores)
	assert.NotNil(t, got.Chores)
	assert.True(t, got.TotalEarnings.Equal(NewAmount(12)), "total %s", got.TotalEarnings)
	require.Len(t, got.Archive, 2)
	assert.Equal(t, "16 octobre 2026", got.Archive[0].WeekOf)
	assert.Equal(t, 5, got.Archive[0].TotalChores)
	assert.True(t, got.Archive[0].Earnings.Equal(NewAmount(2)))
	assert.Equal(t, prior, got.Archive[1])

	// input untouched
	assert.Equal(t, 5, children[0].Chores.Total())
	assert.Len(t, children[0].Archive, 1)
}

func TestArchiveWeekWithoutActivity(t *testing.T) {
	x := WeeklyArchive{WeekOf: "2 octobre 2026", TotalChores: 1, Earnings: Amount{}}
	children := []Child{{ID: "child1", Chores: Chores{}, TotalEarnings: NewAmount(10), Archive: []WeeklyArchive{x}}}

	got := ArchiveWeek(children, "16 octobre 2026")[0]
	assert.Empty(t, got.Chores)
	assert.True(t, got.TotalEarnings.Equal(NewAmount(10)))
	assert.Equal(t, []WeeklyArchive{x}, got.Archive)
}

func TestArchiveWeekActivityWithoutReward(t *testing.T) {
	children := []Child{{ID: "child1", Chores: Chores{"catA": 1}}}

	got := ArchiveWeek(children, "16 octobre 2026")[0]
	require.Len(t, got.Archive, 1)
	assert.Equal(t, 1, got.Archive[0].TotalChores)
	assert.True(t, got.Archive[0].Earnings.IsZero())
	assert.True(t, got.TotalEarnings.IsZero())
}

func TestSummarizeWeekDoesNotMutate(t *testing.T) {
	b := testBoard(Chores{"catA": 4, "catB": 3, "catC": 3})
	b.Children[0].TotalEarnings = NewAmount(1)
	b.Children[0].Archive = []WeeklyArchive{{WeekOf: "w", TotalChores: 1}}

	s := SummarizeWeek(b.Children, "x")
	require.Len(t, s.Children, 3)
	assert.Equal(t, 1, s.Children[0].ArchiveSeq, "the new entry follows the existing one")
	assert.Equal(t, 0, s.Children[1].ArchiveSeq)
	assert.True(t, s.Children[0].Earnings.Equal(NewAmount(5)))
	assert.True(t, s.Children[0].NewTotal.Equal(NewAmount(6)))
	assert.True(t, s.Total.Equal(NewAmount(5)))
	assert.Len(t, s.Active(), 1)
	assert.Equal(t, 10, b.Children[0].Chores.Total())
}

func TestIdleAndProgress(t *testing.T) {
	b := testBoard(Chores{"catA": 2, "catB": 2})

	idle := Idle(b.Children)
	require.Len(t, idle, 2)
	assert.Equal(t, "child2", idle[0].ID)

	p := Progress(b.Children)
	require.Len(t, p, 3)
	require.NotNil(t, p[0].NextTier)
	assert.Equal(t, 1, p[0].NextTier.ChoresNeeded)
}

func TestNormalizeDropsNonPositiveCounts(t *testing.T) {
	b := Board{Children: []Child{{ID: "c", Chores: Chores{"a": 0, "b": -2, "c": 1}}}}

	n := b.Normalize()
	assert.Equal(t, Chores{"c": 1}, n.Children[0].Chores)
	assert.NotNil(t, n.Categories)
	assert.NotNil(t, n.Children[0].Archive)
}

func TestWeekLabel(t *testing.T) {
	assert.Equal(t, "16 octobre 2026", WeekLabel(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, "1 août 2025", WeekLabel(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)))
}
