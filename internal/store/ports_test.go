package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"choreboard/internal/core"
)

func TestPatchApply(t *testing.T) {
	base := core.DefaultBoard()

	assert.Equal(t, base, Patch{}.Apply(base))
	assert.True(t, Patch{}.IsEmpty())

	children := []core.Child{{ID: "solo", Chores: core.Chores{}, Archive: []core.WeeklyArchive{}}}
	got := ChildrenPatch(children).Apply(base)
	assert.Equal(t, children, got.Children)
	assert.Equal(t, base.Categories, got.Categories)
}

func TestPatchMerge(t *testing.T) {
	a := ChildrenPatch(nil)
	b := CategoriesPatch([]core.Category{{ID: "c"}})

	m := a.Merge(b)
	assert.NotNil(t, m.Children)
	assert.NotNil(t, m.Categories)

	newer := ChildrenPatch([]core.Child{{ID: "x"}})
	m = m.Merge(newer)
	assert.Equal(t, "x", (*m.Children)[0].ID)
}

func TestFullPatchIsDetached(t *testing.T) {
	b := core.DefaultBoard()
	p := FullPatch(b)
	b.Children[0].Chores["cat1"] = 4
	b.Categories[0].Name = "changed"

	assert.Empty(t, (*p.Children)[0].Chores)
	assert.Equal(t, "Mettre la table", (*p.Categories)[0].Name)
}
