// Package store defines the persistence port for the chore board document and
// the patch type used to update it.
package store

import (
	"context"
	"errors"

	"choreboard/internal/core"
)

// DocumentID is the identifier of the single board document.
const DocumentID = "mainState"

var ErrNotConfigured = errors.New("persistence not configured")

// Ports for outbound adapters.
type (
	// Gateway loads and saves the board document. Load seeds and persists the
	// default board when no document exists yet.
	Gateway interface {
		Load(ctx context.Context) (core.Board, error)
		Save(ctx context.Context, p Patch) error
	}

	// Pinger is implemented by gateways that can check connectivity.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Patch is a partial document update. Nil fields leave the stored value
// untouched.
type Patch struct {
	Children   *[]core.Child
	Categories *[]core.Category
}

// FullPatch writes both arrays.
func FullPatch(b core.Board) Patch {
	children := cloneChildren(b.Children)
	categories := append([]core.Category{}, b.Categories...)
	return Patch{Children: &children, Categories: &categories}
}

func ChildrenPatch(children []core.Child) Patch {
	c := cloneChildren(children)
	return Patch{Children: &c}
}

func CategoriesPatch(categories []core.Category) Patch {
	c := append([]core.Category{}, categories...)
	return Patch{Categories: &c}
}

// IsEmpty reports whether the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return p.Children == nil && p.Categories == nil
}

// Merge combines two patches; fields set in o win.
func (p Patch) Merge(o Patch) Patch {
	if o.Children != nil {
		p.Children = o.Children
	}
	if o.Categories != nil {
		p.Categories = o.Categories
	}
	return p
}

// Apply returns base with the patch fields replaced.
func (p Patch) Apply(base core.Board) core.Board {
	out := base.Clone()
	if p.Children != nil {
		out.Children = cloneChildren(*p.Children)
	}
	if p.Categories != nil {
		out.Categories = append([]core.Category{}, (*p.Categories)...)
	}
	return out
}

func cloneChildren(in []core.Child) []core.Child {
	out := make([]core.Child, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
