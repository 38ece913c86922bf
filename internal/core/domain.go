package core

import (
	"errors"
	"strings"
)

type (
	// Category is a chore type shared by every child on the board.
	Category struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// Chores maps a category id to the number of checkmarks for the current week.
	// Keys with a zero count are never stored.
	Chores map[string]int

	// WeeklyArchive is the immutable record of one completed week.
	WeeklyArchive struct {
		WeekOf      string `json:"weekOf"`
		TotalChores int    `json:"totalChores"`
		Earnings    Amount `json:"earnings"`
	}

	Child struct {
		ID            string          `json:"id"`
		Name          string          `json:"name"`
		AvatarID      string          `json:"avatarId"`
		Chores        Chores          `json:"chores"`
		TotalEarnings Amount          `json:"totalEarnings"`
		Archive       []WeeklyArchive `json:"archive"` // newest first
	}

	// Board is the persisted document: the roster and the shared categories.
	Board struct {
		Children   []Child    `json:"children"`
		Categories []Category `json:"categories"`
	}
)

var (
	ErrEmptyName         = errors.New("empty name")
	ErrNameTooLong       = errors.New("name too long (max 80 characters)")
	ErrDuplicateCategory = errors.New("duplicate category id")
	ErrChildNotFound     = errors.New("child not found")
	ErrCategoryNotFound  = errors.New("category not found")
)

const maxNameLength = 80

// ValidateName checks a child or category display name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if len([]rune(name)) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// Total returns the sum of all counts.
func (c Chores) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Distinct returns the number of categories with a strictly positive count.
func (c Chores) Distinct() int {
	distinct := 0
	for _, n := range c {
		if n > 0 {
			distinct++
		}
	}
	return distinct
}

func (c Chores) Clone() Chores {
	out := make(Chores, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of the child. Archive entries are shared by value.
func (c Child) Clone() Child {
	c.Chores = c.Chores.Clone()
	c.Archive = append([]WeeklyArchive(nil), c.Archive...)
	if c.Archive == nil {
		c.Archive = []WeeklyArchive{}
	}
	return c
}

func (b Board) Clone() Board {
	out := Board{
		Children:   make([]Child, len(b.Children)),
		Categories: append(make([]Category, 0, len(b.Categories)), b.Categories...),
	}
	for i, c := range b.Children {
		out.Children[i] = c.Clone()
	}
	return out
}

// Normalize repairs a board decoded from an external source: nil collections
// become empty and non-positive chore counts are dropped.
func (b Board) Normalize() Board {
	out := b.Clone()
	for i := range out.Children {
		for k, n := range out.Children[i].Chores {
			if n <= 0 {
				delete(out.Children[i].Chores, k)
			}
		}
	}
	return out
}

// Child returns the child with the given id.
func (b Board) Child(id string) (Child, bool) {
	for _, c := range b.Children {
		if c.ID == id {
			return c, true
		}
	}
	return Child{}, false
}

// Category returns the category with the given id.
func (b Board) Category(id string) (Category, bool) {
	for _, c := range b.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// DefaultBoard is the seed written when no persisted document exists.
func DefaultBoard() Board {
	child := func(id, name, avatar string) Child {
		return Child{ID: id, Name: name, AvatarID: avatar, Chores: Chores{}, Archive: []WeeklyArchive{}}
	}
	return Board{
		Children: []Child{
			child("child1", "Alex", "avatar1"),
			child("child2", "Léa", "avatar2"),
			child("child3", "Tom", "avatar3"),
		},
		Categories: []Category{
			{ID: "cat1", Name: "Mettre la table"},
			{ID: "cat2", Name: "Débarrasser la table"},
			{ID: "cat3", Name: "Ranger sa chambre"},
		},
	}
}

// EmptyBoard is returned when a remote payload is malformed.
func EmptyBoard() Board {
	return Board{Children: []Child{}, Categories: []Category{}}
}
