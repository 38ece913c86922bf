package core

import (
	"fmt"
	"strings"
	"time"
)

// The transforms below never modify their receiver. Each returns a new board
// plus a flag telling whether anything changed; unknown ids are no-ops.

// MarkChore adds one checkmark for the child in the category. When the mark
// moves the child into a higher tier, the post-mark reward is returned.
func (b Board) MarkChore(childID, categoryID string) (Board, *RewardEarned, bool) {
	if _, ok := b.Category(categoryID); !ok {
		return b, nil, false
	}
	idx := b.childIndex(childID)
	if idx < 0 {
		return b, nil, false
	}

	next := b.Clone()
	child := &next.Children[idx]
	before := CalculateWeeklyEarnings(child.Chores)
	child.Chores[categoryID]++
	after := CalculateWeeklyEarnings(child.Chores)

	if after.GreaterThan(before) {
		return next, &RewardEarned{ChildID: child.ID, ChildName: child.Name, Amount: after}, true
	}
	return next, nil, true
}

// UnmarkChore removes one checkmark if the count is positive. A count that
// reaches zero is removed from the mapping.
func (b Board) UnmarkChore(childID, categoryID string) (Board, bool) {
	if _, ok := b.Category(categoryID); !ok {
		return b, false
	}
	idx := b.childIndex(childID)
	if idx < 0 || b.Children[idx].Chores[categoryID] <= 0 {
		return b, false
	}

	next := b.Clone()
	chores := next.Children[idx].Chores
	chores[categoryID]--
	if chores[categoryID] <= 0 {
		delete(chores, categoryID)
	}
	return next, true
}

// DeleteCategory removes the category and its key from every child's chores
// in the same transition.
func (b Board) DeleteCategory(categoryID string) (Board, bool) {
	if _, ok := b.Category(categoryID); !ok {
		return b, false
	}
	next := b.Clone()
	categories := next.Categories[:0]
	for _, c := range next.Categories {
		if c.ID != categoryID {
			categories = append(categories, c)
		}
	}
	next.Categories = categories
	for i := range next.Children {
		delete(next.Children[i].Chores, categoryID)
	}
	return next, true
}

// AddCategory appends a category. The name is trimmed.
func (b Board) AddCategory(c Category) (Board, error) {
	if err := ValidateName(c.Name); err != nil {
		return b, err
	}
	if strings.TrimSpace(c.ID) == "" {
		return b, fmt.Errorf("category id: %w", ErrEmptyName)
	}
	if _, exists := b.Category(c.ID); exists {
		return b, fmt.Errorf("%w: %s", ErrDuplicateCategory, c.ID)
	}
	next := b.Clone()
	c.Name = strings.TrimSpace(c.Name)
	next.Categories = append(next.Categories, c)
	return next, nil
}

// UpdateChild applies fn to a copy of the child.
func (b Board) UpdateChild(childID string, fn func(*Child)) (Board, bool) {
	idx := b.childIndex(childID)
	if idx < 0 {
		return b, false
	}
	next := b.Clone()
	fn(&next.Children[idx])
	return next, true
}

// ArchiveWeek credits the week's reward to every child, prepends an archive
// entry for children with activity and resets all chores.
func ArchiveWeek(children []Child, weekOf string) []Child {
	out := make([]Child, len(children))
	for i, c := range children {
		weekly := CalculateWeeklyEarnings(c.Chores)
		total := c.Chores.Total()

		next := c.Clone()
		if total > 0 {
			entry := WeeklyArchive{WeekOf: weekOf, TotalChores: total, Earnings: weekly}
			next.Archive = append([]WeeklyArchive{entry}, next.Archive...)
		}
		next.TotalEarnings = c.TotalEarnings.Add(weekly)
		next.Chores = Chores{}
		out[i] = next
	}
	return out
}

// ArchiveWeek applies the archive transform to the board's children.
func (b Board) ArchiveWeek(weekOf string) Board {
	next := b.Clone()
	next.Children = ArchiveWeek(b.Children, weekOf)
	return next
}

func (b Board) childIndex(id string) int {
	for i, c := range b.Children {
		if c.ID == id {
			return i
		}
	}
	return -1
}

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// WeekLabel formats the archive date label, e.g. "16 octobre 2026".
func WeekLabel(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), frenchMonths[t.Month()-1], t.Year())
}
