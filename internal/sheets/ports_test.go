package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"choreboard/internal/core"
)

func TestArchiveRowsSkipsIdleChildren(t *testing.T) {
	s := core.WeekSummary{
		WeekOf: "16 octobre 2026",
		Children: []core.WeekSummaryEntry{
			{ChildID: "child1", ChildName: "Alex", TotalChores: 10, Earnings: core.NewAmount(5)},
			{ChildID: "child2", ChildName: "Léa"},
			{ChildID: "child3", ChildName: "Tom", TotalChores: 2},
		},
	}

	assert.Equal(t, [][]any{
		{"16 octobre 2026", "Alex", 10, 5.0},
		{"16 octobre 2026", "Tom", 2, 0.0},
	}, ArchiveRows(s))
}

func TestArchiveRowsEmptyWeek(t *testing.T) {
	assert.Empty(t, ArchiveRows(core.WeekSummary{WeekOf: "1 janvier 2026"}))
}
