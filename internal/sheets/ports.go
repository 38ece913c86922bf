package sheets

import (
	"context"

	"choreboard/internal/core"
)

// Ports for outbound adapters.
type (
	// ArchiveWriter appends a finalized week to an external ledger.
	ArchiveWriter interface {
		AppendArchive(ctx context.Context, s core.WeekSummary) (rowRef string, err error)
	}
)

// ArchiveRows renders one row per child with activity:
// week, child name, chores done, earnings.
func ArchiveRows(s core.WeekSummary) [][]any {
	active := s.Active()
	rows := make([][]any, 0, len(active))
	for _, e := range active {
		rows = append(rows, []any{s.WeekOf, e.ChildName, e.TotalChores, e.Earnings.Float64()})
	}
	return rows
}
