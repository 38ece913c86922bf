package worker

import (
	"context"
	"fmt"
	"log/slog"

	"choreboard/internal/amqp"
	"choreboard/internal/core"
	applog "choreboard/internal/log"
	"choreboard/internal/sheets"
	"choreboard/internal/storage"
	"choreboard/internal/store"
)

// ExportLedger remembers which archive rows were already exported.
// Implemented by the SQLite repository.
type ExportLedger interface {
	ExportedKeys(ctx context.Context, keys []string) (map[string]bool, error)
	MarkExported(ctx context.Context, rows []storage.ExportedRow) error
}

// ExportWorker copies archived weeks to the spreadsheet.
type ExportWorker struct {
	ledger ExportLedger
	sheets sheets.ArchiveWriter
	logger *applog.Logger
}

func NewExportWorker(ledger ExportLedger, writer sheets.ArchiveWriter, logger *slog.Logger) *ExportWorker {
	return &ExportWorker{
		ledger: ledger,
		sheets: writer,
		logger: applog.Wrap(logger, applog.ComponentWorker),
	}
}

// HandleEvent processes a single board event from AMQP. Events other than
// archived weeks are acknowledged and ignored.
func (w *ExportWorker) HandleEvent(ctx context.Context, e *amqp.BoardEvent) error {
	if e.Type != amqp.EventWeekArchived {
		w.logger.DebugContext(ctx, "Ignoring event", applog.FieldEventType, e.Type, "id", e.ID)
		return nil
	}
	w.logger.InfoContext(ctx, "Processing archive event",
		"id", e.ID,
		applog.FieldWeekOf, e.Week.WeekOf)
	return w.export(ctx, *e.Week)
}

// StartupExportCheck exports archive entries already on the board that
// were never exported. This recovers from missed AMQP messages or worker
// downtime.
func (w *ExportWorker) StartupExportCheck(ctx context.Context, gateway store.Gateway) error {
	b, err := gateway.Load(ctx)
	if err != nil {
		return fmt.Errorf("load board for startup check: %w", err)
	}

	weeks := WeeksFromArchive(b.Children)
	successCount, errorCount := 0, 0
	for _, week := range weeks {
		if err := w.export(ctx, week); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export week during startup",
				applog.FieldWeekOf, week.WeekOf,
				applog.FieldError, err)
			errorCount++
			continue
		}
		successCount++
	}

	w.logger.InfoContext(ctx, "Startup export check completed",
		"weeks", len(weeks),
		"processed", successCount,
		"errors", errorCount)
	return nil
}

func (w *ExportWorker) export(ctx context.Context, week core.WeekSummary) error {
	active := week.Active()
	if len(active) == 0 {
		w.logger.DebugContext(ctx, "Week without activity", applog.FieldWeekOf, week.WeekOf)
		return nil
	}
	keys := make([]string, len(active))
	for i, e := range active {
		keys[i] = RowKey(week.WeekOf, e)
	}
	done, err := w.ledger.ExportedKeys(ctx, keys)
	if err != nil {
		return err
	}

	pending := core.WeekSummary{WeekOf: week.WeekOf}
	var marks []storage.ExportedRow
	for i, e := range active {
		if done[keys[i]] {
			continue
		}
		pending.Children = append(pending.Children, e)
		pending.Total = pending.Total.Add(e.Earnings)
		marks = append(marks, storage.ExportedRow{Key: keys[i], WeekOf: week.WeekOf, ChildID: e.ChildID})
	}
	if len(marks) == 0 {
		w.logger.InfoContext(ctx, "Week already exported", applog.FieldWeekOf, week.WeekOf)
		return nil
	}

	ref, err := w.sheets.AppendArchive(ctx, pending)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := w.ledger.MarkExported(ctx, marks); err != nil {
		// The rows are written; a redelivery would duplicate them.
		w.logger.ErrorContext(ctx, "Failed to mark rows as exported",
			applog.FieldWeekOf, week.WeekOf,
			applog.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Successfully exported week",
		applog.FieldWeekOf, week.WeekOf,
		"rows", len(marks),
		"skipped", len(active)-len(marks),
		"sheets_ref", ref)
	return nil
}

// RowKey identifies one child's archive entry. The week label alone is not
// unique: a week can be archived twice on the same day.
func RowKey(weekOf string, e core.WeekSummaryEntry) string {
	return fmt.Sprintf("%s|%s|%d", weekOf, e.ChildID, e.ArchiveSeq)
}

// WeeksFromArchive rebuilds week summaries from the children's archive
// entries. Weeks come in order of first appearance, walking each child's
// archive from the oldest entry. Entries sharing a label land in one summary
// but keep their own ArchiveSeq, so each still exports as its own row.
func WeeksFromArchive(children []core.Child) []core.WeekSummary {
	var order []string
	byWeek := map[string]*core.WeekSummary{}
	for _, c := range children {
		// Archive is newest first.
		for i := len(c.Archive) - 1; i >= 0; i-- {
			a := c.Archive[i]
			s, ok := byWeek[a.WeekOf]
			if !ok {
				s = &core.WeekSummary{WeekOf: a.WeekOf}
				byWeek[a.WeekOf] = s
				order = append(order, a.WeekOf)
			}
			s.Children = append(s.Children, core.WeekSummaryEntry{
				ChildID:     c.ID,
				ChildName:   c.Name,
				TotalChores: a.TotalChores,
				Earnings:    a.Earnings,
				ArchiveSeq:  len(c.Archive) - 1 - i,
			})
			s.Total = s.Total.Add(a.Earnings)
		}
	}

	out := make([]core.WeekSummary, 0, len(order))
	for _, week := range order {
		out = append(out, *byWeek[week])
	}
	return out
}
