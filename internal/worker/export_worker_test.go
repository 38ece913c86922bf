package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choreboard/internal/amqp"
	"choreboard/internal/core"
	sheetsmem "choreboard/internal/sheets/memory"
	"choreboard/internal/storage"
	storemem "choreboard/internal/store/memory"
)

func newTestWorker(t *testing.T) (*ExportWorker, *sheetsmem.Store, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	sheet := sheetsmem.New()
	return NewExportWorker(repo, sheet, nil), sheet, repo
}

func week(label string) core.WeekSummary {
	return core.WeekSummary{WeekOf: label, Children: []core.WeekSummaryEntry{
		{ChildID: "child1", ChildName: "Alex", TotalChores: 10, Earnings: core.NewAmount(5)},
		{ChildID: "child2", ChildName: "Léa"},
	}}
}

func TestHandleEventExportsOnce(t *testing.T) {
	w, sheet, repo := newTestWorker(t)
	ctx := context.Background()
	e := amqp.NewWeekArchivedEvent(week("16 octobre 2026"))

	require.NoError(t, w.HandleEvent(ctx, e))
	require.NoError(t, w.HandleEvent(ctx, e), "redelivery is acknowledged")

	assert.Equal(t, [][]any{{"16 octobre 2026", "Alex", 10, 5.0}}, sheet.Rows())
	key := RowKey("16 octobre 2026", e.Week.Children[0])
	done, err := repo.ExportedKeys(ctx, []string{key})
	require.NoError(t, err)
	assert.True(t, done[key])
}

func TestSameDayArchivesExportEveryRow(t *testing.T) {
	w, sheet, _ := newTestWorker(t)
	ctx := context.Background()

	first := amqp.NewWeekArchivedEvent(core.WeekSummary{WeekOf: "16 octobre 2026", Children: []core.WeekSummaryEntry{
		{ChildID: "child1", ChildName: "Alex", TotalChores: 5, Earnings: core.NewAmount(2)},
	}})
	second := amqp.NewWeekArchivedEvent(core.WeekSummary{WeekOf: "16 octobre 2026", Children: []core.WeekSummaryEntry{
		{ChildID: "child1", ChildName: "Alex", TotalChores: 1, ArchiveSeq: 1},
		{ChildID: "child2", ChildName: "Léa", TotalChores: 3},
	}})

	require.NoError(t, w.HandleEvent(ctx, first))
	require.NoError(t, w.HandleEvent(ctx, second))
	require.NoError(t, w.HandleEvent(ctx, second))

	assert.Equal(t, [][]any{
		{"16 octobre 2026", "Alex", 5, 2.0},
		{"16 octobre 2026", "Alex", 1, 0.0},
		{"16 octobre 2026", "Léa", 3, 0.0},
	}, sheet.Rows())
}

func TestBackfillSkipsRowsExportedFromEvents(t *testing.T) {
	w, sheet, _ := newTestWorker(t)
	ctx := context.Background()

	b := core.DefaultBoard()
	b.Children[0].Archive = []core.WeeklyArchive{{WeekOf: "9 octobre 2026", TotalChores: 2}}
	b.Children[0].Chores = core.Chores{"cat1": 5, "cat2": 1}
	summary := core.SummarizeWeek(b.Children, "16 octobre 2026")
	require.NoError(t, w.HandleEvent(ctx, amqp.NewWeekArchivedEvent(summary)))

	archived := b.ArchiveWeek("16 octobre 2026")
	require.NoError(t, w.StartupExportCheck(ctx, storemem.NewWithBoard(archived)))

	assert.Equal(t, [][]any{
		{"16 octobre 2026", "Alex", 6, 2.0},
		{"9 octobre 2026", "Alex", 2, 0.0},
	}, sheet.Rows())
}

func TestHandleEventIgnoresRewards(t *testing.T) {
	w, sheet, _ := newTestWorker(t)
	e := amqp.NewRewardEarnedEvent(core.RewardEarned{ChildID: "child1"})

	require.NoError(t, w.HandleEvent(context.Background(), e))
	assert.Empty(t, sheet.Rows())
}

func TestHandleEventSheetFailureIsRetried(t *testing.T) {
	w, sheet, repo := newTestWorker(t)
	ctx := context.Background()
	e := amqp.NewWeekArchivedEvent(week("9 octobre 2026"))

	sheet.FailWith(errors.New("quota exceeded"))
	err := w.HandleEvent(ctx, e)
	require.ErrorContains(t, err, "quota exceeded")
	done, err := repo.ExportedKeys(ctx, []string{RowKey("9 octobre 2026", e.Week.Children[0])})
	require.NoError(t, err)
	assert.Empty(t, done)

	sheet.FailWith(nil)
	require.NoError(t, w.HandleEvent(ctx, e))
	assert.Len(t, sheet.Rows(), 1)
}

func TestStartupExportCheckBackfills(t *testing.T) {
	w, sheet, repo := newTestWorker(t)
	ctx := context.Background()

	b := core.DefaultBoard()
	b.Children[0].Archive = []core.WeeklyArchive{
		{WeekOf: "16 octobre 2026", TotalChores: 5, Earnings: core.NewAmount(2)},
		{WeekOf: "9 octobre 2026", TotalChores: 10, Earnings: core.NewAmount(5)},
	}
	b.Children[2].Archive = []core.WeeklyArchive{
		{WeekOf: "16 octobre 2026", TotalChores: 1},
	}
	require.NoError(t, repo.MarkExported(ctx, []storage.ExportedRow{{
		Key:     RowKey("9 octobre 2026", core.WeekSummaryEntry{ChildID: "child1"}),
		WeekOf:  "9 octobre 2026",
		ChildID: "child1",
	}}))

	require.NoError(t, w.StartupExportCheck(ctx, storemem.NewWithBoard(b)))

	assert.Equal(t, [][]any{
		{"16 octobre 2026", "Alex", 5, 2.0},
		{"16 octobre 2026", "Tom", 1, 0.0},
	}, sheet.Rows())
}

func TestWeeksFromArchive(t *testing.T) {
	children := []core.Child{
		{ID: "child1", Name: "Alex", Archive: []core.WeeklyArchive{
			{WeekOf: "b", TotalChores: 5, Earnings: core.NewAmount(2)},
			{WeekOf: "a", TotalChores: 10, Earnings: core.NewAmount(5)},
		}},
		{ID: "child2", Name: "Léa", Archive: []core.WeeklyArchive{
			{WeekOf: "b", TotalChores: 10, Earnings: core.NewAmount(5)},
		}},
	}

	weeks := WeeksFromArchive(children)
	require.Len(t, weeks, 2)
	assert.Equal(t, "a", weeks[0].WeekOf)
	assert.Equal(t, "b", weeks[1].WeekOf)
	require.Len(t, weeks[1].Children, 2)
	assert.Equal(t, 1, weeks[1].Children[0].ArchiveSeq)
	assert.Equal(t, 0, weeks[1].Children[1].ArchiveSeq)
	assert.Equal(t, "7", weeks[1].Total.String())
}
