package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choreboard/internal/core"
	"choreboard/internal/store"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "board.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

// Amounts decoded from JSON differ internally from constructed ones, so
// boards are compared by their encoding.
func assertSameJSON(t *testing.T, want, got core.Board) {
	t.Helper()
	w, err := json.Marshal(want)
	require.NoError(t, err)
	g, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(w), string(g))
}

func TestLoadSeedsMissingDocument(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	b, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultBoard(), b)

	again, err := repo.Load(ctx)
	require.NoError(t, err)
	assertSameJSON(t, b, again)

	_, err = repo.UpdatedAt(ctx)
	assert.NoError(t, err)
}

func TestSaveOnlyOverwritesPatchedColumns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Load(ctx)
	require.NoError(t, err)

	b, _ := repo.Load(ctx)
	b.Children[0].Chores["cat1"] = 3
	b.Children[0].TotalEarnings = core.NewAmount(7)
	require.NoError(t, repo.Save(ctx, store.ChildrenPatch(b.Children)))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Children[0].Chores["cat1"])
	assert.True(t, got.Children[0].TotalEarnings.Equal(core.NewAmount(7)))
	assert.Equal(t, core.DefaultBoard().Categories, got.Categories)

	require.NoError(t, repo.Save(ctx, store.CategoriesPatch([]core.Category{{ID: "x", Name: "X"}})))
	got, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Children[0].Chores["cat1"])
	assert.Equal(t, []core.Category{{ID: "x", Name: "X"}}, got.Categories)
}

func TestSaveBeforeLoadCreatesDocument(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, store.CategoriesPatch([]core.Category{{ID: "x", Name: "X"}})))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Children)
	assert.Len(t, got.Categories, 1)
}

func TestLoadMalformedColumnDegradesToEmptyBoard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Load(ctx)
	require.NoError(t, err)
	_, err = repo.db.ExecContext(ctx, `UPDATE documents SET children = ? WHERE id = ?`, `{"not":"a list"}`, store.DocumentID)
	require.NoError(t, err)

	b, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.EmptyBoard(), b)
}

func TestArchiveExports(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	done, err := repo.ExportedKeys(ctx, []string{"16 octobre 2026|child1|0"})
	require.NoError(t, err)
	assert.Empty(t, done)

	rows := []ExportedRow{
		{Key: "16 octobre 2026|child1|0", WeekOf: "16 octobre 2026", ChildID: "child1"},
		{Key: "16 octobre 2026|child2|3", WeekOf: "16 octobre 2026", ChildID: "child2"},
	}
	require.NoError(t, repo.MarkExported(ctx, rows))
	require.NoError(t, repo.MarkExported(ctx, rows[:1]), "marking twice is harmless")

	done, err = repo.ExportedKeys(ctx, []string{"16 octobre 2026|child1|0", "16 octobre 2026|child1|1", "16 octobre 2026|child2|3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"16 octobre 2026|child1|0": true, "16 octobre 2026|child2|3": true}, done)

	done, err = repo.ExportedKeys(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, done)
}

func TestMigrationsRunOncePerDatabase(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	path := filepath.Join(t.TempDir(), "board.db")

	repo, err := NewSQLiteRepository(path, logger)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "SQLite schema migrated", entry["msg"])
	assert.Equal(t, path, entry["db_path"])
	assert.EqualValues(t, 0, entry["from"])
	assert.EqualValues(t, 2, entry["to"])

	buf.Reset()
	repo, err = NewSQLiteRepository(path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	assert.False(t, strings.Contains(buf.String(), "SQLite schema migrated"), "an up-to-date schema is not migrated again")
}
