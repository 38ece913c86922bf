// Package storage keeps the board document in a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"choreboard/internal/core"
	applog "choreboard/internal/log"
	"choreboard/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *applog.Logger
}

// NewSQLiteRepository opens the database at dbPath, creating its directory,
// and applies pending migrations. A nil logger means slog.Default().
func NewSQLiteRepository(dbPath string, logger *slog.Logger) (*SQLiteRepository, error) {
	log := applog.Wrap(logger, applog.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrateSchema(dbPath, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, logger: log}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements store.Gateway. A missing document is seeded with the
// default board.
func (r *SQLiteRepository) Load(ctx context.Context) (core.Board, error) {
	var children, categories string
	err := r.db.QueryRowContext(ctx,
		`SELECT children, categories FROM documents WHERE id = ?`, store.DocumentID,
	).Scan(&children, &categories)
	if errors.Is(err, sql.ErrNoRows) {
		seed := core.DefaultBoard()
		if err := r.Save(ctx, store.FullPatch(seed)); err != nil {
			return core.Board{}, fmt.Errorf("seed board: %w", err)
		}
		r.logger.InfoContext(ctx, "Seeded default board in SQLite", "document", store.DocumentID)
		return seed, nil
	}
	if err != nil {
		return core.Board{}, fmt.Errorf("load board: %w", err)
	}

	// A malformed column degrades to an empty board, like a malformed remote
	// record.
	var b core.Board
	if err := json.Unmarshal([]byte(children), &b.Children); err != nil {
		r.logger.WarnContext(ctx, "Invalid stored children, using empty board", applog.FieldError, err)
		return core.EmptyBoard(), nil
	}
	if err := json.Unmarshal([]byte(categories), &b.Categories); err != nil {
		r.logger.WarnContext(ctx, "Invalid stored categories, using empty board", applog.FieldError, err)
		return core.EmptyBoard(), nil
	}
	return b.Normalize(), nil
}

// Save implements store.Gateway. Only the columns present in the patch are
// overwritten.
func (r *SQLiteRepository) Save(ctx context.Context, p store.Patch) error {
	if p.IsEmpty() {
		return nil
	}
	var children, categories sql.NullString
	if p.Children != nil {
		raw, err := json.Marshal(*p.Children)
		if err != nil {
			return fmt.Errorf("encode children: %w", err)
		}
		children = sql.NullString{String: string(raw), Valid: true}
	}
	if p.Categories != nil {
		raw, err := json.Marshal(*p.Categories)
		if err != nil {
			return fmt.Errorf("encode categories: %w", err)
		}
		categories = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (id, children, categories, updated_at)
		VALUES (?1, COALESCE(?2, '[]'), COALESCE(?3, '[]'), ?4)
		ON CONFLICT(id) DO UPDATE SET
			children   = COALESCE(?2, documents.children),
			categories = COALESCE(?3, documents.categories),
			updated_at = ?4`,
		store.DocumentID, children, categories, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save board: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// UpdatedAt returns when the board document was last written.
func (r *SQLiteRepository) UpdatedAt(ctx context.Context) (time.Time, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT updated_at FROM documents WHERE id = ?`, store.DocumentID,
	).Scan(&raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("read updated_at: %w", err)
	}
	return time.Parse(time.RFC3339Nano, raw)
}

var (
	_ store.Gateway = (*SQLiteRepository)(nil)
	_ store.Pinger  = (*SQLiteRepository)(nil)
)
