package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ExportedRow identifies one archive entry written to the spreadsheet.
type ExportedRow struct {
	Key     string
	WeekOf  string
	ChildID string
}

// ExportedKeys returns the subset of keys already recorded as exported.
func (r *SQLiteRepository) ExportedKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	done := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return done, nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	query := `SELECT row_key FROM archive_exports WHERE row_key IN (?` + strings.Repeat(",?", len(keys)-1) + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("check exports: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan export key: %w", err)
		}
		done[k] = true
	}
	return done, rows.Err()
}

// MarkExported records rows as written in one transaction.
func (r *SQLiteRepository) MarkExported(ctx context.Context, rows []ExportedRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO archive_exports (row_key, week_of, child_id, exported_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(row_key) DO UPDATE SET exported_at = excluded.exported_at`,
			row.Key, row.WeekOf, row.ChildID, now,
		); err != nil {
			return fmt.Errorf("mark export %q: %w", row.Key, err)
		}
	}
	return tx.Commit()
}
