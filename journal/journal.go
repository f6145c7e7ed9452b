// Package journal records the destination identity resolved for each source
// path, so that objects created in an opaque object space can be found again
// by later runs.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS targets (
    source TEXT PRIMARY KEY,
    target TEXT NOT NULL,
    updated_at TEXT NOT NULL -- RFC3339
);
`

type entry struct {
	Source    string `db:"source"`
	Target    string `db:"target"`
	UpdatedAt string `db:"updated_at"`
}

// Journal is a SQLite-backed record of target identities. It is safe for
// concurrent use.
type Journal struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the journal database.
func Open(opts ...Option) (*Journal, error) {
	db, err := openSqlite(opts...)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		slog.Error("failed to close journal", "error", err)
		return err
	}
	return nil
}

// TargetID returns the target recorded for source, or "" if none.
func (j *Journal) TargetID(ctx context.Context, source string) (string, error) {
	var target string
	err := j.db.GetContext(ctx, &target, "SELECT target FROM targets WHERE source = ?", source)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query %s: %w", source, err)
	}
	return target, nil
}

// SetTargetID records target for source, replacing any earlier entry.
func (j *Journal) SetTargetID(ctx context.Context, source, target string) error {
	row := entry{Source: source, Target: target, UpdatedAt: time.Now().UTC().Format(time.RFC3339)}
	_, err := j.db.NamedExecContext(ctx, `INSERT OR REPLACE INTO targets (source, target, updated_at)
	          VALUES (:source, :target, :updated_at)`, row)
	if err != nil {
		return fmt.Errorf("record %s: %w", source, err)
	}
	slog.Debug("journal set", "source", source, "target", target)
	return nil
}

// Count returns the number of recorded mappings.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM targets"); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}
