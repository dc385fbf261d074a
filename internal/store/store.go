// Package store persists per-event visibility for headless runs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/tartampluch/go-skycal/internal/config"
	"github.com/tartampluch/go-skycal/internal/engine"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS event_visibility (
	id         TEXT PRIMARY KEY,
	visible    INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);`

// Store wraps the SQLite display database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	retry  retryPolicy
}

// Open creates or opens the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open(config.DBDriver, path+config.DBPragmas)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrDBOpen, err)
	}
	db.SetMaxOpenConns(config.DBMaxOpen)
	db.SetMaxIdleConns(config.DBMaxIdle)
	db.SetConnMaxLifetime(config.DBConnMaxLife)

	s := &Store{
		db:     db,
		logger: slog.With(slog.String(config.LogKeyComponent, config.CompStore)),
		retry:  defaultRetryPolicy,
	}

	if err := retryOp(ctx, s.logger, s.retry, func() error {
		_, err := db.ExecContext(ctx, schema)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrDBMigrate, err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Load returns every stored visibility flag.
// Events without a row are absent from the map and therefore visible.
func (s *Store) Load(ctx context.Context) (engine.DisplayConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, visible FROM event_visibility`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrDBQuery, err)
	}
	defer func() { _ = rows.Close() }()

	display := engine.DisplayConfig{}
	for rows.Next() {
		var (
			id      string
			visible bool
		)
		if err := rows.Scan(&id, &visible); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrDBQuery, err)
		}
		display[id] = visible
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrDBQuery, err)
	}
	return display, nil
}

// Set upserts the visibility of one event.
func (s *Store) Set(ctx context.Context, id string, visible bool) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := retryOp(ctx, s.logger, s.retry, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO event_visibility (id, visible, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET visible = excluded.visible, updated_at = excluded.updated_at`,
			id, visible, now,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrDBWrite, err)
	}

	s.logger.Info(config.MsgVisibilitySet,
		slog.String(config.LogKeyEventID, id),
		slog.Bool(config.LogKeyVisible, visible),
	)
	return nil
}

// Apply marks the show IDs visible then the hide IDs hidden.
// IDs unknown to the catalog are logged and skipped.
func (s *Store) Apply(ctx context.Context, catalog *engine.Catalog, show, hide []string) error {
	apply := func(ids []string, visible bool) error {
		for _, id := range ids {
			if catalog != nil {
				if _, err := catalog.Lookup(id); err != nil {
					s.logger.Warn(config.MsgUnknownEvent, slog.String(config.LogKeyEventID, id))
					continue
				}
			}
			if err := s.Set(ctx, id, visible); err != nil {
				return err
			}
		}
		return nil
	}

	if err := apply(show, true); err != nil {
		return err
	}
	return apply(hide, false)
}
