// Package storage persists the session snapshot in a local SQLite file.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"budget/internal/core"
	"budget/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements session.Persister. Only the credential and the
// identity snapshot are stored; ledger data never touches the disk.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
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

	logger = log.OrDefault(logger, log.ComponentStorage)
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		logger.LogFailure(context.Background(), "Session schema migration failed", err, core.Kind(err), log.OpMigrate, nil)
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load returns the stored session, or the anonymous session when none is
// stored. A snapshot whose identity cannot be decoded is reported as an error.
func (r *SQLiteRepository) Load(ctx context.Context) (core.Session, error) {
	row, err := r.queries.GetSession(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, nil
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("load session: %w", err)
	}

	var user core.User
	if err := json.Unmarshal([]byte(row.Identity), &user); err != nil {
		return core.Session{}, fmt.Errorf("decode identity snapshot: %w", err)
	}
	if row.Token == "" {
		return core.Session{}, core.ErrIncompleteSession
	}

	r.logger.DebugContext(ctx, "Session snapshot loaded", log.FieldUserID, user.ID, "saved_at", row.SavedAt)
	return core.Session{Token: row.Token, User: &user}, nil
}

// Save replaces the stored snapshot. Saving the anonymous session clears it.
func (r *SQLiteRepository) Save(ctx context.Context, s core.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Anonymous() {
		return r.Clear(ctx)
	}

	identity, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode identity snapshot: %w", err)
	}
	err = r.queries.UpsertSession(ctx, UpsertSessionParams{
		Token:    s.Token,
		Identity: string(identity),
		SavedAt:  r.now(),
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	r.logger.DebugContext(ctx, "Session snapshot saved", log.FieldUserID, s.User.ID)
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if err := r.queries.DeleteSession(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
