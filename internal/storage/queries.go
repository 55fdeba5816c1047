package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the statements over the session table.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type SessionRow struct {
	Token    string
	Identity string
	SavedAt  time.Time
}

const getSession = `SELECT token, identity, saved_at FROM session WHERE id = 1`

func (q *Queries) GetSession(ctx context.Context) (SessionRow, error) {
	var row SessionRow
	err := q.db.QueryRowContext(ctx, getSession).Scan(&row.Token, &row.Identity, &row.SavedAt)
	return row, err
}

const upsertSession = `INSERT INTO session (id, token, identity, saved_at)
VALUES (1, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    token = excluded.token,
    identity = excluded.identity,
    saved_at = excluded.saved_at`

type UpsertSessionParams struct {
	Token    string
	Identity string
	SavedAt  time.Time
}

func (q *Queries) UpsertSession(ctx context.Context, arg UpsertSessionParams) error {
	_, err := q.db.ExecContext(ctx, upsertSession, arg.Token, arg.Identity, arg.SavedAt)
	return err
}

const deleteSession = `DELETE FROM session`

func (q *Queries) DeleteSession(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteSession)
	return err
}
