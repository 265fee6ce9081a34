package audit

import (
	"context"
	"database/sql"
	"errors"

	"voice-ivr/pkg/utils"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          UUID PRIMARY KEY,
	type        TEXT NOT NULL,
	identity    TEXT NOT NULL DEFAULT '',
	call_sid    TEXT NOT NULL DEFAULT '',
	to_number   TEXT NOT NULL DEFAULT '',
	from_number TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT '',
	ip_address  TEXT NOT NULL DEFAULT '',
	request_id  TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
)`

const indexSQL = `CREATE INDEX IF NOT EXISTS audit_events_created_at_idx ON audit_events (created_at)`

const insertSQL = `
INSERT INTO audit_events
	(id, type, identity, call_sid, to_number, from_number, status, ip_address, request_id, message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// PostgresRepo writes events to audit_events through the pgx stdlib driver.
// The table is INSERT-only from this code path.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) (*PostgresRepo, error) {
	if db == nil {
		return nil, errors.New("audit: db is nil")
	}
	return &PostgresRepo{db: db}, nil
}

// EnsureSchema creates the table and index if missing.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, indexSQL)
		return err
	})
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, insertSQL,
		e.ID,
		string(e.Type),
		e.Identity,
		e.CallSID,
		e.To,
		e.From,
		e.Status,
		e.IPAddress,
		e.RequestID,
		e.Message,
		e.CreatedAt,
	)
	return err
}

// List returns events newest first. Internal tooling only.
func (r *PostgresRepo) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, type, identity, call_sid, to_number, from_number, status, ip_address, request_id, message, created_at
FROM audit_events ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(&e.ID, &typ, &e.Identity, &e.CallSID, &e.To, &e.From, &e.Status, &e.IPAddress, &e.RequestID, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
