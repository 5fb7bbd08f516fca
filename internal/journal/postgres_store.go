package journal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yourorg/omnimint-bridge/internal/model"
	"github.com/yourorg/omnimint-bridge/internal/types"
)

// PostgresStore persists entries in a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS submission_journal (
    id UUID PRIMARY KEY,
    operation TEXT NOT NULL,
    protocol TEXT NOT NULL,
    network TEXT NOT NULL,
    tx_hash TEXT NOT NULL,
    token_id TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
ALTER TABLE submission_journal ADD COLUMN IF NOT EXISTS token_id TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS submission_journal_message_idx ON submission_journal (message, created_at);
`

// NewPostgresStore connects to Postgres using the DSN and ensures the table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) Record(ctx context.Context, e Entry) (Entry, error) {
	e = stamp(e)
	_, err := p.pool.Exec(ctx, `
INSERT INTO submission_journal (id, operation, protocol, network, tx_hash, token_id, message, detail, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE
SET message = EXCLUDED.message,
    detail = EXCLUDED.detail,
    token_id = EXCLUDED.token_id,
    updated_at = EXCLUDED.updated_at
`, e.ID, e.Operation, string(e.Protocol), string(e.Network), e.TxHash, e.TokenID, string(e.Message), e.Detail, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (p *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	row := p.pool.QueryRow(ctx, `
SELECT id, operation, protocol, network, tx_hash, token_id, message, detail, created_at, updated_at
FROM submission_journal
WHERE id = $1
`, id)

	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

func (p *PostgresStore) Settle(ctx context.Context, id uuid.UUID, msg model.Message, detail, tokenID string) error {
	tag, err := p.pool.Exec(ctx, `
UPDATE submission_journal
SET message = $2, detail = $3, token_id = COALESCE(NULLIF($4, ''), token_id), updated_at = $5
WHERE id = $1
`, id, string(msg), detail, tokenID, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Pending(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx, `
SELECT id, operation, protocol, network, tx_hash, token_id, message, detail, created_at, updated_at
FROM submission_journal
WHERE message = $1
ORDER BY created_at
LIMIT $2
`, string(model.MessageNotConfirmed), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e                          Entry
		protocol, network, message string
	)
	if err := row.Scan(&e.ID, &e.Operation, &protocol, &network, &e.TxHash, &e.TokenID, &message, &e.Detail, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Entry{}, err
	}
	e.Protocol = types.ProtocolKind(protocol)
	e.Network = types.NetworkName(network)
	e.Message = model.Message(message)
	return e, nil
}
