package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ArchivedEvent is the flattened feed event row written to Postgres.
type ArchivedEvent struct {
	ID            string `json:"id"`
	Timestamp     int64  `json:"timestamp"`
	Type          string `json:"type"`
	AgentName     string `json:"agentName"`
	AgentID       int64  `json:"agentId"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	ClientAddress string `json:"clientAddress"`
	Status        string `json:"status"`
	TxHash        string `json:"txHash,omitempty"`
}

// Postgres archives accepted feed events. The in-memory ring buffer stays
// the source of truth for the dashboard; the archive only grows.
type Postgres struct{ db *pgxpool.Pool }

const schema = `
CREATE TABLE IF NOT EXISTS feed_events (
  id             TEXT PRIMARY KEY,
  ts             BIGINT NOT NULL,
  type           TEXT NOT NULL,
  agent_name     TEXT NOT NULL,
  agent_id       BIGINT NOT NULL,
  amount         TEXT NOT NULL,
  currency       TEXT NOT NULL,
  client_address TEXT NOT NULL,
  status         TEXT NOT NULL,
  tx_hash        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS feed_events_ts_idx ON feed_events (ts DESC);
CREATE INDEX IF NOT EXISTS feed_events_agent_idx ON feed_events (agent_id);
`

// NewPostgres connects to url and ensures the archive schema exists.
func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Postgres{db: pool}, nil
}

// InsertEvent appends one accepted event. Duplicate ids are ignored so a
// replayed publish cannot fail the archive.
func (s *Postgres) InsertEvent(ctx context.Context, e ArchivedEvent) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO feed_events (id, ts, type, agent_name, agent_id, amount, currency, client_address, status, tx_hash)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Timestamp, e.Type, e.AgentName, e.AgentID, e.Amount, e.Currency, e.ClientAddress, e.Status, e.TxHash)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit archived events, newest first.
func (s *Postgres) RecentEvents(ctx context.Context, limit int) ([]ArchivedEvent, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.Query(ctx, `
SELECT id, ts, type, agent_name, agent_id, amount, currency, client_address, status, tx_hash
FROM feed_events ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []ArchivedEvent
	for rows.Next() {
		var e ArchivedEvent
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Type, &e.AgentName, &e.AgentID, &e.Amount, &e.Currency, &e.ClientAddress, &e.Status, &e.TxHash); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (s *Postgres) Close() { s.db.Close() }
