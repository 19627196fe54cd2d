package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres connects to the database and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, ErrNoDSN
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Postgres{
		pool:   pool,
		logger: slog.Default().With("component", "store"),
	}, nil
}

// EnsureSchema creates the message and log tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS bot_messages (
    id         BIGSERIAL PRIMARY KEY,
    channel    TEXT NOT NULL,
    direction  TEXT NOT NULL,
    user_ref   TEXT NOT NULL,
    content    TEXT NOT NULL,
    metadata   JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS bot_messages_channel_created_idx
    ON bot_messages (channel, created_at DESC);

CREATE TABLE IF NOT EXISTS bot_errors (
    id         BIGSERIAL PRIMARY KEY,
    channel    TEXT,
    stage      TEXT NOT NULL,
    detail     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

// AppendMessage records one message.
func (p *Postgres) AppendMessage(ctx context.Context, msg Message) error {
	const q = `
INSERT INTO bot_messages (channel, direction, user_ref, content, metadata)
VALUES ($1, $2, $3, $4, $5)`

	_, err := p.pool.Exec(ctx, q, msg.ChannelID, msg.Direction, msg.Actor, msg.Text, msg.Metadata)
	if err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}

	p.logger.Debug("message recorded",
		"channel", msg.ChannelID,
		"direction", msg.Direction,
		"chars", len(msg.Text),
	)
	return nil
}

// RecentContext returns up to limit recent messages, oldest first.
func (p *Postgres) RecentContext(ctx context.Context, channelID string, limit int) ([]string, error) {
	const q = `
SELECT user_ref, content
FROM (
    SELECT user_ref, content, created_at
    FROM bot_messages
    WHERE channel = $1
    ORDER BY created_at DESC
    LIMIT $2
) recent
ORDER BY created_at ASC`

	rows, err := p.pool.Query(ctx, q, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent context: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var actor, content string
		if err := rows.Scan(&actor, &content); err != nil {
			return nil, fmt.Errorf("store: scan context row: %w", err)
		}
		lines = append(lines, actor+": "+content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: context rows: %w", err)
	}
	return lines, nil
}

// AppendLog records one failure.
func (p *Postgres) AppendLog(ctx context.Context, entry LogEntry) error {
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}

	const q = `
INSERT INTO bot_errors (channel, stage, detail, created_at)
VALUES ($1, $2, $3, $4)`

	if _, err := p.pool.Exec(ctx, q, entry.ChannelID, entry.Stage, entry.Detail, at); err != nil {
		return fmt.Errorf("store: append log: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Verify Postgres implements Store at compile time.
var _ Store = (*Postgres)(nil)
