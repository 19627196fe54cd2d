// Package store persists channel messages and error logs.
//
// The production backend is Postgres via pgx. Recent messages feed the
// reply provider as conversational context, so writes and the context
// query share one table.
package store

import (
	"context"
	"errors"
	"time"
)

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// ErrNoDSN is returned when the Postgres connection string is missing.
var ErrNoDSN = errors.New("store: connection string required")

// Message is one channel message, spoken or typed.
type Message struct {
	// ChannelID identifies the channel the message belongs to.
	ChannelID string

	// Direction is DirectionInbound for user messages and
	// DirectionOutbound for agent replies.
	Direction string

	// Actor identifies the speaker or author.
	Actor string

	// Text is the message content.
	Text string

	// Metadata carries free-form details (latency, provider, artifact).
	Metadata map[string]any
}

// LogEntry is one recorded failure.
type LogEntry struct {
	// ChannelID identifies where the failure happened, if known.
	ChannelID string

	// Stage names the pipeline step that failed (capture, stt, reply, ...).
	Stage string

	// Detail is the error text.
	Detail string

	// At is the failure time. Zero means now.
	At time.Time
}

// Store persists messages and failures.
type Store interface {
	// AppendMessage records one message.
	AppendMessage(ctx context.Context, msg Message) error

	// RecentContext returns up to limit recent messages for the channel,
	// oldest first, each formatted as "actor: text".
	RecentContext(ctx context.Context, channelID string, limit int) ([]string, error)

	// AppendLog records one failure.
	AppendLog(ctx context.Context, entry LogEntry) error

	// Close releases the underlying connection pool.
	Close() error
}
