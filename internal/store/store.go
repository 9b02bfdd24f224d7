// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package store

import (
	"context"
	"time"
)

// SessionStore manages conversation sessions, their ordered turn history,
// and the per-session pagination cursor. Implementations must be safe for
// concurrent use across distinct session IDs; serialization of concurrent
// turns on the same session is the caller's responsibility (see
// agent.SessionManager).
type SessionStore interface {
	// GetOrCreate returns the session for id, creating it if absent.
	// The web platform is the authority on session identity, so unknown
	// IDs never fail.
	GetOrCreate(ctx context.Context, id string) (*Session, error)

	// AppendTurn appends a turn to the session's history and bumps its
	// last-activity timestamp. The session is created if absent.
	AppendTurn(ctx context.Context, sessionID string, turn *Turn) error

	// Turns returns the last limit turns in append order (all turns when
	// limit <= 0). Unknown sessions yield an empty slice.
	Turns(ctx context.Context, sessionID string, limit int) ([]*Turn, error)

	// SetCursor overwrites the session's pagination cursor. A nil cursor
	// clears it.
	SetCursor(ctx context.Context, sessionID string, cursor *Cursor) error

	// Cursor returns the session's pagination cursor, or nil when the
	// session has no recorded query.
	Cursor(ctx context.Context, sessionID string) (*Cursor, error)

	// Reset drops the session's history and cursor but keeps the session
	// alive for subsequent turns.
	Reset(ctx context.Context, sessionID string) error

	// EvictIdle removes sessions whose last activity is older than maxIdle
	// and returns the number evicted.
	EvictIdle(ctx context.Context, maxIdle time.Duration) (int, error)

	Close() error
}

// AuditStore manages the append-only audit log.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
	Close() error
}
