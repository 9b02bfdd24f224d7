// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package store

import (
	"context"
	"sync"
	"time"

	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

// maxTurnHistory caps per-session history. The loop reads a smaller active
// window; turns beyond this cap carry no signal and only hold memory until
// idle eviction, so AppendTurn drops the oldest past the cap.
const maxTurnHistory = 200

// memorySession bundles a session with its turn history and cursor.
type memorySession struct {
	session Session
	turns   []*Turn
	cursor  *Cursor
}

// MemorySessionStore is the in-process SessionStore. State lives only for
// the lifetime of the process; eviction is the sole cleanup path.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	now      func() time.Time
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*memorySession),
		now:      time.Now,
	}
}

func (m *MemorySessionStore) GetOrCreate(_ context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ccerr.New(ccerr.CodeStoreInvalidInput, "session id must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ms := m.getOrCreateLocked(id)
	ms.session.LastActivity = m.now()

	s := ms.session
	return &s, nil
}

func (m *MemorySessionStore) AppendTurn(_ context.Context, sessionID string, turn *Turn) error {
	if sessionID == "" {
		return ccerr.New(ccerr.CodeStoreInvalidInput, "session id must not be empty")
	}
	if turn == nil || turn.Content == "" && turn.Role != TurnRoleTool {
		return ccerr.New(ccerr.CodeStoreInvalidInput, "turn content must not be empty",
			ccerr.FieldSessionID(sessionID))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ms := m.getOrCreateLocked(sessionID)

	t := *turn
	t.SessionID = sessionID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	ms.turns = append(ms.turns, &t)
	if len(ms.turns) > maxTurnHistory {
		trimmed := make([]*Turn, maxTurnHistory)
		copy(trimmed, ms.turns[len(ms.turns)-maxTurnHistory:])
		ms.turns = trimmed
	}
	ms.session.LastActivity = m.now()

	return nil
}

func (m *MemorySessionStore) Turns(_ context.Context, sessionID string, limit int) ([]*Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ms, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}

	turns := ms.turns
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	out := make([]*Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (m *MemorySessionStore) SetCursor(_ context.Context, sessionID string, cursor *Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms := m.getOrCreateLocked(sessionID)
	if cursor == nil {
		ms.cursor = nil
		return nil
	}

	c := *cursor
	ms.cursor = &c
	ms.session.LastActivity = m.now()
	return nil
}

func (m *MemorySessionStore) Cursor(_ context.Context, sessionID string) (*Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ms, ok := m.sessions[sessionID]
	if !ok || ms.cursor == nil {
		return nil, nil
	}

	c := *ms.cursor
	return &c, nil
}

func (m *MemorySessionStore) Reset(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}

	ms.turns = nil
	ms.cursor = nil
	ms.session.LastActivity = m.now()
	return nil
}

func (m *MemorySessionStore) EvictIdle(_ context.Context, maxIdle time.Duration) (int, error) {
	if maxIdle <= 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxIdle)
	evicted := 0
	for id, ms := range m.sessions {
		if ms.session.LastActivity.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted, nil
}

func (m *MemorySessionStore) Close() error { return nil }

// Len returns the number of live sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// getOrCreateLocked returns the entry for id, creating it if absent.
// Caller must hold m.mu.
func (m *MemorySessionStore) getOrCreateLocked(id string) *memorySession {
	ms, ok := m.sessions[id]
	if !ok {
		now := m.now()
		ms = &memorySession{
			session: Session{ID: id, CreatedAt: now, LastActivity: now},
		}
		m.sessions[id] = ms
	}
	return ms
}
