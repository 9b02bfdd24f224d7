// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/learnit-dev/coursechat/internal/store"
)

// SessionManager provides high-level session operations over a
// store.SessionStore and serializes turn processing per session: at most
// one in-flight turn per session ID, full parallelism across sessions.
type SessionManager struct {
	ss store.SessionStore

	mu    sync.Mutex
	locks map[string]*sessionLock

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{} // non-nil once the eviction sweep is running
}

// sessionLock reference-counts waiters so the map entry can be dropped when
// the last turn for a session finishes.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewSessionManager returns a SessionManager backed by the given store.
func NewSessionManager(ss store.SessionStore) *SessionManager {
	return &SessionManager{
		ss:     ss,
		locks:  make(map[string]*sessionLock),
		stopCh: make(chan struct{}),
	}
}

// Lock serializes turn processing for one session. The returned function
// releases the lock; distinct sessions never contend.
func (m *SessionManager) Lock(sessionID string) func() {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		m.locks[sessionID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, sessionID)
		}
		m.mu.Unlock()
	}
}

// GetOrCreate loads or creates the session.
func (m *SessionManager) GetOrCreate(ctx context.Context, sessionID string) (*store.Session, error) {
	return m.ss.GetOrCreate(ctx, sessionID)
}

// AppendTurn appends a turn to the session history.
func (m *SessionManager) AppendTurn(ctx context.Context, sessionID string, turn *store.Turn) error {
	return m.ss.AppendTurn(ctx, sessionID, turn)
}

// Turns returns the last limit turns of the session.
func (m *SessionManager) Turns(ctx context.Context, sessionID string, limit int) ([]*store.Turn, error) {
	return m.ss.Turns(ctx, sessionID, limit)
}

// Reset drops the session's history and cursor.
func (m *SessionManager) Reset(ctx context.Context, sessionID string) error {
	unlock := m.Lock(sessionID)
	defer unlock()
	return m.ss.Reset(ctx, sessionID)
}

// StartEviction launches the background idle-eviction sweep. Sessions idle
// longer than maxIdle are dropped every interval until Stop is called.
func (m *SessionManager) StartEviction(maxIdle, interval time.Duration) {
	m.doneCh = make(chan struct{})
	go func() {
		defer close(m.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				n, err := m.ss.EvictIdle(context.Background(), maxIdle)
				if err != nil {
					slog.Error("session eviction sweep failed", "error", err)
					continue
				}
				if n > 0 {
					slog.Info("evicted idle sessions", "count", n, "max_idle", maxIdle)
				}
			}
		}
	}()
}

// Stop terminates the eviction sweep and waits for it to exit.
func (m *SessionManager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	if m.doneCh != nil {
		<-m.doneCh
	}
}
