// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnit-dev/coursechat/internal/store"
)

func TestLockSerializesSameSession(t *testing.T) {
	m := NewSessionManager(store.NewMemorySessionStore())

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("s1")
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "same-session turns must never overlap")
}

func TestLockAllowsDistinctSessionsInParallel(t *testing.T) {
	m := NewSessionManager(store.NewMemorySessionStore())

	unlockA := m.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := m.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("distinct sessions must not contend")
	}
	unlockA()
}

func TestLockEntriesAreReleased(t *testing.T) {
	m := NewSessionManager(store.NewMemorySessionStore())

	unlock := m.Lock("s1")
	unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.locks)
}

func TestResetDropsHistoryAndCursor(t *testing.T) {
	ctx := context.Background()
	ss := store.NewMemorySessionStore()
	m := NewSessionManager(ss)

	_, err := m.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, m.AppendTurn(ctx, "s1", &store.Turn{Role: store.TurnRoleUser, Content: "hi"}))
	require.NoError(t, ss.SetCursor(ctx, "s1", &store.Cursor{Kind: store.QueryPopular}))

	require.NoError(t, m.Reset(ctx, "s1"))

	turns, err := m.Turns(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, turns)

	cursor, err := ss.Cursor(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestStopWithoutEvictionStart(t *testing.T) {
	m := NewSessionManager(store.NewMemorySessionStore())
	m.Stop() // must not block
}
