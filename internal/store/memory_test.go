// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateNeverFails(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	sess, err := s.GetOrCreate(ctx, "never-seen")
	require.NoError(t, err)
	assert.Equal(t, "never-seen", sess.ID)
	assert.False(t, sess.CreatedAt.IsZero())

	again, err := s.GetOrCreate(ctx, "never-seen")
	require.NoError(t, err)
	assert.Equal(t, sess.CreatedAt, again.CreatedAt)
	assert.Equal(t, 1, s.Len())
}

func TestGetOrCreateEmptyID(t *testing.T) {
	_, err := NewMemorySessionStore().GetOrCreate(context.Background(), "")
	assert.Error(t, err)
}

func TestAppendTurnOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	for i := 0; i < 5; i++ {
		err := s.AppendTurn(ctx, "s1", &Turn{Role: TurnRoleUser, Content: fmt.Sprintf("msg-%d", i)})
		require.NoError(t, err)
	}

	turns, err := s.Turns(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, turns, 5)
	for i, turn := range turns {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), turn.Content)
		assert.Equal(t, "s1", turn.SessionID)
	}
}

func TestTurnsWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	for i := 0; i < 10; i++ {
		require.NoError(t, s.AppendTurn(ctx, "s1", &Turn{Role: TurnRoleUser, Content: fmt.Sprintf("msg-%d", i)}))
	}

	turns, err := s.Turns(ctx, "s1", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "msg-7", turns[0].Content)
	assert.Equal(t, "msg-9", turns[2].Content)
}

func TestAppendTurnCapsHistory(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	for i := 0; i < maxTurnHistory+25; i++ {
		require.NoError(t, s.AppendTurn(ctx, "s1", &Turn{Role: TurnRoleUser, Content: fmt.Sprintf("msg-%d", i)}))
	}

	turns, err := s.Turns(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, turns, maxTurnHistory)

	// The oldest turns are the ones dropped.
	assert.Equal(t, "msg-25", turns[0].Content)
	assert.Equal(t, fmt.Sprintf("msg-%d", maxTurnHistory+24), turns[len(turns)-1].Content)
}

func TestTurnsUnknownSession(t *testing.T) {
	turns, err := NewMemorySessionStore().Turns(context.Background(), "ghost", 0)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestCursorRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	got, err := s.Cursor(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	cur := &Cursor{Kind: QueryPopular, Sort: "popular", Tab: "all", Page: 0, Size: 12}
	require.NoError(t, s.SetCursor(ctx, "s1", cur))

	// Mutating the original must not leak into the store.
	cur.Page = 99

	got, err = s.Cursor(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, QueryPopular, got.Kind)
	assert.Equal(t, 0, got.Page)

	require.NoError(t, s.SetCursor(ctx, "s1", nil))
	got, err = s.Cursor(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCursorNext(t *testing.T) {
	c := Cursor{Kind: QuerySearch, Keyword: "java", Page: 2, Size: 12}
	n := c.Next()
	assert.Equal(t, 3, n.Page)
	assert.Equal(t, 2, c.Page)
	assert.Equal(t, "java", n.Keyword)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	require.NoError(t, s.AppendTurn(ctx, "s1", &Turn{Role: TurnRoleUser, Content: "hello"}))
	require.NoError(t, s.SetCursor(ctx, "s1", &Cursor{Kind: QueryPopular}))

	require.NoError(t, s.Reset(ctx, "s1"))

	turns, err := s.Turns(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, turns)

	cur, err := s.Cursor(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, cur)

	// Session survives a reset.
	assert.Equal(t, 1, s.Len())

	// Resetting an unknown session is a no-op.
	assert.NoError(t, s.Reset(ctx, "ghost"))
}

func TestEvictIdle(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	current := time.Now()
	s.now = func() time.Time { return current }

	_, err := s.GetOrCreate(ctx, "old")
	require.NoError(t, err)

	current = current.Add(45 * time.Minute)
	_, err = s.GetOrCreate(ctx, "fresh")
	require.NoError(t, err)

	evicted, err := s.EvictIdle(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, s.Len())

	// The surviving session is the recently active one.
	turns, err := s.Turns(ctx, "fresh", 0)
	require.NoError(t, err)
	assert.Empty(t, turns)

	evicted, err = s.EvictIdle(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, evicted)
}

func TestConcurrentDistinctSessions(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	const sessions = 16
	const turnsPer = 25

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n)
			for j := 0; j < turnsPer; j++ {
				_ = s.AppendTurn(ctx, id, &Turn{Role: TurnRoleUser, Content: fmt.Sprintf("m%d", j)})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, sessions, s.Len())
	for i := 0; i < sessions; i++ {
		turns, err := s.Turns(ctx, fmt.Sprintf("s%d", i), 0)
		require.NoError(t, err)
		require.Len(t, turns, turnsPer)
		// Per-goroutine appends arrive in order.
		for j, turn := range turns {
			assert.Equal(t, fmt.Sprintf("m%d", j), turn.Content)
		}
	}
}
