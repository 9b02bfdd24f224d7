// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package agent

import (
	"context"

	"github.com/learnit-dev/coursechat/internal/catalog"
	"github.com/learnit-dev/coursechat/internal/store"
)

// Tracker records the last executed listing/search query per session so a
// "more" follow-up can be replayed without the model re-specifying filters.
type Tracker struct {
	ss store.SessionStore
}

// NewTracker returns a Tracker backed by the given SessionStore.
func NewTracker(ss store.SessionStore) *Tracker {
	return &Tracker{ss: ss}
}

// Record overwrites the session's cursor with the query that just ran.
// The stored page is the page that was served; ResolveMore advances it.
func (t *Tracker) Record(ctx context.Context, sessionID string, cursor store.Cursor) error {
	return t.ss.SetCursor(ctx, sessionID, &cursor)
}

// ResolveMore returns the next-page cursor for the session, or nil when no
// query has been recorded yet. The caller decides the fallback.
func (t *Tracker) ResolveMore(ctx context.Context, sessionID string) (*store.Cursor, error) {
	cursor, err := t.ss.Cursor(ctx, sessionID)
	if err != nil || cursor == nil {
		return nil, err
	}
	next := cursor.Next()
	return &next, nil
}

// Clear drops the session's cursor.
func (t *Tracker) Clear(ctx context.Context, sessionID string) error {
	return t.ss.SetCursor(ctx, sessionID, nil)
}

// defaultCursor is the graceful fallback for a "more" request with no prior
// query: treat it as a fresh popular listing.
func defaultCursor() store.Cursor {
	return store.Cursor{
		Kind: store.QueryPopular,
		Sort: catalog.SortPopular,
		Tab:  catalog.TabAll,
		Page: 0,
		Size: 12,
	}
}
