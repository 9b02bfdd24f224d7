// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package store

import "time"

// --- Turn types ---

// TurnRole identifies the sender of a turn in a session.
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
	TurnRoleSystem    TurnRole = "system"
	TurnRoleTool      TurnRole = "tool"
)

// Turn is a single message unit in a session's history. Turns are immutable
// once appended; their order defines the conversation replay order fed to
// the LLM.
type Turn struct {
	ID         string
	SessionID  string
	Role       TurnRole
	Content    string
	ToolCallID string
	ToolName   string
	CreatedAt  time.Time
}

// --- Session types ---

// Session is one ongoing conversation identified by an externally issued key.
// The session ID is assigned by the web platform; the gateway accepts any
// value and creates state on first contact.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
}

// --- Pagination cursor ---

// QueryKind identifies the listing/search query a cursor belongs to.
type QueryKind string

const (
	QueryPopular  QueryKind = "popular"
	QueryLatest   QueryKind = "latest"
	QueryFree     QueryKind = "free"
	QueryCategory QueryKind = "category"
	QuerySearch   QueryKind = "search"
)

// Cursor records the last executed listing/search query for a session so a
// follow-up "more" utterance can be resolved without re-specifying filters.
// One cursor per session; each new distinct query overwrites it.
type Cursor struct {
	Kind       QueryKind
	Keyword    string
	CategoryID int64
	Sort       string
	Tab        string
	Page       int
	Size       int
}

// Next returns a copy of the cursor advanced by one page.
func (c Cursor) Next() Cursor {
	c.Page++
	return c
}

// --- Audit types ---

// AuditEntry records one gateway action (chat turn, tool dispatch) for
// operator visibility. Audit entries are not session state and carry no
// durability guarantee for the conversation itself.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Action    string
	SessionID string
	Tool      string
	Details   map[string]any
	Result    string
}

// AuditFilter specifies criteria for querying audit entries.
type AuditFilter struct {
	Action    string
	SessionID string
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}
