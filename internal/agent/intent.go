// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package agent

import "strings"

// moreMarkers are phrases that resolve a message to the "show more" intent.
// The check is a keyword heuristic: pagination follow-ups are short and
// formulaic, so no model round is spent on classifying them.
var moreMarkers = []string{
	"더보기",
	"더 보여",
	"더보여",
	"더 알려",
	"다음 페이지",
	"다음페이지",
	"다음꺼",
	"다음 거",
	"계속 보여",
	"계속해",
	"more",
	"next page",
	"show more",
}

// maxMoreIntentLen bounds the message length considered for the shortcut.
// A long message containing "more" is a fresh request, not a follow-up.
const maxMoreIntentLen = 30

// IsMoreIntent reports whether the message is a pagination follow-up.
func IsMoreIntent(message string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(message))
	if trimmed == "" || len([]rune(trimmed)) > maxMoreIntentLen {
		return false
	}
	for _, marker := range moreMarkers {
		if strings.Contains(trimmed, marker) {
			return true
		}
	}
	return false
}
