// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package agent

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/learnit-dev/coursechat/internal/catalog"
	"github.com/learnit-dev/coursechat/internal/store"
	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

var (
	detailURLPattern = regexp.MustCompile(`CourseDetail\?courseId=(\d+)`)
	imageMarkdown    = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
)

// minTitleMatchRunes bounds title matching against history: very short
// titles would flag ordinary words.
const minTitleMatchRunes = 4

// CheckGrounding enforces the grounding invariant on a candidate reply:
// every course the reply surfaces must be backed by a tool record from the
// current turn. priorTitles are course titles seen in earlier turns of the
// session; mentioning one without a current-turn record is also a
// violation, since the model may be recalling stale or fabricated context.
func CheckGrounding(reply string, records []catalog.CourseRecord, priorTitles []string) error {
	ids := make(map[int64]bool, len(records))
	titles := make(map[string]bool, len(records))
	for _, rec := range records {
		ids[rec.ID] = true
		titles[rec.Title] = true
	}

	for _, match := range detailURLPattern.FindAllStringSubmatch(reply, -1) {
		id, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil || !ids[id] {
			return ccerr.New(ccerr.CodeAgentReplyUngrounded,
				"reply links course "+match[1]+" absent from current turn's tool records")
		}
	}

	for _, title := range priorTitles {
		if len([]rune(title)) < minTitleMatchRunes || titles[title] {
			continue
		}
		if strings.Contains(reply, title) {
			return ccerr.New(ccerr.CodeAgentReplyUngrounded,
				"reply mentions course title with no backing tool record in this turn",
				ccerr.Field("title", title))
		}
	}

	if len(records) == 0 && looksLikeRecommendation(reply) {
		return ccerr.New(ccerr.CodeAgentReplyUngrounded,
			"recommendation-shaped reply produced without any tool call")
	}

	return nil
}

// looksLikeRecommendation reports whether the reply has the shape of a
// course recommendation rather than a clarifying question or small talk.
func looksLikeRecommendation(reply string) bool {
	if detailURLPattern.MatchString(reply) || strings.Contains(reply, "바로 보기") {
		return true
	}
	if !strings.Contains(reply, "추천") {
		return false
	}
	for _, marker := range []string{"\n- ", "\n1.", "\n2.", "1. ", "• "} {
		if strings.Contains(reply, marker) {
			return true
		}
	}
	return false
}

// stripImageMarkdown removes inline image markdown from a reply. The
// catalog serves thumbnails the chat surface cannot render; the detail URL
// is the user-facing asset instead.
func stripImageMarkdown(reply string) string {
	if !strings.Contains(reply, "![") {
		return reply
	}
	stripped := imageMarkdown.ReplaceAllString(reply, "")

	// Collapse lines that held only an image.
	lines := strings.Split(stripped, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == "" && len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// titlesFromToolTurns extracts course titles from the tool-result turns of
// a session's history. Tool turns carry the serialized page the model saw.
func titlesFromToolTurns(turns []*store.Turn) []string {
	var titles []string
	for _, turn := range turns {
		if turn.Role != store.TurnRoleTool {
			continue
		}
		var page catalog.Page
		if err := json.Unmarshal([]byte(turn.Content), &page); err != nil {
			continue
		}
		for _, item := range page.Items {
			if item.Title != "" {
				titles = append(titles, item.Title)
			}
		}
	}
	return titles
}
