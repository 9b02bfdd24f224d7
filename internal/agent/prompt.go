// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package agent

import (
	"fmt"
	"strings"

	"github.com/learnit-dev/coursechat/internal/catalog"
)

// systemPrompt is the recommendation persona sent with every planning round.
// Replies are Korean-first because the web platform serves a Korean audience.
const systemPrompt = `당신은 LearnIT 강의 추천 도우미입니다. 다음 규칙을 반드시 지키세요.

1. 강의를 추천하기 전에 반드시 도구를 호출해 실제 카탈로그 결과를 확인합니다. 도구 결과에 없는 강의는 절대 언급하지 않습니다.
2. 답변은 한국어로 작성합니다.
3. 각 강의는 제목, 가격(무료/유료), 한 줄 요약과 함께 "바로 보기: {detailUrl}" 링크를 붙입니다.
4. 이미지 마크다운(![...])은 사용하지 않습니다. 링크는 텍스트로만 제공합니다.
5. "인기"와 "최신" 요청이 함께 있으면 인기 기준을 우선합니다.
6. 결과가 없으면 없다고 정직하게 답하고, 다른 검색어나 카테고리를 제안합니다.`

// correctionPrompt is the single bounded re-prompt issued when the grounding
// guard rejects a reply.
const correctionPrompt = `방금 답변에 도구 결과로 확인되지 않은 강의가 포함되어 있습니다. ` +
	`도구 결과에 있는 강의만 사용해 다시 답변하세요. 확인되지 않은 강의는 절대 언급하지 마세요.`

// Safe fallback replies. All of them ship over HTTP 200 so the chat UX
// never sees a raw server error.
const (
	fallbackModelDown = `죄송합니다. 지금은 추천 서비스를 잠시 이용할 수 없어요. 잠시 후 다시 시도해 주세요.`

	fallbackUngrounded = `죄송합니다. 방금 확인한 결과로는 정확한 추천을 드리기 어렵습니다. ` +
		`원하시는 주제나 카테고리를 조금 더 자세히 알려주시겠어요?`

	fallbackNoResults = `죄송합니다. 조건에 맞는 강의를 찾지 못했어요. 다른 검색어나 카테고리로 다시 시도해 주세요.`
)

// formatRecords renders collected course records as a deterministic reply.
// Used when the round budget runs out or the provider fails after tool
// results were already gathered.
func formatRecords(records []catalog.CourseRecord) string {
	if len(records) == 0 {
		return fallbackNoResults
	}

	var b strings.Builder
	b.WriteString("요청하신 조건으로 찾은 강의예요.\n")
	for i, rec := range records {
		tier := "유료"
		if rec.PriceTier == "free" {
			tier = "무료"
		}
		fmt.Fprintf(&b, "\n%d. %s (%s)", i+1, rec.Title, tier)
		if rec.Summary != "" {
			b.WriteString("\n   " + rec.Summary)
		}
		if rec.DetailURL != "" {
			b.WriteString("\n   바로 보기: " + rec.DetailURL)
		}
	}
	return b.String()
}
