// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMoreIntent(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"더 보여줘", true},
		{"더보기", true},
		{"다음 페이지 보여줘", true},
		{"다음페이지", true},
		{"계속 보여줘", true},
		{"more", true},
		{"show more please", true},
		{"Next Page", true},
		{"인기 강의 추천해줘", false},
		{"백엔드 강의 더 깊게 공부하려면 뭘 들어야 할까? 지금 다니는 회사에서 스프링을 쓰는데 더 잘하고 싶어", false},
		{"", false},
		{"   ", false},
		{"무료 강의 있어?", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, IsMoreIntent(tc.msg), "message: %q", tc.msg)
	}
}
