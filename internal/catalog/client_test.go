// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:      srv.URL,
		WebBaseURL:   "http://web.example.com",
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestListPopularNormalizesContentKey(t *testing.T) {
	var gotQuery map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/courses", r.URL.Path)
		gotQuery = map[string]string{
			"sort": r.URL.Query().Get("sort"),
			"tab":  r.URL.Query().Get("tab"),
			"page": r.URL.Query().Get("page"),
			"size": r.URL.Query().Get("size"),
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"courseId": 7, "title": "스프링 입문", "price": 33000, "description": "기초부터"},
				{"id": 8, "title": "무료 자바", "price": 0},
			},
			"last": false,
		})
	}))

	page, err := c.ListPopular(context.Background(), 0, 12)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"sort": "popular", "tab": "all", "page": "0", "size": "12"}, gotQuery)
	require.Len(t, page.Items, 2)

	first := page.Items[0]
	assert.Equal(t, int64(7), first.ID)
	assert.Equal(t, "스프링 입문", first.Title)
	assert.Equal(t, "paid", first.PriceTier)
	assert.Equal(t, "기초부터", first.Summary)
	assert.Equal(t, "http://web.example.com/CourseDetail?courseId=7&tab=intro", first.DetailURL)

	assert.Equal(t, "free", page.Items[1].PriceTier)
	assert.True(t, page.HasMore)
	assert.Equal(t, 1, page.NextOffset)
}

func TestListFreeUsesFreeTab(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "free", r.URL.Query().Get("tab"))
		assert.Equal(t, "popular", r.URL.Query().Get("sort"))
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{}})
	}))

	page, err := c.ListFree(context.Background(), 0, 12)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
}

func TestListByCategoryValidation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("categoryId"))
		assert.Equal(t, "latest", r.URL.Query().Get("sort"))
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{}})
	}))

	_, err := c.ListByCategory(context.Background(), 0, SortLatest, 0, 12)
	require.Error(t, err)
	assert.Equal(t, ccerr.CodeCatalogRequestInvalid, ccerr.CodeOf(err))

	_, err = c.ListByCategory(context.Background(), 3, SortLatest, 0, 12)
	require.NoError(t, err)
}

func TestPagingClamp(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("page"))
		assert.Equal(t, "12", r.URL.Query().Get("size"))
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{}})
	}))

	_, err := c.ListPopular(context.Background(), -5, 999)
	require.NoError(t, err)
}

func TestSearchSlicesLocally(t *testing.T) {
	all := make([]map[string]any, 30)
	for i := range all {
		all[i] = map[string]any{"courseId": i + 1, "title": "course", "price": 1000}
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/search/courses", r.URL.Path)
		assert.Equal(t, "java", r.URL.Query().Get("keyword"))
		_ = json.NewEncoder(w).Encode(all)
	}))

	page, err := c.Search(context.Background(), "java", 1, 12)
	require.NoError(t, err)
	require.Len(t, page.Items, 12)
	assert.Equal(t, int64(13), page.Items[0].ID)
	assert.True(t, page.HasMore)

	page, err = c.Search(context.Background(), "java", 2, 12)
	require.NoError(t, err)
	assert.Len(t, page.Items, 6)
	assert.False(t, page.HasMore)

	page, err = c.Search(context.Background(), "java", 9, 12)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
}

func TestSearchEmptyKeyword(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.Search(context.Background(), "", 0, 12)
	require.Error(t, err)
	assert.Equal(t, ccerr.CodeCatalogRequestInvalid, ccerr.CodeOf(err))
}

func TestRetryOn5xx(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{{"courseId": 1, "title": "ok"}}})
	}))

	page, err := c.ListPopular(context.Background(), 0, 12)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int64(3), calls.Load())
}

func TestNoRetryOn4xx(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.ListPopular(context.Background(), 0, 12)
	require.Error(t, err)
	assert.Equal(t, ccerr.CodeCatalogUpstreamFailure, ccerr.CodeOf(err))
	assert.Equal(t, int64(1), calls.Load())
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.ListPopular(context.Background(), 0, 12)
	require.Error(t, err)
	assert.True(t, ccerr.IsToolError(err))
	assert.Equal(t, int64(3), calls.Load())
}

func TestMalformedPayload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))

	_, err := c.ListPopular(context.Background(), 0, 12)
	require.Error(t, err)
	assert.Equal(t, ccerr.CodeCatalogResponseInvalid, ccerr.CodeOf(err))
}

func TestResolveCategory(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/categories", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]Category{
			{ID: 1, Name: "백엔드"},
			{ID: 2, Name: "프론트엔드"},
			{ID: 3, Name: "데이터 분석"},
		})
	}))

	ctx := context.Background()

	cat, err := c.ResolveCategory(ctx, "백엔드")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cat.ID)

	// Substring match.
	cat, err = c.ResolveCategory(ctx, "프론트")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cat.ID)

	// Near match survives a typo-ish variant.
	cat, err = c.ResolveCategory(ctx, "데이터분석")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cat.ID)

	_, err = c.ResolveCategory(ctx, "요리")
	require.Error(t, err)
	assert.Equal(t, ccerr.CodeCatalogCategoryNotFound, ccerr.CodeOf(err))

	_, err = c.ResolveCategory(ctx, "  ")
	require.Error(t, err)
	assert.Equal(t, ccerr.CodeCatalogRequestInvalid, ccerr.CodeOf(err))
}

func TestPageHasMoreHeuristics(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
		n    int
		size int
		want bool
	}{
		{"last true", map[string]any{"last": true}, 12, 12, false},
		{"last false", map[string]any{"last": false}, 3, 12, true},
		{"hasNext", map[string]any{"hasNext": true}, 3, 12, true},
		{"totalPages remaining", map[string]any{"totalPages": 3.0, "page": 1.0}, 12, 12, true},
		{"totalPages done", map[string]any{"totalPages": 3.0, "page": 2.0}, 12, 12, false},
		{"full page fallback", map[string]any{}, 12, 12, true},
		{"short page fallback", map[string]any{}, 4, 12, false},
		{"empty page", map[string]any{}, 0, 12, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pageHasMore(tc.raw, tc.n, tc.size))
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("abc", "abc"))
	assert.Equal(t, 1.0, similarity("", ""))
	assert.InDelta(t, 0.5, similarity("abc", "abcabc"), 0.01)
	assert.Less(t, similarity("요리", "백엔드"), categoryMatchCutoff)
}

// "요리" vs "데이터 분석" etc. must not clear the cutoff; guard against a
// regression that makes every category resolve to something.
func TestResolveCategoryNoFalsePositives(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]Category{{ID: 1, Name: "DevOps"}})
	}))

	_, err := c.ResolveCategory(context.Background(), "바리스타")
	assert.Error(t, err)
}
