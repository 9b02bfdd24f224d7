// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnit-dev/coursechat/internal/catalog"
	"github.com/learnit-dev/coursechat/internal/provider"
	"github.com/learnit-dev/coursechat/internal/store"
	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

// fakeCatalog serves deterministic pages: course IDs encode page and index
// so tests can assert which page was requested.
func fakeCatalog(t *testing.T) (*catalog.Client, *[]string) {
	t.Helper()

	var requests []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/courses", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RequestURI())
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		items := make([]map[string]any, 3)
		for i := range items {
			id := page*100 + i + 1
			items[i] = map[string]any{
				"courseId": id,
				"title":    fmt.Sprintf("강의 %d", id),
				"price":    9900,
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "last": false})
	})
	mux.HandleFunc("/api/search/courses", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RequestURI())
		all := make([]map[string]any, 20)
		for i := range all {
			all[i] = map[string]any{"courseId": i + 1, "title": fmt.Sprintf("검색 %d", i+1), "price": 0}
		}
		_ = json.NewEncoder(w).Encode(all)
	})
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RequestURI())
		_ = json.NewEncoder(w).Encode([]catalog.Category{{ID: 4, Name: "백엔드"}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := catalog.New(catalog.Config{
		BaseURL:      srv.URL,
		WebBaseURL:   "http://web.example.com",
		RetryBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return c, &requests
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *[]string) {
	t.Helper()
	registry, err := NewRegistry()
	require.NoError(t, err)
	cat, requests := fakeCatalog(t)
	return NewDispatcher(registry, cat, nil, 5*time.Second), requests
}

func TestRegistryDefinitions(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)

	defs := registry.Definitions()
	require.Len(t, defs, 6)

	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	assert.Equal(t, []string{
		ToolPopularCourses, ToolLatestCourses, ToolFreeCourses,
		ToolCategoryCourses, ToolResolveCategoryID, ToolSearchCourses,
	}, names)
}

func TestRegistryValidate(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)

	err = registry.Validate("drop_tables", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, ccerr.CodeToolNotFound, ccerr.CodeOf(err))

	// page must be an integer >= 0.
	err = registry.Validate(ToolPopularCourses, map[string]any{"page": "first"})
	require.Error(t, err)
	assert.Equal(t, ccerr.CodeToolArgsInvalid, ccerr.CodeOf(err))

	err = registry.Validate(ToolPopularCourses, map[string]any{"page": float64(-1)})
	assert.Error(t, err)

	// Unknown properties are rejected: the registry is closed.
	err = registry.Validate(ToolFreeCourses, map[string]any{"shell": "rm -rf"})
	assert.Error(t, err)

	// categoryId is required.
	err = registry.Validate(ToolCategoryCourses, map[string]any{})
	assert.Error(t, err)

	assert.NoError(t, registry.Validate(ToolPopularCourses, map[string]any{"page": float64(0), "size": float64(12)}))
	assert.NoError(t, registry.Validate(ToolSearchCourses, map[string]any{"keyword": "java"}))
}

func TestDispatchPopular(t *testing.T) {
	d, requests := newTestDispatcher(t)

	out := d.Dispatch(context.Background(), "s1", &provider.ToolCall{
		ID:        "call-1",
		Name:      ToolPopularCourses,
		Arguments: `{"page":0,"size":12}`,
	})

	require.NoError(t, out.Err)
	require.Len(t, out.Records, 3)
	assert.Equal(t, "강의 1", out.Records[0].Title)
	assert.Contains(t, out.Content, "detailUrl")

	require.NotNil(t, out.Cursor)
	assert.Equal(t, store.QueryPopular, out.Cursor.Kind)
	assert.Equal(t, 0, out.Cursor.Page)
	assert.Equal(t, 12, out.Cursor.Size)

	require.Len(t, *requests, 1)
	assert.Contains(t, (*requests)[0], "sort=popular")
}

func TestDispatchEmptyArguments(t *testing.T) {
	d, _ := newTestDispatcher(t)

	out := d.Dispatch(context.Background(), "s1", &provider.ToolCall{
		Name: ToolFreeCourses,
	})
	require.NoError(t, out.Err)
	require.NotNil(t, out.Cursor)
	assert.Equal(t, store.QueryFree, out.Cursor.Kind)
}

func TestDispatchInvalidJSON(t *testing.T) {
	d, requests := newTestDispatcher(t)

	out := d.Dispatch(context.Background(), "s1", &provider.ToolCall{
		Name:      ToolPopularCourses,
		Arguments: `{not json`,
	})
	require.Error(t, out.Err)
	assert.Equal(t, ccerr.CodeToolArgsInvalid, ccerr.CodeOf(out.Err))
	assert.Contains(t, out.Content, "error:")
	assert.Empty(t, *requests, "invalid arguments must not reach the catalog")
}

func TestDispatchUnknownTool(t *testing.T) {
	d, _ := newTestDispatcher(t)

	out := d.Dispatch(context.Background(), "s1", &provider.ToolCall{
		Name:      "get_next_page",
		Arguments: `{}`,
	})
	require.Error(t, out.Err)
	assert.Equal(t, ccerr.CodeToolNotFound, ccerr.CodeOf(out.Err))
	assert.Contains(t, out.Content, "error:")
}

func TestDispatchSearchRecordsKeywordCursor(t *testing.T) {
	d, _ := newTestDispatcher(t)

	out := d.Dispatch(context.Background(), "s1", &provider.ToolCall{
		Name:      ToolSearchCourses,
		Arguments: `{"keyword":"자바","page":0,"size":5}`,
	})
	require.NoError(t, out.Err)
	require.Len(t, out.Records, 5)

	require.NotNil(t, out.Cursor)
	assert.Equal(t, store.QuerySearch, out.Cursor.Kind)
	assert.Equal(t, "자바", out.Cursor.Keyword)
	assert.Equal(t, 5, out.Cursor.Size)
}

func TestDispatchResolveCategory(t *testing.T) {
	d, _ := newTestDispatcher(t)

	out := d.Dispatch(context.Background(), "s1", &provider.ToolCall{
		Name:      ToolResolveCategoryID,
		Arguments: `{"categoryName":"백엔드"}`,
	})
	require.NoError(t, out.Err)
	assert.Nil(t, out.Cursor)
	assert.Empty(t, out.Records)

	var resolved map[string]any
	require.NoError(t, json.Unmarshal([]byte(out.Content), &resolved))
	assert.Equal(t, float64(4), resolved["categoryId"])
}

func TestDispatchCatalogFailureBecomesToolError(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	cat, err := catalog.New(catalog.Config{BaseURL: srv.URL, RetryBackoff: time.Millisecond})
	require.NoError(t, err)

	d := NewDispatcher(registry, cat, nil, 5*time.Second)
	out := d.Dispatch(context.Background(), "s1", &provider.ToolCall{
		Name:      ToolPopularCourses,
		Arguments: `{}`,
	})
	require.Error(t, out.Err)
	assert.True(t, ccerr.IsToolError(out.Err))
	assert.Contains(t, out.Content, "error:")
}

func TestExecuteCursorReplaysQuery(t *testing.T) {
	d, requests := newTestDispatcher(t)

	out := d.ExecuteCursor(context.Background(), "s1", store.Cursor{
		Kind: store.QueryPopular,
		Sort: catalog.SortPopular,
		Tab:  catalog.TabAll,
		Page: 1,
		Size: 12,
	})
	require.NoError(t, out.Err)
	require.Len(t, out.Records, 3)
	assert.Equal(t, "강의 101", out.Records[0].Title)

	require.Len(t, *requests, 1)
	assert.Contains(t, (*requests)[0], "page=1")

	require.NotNil(t, out.Cursor)
	assert.Equal(t, 1, out.Cursor.Page)
}

func TestExecuteCursorSearch(t *testing.T) {
	d, requests := newTestDispatcher(t)

	out := d.ExecuteCursor(context.Background(), "s1", store.Cursor{
		Kind:    store.QuerySearch,
		Keyword: "spring",
		Page:    1,
		Size:    12,
	})
	require.NoError(t, out.Err)
	require.Len(t, out.Records, 8)

	require.Len(t, *requests, 1)
	assert.Contains(t, (*requests)[0], "/api/search/courses")
	assert.Contains(t, (*requests)[0], "keyword=spring")
}
