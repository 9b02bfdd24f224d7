// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

// Package catalog is the typed client for the course-catalog REST API.
// It normalizes the upstream page shapes into CourseRecord pages and maps
// transport failures to typed errors so the agent loop can surface them to
// the model as tool results instead of crashing the turn.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

const (
	defaultPageSize = 12
	maxPageSize     = 50

	// Upstream sort keys.
	SortPopular = "popular"
	SortLatest  = "latest"

	// Upstream tab filters.
	TabAll  = "all"
	TabFree = "free"
)

// CourseRecord is the canonical course shape handed to the agent loop.
// Records are read-only; DetailURL is surfaced to the user in place of any
// image asset.
type CourseRecord struct {
	ID        int64  `json:"courseId"`
	Title     string `json:"title"`
	Category  string `json:"category,omitempty"`
	PriceTier string `json:"priceTier"`
	Price     int64  `json:"price"`
	Summary   string `json:"summary,omitempty"`
	DetailURL string `json:"detailUrl"`
}

// Page is one window of catalog results.
type Page struct {
	Items      []CourseRecord `json:"items"`
	Page       int            `json:"page"`
	Size       int            `json:"size"`
	HasMore    bool           `json:"hasMore"`
	NextOffset int            `json:"nextOffset"`
}

// Category is one entry of the upstream category list.
type Category struct {
	ID   int64  `json:"categoryId"`
	Name string `json:"name"`
}

// Config holds catalog client configuration.
type Config struct {
	BaseURL    string
	WebBaseURL string
	Timeout    time.Duration
	// MaxRetries bounds re-attempts after a network error or 5xx.
	MaxRetries int
	// RetryBackoff is the initial backoff, doubled per attempt.
	RetryBackoff time.Duration
	HTTPClient   *http.Client
}

// Client issues catalog requests. All methods are safe for concurrent use.
type Client struct {
	baseURL      string
	webBaseURL   string
	maxRetries   int
	retryBackoff time.Duration
	http         *http.Client
}

// New creates a catalog Client. Returns an error if BaseURL is missing.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ccerr.New(ccerr.CodeConfigValidateInvalidValue, "catalog: base URL is required")
	}
	if cfg.WebBaseURL == "" {
		cfg.WebBaseURL = cfg.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		webBaseURL:   cfg.WebBaseURL,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		http:         hc,
	}, nil
}

// ListPopular returns the popular-course listing.
func (c *Client) ListPopular(ctx context.Context, page, size int) (*Page, error) {
	return c.listCourses(ctx, SortPopular, TabAll, 0, page, size)
}

// ListRecent returns the newest-course listing.
func (c *Client) ListRecent(ctx context.Context, page, size int) (*Page, error) {
	return c.listCourses(ctx, SortLatest, TabAll, 0, page, size)
}

// ListFree returns the free-course listing (popular ordering, free tab).
func (c *Client) ListFree(ctx context.Context, page, size int) (*Page, error) {
	return c.listCourses(ctx, SortPopular, TabFree, 0, page, size)
}

// ListByCategory returns a category-scoped listing. sort must be one of
// SortPopular or SortLatest; invalid values fall back to SortPopular.
func (c *Client) ListByCategory(ctx context.Context, categoryID int64, sort string, page, size int) (*Page, error) {
	if categoryID <= 0 {
		return nil, ccerr.New(ccerr.CodeCatalogRequestInvalid,
			"category id must be positive", ccerr.Field("category_id", categoryID))
	}
	if sort != SortPopular && sort != SortLatest {
		sort = SortPopular
	}
	return c.listCourses(ctx, sort, TabAll, categoryID, page, size)
}

// List executes a listing described by raw sort/tab/category parameters.
// Used by the pagination shortcut to replay a recorded query verbatim.
func (c *Client) List(ctx context.Context, sort, tab string, categoryID int64, page, size int) (*Page, error) {
	return c.listCourses(ctx, sort, tab, categoryID, page, size)
}

// Search queries the search endpoint. The upstream returns the complete
// result list in one response, so the page window is sliced client-side.
func (c *Client) Search(ctx context.Context, keyword string, page, size int) (*Page, error) {
	if keyword == "" {
		return nil, ccerr.New(ccerr.CodeCatalogRequestInvalid, "search keyword must not be empty")
	}
	page, size = clampPaging(page, size)

	q := url.Values{}
	q.Set("keyword", keyword)
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	body, err := c.get(ctx, "/api/search/courses", q)
	if err != nil {
		return nil, err
	}

	var all []map[string]any
	if err := json.Unmarshal(body, &all); err != nil {
		return nil, ccerr.Wrapf(err, ccerr.CodeCatalogResponseInvalid, "decoding search response")
	}

	start := page * size
	end := start + size
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}

	items := make([]CourseRecord, 0, end-start)
	for _, raw := range all[start:end] {
		items = append(items, c.normalizeCourse(raw))
	}

	return &Page{
		Items:      items,
		Page:       page,
		Size:       size,
		HasMore:    end < len(all),
		NextOffset: page + 1,
	}, nil
}

// Categories returns the upstream category list.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	body, err := c.get(ctx, "/api/categories", nil)
	if err != nil {
		return nil, err
	}

	var cats []Category
	if err := json.Unmarshal(body, &cats); err != nil {
		return nil, ccerr.Wrapf(err, ccerr.CodeCatalogResponseInvalid, "decoding category list")
	}
	return cats, nil
}

func (c *Client) listCourses(ctx context.Context, sort, tab string, categoryID int64, page, size int) (*Page, error) {
	page, size = clampPaging(page, size)
	if tab != TabAll && tab != TabFree {
		tab = TabAll
	}

	q := url.Values{}
	q.Set("sort", sort)
	q.Set("tab", tab)
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	if categoryID > 0 {
		q.Set("categoryId", strconv.FormatInt(categoryID, 10))
	}

	body, err := c.get(ctx, "/api/courses", q)
	if err != nil {
		return nil, err
	}

	return c.normalizePage(body, page, size)
}

// get performs a GET with bounded retries on network errors and 5xx.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	backoff := c.retryBackoff
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ccerr.Wrapf(ctx.Err(), ccerr.CodeCatalogUpstreamFailure, "catalog request cancelled")
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		body, retryable, err := c.getOnce(ctx, u)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, lastErr
}

func (c *Client) getOnce(ctx context.Context, u string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, ccerr.Wrapf(err, ccerr.CodeCatalogRequestInvalid, "building catalog request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, ccerr.Wrapf(err, ccerr.CodeCatalogUpstreamFailure, "calling catalog API")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, true, ccerr.Wrapf(err, ccerr.CodeCatalogUpstreamFailure, "reading catalog response")
	}

	if resp.StatusCode >= 500 {
		return nil, true, ccerr.New(ccerr.CodeCatalogUpstreamFailure,
			fmt.Sprintf("catalog API returned %d", resp.StatusCode),
			ccerr.Field("status", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, ccerr.New(ccerr.CodeCatalogUpstreamFailure,
			fmt.Sprintf("catalog API returned %d", resp.StatusCode),
			ccerr.Field("status", resp.StatusCode))
	}

	return raw, false, nil
}

func clampPaging(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size
}
