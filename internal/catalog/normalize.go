// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package catalog

import (
	"encoding/json"
	"fmt"

	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

// pageItemKeys are the list keys observed across upstream page responses,
// checked in order. Spring paging endpoints have shipped all of these at
// one point or another.
var pageItemKeys = []string{"items", "content", "data", "list", "results"}

// normalizePage maps an arbitrary upstream page payload onto a Page.
func (c *Client) normalizePage(body []byte, page, size int) (*Page, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ccerr.Wrapf(err, ccerr.CodeCatalogResponseInvalid, "decoding catalog page")
	}

	var rawItems []any
	for _, key := range pageItemKeys {
		if list, ok := raw[key].([]any); ok {
			rawItems = list
			break
		}
	}

	items := make([]CourseRecord, 0, len(rawItems))
	for _, entry := range rawItems {
		course, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, c.normalizeCourse(course))
	}

	return &Page{
		Items:      items,
		Page:       page,
		Size:       size,
		HasMore:    pageHasMore(raw, len(items), size),
		NextOffset: page + 1,
	}, nil
}

// normalizeCourse maps one upstream course object onto a CourseRecord and
// attaches the user-facing detail URL.
func (c *Client) normalizeCourse(raw map[string]any) CourseRecord {
	rec := CourseRecord{
		ID:       firstInt(raw, "courseId", "id"),
		Title:    firstString(raw, "title", "name"),
		Category: firstString(raw, "categoryName", "category"),
		Summary:  firstString(raw, "summary", "description"),
		Price:    firstInt(raw, "price"),
	}

	rec.PriceTier = "paid"
	if rec.Price == 0 {
		rec.PriceTier = "free"
	}

	if rec.ID > 0 {
		rec.DetailURL = c.DetailURL(rec.ID)
	}

	return rec
}

// DetailURL builds the user-facing detail page link for a course.
func (c *Client) DetailURL(courseID int64) string {
	return fmt.Sprintf("%s/CourseDetail?courseId=%d&tab=intro", c.webBaseURL, courseID)
}

// pageHasMore derives a has-more flag from whatever paging metadata the
// upstream included; a full page is assumed to have more when no metadata
// is present.
func pageHasMore(raw map[string]any, itemCount, size int) bool {
	if last, ok := raw["last"].(bool); ok {
		return !last
	}
	if hasNext, ok := raw["hasNext"].(bool); ok {
		return hasNext
	}
	if total, ok := numberField(raw, "totalPages"); ok {
		if current, ok := numberField(raw, "page", "number"); ok {
			return current+1 < total
		}
	}
	return itemCount == size && itemCount > 0
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := raw[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstInt(raw map[string]any, keys ...string) int64 {
	for _, key := range keys {
		if n, ok := raw[key].(float64); ok {
			return int64(n)
		}
	}
	return 0
}

func numberField(raw map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		if n, ok := raw[key].(float64); ok {
			return int(n), true
		}
	}
	return 0, false
}
