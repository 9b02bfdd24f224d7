// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package catalog

import (
	"context"
	"strings"

	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

// categoryMatchCutoff is the minimum similarity ratio for a fuzzy category
// match. Mirrors the 0.4 cutoff the recommendation prompt was tuned against.
const categoryMatchCutoff = 0.4

// ResolveCategory maps a free-form category name ("백엔드", "frontend") to a
// catalog category. Exact and substring matches win; otherwise the closest
// name by edit-distance ratio above the cutoff is chosen.
func (c *Client) ResolveCategory(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ccerr.New(ccerr.CodeCatalogRequestInvalid, "category name must not be empty")
	}

	cats, err := c.Categories(ctx)
	if err != nil {
		return nil, err
	}

	var best *Category
	bestScore := 0.0
	lower := strings.ToLower(name)

	for i := range cats {
		cat := &cats[i]
		catLower := strings.ToLower(cat.Name)

		if catLower == lower {
			return cat, nil
		}

		score := similarity(lower, catLower)
		if strings.Contains(catLower, lower) || strings.Contains(lower, catLower) {
			// Substring hits rank above pure edit-distance matches.
			if s := 0.5 + score/2; s > score {
				score = s
			}
		}

		if score > bestScore {
			bestScore = score
			best = cat
		}
	}

	if best == nil || bestScore < categoryMatchCutoff {
		return nil, ccerr.New(ccerr.CodeCatalogCategoryNotFound,
			"no category matches "+name, ccerr.Field("category_name", name))
	}
	return best, nil
}

// similarity returns an edit-distance ratio in [0,1]: 1 for identical
// strings, 0 for completely different ones.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ar, br := []rune(a), []rune(b)
	longest := max(len(ar), len(br))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ar, br))/float64(longest)
}

// levenshtein computes the edit distance between two rune slices with a
// single-row dynamic program.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(a); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cur := row[j]
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			row[j] = min(row[j]+1, min(row[j-1]+1, prev+cost))
			prev = cur
		}
	}

	return row[len(b)]
}
