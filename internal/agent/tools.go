// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/learnit-dev/coursechat/internal/catalog"
	"github.com/learnit-dev/coursechat/internal/provider"
	"github.com/learnit-dev/coursechat/internal/store"
	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

// RegistryVersion identifies the tool set exposed to the model. The set is
// closed: the model can only name tools registered here, and dispatch never
// executes a code path derived from model output.
const RegistryVersion = "v1"

// Tool names of the v1 registry.
const (
	ToolPopularCourses    = "get_popular_courses"
	ToolLatestCourses     = "get_latest_courses"
	ToolFreeCourses       = "get_free_courses"
	ToolCategoryCourses   = "get_courses_by_category"
	ToolResolveCategoryID = "resolve_category_id"
	ToolSearchCourses     = "search_courses"
)

// toolSpec pairs a tool definition with its compiled argument schema.
type toolSpec struct {
	def    provider.ToolDefinition
	schema *jsonschema.Schema
}

// Registry holds the closed, versioned tool set with compiled JSON Schemas
// for dispatch-time argument validation.
type Registry struct {
	tools map[string]*toolSpec
	order []string
}

// NewRegistry compiles the v1 tool set.
func NewRegistry() (*Registry, error) {
	r := &Registry{tools: make(map[string]*toolSpec)}

	specs := []provider.ToolDefinition{
		{
			Name:        ToolPopularCourses,
			Description: "인기 강의 목록을 조회합니다. tab=free로 무료 강의만 볼 수 있습니다.",
			InputSchema: pagedSchema(map[string]any{
				"tab": map[string]any{"type": "string", "enum": []any{"all", "free"}},
			}, nil),
		},
		{
			Name:        ToolLatestCourses,
			Description: "최신 강의 목록을 조회합니다. tab=free로 무료 강의만 볼 수 있습니다.",
			InputSchema: pagedSchema(map[string]any{
				"tab": map[string]any{"type": "string", "enum": []any{"all", "free"}},
			}, nil),
		},
		{
			Name:        ToolFreeCourses,
			Description: "무료 강의 목록을 인기순으로 조회합니다.",
			InputSchema: pagedSchema(nil, nil),
		},
		{
			Name:        ToolCategoryCourses,
			Description: "카테고리 ID로 강의 목록을 조회합니다. ID는 resolve_category_id로 먼저 확인하세요.",
			InputSchema: pagedSchema(map[string]any{
				"categoryId": map[string]any{"type": "integer", "minimum": 1},
				"sort":       map[string]any{"type": "string", "enum": []any{"popular", "latest"}},
			}, []any{"categoryId"}),
		},
		{
			Name:        ToolResolveCategoryID,
			Description: "카테고리 이름(예: 백엔드, 프론트엔드)을 카테고리 ID로 변환합니다.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"categoryName": map[string]any{"type": "string", "minLength": 1},
				},
				"required":             []any{"categoryName"},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolSearchCourses,
			Description: "키워드로 강의를 검색합니다.",
			InputSchema: pagedSchema(map[string]any{
				"keyword": map[string]any{"type": "string", "minLength": 1},
			}, []any{"keyword"}),
		},
	}

	for _, def := range specs {
		schema, err := compileSchema(def.Name, def.InputSchema)
		if err != nil {
			return nil, ccerr.Wrapf(err, ccerr.CodeToolArgsInvalid,
				"compiling schema for tool %q", def.Name)
		}
		r.tools[def.Name] = &toolSpec{def: def, schema: schema}
		r.order = append(r.order, def.Name)
	}

	return r, nil
}

// pagedSchema builds an object schema with the shared page/size properties.
func pagedSchema(extra map[string]any, required []any) map[string]any {
	props := map[string]any{
		"page": map[string]any{"type": "integer", "minimum": 0},
		"size": map[string]any{"type": "integer", "minimum": 1, "maximum": 50},
	}
	for k, v := range extra {
		props[k] = v
	}
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// compileSchema round-trips the schema map through JSON so the compiler sees
// the same document shape it would load from disk.
func compileSchema(name string, doc map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := c.AddResource(resource, parsed); err != nil {
		return nil, err
	}
	return c.Compile(resource)
}

// Definitions returns the tool definitions in registration order for
// inclusion in ChatRequest.Tools.
func (r *Registry) Definitions() []provider.ToolDefinition {
	defs := make([]provider.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].def)
	}
	return defs
}

// Has reports whether the tool is part of the registry.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Validate checks decoded arguments against the tool's schema. Unknown
// tools and schema violations are tool errors, recoverable within the turn.
func (r *Registry) Validate(name string, args any) error {
	spec, ok := r.tools[name]
	if !ok {
		return ccerr.New(ccerr.CodeToolNotFound,
			"unknown tool: "+name, ccerr.FieldTool(name))
	}
	if err := spec.schema.Validate(args); err != nil {
		return ccerr.Wrap(err, ccerr.CodeToolArgsInvalid,
			"invalid arguments for tool "+name, ccerr.FieldTool(name))
	}
	return nil
}

// Outcome is the result of one tool dispatch. Err is set for tool errors;
// Content always carries something the model can read, error or not.
type Outcome struct {
	Content string
	Records []catalog.CourseRecord
	Cursor  *store.Cursor
	Err     error
}

// Dispatcher validates and executes tool calls against the catalog client.
// Failures never escape as process errors; they come back as tool-error
// outcomes the model can react to.
type Dispatcher struct {
	registry *Registry
	catalog  *catalog.Client
	audit    store.AuditStore
	timeout  time.Duration
}

// NewDispatcher creates a Dispatcher. timeout bounds each catalog call;
// zero disables the bound.
func NewDispatcher(registry *Registry, cat *catalog.Client, audit store.AuditStore, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		catalog:  cat,
		audit:    audit,
		timeout:  timeout,
	}
}

// Dispatch executes a single model-requested tool call.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, call *provider.ToolCall) *Outcome {
	raw := call.Arguments
	if raw == "" {
		raw = "{}"
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return d.finish(ctx, sessionID, call.Name, toolError(
			ccerr.Wrap(err, ccerr.CodeToolArgsInvalid,
				"tool arguments are not valid JSON", ccerr.FieldTool(call.Name))))
	}

	if err := d.registry.Validate(call.Name, any(args)); err != nil {
		return d.finish(ctx, sessionID, call.Name, toolError(err))
	}

	execCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	return d.finish(ctx, sessionID, call.Name, d.execute(execCtx, call.Name, args))
}

// ExecuteCursor replays a recorded query, advanced to the cursor's page.
// Used by the pagination shortcut; no model planning round is involved.
func (d *Dispatcher) ExecuteCursor(ctx context.Context, sessionID string, c store.Cursor) *Outcome {
	execCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var (
		page *catalog.Page
		err  error
	)
	if c.Kind == store.QuerySearch {
		page, err = d.catalog.Search(execCtx, c.Keyword, c.Page, c.Size)
	} else {
		page, err = d.catalog.List(execCtx, c.Sort, c.Tab, c.CategoryID, c.Page, c.Size)
	}
	if err != nil {
		return d.finish(ctx, sessionID, cursorToolName(c.Kind), toolError(err))
	}

	out := pageOutcome(page, c)
	return d.finish(ctx, sessionID, cursorToolName(c.Kind), out)
}

// execute routes a validated call to the catalog client.
func (d *Dispatcher) execute(ctx context.Context, name string, args map[string]any) *Outcome {
	page := intArg(args, "page", 0)
	size := intArg(args, "size", 12)

	switch name {
	case ToolPopularCourses:
		tab := strArg(args, "tab", catalog.TabAll)
		var (
			result *catalog.Page
			err    error
		)
		kind := store.QueryPopular
		if tab == catalog.TabFree {
			kind = store.QueryFree
			result, err = d.catalog.ListFree(ctx, page, size)
		} else {
			result, err = d.catalog.ListPopular(ctx, page, size)
		}
		if err != nil {
			return toolError(err)
		}
		return pageOutcome(result, store.Cursor{
			Kind: kind, Sort: catalog.SortPopular, Tab: tab, Page: result.Page, Size: result.Size,
		})

	case ToolLatestCourses:
		tab := strArg(args, "tab", catalog.TabAll)
		var (
			result *catalog.Page
			err    error
		)
		if tab == catalog.TabFree {
			result, err = d.catalog.List(ctx, catalog.SortLatest, catalog.TabFree, 0, page, size)
		} else {
			result, err = d.catalog.ListRecent(ctx, page, size)
		}
		if err != nil {
			return toolError(err)
		}
		return pageOutcome(result, store.Cursor{
			Kind: store.QueryLatest, Sort: catalog.SortLatest, Tab: tab, Page: result.Page, Size: result.Size,
		})

	case ToolFreeCourses:
		result, err := d.catalog.ListFree(ctx, page, size)
		if err != nil {
			return toolError(err)
		}
		return pageOutcome(result, store.Cursor{
			Kind: store.QueryFree, Sort: catalog.SortPopular, Tab: catalog.TabFree, Page: result.Page, Size: result.Size,
		})

	case ToolCategoryCourses:
		categoryID := int64(intArg(args, "categoryId", 0))
		sort := strArg(args, "sort", catalog.SortPopular)
		result, err := d.catalog.ListByCategory(ctx, categoryID, sort, page, size)
		if err != nil {
			return toolError(err)
		}
		return pageOutcome(result, store.Cursor{
			Kind: store.QueryCategory, CategoryID: categoryID, Sort: sort, Tab: catalog.TabAll,
			Page: result.Page, Size: result.Size,
		})

	case ToolResolveCategoryID:
		name := strArg(args, "categoryName", "")
		cat, err := d.catalog.ResolveCategory(ctx, name)
		if err != nil {
			return toolError(err)
		}
		content, _ := json.Marshal(map[string]any{
			"categoryId":   cat.ID,
			"categoryName": cat.Name,
		})
		return &Outcome{Content: string(content)}

	case ToolSearchCourses:
		keyword := strArg(args, "keyword", "")
		result, err := d.catalog.Search(ctx, keyword, page, size)
		if err != nil {
			return toolError(err)
		}
		return pageOutcome(result, store.Cursor{
			Kind: store.QuerySearch, Keyword: keyword, Page: result.Page, Size: result.Size,
		})

	default:
		// Unreachable after Validate, kept as a guard.
		return toolError(ccerr.New(ccerr.CodeToolNotFound,
			"unknown tool: "+name, ccerr.FieldTool(name)))
	}
}

// finish writes the audit entry and returns the outcome unchanged.
func (d *Dispatcher) finish(ctx context.Context, sessionID, toolName string, out *Outcome) *Outcome {
	if d.audit == nil {
		return out
	}

	result := "ok"
	if out.Err != nil {
		result = "error"
	}

	// Best-effort audit; never fail the dispatch on audit errors.
	_ = d.audit.Append(ctx, &store.AuditEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Action:    "tool_dispatch",
		SessionID: sessionID,
		Tool:      toolName,
		Details:   map[string]any{"records": len(out.Records)},
		Result:    result,
	})
	return out
}

// pageOutcome wraps a catalog page as a model-readable outcome with the
// cursor that reproduces the query.
func pageOutcome(page *catalog.Page, cursor store.Cursor) *Outcome {
	content, _ := json.Marshal(page)
	return &Outcome{
		Content: string(content),
		Records: page.Items,
		Cursor:  &cursor,
	}
}

// toolError renders an error as a tool result the model can read.
func toolError(err error) *Outcome {
	return &Outcome{
		Content: fmt.Sprintf("error: %s", err.Error()),
		Err:     err,
	}
}

// cursorToolName maps a query kind back to the tool name used for audit
// entries when a cursor replay runs without a model-issued call.
func cursorToolName(kind store.QueryKind) string {
	switch kind {
	case store.QueryLatest:
		return ToolLatestCourses
	case store.QueryFree:
		return ToolFreeCourses
	case store.QueryCategory:
		return ToolCategoryCourses
	case store.QuerySearch:
		return ToolSearchCourses
	default:
		return ToolPopularCourses
	}
}

func intArg(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

func strArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}
