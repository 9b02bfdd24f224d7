// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

// Package agent is the session-scoped conversation orchestrator: it drives
// the LLM through a bounded tool-calling loop against the course catalog,
// enforces that recommendations are grounded in real tool results, and
// resolves "show more" follow-ups from the recorded pagination cursor.
package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/learnit-dev/coursechat/internal/catalog"
	"github.com/learnit-dev/coursechat/internal/provider"
	"github.com/learnit-dev/coursechat/internal/store"
	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

const (
	defaultMaxRounds           = 4
	defaultMaxToolCallsPerTurn = 10
	defaultActiveWindow        = 50
)

// InboundMessage is the input to one turn of the loop.
type InboundMessage struct {
	SessionID string
	Content   string
}

// OutboundMessage is the reply produced for one turn. Fallback is set when
// the reply is a safe fallback rather than model output.
type OutboundMessage struct {
	SessionID string
	Reply     string
	Usage     *provider.Usage
	Fallback  string
}

// Fallback reasons recorded on OutboundMessage and in the audit trail.
const (
	FallbackModelDown  = "model_unavailable"
	FallbackUngrounded = "ungrounded"
	FallbackRoundLimit = "round_limit"
	FallbackToolFailed = "tool_failed"
)

// LoopConfig holds dependencies for the Loop.
type LoopConfig struct {
	Sessions   *SessionManager
	Router     *provider.Registry
	Registry   *Registry
	Dispatcher *Dispatcher
	Tracker    *Tracker
	Audit      store.AuditStore

	Model               string // "provider/model" ref, "" for the default
	Temperature         *float32
	MaxTokens           int
	MaxRounds           int
	MaxToolCallsPerTurn int
	ActiveWindow        int
}

// Loop is the turn-processing state machine.
type Loop struct {
	sessions   *SessionManager
	router     *provider.Registry
	registry   *Registry
	dispatcher *Dispatcher
	tracker    *Tracker
	audit      store.AuditStore

	model        string
	temperature  *float32
	maxTokens    int
	maxRounds    int
	maxToolCalls int
	activeWindow int
}

// NewLoop creates a Loop with the given dependencies.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	if cfg.MaxToolCallsPerTurn <= 0 {
		cfg.MaxToolCallsPerTurn = defaultMaxToolCallsPerTurn
	}
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = defaultActiveWindow
	}

	return &Loop{
		sessions:     cfg.Sessions,
		router:       cfg.Router,
		registry:     cfg.Registry,
		dispatcher:   cfg.Dispatcher,
		tracker:      cfg.Tracker,
		audit:        cfg.Audit,
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		maxRounds:    cfg.MaxRounds,
		maxToolCalls: cfg.MaxToolCallsPerTurn,
		activeWindow: cfg.ActiveWindow,
	}
}

// ProcessMessage runs one full turn: load session, detect the more-intent
// shortcut or run bounded planning rounds, guard the reply, persist, audit.
// Provider failures do not return an error; they produce an apologetic
// fallback reply so the caller can keep the chat UX on HTTP 200.
func (l *Loop) ProcessMessage(ctx context.Context, msg InboundMessage) (*OutboundMessage, error) {
	if err := validateInbound(msg); err != nil {
		return nil, err
	}

	// One in-flight turn per session; turns append in strict arrival order.
	unlock := l.sessions.Lock(msg.SessionID)
	defer unlock()

	if _, err := l.sessions.GetOrCreate(ctx, msg.SessionID); err != nil {
		return nil, ccerr.Wrapf(err, ccerr.CodeAgentLoopFailure, "loading session %s", msg.SessionID)
	}

	if err := l.appendTurn(ctx, msg.SessionID, &store.Turn{
		Role:    store.TurnRoleUser,
		Content: msg.Content,
	}); err != nil {
		return nil, err
	}

	history, err := l.sessions.Turns(ctx, msg.SessionID, l.activeWindow)
	if err != nil {
		return nil, ccerr.Wrapf(err, ccerr.CodeAgentLoopFailure, "loading history for session %s", msg.SessionID)
	}
	// Titles surfaced in earlier turns; mentioning one without a fresh
	// record this turn trips the grounding guard.
	priorTitles := titlesFromToolTurns(history)
	messages := historyToMessages(history)

	turn := &turnState{sessionID: msg.SessionID, priorTitles: priorTitles}

	if IsMoreIntent(msg.Content) {
		l.runMoreShortcut(ctx, turn, messages)
	} else {
		l.runPlanning(ctx, turn, messages)
	}

	reply := stripImageMarkdown(turn.reply)
	if reply == "" {
		reply = fallbackModelDown
		turn.fallback = FallbackModelDown
	}

	if err := l.appendTurn(ctx, msg.SessionID, &store.Turn{
		Role:    store.TurnRoleAssistant,
		Content: reply,
	}); err != nil {
		return nil, err
	}

	out := &OutboundMessage{
		SessionID: msg.SessionID,
		Reply:     reply,
		Usage:     turn.usage,
		Fallback:  turn.fallback,
	}
	l.auditTurn(ctx, msg, turn)
	return out, nil
}

// turnState accumulates per-turn results: collected records ground the
// reply, the cursor records the last listing query, fallback tags why the
// model's own text was not used.
type turnState struct {
	sessionID   string
	priorTitles []string
	records     []catalog.CourseRecord
	usage       *provider.Usage
	reply       string
	fallback    string
	rounds      int
	toolCalls   int
}

func validateInbound(msg InboundMessage) error {
	var missing []string
	if strings.TrimSpace(msg.SessionID) == "" {
		missing = append(missing, "sessionId")
	}
	if strings.TrimSpace(msg.Content) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return ccerr.New(
			ccerr.CodeAgentLoopInvalidInput,
			"missing required fields: "+strings.Join(missing, ", "),
			ccerr.FieldSessionID(msg.SessionID),
		)
	}
	return nil
}

// runMoreShortcut resolves a pagination follow-up from the recorded cursor,
// bypassing the model's planning round. With no prior cursor it degrades to
// a fresh popular listing.
func (l *Loop) runMoreShortcut(ctx context.Context, turn *turnState, messages []provider.Message) {
	cursor, err := l.tracker.ResolveMore(ctx, turn.sessionID)
	if err != nil {
		slog.Warn("cursor lookup failed, using popular fallback",
			"session_id", turn.sessionID, "error", err)
	}
	if cursor == nil {
		c := defaultCursor()
		cursor = &c
	}

	out := l.dispatcher.ExecuteCursor(ctx, turn.sessionID, *cursor)
	turn.toolCalls++

	toolTurn := &store.Turn{
		Role:     store.TurnRoleTool,
		Content:  out.Content,
		ToolName: cursorToolName(cursor.Kind),
	}
	if err := l.appendTurn(ctx, turn.sessionID, toolTurn); err != nil {
		slog.Error("persisting tool turn failed", "session_id", turn.sessionID, "error", err)
	}

	if out.Err != nil {
		turn.reply = fallbackNoResults
		turn.fallback = FallbackToolFailed
		return
	}

	turn.records = out.Records
	if out.Cursor != nil {
		if err := l.tracker.Record(ctx, turn.sessionID, *out.Cursor); err != nil {
			slog.Error("recording cursor failed", "session_id", turn.sessionID, "error", err)
		}
	}

	// One composing call, no tools offered: the result set is already
	// fixed, the model only phrases it.
	messages = append(messages, provider.Message{
		Role:     store.TurnRoleTool,
		Content:  out.Content,
		ToolName: toolTurn.ToolName,
	})
	text, _, usage, err := l.callModel(ctx, messages, nil)
	turn.rounds++
	turn.usage = usage
	if err != nil || strings.TrimSpace(text) == "" {
		turn.reply = formatRecords(turn.records)
		if err != nil {
			turn.fallback = FallbackModelDown
		}
		return
	}
	if gerr := CheckGrounding(text, turn.records, turn.priorTitles); gerr != nil {
		turn.reply = formatRecords(turn.records)
		turn.fallback = FallbackUngrounded
		return
	}
	turn.reply = text
}

// runPlanning drives the bounded planning loop:
// MODEL_THINKING → (TOOL_DISPATCH ⇄ MODEL_THINKING)* → REPLY_READY.
func (l *Loop) runPlanning(ctx context.Context, turn *turnState, messages []provider.Message) {
	correctionUsed := false

	for round := 0; round < l.maxRounds; round++ {
		turn.rounds++
		text, toolCalls, usage, err := l.callModel(ctx, messages, l.registry.Definitions())
		if usage != nil {
			turn.usage = usage
		}
		if err != nil {
			// Model unavailable: reply from whatever was collected.
			if len(turn.records) > 0 {
				turn.reply = formatRecords(turn.records)
			} else {
				turn.reply = fallbackModelDown
			}
			turn.fallback = FallbackModelDown
			return
		}

		if len(toolCalls) == 0 {
			candidate := stripImageMarkdown(text)
			gerr := CheckGrounding(candidate, turn.records, turn.priorTitles)
			if gerr == nil {
				turn.reply = candidate
				return
			}

			slog.Warn("grounding guard rejected reply",
				"session_id", turn.sessionID, "error", gerr)
			if !correctionUsed {
				correctionUsed = true
				messages = append(messages,
					provider.Message{Role: store.TurnRoleAssistant, Content: text},
					provider.Message{Role: store.TurnRoleUser, Content: correctionPrompt},
				)
				continue
			}

			if len(turn.records) > 0 {
				turn.reply = formatRecords(turn.records)
			} else {
				turn.reply = fallbackUngrounded
			}
			turn.fallback = FallbackUngrounded
			return
		}

		// The model emitted tool calls; interleaved text stays in the
		// history so the conversation replays coherently.
		if text != "" {
			if err := l.appendTurn(ctx, turn.sessionID, &store.Turn{
				Role:    store.TurnRoleAssistant,
				Content: text,
			}); err != nil {
				slog.Error("persisting assistant turn failed", "session_id", turn.sessionID, "error", err)
			}
			messages = append(messages, provider.Message{Role: store.TurnRoleAssistant, Content: text})
		}

		var lastCursor *store.Cursor
		for _, tc := range toolCalls {
			turn.toolCalls++

			var out *Outcome
			if turn.toolCalls > l.maxToolCalls {
				out = toolError(ccerr.Errorf(ccerr.CodeAgentRoundLimitReached,
					"tool call budget exceeded: %d calls used", turn.toolCalls))
			} else {
				out = l.dispatcher.Dispatch(ctx, turn.sessionID, tc)
			}

			if err := l.appendTurn(ctx, turn.sessionID, &store.Turn{
				Role:       store.TurnRoleTool,
				Content:    out.Content,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
			}); err != nil {
				slog.Error("persisting tool turn failed", "session_id", turn.sessionID, "error", err)
			}
			messages = append(messages, provider.Message{
				Role:       store.TurnRoleTool,
				Content:    out.Content,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
			})

			turn.records = append(turn.records, out.Records...)
			if out.Cursor != nil {
				// Later calls win when two listings land in one round.
				lastCursor = out.Cursor
			}
		}

		if lastCursor != nil {
			if err := l.tracker.Record(ctx, turn.sessionID, *lastCursor); err != nil {
				slog.Error("recording cursor failed", "session_id", turn.sessionID, "error", err)
			}
		}
	}

	// Round budget exhausted: terminal reply from collected records.
	turn.reply = formatRecords(turn.records)
	turn.fallback = FallbackRoundLimit
}

// callModel routes to a provider and collects the streamed response,
// failing over across the registry's chain on transport errors.
func (l *Loop) callModel(
	ctx context.Context,
	messages []provider.Message,
	tools []provider.ToolDefinition,
) (string, []*provider.ToolCall, *provider.Usage, error) {
	var exclude []string

	for attempt := 0; attempt < l.router.MaxAttempts(); attempt++ {
		prov, model, err := l.router.Route(ctx, l.model, exclude)
		if err != nil {
			return "", nil, nil, ccerr.Wrapf(err, ccerr.CodeProviderAllUnavailable, "routing chat model")
		}

		req := provider.ChatRequest{
			Model:        model,
			Messages:     messages,
			Tools:        tools,
			SystemPrompt: systemPrompt,
			Options: provider.ChatOptions{
				Temperature: l.temperature,
				MaxTokens:   l.maxTokens,
			},
		}

		eventCh, err := prov.Chat(ctx, req)
		if err != nil {
			recordProviderFailure(prov)
			exclude = append(exclude, prov.Name())
			slog.Warn("chat call failed, trying next provider",
				"provider", prov.Name(), "error", err)
			continue
		}

		text, toolCalls, usage, streamErr := collectEvents(eventCh)
		if streamErr != nil {
			recordProviderFailure(prov)
			exclude = append(exclude, prov.Name())
			slog.Warn("chat stream failed, trying next provider",
				"provider", prov.Name(), "error", streamErr)
			continue
		}

		if hr, ok := prov.(provider.HealthReporter); ok {
			hr.RecordSuccess()
		}
		return text, toolCalls, usage, nil
	}

	return "", nil, nil, ccerr.New(ccerr.CodeProviderAllUnavailable,
		"all chat providers failed for this turn")
}

func recordProviderFailure(p provider.Provider) {
	if hr, ok := p.(provider.HealthReporter); ok {
		hr.RecordFailure()
	}
}

// collectEvents buffers a chat stream into text, tool calls, and usage.
// Partial text is discarded when the stream errors.
func collectEvents(eventCh <-chan provider.ChatEvent) (string, []*provider.ToolCall, *provider.Usage, error) {
	var buf strings.Builder
	var toolCalls []*provider.ToolCall
	var usage *provider.Usage
	var streamErr error

	for ev := range eventCh {
		switch ev.Type {
		case provider.EventTypeTextDelta:
			buf.WriteString(ev.Text)
		case provider.EventTypeToolCall:
			if ev.ToolCall != nil {
				toolCalls = append(toolCalls, ev.ToolCall)
			}
		case provider.EventTypeUsage:
			usage = ev.Usage
		case provider.EventTypeDone:
			if ev.Usage != nil {
				usage = ev.Usage
			}
		case provider.EventTypeError:
			streamErr = ccerr.New(ccerr.CodeProviderUpstreamFailure, ev.Error)
		}
	}

	return buf.String(), toolCalls, usage, streamErr
}

// historyToMessages converts stored turns into provider messages.
func historyToMessages(turns []*store.Turn) []provider.Message {
	messages := make([]provider.Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, provider.Message{
			Role:       t.Role,
			Content:    t.Content,
			ToolCallID: t.ToolCallID,
			ToolName:   t.ToolName,
		})
	}
	return messages
}

func (l *Loop) appendTurn(ctx context.Context, sessionID string, turn *store.Turn) error {
	turn.ID = uuid.New().String()
	turn.SessionID = sessionID
	turn.CreatedAt = time.Now()
	if err := l.sessions.AppendTurn(ctx, sessionID, turn); err != nil {
		return ccerr.Wrapf(err, ccerr.CodeAgentLoopFailure,
			"persisting %s turn for session %s", turn.Role, sessionID)
	}
	return nil
}

func (l *Loop) auditTurn(ctx context.Context, msg InboundMessage, turn *turnState) {
	if l.audit == nil {
		return
	}

	result := "ok"
	if turn.fallback != "" {
		result = turn.fallback
	}

	// Best-effort; never fail the reply on audit errors.
	_ = l.audit.Append(ctx, &store.AuditEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Action:    "chat.turn",
		SessionID: msg.SessionID,
		Details: map[string]any{
			"rounds":     turn.rounds,
			"tool_calls": turn.toolCalls,
			"records":    len(turn.records),
		},
		Result: result,
	})
}
