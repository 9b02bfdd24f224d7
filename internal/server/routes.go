// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/learnit-dev/coursechat/internal/agent"
	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/api/chat",
		Summary:     "Send a chat message",
		Tags:        []string{"chat"},
	}, s.handleChat)

	huma.Register(s.api, huma.Operation{
		OperationID: "reset-session",
		Method:      http.MethodPost,
		Path:        "/api/session/reset",
		Summary:     "Reset a conversation session",
		Tags:        []string{"sessions"},
	}, s.handleResetSession)
}

// --- Request/Response types for huma ---

type chatInput struct {
	Body struct {
		SessionID string `json:"sessionId" minLength:"1" doc:"Web platform session identifier"`
		Message   string `json:"message" minLength:"1" doc:"User message"`
	}
}
type chatOutput struct {
	Body struct {
		SessionID string `json:"sessionId" doc:"Session the reply belongs to"`
		Reply     string `json:"reply" doc:"Assistant reply text"`
	}
}

type resetSessionInput struct {
	Body struct {
		SessionID string `json:"sessionId" minLength:"1" doc:"Session to reset"`
	}
}
type resetSessionOutput struct {
	Body struct {
		OK        bool   `json:"ok" doc:"Whether the reset succeeded"`
		SessionID string `json:"sessionId" doc:"Session that was reset"`
	}
}

// --- Handlers ---

// handleChat runs one orchestrator turn. Model and tool failures inside the
// turn surface as an apologetic reply on HTTP 200, not as an HTTP error; only
// malformed requests and internal faults map to error statuses.
func (s *Server) handleChat(ctx context.Context, input *chatInput) (*chatOutput, error) {
	if s.services == nil {
		return nil, huma.Error503ServiceUnavailable("chat service not configured")
	}

	reply, err := s.services.Chat().ProcessMessage(ctx, agent.InboundMessage{
		SessionID: input.Body.SessionID,
		Content:   input.Body.Message,
	})
	if err != nil {
		if ccerr.HasCode(err, ccerr.CodeAgentLoopInvalidInput) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("processing chat turn", err)
	}

	out := &chatOutput{}
	out.Body.SessionID = reply.SessionID
	out.Body.Reply = reply.Reply
	return out, nil
}

func (s *Server) handleResetSession(ctx context.Context, input *resetSessionInput) (*resetSessionOutput, error) {
	if s.services == nil {
		return nil, huma.Error503ServiceUnavailable("session service not configured")
	}

	if err := s.services.Sessions().Reset(ctx, input.Body.SessionID); err != nil {
		return nil, huma.Error500InternalServerError("resetting session", err)
	}
	out := &resetSessionOutput{}
	out.Body.OK = true
	out.Body.SessionID = input.Body.SessionID
	return out, nil
}
