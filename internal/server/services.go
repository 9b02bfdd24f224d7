// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package server

import (
	"context"

	"github.com/learnit-dev/coursechat/internal/agent"
	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

// ChatService runs one conversation turn. Implemented by agent.Loop.
type ChatService interface {
	ProcessMessage(ctx context.Context, msg agent.InboundMessage) (*agent.OutboundMessage, error)
}

// SessionService resets conversation state. Implemented by agent.SessionManager.
type SessionService interface {
	Reset(ctx context.Context, sessionID string) error
}

// Services holds dependencies injected into route handlers.
// Use NewServices constructor to ensure all required services are provided.
type Services struct {
	chat     ChatService
	sessions SessionService
}

// NewServices creates a Services instance with validation.
func NewServices(chat ChatService, sessions SessionService) (*Services, error) {
	if chat == nil {
		return nil, ccerr.New(ccerr.CodeServerStartFailure, "chat service is required")
	}
	if sessions == nil {
		return nil, ccerr.New(ccerr.CodeServerStartFailure, "session service is required")
	}
	return &Services{chat: chat, sessions: sessions}, nil
}

// Chat returns the chat service.
func (s *Services) Chat() ChatService {
	return s.chat
}

// Sessions returns the session service.
func (s *Services) Sessions() SessionService {
	return s.sessions
}
