// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSecretInvalidInput   Code = "secret.uri.invalid_input"
	CodeSecretResolveFailure Code = "secret.resolve.failure"
	CodeSecretNotFound       Code = "secret.store.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"

	CodeCatalogUpstreamFailure  Code = "catalog.upstream.failure"
	CodeCatalogResponseInvalid  Code = "catalog.response.invalid_format"
	CodeCatalogRequestInvalid   Code = "catalog.request.invalid_input"
	CodeCatalogCategoryNotFound Code = "catalog.category.not_found"

	CodeToolNotFound    Code = "tool.registry.not_found"
	CodeToolArgsInvalid Code = "tool.args.invalid_input"

	CodeProviderUpstreamFailure Code = "provider.upstream.failure"
	CodeProviderResponseInvalid Code = "provider.response.invalid_format"
	CodeProviderNotFound        Code = "provider.registry.not_found"
	CodeProviderNoDefault       Code = "provider.routing.no_default"
	CodeProviderInvalidModelRef Code = "provider.routing.invalid_model_ref"
	CodeProviderAllUnavailable  Code = "provider.routing.all_unavailable"

	CodeAgentLoopInvalidInput  Code = "agent.loop.invalid_input"
	CodeAgentLoopFailure       Code = "agent.loop.failure"
	CodeAgentReplyUngrounded   Code = "agent.reply.ungrounded"
	CodeAgentTurnSuperseded    Code = "agent.turn.superseded"
	CodeAgentRoundLimitReached Code = "agent.rounds.exceeded"

	CodeStoreSessionNotFound Code = "store.session.get.not_found"
	CodeStoreInvalidInput    Code = "store.invalid_input"
	CodeStoreDatabaseFailure Code = "store.database.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid_input"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerUnhealthy       Code = "server.health.unavailable"

	CodeCLISetupFailure      Code = "cli.setup.failure"
	CodeCLIGatewayNotRunning Code = "cli.gateway.not_running"
	CodeCLIResponseInvalid   Code = "cli.response.invalid_format"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldSessionID(value string) Attr {
	return Field("session_id", value)
}

func FieldTool(value string) Attr {
	return Field("tool", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

// IsToolError reports whether err is recoverable inside a turn by surfacing
// it to the model as a tool result instead of failing the request.
func IsToolError(err error) bool {
	switch CodeOf(err) {
	case CodeToolNotFound, CodeToolArgsInvalid,
		CodeCatalogUpstreamFailure, CodeCatalogResponseInvalid,
		CodeCatalogRequestInvalid, CodeCatalogCategoryNotFound:
		return true
	}
	return false
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	case HasCode(err, CodeServerUnhealthy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
