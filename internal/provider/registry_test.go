// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

type fakeProvider struct {
	name      string
	available bool
	closed    bool
}

func (f *fakeProvider) Name() string                       { return f.name }
func (f *fakeProvider) Available(context.Context) bool     { return f.available }
func (f *fakeProvider) Close() error                       { f.closed = true; return nil }
func (f *fakeProvider) ListModels(context.Context) ([]ModelInfo, error) {
	return nil, nil
}
func (f *fakeProvider) Chat(context.Context, ChatRequest) (<-chan ChatEvent, error) {
	ch := make(chan ChatEvent)
	close(ch)
	return ch, nil
}
func (f *fakeProvider) Status(ctx context.Context) (ProviderStatus, error) {
	return ProviderStatus{Available: f.available, Provider: f.name}, nil
}

func TestRouteDefault(t *testing.T) {
	r := NewRegistry()
	r.Register("openai", &fakeProvider{name: "openai", available: true})
	require.NoError(t, r.SetDefault("openai/gpt-4.1-mini"))

	p, model, err := r.Route(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "gpt-4.1-mini", model)

	p, model, err = r.Route(context.Background(), "default", nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "gpt-4.1-mini", model)
}

func TestRouteExplicitRef(t *testing.T) {
	r := NewRegistry()
	r.Register("anthropic", &fakeProvider{name: "anthropic", available: true})

	p, model, err := r.Route(context.Background(), "anthropic/claude-haiku-4-5", nil)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
	assert.Equal(t, "claude-haiku-4-5", model)
}

func TestRouteRejectsUnqualifiedModel(t *testing.T) {
	r := NewRegistry()
	r.Register("openai", &fakeProvider{name: "openai", available: true})

	_, _, err := r.Route(context.Background(), "gpt-4.1-mini", nil)
	require.Error(t, err)
	assert.Equal(t, ccerr.CodeProviderInvalidModelRef, ccerr.CodeOf(err))
}

func TestRouteNoDefault(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Route(context.Background(), "", nil)
	require.Error(t, err)
	assert.Equal(t, ccerr.CodeProviderNoDefault, ccerr.CodeOf(err))
}

func TestSetDefaultUnregistered(t *testing.T) {
	r := NewRegistry()
	err := r.SetDefault("openai/gpt-4.1-mini")
	require.Error(t, err)
	assert.Equal(t, ccerr.CodeProviderNotFound, ccerr.CodeOf(err))
}

func TestRouteFailover(t *testing.T) {
	r := NewRegistry()
	r.Register("openai", &fakeProvider{name: "openai", available: false})
	r.Register("anthropic", &fakeProvider{name: "anthropic", available: true})
	require.NoError(t, r.SetDefault("openai/gpt-4.1-mini"))
	require.NoError(t, r.SetFailover([]string{"anthropic/claude-haiku-4-5"}))

	p, model, err := r.Route(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
	assert.Equal(t, "claude-haiku-4-5", model)
	assert.Equal(t, 2, r.MaxAttempts())
}

func TestRouteExcludeSkipsTriedProviders(t *testing.T) {
	r := NewRegistry()
	r.Register("openai", &fakeProvider{name: "openai", available: true})
	r.Register("anthropic", &fakeProvider{name: "anthropic", available: true})
	require.NoError(t, r.SetDefault("openai/gpt-4.1-mini"))
	require.NoError(t, r.SetFailover([]string{"anthropic/claude-haiku-4-5"}))

	p, _, err := r.Route(context.Background(), "", []string{"openai"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	_, _, err = r.Route(context.Background(), "", []string{"openai", "anthropic"})
	require.Error(t, err)
	assert.Equal(t, ccerr.CodeProviderAllUnavailable, ccerr.CodeOf(err))
}

func TestRouteAllUnavailable(t *testing.T) {
	r := NewRegistry()
	r.Register("openai", &fakeProvider{name: "openai", available: false})
	require.NoError(t, r.SetDefault("openai/gpt-4.1-mini"))

	_, _, err := r.Route(context.Background(), "", nil)
	require.Error(t, err)
	assert.Equal(t, ccerr.CodeProviderAllUnavailable, ccerr.CodeOf(err))
}

func TestCloseAllProviders(t *testing.T) {
	r := NewRegistry()
	a := &fakeProvider{name: "a", available: true}
	b := &fakeProvider{name: "b", available: true}
	r.Register("a", a)
	r.Register("b", b)

	require.NoError(t, r.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
