// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package provider

import (
	"context"
	"slices"
	"strings"
	"sync"

	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

// Registry manages provider registration, lookup, and routing with an
// ordered failover chain. Model references use "provider/model" format.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider

	defaultRef string
	failover   []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider under its routing name.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, ccerr.New(
			ccerr.CodeProviderNotFound,
			"provider not found: "+name,
			ccerr.FieldProvider(name),
		)
	}
	return p, nil
}

// SetDefault sets the default "provider/model" reference. Returns an error
// if the provider portion of the ref is not registered.
func (r *Registry) SetDefault(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provName, _ := parseRef(ref)
	if _, ok := r.providers[provName]; !ok {
		return ccerr.New(
			ccerr.CodeProviderNotFound,
			"SetDefault: provider not registered: "+provName,
			ccerr.FieldProvider(provName),
		)
	}
	r.defaultRef = ref
	return nil
}

// DefaultRef returns the configured default "provider/model" reference.
func (r *Registry) DefaultRef() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultRef
}

// SetFailover sets the ordered failover chain of "provider/model" refs.
// Returns an error if any provider portion of the refs is not registered.
func (r *Registry) SetFailover(chain []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range chain {
		provName, _ := parseRef(ref)
		if _, ok := r.providers[provName]; !ok {
			return ccerr.New(
				ccerr.CodeProviderNotFound,
				"SetFailover: provider not registered: "+provName,
				ccerr.FieldProvider(provName),
			)
		}
	}
	r.failover = append([]string(nil), chain...)
	return nil
}

// MaxAttempts returns 1 (primary) + len(failover chain) so the agent loop
// caps its retry count to the number of configured provider candidates.
func (r *Registry) MaxAttempts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return 1 + len(r.failover)
}

// Route selects a provider and model for the given model name. When
// modelName is empty or "default", the configured default is used. The
// exclude list holds provider names already tried in the current failover
// sequence; they are skipped so failover always progresses.
func (r *Registry) Route(ctx context.Context, modelName string, exclude []string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, err := r.resolveRef(modelName)
	if err != nil {
		return nil, "", err
	}
	if ref == "" {
		return nil, "", ccerr.New(
			ccerr.CodeProviderNoDefault,
			"no default provider configured",
		)
	}

	provName, _ := parseRef(ref)
	if !slices.Contains(exclude, provName) {
		p, model, err := r.tryRef(ctx, ref)
		if err == nil {
			return p, model, nil
		}
	}

	for _, fallback := range r.failover {
		fbProv, _ := parseRef(fallback)
		if slices.Contains(exclude, fbProv) {
			continue
		}
		p, model, err := r.tryRef(ctx, fallback)
		if err == nil {
			return p, model, nil
		}
	}

	return nil, "", ccerr.New(
		ccerr.CodeProviderAllUnavailable,
		"all providers unavailable: no healthy provider found",
	)
}

// Close shuts down all registered providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return ccerr.Join(errs...)
	}
	return nil
}

// resolveRef determines which "provider/model" ref to use. Caller must hold
// r.mu (at least RLock). Explicit model names must be fully qualified.
func (r *Registry) resolveRef(modelName string) (string, error) {
	if modelName != "" && modelName != "default" {
		if !strings.Contains(modelName, "/") {
			return "", ccerr.Errorf(
				ccerr.CodeProviderInvalidModelRef,
				"model name %q must use provider/model format", modelName,
			)
		}
		return modelName, nil
	}
	return r.defaultRef, nil
}

// tryRef parses a "provider/model" ref, looks up the provider, and checks
// availability. Caller must hold r.mu (at least RLock).
func (r *Registry) tryRef(ctx context.Context, ref string) (Provider, string, error) {
	providerName, model := parseRef(ref)

	p, ok := r.providers[providerName]
	if !ok {
		return nil, "", ccerr.New(
			ccerr.CodeProviderNotFound,
			"provider not found: "+providerName,
			ccerr.FieldProvider(providerName),
		)
	}

	if !p.Available(ctx) {
		return nil, "", ccerr.New(
			ccerr.CodeProviderUpstreamFailure,
			"provider unavailable: "+providerName,
			ccerr.FieldProvider(providerName),
		)
	}

	return p, model, nil
}

// parseRef splits a "provider/model" reference on the first "/".
func parseRef(ref string) (providerName, model string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}
