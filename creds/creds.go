/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package creds

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// ErrNotFound indicates that no secret with the requested name can be
// resolved by the source. Callers should treat this as an operator
// configuration problem, not a transient error.
var ErrNotFound = errors.New("secret not found")

// Source resolves a secret by its symbolic name.
type Source interface {
	// Secret returns the secret value for name, or an error wrapping
	// ErrNotFound when the name cannot be resolved.
	Secret(ctx context.Context, name string) (string, error)
}

// RunCache memoizes secret resolutions for the duration of a single
// orchestration run. Close drops all cached values; a closed cache refuses
// further lookups so a stale token can never leak into the next run.
type RunCache struct {
	src Source

	mu     sync.Mutex
	cache  map[string]string
	closed bool
}

// NewRunCache wraps src with run-scoped memoization.
func NewRunCache(src Source) *RunCache {
	return &RunCache{
		src:   src,
		cache: make(map[string]string),
	}
}

// Secret resolves name through the underlying source, consulting the cache
// first. Each name is resolved at most once per run.
func (r *RunCache) Secret(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", errors.New("credential cache is closed")
	}
	if v, ok := r.cache[name]; ok {
		return v, nil
	}

	v, err := r.src.Secret(ctx, name)
	if err != nil {
		return "", err
	}
	r.cache[name] = v
	return v, nil
}

// Close drops every cached secret and marks the cache unusable.
func (r *RunCache) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.cache)
	r.closed = true
}

// TokenSource adapts a Source to an oauth2.TokenSource for clients (go-git,
// go-github transports) that speak OAuth2. The secret is re-resolved on every
// Token call; wrap the source in a RunCache to bound lookups to one per run.
func TokenSource(ctx context.Context, src Source, name string) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, src: src, name: name}
}

type tokenSource struct {
	ctx  context.Context
	src  Source
	name string
}

func (t *tokenSource) Token() (*oauth2.Token, error) {
	v, err := t.src.Secret(t.ctx, t.name)
	if err != nil {
		return nil, fmt.Errorf("resolving token %q: %w", t.name, err)
	}
	return &oauth2.Token{AccessToken: v}, nil
}
