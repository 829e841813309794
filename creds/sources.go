/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package creds

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvSource resolves secrets from environment variables. The symbolic name is
// upper-cased with dashes mapped to underscores, so "tracker-token" with
// prefix "CONVEYOR_" resolves from CONVEYOR_TRACKER_TOKEN.
type EnvSource struct {
	// Prefix is prepended to the mangled name. Empty means no prefix.
	Prefix string
}

// Secret implements Source.
func (e EnvSource) Secret(_ context.Context, name string) (string, error) {
	key := e.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("environment variable %s: %w", key, ErrNotFound)
	}
	return strings.TrimSpace(v), nil
}

// DirSource resolves secrets from files in a directory, one file per secret,
// the way mounted secret volumes are laid out. Trailing whitespace is
// trimmed so newline-terminated files work as expected.
type DirSource struct {
	// Dir is the directory holding one file per secret name.
	Dir string
}

// Secret implements Source.
func (d DirSource) Secret(_ context.Context, name string) (string, error) {
	if strings.Contains(name, string(os.PathSeparator)) || name == "" {
		return "", fmt.Errorf("invalid secret name %q: %w", name, ErrNotFound)
	}
	data, err := os.ReadFile(filepath.Join(d.Dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret file %q: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("reading secret %q: %w", name, err)
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", fmt.Errorf("secret file %q is empty: %w", name, ErrNotFound)
	}
	return v, nil
}

// Chain tries each source in order and returns the first successful
// resolution. Only ErrNotFound advances to the next source; any other error
// is surfaced immediately.
type Chain []Source

// Secret implements Source.
func (c Chain) Secret(ctx context.Context, name string) (string, error) {
	for _, src := range c {
		v, err := src.Secret(ctx, name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("secret %q: %w", name, ErrNotFound)
}
