/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package creds resolves secrets for the ticket tracker and source-control
// host by symbolic name from an external secure store.
//
// A missing secret is an expected, first-class failure (ErrNotFound), never a
// crash. Resolutions are cached at most for the duration of a single
// orchestration run via RunCache, which must be closed when the run ends so
// stale tokens are never reused across work items.
package creds
