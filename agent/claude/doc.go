/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package claude implements the planning and proposing capabilities on the
// Anthropic API. Each call runs a bounded tool conversation: the model is
// given a single submit tool whose input schema is reflected from the
// expected response type, and the call completes when the model invokes it.
// A plain JSON text response is accepted as a fallback.
package claude
