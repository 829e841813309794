/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package forge is a thin typed facade over the source-control hosting API:
// branches, pull requests and review comments.
//
// Pull request creation is idempotent keyed by head branch name: opening the
// same head twice updates the existing pull request instead of duplicating
// it. The lookup uses a single GraphQL query; mutations go through the REST
// API.
package forge
