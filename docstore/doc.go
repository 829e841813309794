/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package docstore is a versioned tree of structured documents (the knowledge
// graph) mirroring a codebase's architecture.
//
// Documents are markdown files with a YAML front-matter header, grouped into
// category directories (architecture, components, data, apis, dependencies,
// configuration, changelog) and cross-referenced with relative links. Every
// cross-reference must resolve to an existing document.
//
// Writes are staged in memory and committed as a single batch. The batch is
// persisted only if link validation on the resulting tree passes, so a broken
// cross-reference can never reach disk. Commits are serialized behind a
// single-writer lock; reads may be concurrent.
package docstore
