/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package tracker is a thin typed facade over the external ticket-tracking
// API, reached over authenticated HTTPS.
//
// Tickets are identified by PROJECTKEY-NUMBER strings and owned by the remote
// tracker; this package only reads them and applies workflow transitions. No
// operation retries automatically; retry policy belongs to the caller.
//
// Ticket bodies use the tracker's own lightweight markup dialect, which is
// distinct from the documentation store's markdown; this package treats body
// text as opaque.
package tracker
