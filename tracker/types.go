/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package tracker

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Status is a ticket workflow status.
type Status string

const (
	StatusOpen           Status = "Open"
	StatusInProgress     Status = "In Progress"
	StatusPatchAvailable Status = "Patch Available"
	StatusResolved       Status = "Resolved"
	StatusClosed         Status = "Closed"
)

// Terminal reports whether the status ends a ticket's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// Priority orders tickets for selection; higher is more urgent.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityMedium   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

// String returns the tracker's display name for the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	case PriorityCritical:
		return "Critical"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// LinkType is the relationship a link asserts between two tickets.
type LinkType string

const (
	LinkBlocks      LinkType = "Blocks"
	LinkIsBlockedBy LinkType = "IsBlockedBy"
	LinkRelates     LinkType = "Relates"
	LinkDuplicates  LinkType = "Duplicates"
)

var idPattern = regexp.MustCompile(`^([A-Z][A-Z0-9]+)-([1-9][0-9]*)$`)

// ID identifies a ticket as PROJECTKEY-NUMBER.
type ID struct {
	Project string
	Number  int
}

// ParseID parses a PROJECTKEY-NUMBER identifier.
func ParseID(s string) (ID, error) {
	m := idPattern.FindStringSubmatch(s)
	if m == nil {
		return ID{}, fmt.Errorf("invalid ticket identifier %q", s)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return ID{}, fmt.Errorf("invalid ticket number in %q: %w", s, err)
	}
	return ID{Project: m[1], Number: n}, nil
}

// String returns the PROJECTKEY-NUMBER form.
func (id ID) String() string {
	return fmt.Sprintf("%s-%d", id.Project, id.Number)
}

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool {
	return id.Project == "" && id.Number == 0
}

// Comment is a single ticket comment.
type Comment struct {
	Author  string    `json:"author"`
	Created time.Time `json:"created"`
	Body    string    `json:"body"`
}

// Attachment is a file attached to a ticket; the content stays remote.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Link is a typed relationship to another ticket. TargetStatus is the linked
// ticket's status as reported by the tracker alongside the link, so blocking
// checks don't need a second fetch.
type Link struct {
	Type         LinkType `json:"type"`
	Target       ID       `json:"target"`
	TargetStatus Status   `json:"target_status"`
}

// Ticket is the tracker's unit of work. Tickets are created and owned
// externally; this system mutates them only through workflow transitions and
// comments, and never deletes them.
type Ticket struct {
	ID          ID           `json:"id"`
	Summary     string       `json:"summary"`
	Description string       `json:"description"`
	Status      Status       `json:"status"`
	Priority    Priority     `json:"priority"`
	Components  []string     `json:"components,omitempty"`
	Labels      []string     `json:"labels,omitempty"`
	Comments    []Comment    `json:"comments,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Links       []Link       `json:"links,omitempty"`
	Updated     time.Time    `json:"updated"`
}

// Blocked reports whether the ticket has an IsBlockedBy link whose target is
// not yet resolved or closed.
func (t *Ticket) Blocked() bool {
	for _, l := range t.Links {
		if l.Type == LinkIsBlockedBy && !l.TargetStatus.Terminal() {
			return true
		}
	}
	return false
}

// Query filters tickets for Search.
type Query struct {
	Project  string   `json:"project"`
	Statuses []Status `json:"statuses,omitempty"`
	Assignee string   `json:"assignee,omitempty"`
}
