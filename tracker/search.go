/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package tracker

import (
	"context"
	"errors"
	"net/http"
)

// ErrDone is returned by TicketIterator.Next when the result set is
// exhausted.
var ErrDone = errors.New("no more tickets")

// TicketIterator walks a finite search result set one ticket at a time.
// Iterators are lazy, fetching pages on demand, and are not restartable
// across process runs.
type TicketIterator interface {
	// Next returns the next matching ticket, or ErrDone when the result
	// set is exhausted.
	Next(ctx context.Context) (*Ticket, error)
}

// Search returns a lazy iterator over tickets matching q. The first page is
// not fetched until Next is called.
func (c *Client) Search(q Query) TicketIterator {
	return &searchIterator{c: c, q: q}
}

type searchIterator struct {
	c *Client
	q Query

	page    []Ticket
	i       int
	startAt int
	total   int
	fetched bool
	err     error
}

type searchRequest struct {
	Query
	StartAt    int `json:"start_at"`
	MaxResults int `json:"max_results"`
}

type searchResponse struct {
	Tickets []Ticket `json:"tickets"`
	Total   int      `json:"total"`
}

// Next implements TicketIterator. A fetch error is sticky: once a page fails,
// the iterator keeps returning the same error.
func (it *searchIterator) Next(ctx context.Context) (*Ticket, error) {
	if it.err != nil {
		return nil, it.err
	}

	if it.i >= len(it.page) {
		if it.fetched && it.startAt >= it.total {
			return nil, ErrDone
		}
		if err := it.fetchPage(ctx); err != nil {
			it.err = err
			return nil, err
		}
		if len(it.page) == 0 {
			return nil, ErrDone
		}
	}

	t := it.page[it.i]
	it.i++
	return &t, nil
}

func (it *searchIterator) fetchPage(ctx context.Context) error {
	req := searchRequest{
		Query:      it.q,
		StartAt:    it.startAt,
		MaxResults: it.c.pageSize,
	}
	var resp searchResponse
	if err := it.c.do(ctx, "search", http.MethodPost, "/api/tickets/search", req, &resp); err != nil {
		return err
	}

	it.page = resp.Tickets
	it.i = 0
	it.startAt += len(resp.Tickets)
	it.total = resp.Total
	it.fetched = true
	return nil
}

// Collect drains an iterator into a slice. Useful for callers that need the
// whole filtered set, such as selection ordering.
func Collect(ctx context.Context, it TicketIterator) ([]Ticket, error) {
	var out []Ticket
	for {
		t, err := it.Next(ctx)
		if errors.Is(err, ErrDone) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
}
