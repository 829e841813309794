/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/loamworks/conveyor/creds"
)

const (
	defaultPageSize   = 50
	defaultSecretName = "tracker-token"

	// remote error bodies are truncated to keep log lines readable
	maxErrorBody = 512
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for tracker requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// WithSecretName overrides the symbolic name of the tracker credential.
func WithSecretName(name string) Option {
	return func(c *Client) {
		c.secretName = name
	}
}

// WithPageSize overrides the search page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		c.pageSize = n
	}
}

// Client is a typed facade over the remote ticket tracker.
type Client struct {
	base       *url.URL
	hc         *http.Client
	creds      creds.Source
	secretName string
	pageSize   int
}

// New constructs a Client for the tracker at baseURL, authenticating with a
// token resolved from src.
func New(baseURL string, src creds.Source, opts ...Option) (*Client, error) {
	if src == nil {
		return nil, errors.New("credential source cannot be nil")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing tracker URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("tracker URL %q must be absolute", baseURL)
	}

	c := &Client{
		base:       u,
		hc:         &http.Client{Timeout: 30 * time.Second},
		creds:      src,
		secretName: defaultSecretName,
		pageSize:   defaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch retrieves full ticket detail: description, comments, attachments and
// links.
func (c *Client) Fetch(ctx context.Context, id ID) (*Ticket, error) {
	var t Ticket
	if err := c.do(ctx, "fetch", http.MethodGet, "/api/tickets/"+id.String(), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Comment adds a comment to the ticket.
func (c *Client) Comment(ctx context.Context, id ID, body string) error {
	req := struct {
		Body string `json:"body"`
	}{Body: body}
	return c.do(ctx, "comment", http.MethodPost, "/api/tickets/"+id.String()+"/comments", req, nil)
}

// Link records a typed relationship from ticket a to ticket b.
func (c *Client) Link(ctx context.Context, a, b ID, typ LinkType) error {
	req := struct {
		Target string   `json:"target"`
		Type   LinkType `json:"type"`
	}{Target: b.String(), Type: typ}
	return c.do(ctx, "link", http.MethodPost, "/api/tickets/"+a.String()+"/links", req, nil)
}

// Transitions returns the statuses the project workflow currently allows the
// ticket to move to.
func (c *Client) Transitions(ctx context.Context, id ID) ([]Status, error) {
	var resp struct {
		Transitions []Status `json:"transitions"`
	}
	if err := c.do(ctx, "transitions", http.MethodGet, "/api/tickets/"+id.String()+"/transitions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Transitions, nil
}

// Transition moves the ticket to target. A workflow rule violation surfaces
// as ErrInvalidTransition and leaves the status untouched.
func (c *Client) Transition(ctx context.Context, id ID, target Status) error {
	req := struct {
		Target Status `json:"target"`
	}{Target: target}
	err := c.do(ctx, "transition", http.MethodPost, "/api/tickets/"+id.String()+"/transitions", req, nil)
	var re *RemoteError
	if errors.As(err, &re) && re.Code == http.StatusConflict {
		return fmt.Errorf("%s to %q: %w", id, target, ErrInvalidTransition)
	}
	return err
}

// do issues one authenticated request and decodes a 2xx JSON response into
// out (when non-nil). Credential resolution failures surface as *AuthError;
// non-2xx responses as *RemoteError. No retries happen here.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	token, err := c.creds.Secret(ctx, c.secretName)
	if err != nil {
		return &AuthError{Name: c.secretName, Err: err}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("tracker %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RemoteError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s response: %w", op, err)
		}
	} else {
		// Drain so the connection can be reused.
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			clog.FromContext(ctx).Warnf("Draining %s response: %v", op, err)
		}
	}
	return nil
}
