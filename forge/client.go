/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package forge

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v75/github"
	"github.com/loamworks/conveyor/creds"
	"github.com/loamworks/conveyor/tracker"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

const defaultSecretName = "forge-token"

// Descriptor describes the pull request a work item wants open.
type Descriptor struct {
	Title string
	Body  string
	// Base is the branch the pull request targets.
	Base string
	// Head is the branch carrying the changes; it keys idempotency.
	Head string
	// Ticket is the originating ticket identifier.
	Ticket tracker.ID
}

// Handle is the immutable identity of a pull request once it exists
// remotely.
type Handle struct {
	Number int
	URL    string
}

// Option configures a Client.
type Option func(*options)

type options struct {
	secretName string
	httpClient *http.Client
	restURL    string
	graphqlURL string
}

// WithSecretName overrides the symbolic name of the forge credential.
func WithSecretName(name string) Option {
	return func(o *options) {
		o.secretName = name
	}
}

// WithHTTPClient overrides the HTTP client. The client is still wrapped with
// the OAuth2 transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithEndpoints points the client at non-default API endpoints. Used for
// self-hosted forges and tests.
func WithEndpoints(restURL, graphqlURL string) Option {
	return func(o *options) {
		o.restURL = restURL
		o.graphqlURL = graphqlURL
	}
}

// Client operates on a single owner/repo pair.
type Client struct {
	owner string
	repo  string
	gh    *github.Client
	gql   *githubv4.Client
}

// New constructs a Client authenticating with a token resolved from src.
func New(ctx context.Context, owner, repo string, src creds.Source, opts ...Option) (*Client, error) {
	if owner == "" || repo == "" {
		return nil, errors.New("owner and repo cannot be empty")
	}
	if src == nil {
		return nil, errors.New("credential source cannot be nil")
	}

	o := options{secretName: defaultSecretName}
	for _, opt := range opts {
		opt(&o)
	}

	ts := creds.TokenSource(ctx, src, o.secretName)
	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}
	hc := oauth2.NewClient(ctx, ts)

	gh := github.NewClient(hc)
	var gql *githubv4.Client
	if o.restURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(o.restURL, o.restURL)
		if err != nil {
			return nil, fmt.Errorf("configuring REST endpoint: %w", err)
		}
		gql = githubv4.NewEnterpriseClient(o.graphqlURL, hc)
	} else {
		gql = githubv4.NewClient(hc)
	}

	return &Client{owner: owner, repo: repo, gh: gh, gql: gql}, nil
}

// EnsureBranch creates head at base's current tip. An already-existing head
// branch is not an error; its position is left alone so in-flight work is not
// clobbered.
func (c *Client) EnsureBranch(ctx context.Context, base, head string) error {
	baseRef, _, err := c.gh.Git.GetRef(ctx, c.owner, c.repo, "refs/heads/"+base)
	if err != nil {
		return fmt.Errorf("resolving base branch %q: %w", base, err)
	}

	_, _, err = c.gh.Git.CreateRef(ctx, c.owner, c.repo, github.CreateRef{
		Ref: "refs/heads/" + head,
		SHA: baseRef.Object.GetSHA(),
	})
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusUnprocessableEntity {
			// Reference already exists.
			return nil
		}
		return fmt.Errorf("creating branch %q: %w", head, err)
	}
	return nil
}

// PushFiles writes files (path -> content) and removals as one commit on the
// head branch, via the git data API.
func (c *Client) PushFiles(ctx context.Context, head, message string, files map[string]string, removals []string) error {
	if len(files) == 0 && len(removals) == 0 {
		return errors.New("nothing to push")
	}

	headRef, _, err := c.gh.Git.GetRef(ctx, c.owner, c.repo, "refs/heads/"+head)
	if err != nil {
		return fmt.Errorf("resolving branch %q: %w", head, err)
	}
	parent, _, err := c.gh.Git.GetCommit(ctx, c.owner, c.repo, headRef.Object.GetSHA())
	if err != nil {
		return fmt.Errorf("resolving parent commit: %w", err)
	}

	entries := make([]*github.TreeEntry, 0, len(files)+len(removals))
	for path, content := range files {
		entries = append(entries, &github.TreeEntry{
			Path:    github.Ptr(path),
			Mode:    github.Ptr("100644"),
			Type:    github.Ptr("blob"),
			Content: github.Ptr(content),
		})
	}
	for _, path := range removals {
		// Nil SHA and content marks the path deleted.
		entries = append(entries, &github.TreeEntry{
			Path: github.Ptr(path),
			Mode: github.Ptr("100644"),
		})
	}

	tree, _, err := c.gh.Git.CreateTree(ctx, c.owner, c.repo, parent.Tree.GetSHA(), entries)
	if err != nil {
		return fmt.Errorf("creating tree: %w", err)
	}

	commit, _, err := c.gh.Git.CreateCommit(ctx, c.owner, c.repo, github.Commit{
		Message: github.Ptr(message),
		Tree:    tree,
		Parents: []*github.Commit{{SHA: parent.SHA}},
	}, nil)
	if err != nil {
		return fmt.Errorf("creating commit: %w", err)
	}

	if _, _, err := c.gh.Git.UpdateRef(ctx, c.owner, c.repo, "refs/heads/"+head, github.UpdateRef{
		SHA: commit.GetSHA(),
	}); err != nil {
		return fmt.Errorf("advancing branch %q: %w", head, err)
	}
	return nil
}

// Comment posts a review comment on the pull request.
func (c *Client) Comment(ctx context.Context, h Handle, body string) error {
	if _, _, err := c.gh.Issues.CreateComment(ctx, c.owner, c.repo, h.Number, &github.IssueComment{
		Body: github.Ptr(body),
	}); err != nil {
		return fmt.Errorf("commenting on pull request #%d: %w", h.Number, err)
	}
	return nil
}
