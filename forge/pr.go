/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package forge

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"github.com/shurcooL/githubv4"
)

// EnsureOpenPullRequest opens a pull request for d, or updates the existing
// open one with the same head branch. Calling it twice with the same head
// yields exactly one remote pull request.
func (c *Client) EnsureOpenPullRequest(ctx context.Context, d Descriptor) (Handle, error) {
	log := clog.FromContext(ctx)

	if d.Head == "" || d.Base == "" {
		return Handle{}, errors.New("descriptor head and base cannot be empty")
	}

	existing, err := c.findOpen(ctx, d.Head, d.Base)
	if err != nil {
		return Handle{}, err
	}

	if existing != nil {
		log.With("pr", existing.Number).Infof("Updating existing pull request for head %s", d.Head)
		if _, _, err := c.gh.PullRequests.Edit(ctx, c.owner, c.repo, existing.Number, &github.PullRequest{
			Title: github.Ptr(d.Title),
			Body:  github.Ptr(d.Body),
		}); err != nil {
			return Handle{}, fmt.Errorf("updating pull request #%d: %w", existing.Number, err)
		}
		return *existing, nil
	}

	log.Infof("Creating pull request with head %s and base %s", d.Head, d.Base)
	pr, _, err := c.gh.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title: github.Ptr(d.Title),
		Body:  github.Ptr(d.Body),
		Head:  github.Ptr(d.Head),
		Base:  github.Ptr(d.Base),
	})
	if err != nil {
		return Handle{}, fmt.Errorf("creating pull request: %w", err)
	}
	return Handle{Number: pr.GetNumber(), URL: pr.GetHTMLURL()}, nil
}

// UpdatePullRequest rewrites the title and body of an existing pull request.
func (c *Client) UpdatePullRequest(ctx context.Context, h Handle, d Descriptor) error {
	if _, _, err := c.gh.PullRequests.Edit(ctx, c.owner, c.repo, h.Number, &github.PullRequest{
		Title: github.Ptr(d.Title),
		Body:  github.Ptr(d.Body),
	}); err != nil {
		return fmt.Errorf("updating pull request #%d: %w", h.Number, err)
	}
	return nil
}

// findOpen locates the open pull request with the given head branch, if any,
// in a single GraphQL query.
func (c *Client) findOpen(ctx context.Context, head, base string) (*Handle, error) {
	var query struct {
		Repository struct {
			PullRequests struct {
				Nodes []struct {
					Number int
					Url    string
				}
			} `graphql:"pullRequests(headRefName: $headRef, baseRefName: $baseRef, states: [OPEN], first: 1)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}

	variables := map[string]any{
		"owner":   githubv4.String(c.owner),
		"repo":    githubv4.String(c.repo),
		"headRef": githubv4.String(head),
		"baseRef": githubv4.String(base),
	}

	if err := c.gql.Query(ctx, &query, variables); err != nil {
		return nil, fmt.Errorf("querying pull request for head %q: %w", head, err)
	}

	nodes := query.Repository.PullRequests.Nodes
	if len(nodes) == 0 {
		return nil, nil
	}
	return &Handle{Number: nodes[0].Number, URL: nodes[0].Url}, nil
}
