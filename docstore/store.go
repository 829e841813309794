/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound indicates the requested document does not exist in the tree.
var ErrNotFound = errors.New("document not found")

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIdentity sets the commit author identity. When the identity lacks a
// domain it is suffixed with @localhost.
func WithIdentity(identity string) StoreOption {
	return func(s *Store) {
		s.identity = identity
	}
}

// Store is a git-backed document tree rooted at a directory.
type Store struct {
	dir      string
	repo     *git.Repository
	identity string

	// mu serializes commit batches; reads take the shared side.
	mu     sync.RWMutex
	staged map[string]stagedWrite
}

type stagedWrite struct {
	content string
	remove  bool
}

// Open opens the document tree at dir, initializing a git repository and the
// category directories if none exist yet.
func Open(dir string, opts ...StoreOption) (*Store, error) {
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = initTree(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("opening document store at %s: %w", dir, err)
	}

	s := &Store{
		dir:      dir,
		repo:     repo,
		identity: "conveyor",
		staged:   make(map[string]stagedWrite),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func initTree(dir string) (*git.Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return nil, fmt.Errorf("initializing repository: %w", err)
	}
	for _, c := range Categories {
		if err := os.MkdirAll(filepath.Join(dir, c), 0o755); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

// Read returns the committed document at path.
func (s *Store) Read(path string) (*Document, error) {
	if err := ValidPath(path); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("document %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("reading document %s: %w", path, err)
	}

	d, err := Parse(path, string(data))
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// List returns the paths of all committed documents, sorted.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list()
}

func (s *Store) list() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == git.GitDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(p, ".md") {
			rel, err := filepath.Rel(s.dir, p)
			if err != nil {
				return err
			}
			paths = append(paths, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Stage records a pending write. Nothing touches disk until Commit.
func (s *Store) Stage(path, content string) error {
	if err := ValidPath(path); err != nil {
		return err
	}
	if _, err := Parse(path, content); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[path] = stagedWrite{content: content}
	return nil
}

// StageRemoval records a pending document deletion.
func (s *Store) StageRemoval(path string) error {
	if err := ValidPath(path); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[path] = stagedWrite{remove: true}
	return nil
}

// Pending returns the number of staged, uncommitted writes.
func (s *Store) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.staged)
}

// Rollback discards all staged writes. Used on cancellation and on any
// failure after staging began.
func (s *Store) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.staged)
}

// ValidateLinks checks every cross-reference in the staged view of the tree
// (committed documents plus staged writes, minus staged removals) and returns
// the broken ones.
func (s *Store) ValidateLinks(ctx context.Context) ([]BrokenLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validateLinks(ctx)
}

func (s *Store) validateLinks(ctx context.Context) ([]BrokenLink, error) {
	committed, err := s.list()
	if err != nil {
		return nil, err
	}

	// The staged view: what the tree will look like after Commit.
	exists := make(map[string]bool, len(committed)+len(s.staged))
	for _, p := range committed {
		exists[p] = true
	}
	for p, w := range s.staged {
		exists[p] = !w.remove
	}

	var (
		mu     sync.Mutex
		broken []BrokenLink
	)
	g, ctx := errgroup.WithContext(ctx)
	for p, present := range exists {
		if !present {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			links, err := s.linksOf(p)
			if err != nil {
				return err
			}
			for _, ref := range links {
				if !exists[ref] {
					mu.Lock()
					broken = append(broken, BrokenLink{From: p, Ref: ref})
					mu.Unlock()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(broken, func(i, j int) bool {
		if broken[i].From != broken[j].From {
			return broken[i].From < broken[j].From
		}
		return broken[i].Ref < broken[j].Ref
	})
	return broken, nil
}

// linksOf parses cross-references from the staged content when present,
// otherwise from disk.
func (s *Store) linksOf(path string) ([]string, error) {
	if w, ok := s.staged[path]; ok && !w.remove {
		d, err := Parse(path, w.content)
		if err != nil {
			return nil, err
		}
		return d.Links, nil
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", path, err)
	}
	d, err := Parse(path, string(data))
	if err != nil {
		return nil, err
	}
	return d.Links, nil
}

// Commit validates the staged tree and persists the batch as a single git
// commit. If validation reports any broken link, nothing is persisted and the
// writes stay staged. A batch with nothing staged is a no-op.
func (s *Store) Commit(ctx context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.staged) == 0 {
		return nil
	}

	broken, err := s.validateLinks(ctx)
	if err != nil {
		return fmt.Errorf("validating staged tree: %w", err)
	}
	if len(broken) > 0 {
		return &BrokenLinkError{Broken: broken}
	}

	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	if err := s.applyStaged(wt); err != nil {
		// Restore the committed tree; the batch stays staged.
		s.resetWorktree(ctx, wt)
		return err
	}

	email := s.identity
	if !strings.Contains(email, "@") {
		email = fmt.Sprintf("%s@localhost", email)
	}
	if _, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  s.identity,
			Email: email,
			When:  time.Now(),
		},
	}); err != nil {
		s.resetWorktree(ctx, wt)
		return fmt.Errorf("committing batch: %w", err)
	}

	clear(s.staged)
	return nil
}

func (s *Store) applyStaged(wt *git.Worktree) error {
	for p, w := range s.staged {
		fsPath := filepath.Join(s.dir, filepath.FromSlash(p))
		if w.remove {
			if err := os.Remove(fsPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing document %s: %w", p, err)
			}
			if _, err := wt.Remove(p); err != nil {
				return fmt.Errorf("unstaging document %s: %w", p, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(fsPath), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", p, err)
		}
		if err := os.WriteFile(fsPath, []byte(w.content), 0o644); err != nil {
			return fmt.Errorf("writing document %s: %w", p, err)
		}
		if _, err := wt.Add(p); err != nil {
			return fmt.Errorf("staging document %s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) resetWorktree(ctx context.Context, wt *git.Worktree) {
	log := clog.FromContext(ctx)
	if err := wt.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
		log.Warnf("Resetting worktree: %v", err)
	}
	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		log.Warnf("Cleaning worktree: %v", err)
	}
}
