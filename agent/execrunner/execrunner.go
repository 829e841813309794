/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package execrunner implements the test-running capability by executing a
// configured command in a working tree with the changeset applied. Every run
// is bounded by a wall clock timeout; a run that hits it is a failed run,
// not a stuck one.
package execrunner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/loamworks/conveyor/agent"
)

// DefaultTimeout bounds a test run when the caller does not.
const DefaultTimeout = 10 * time.Minute

// Runner implements agent.Runner.
type Runner struct {
	dir     string
	command []string
	timeout time.Duration
}

// Option configures the runner.
type Option func(*Runner)

// WithTimeout overrides the wall clock timeout per run.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// New builds a runner that applies changesets under dir and runs command
// there. The command is run as given, not through a shell.
func New(dir string, command []string, opts ...Option) (*Runner, error) {
	if dir == "" {
		return nil, errors.New("runner needs a working directory")
	}
	if len(command) == 0 {
		return nil, errors.New("runner needs a test command")
	}
	r := &Runner{dir: dir, command: command, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	if r.timeout <= 0 {
		return nil, errors.New("timeout must be positive")
	}
	return r, nil
}

// Run applies the changeset to the working tree and executes the test
// command against it.
func (r *Runner) Run(ctx context.Context, cs agent.ChangeSet) (agent.TestResult, error) {
	log := clog.FromContext(ctx)

	if err := r.apply(cs); err != nil {
		return agent.TestResult{}, fmt.Errorf("applying changeset: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	log.With("command", strings.Join(r.command, " ")).
		With("dir", r.dir).
		With("timeout", r.timeout).
		Info("Running tests")

	start := time.Now()
	cmd := exec.CommandContext(ctx, r.command[0], r.command[1:]...)
	cmd.Dir = r.dir
	out, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	result := agent.TestResult{
		Output:   string(out),
		Duration: elapsed,
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.Findings = []agent.Finding{{
			Test:    "(timeout)",
			Message: fmt.Sprintf("test run exceeded %v wall clock limit", r.timeout),
		}}
		log.With("elapsed", elapsed).Warn("Test run timed out")
		return result, nil
	case err == nil:
		result.Passed = true
		return result, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		// The command never ran: missing binary, bad dir.
		return agent.TestResult{}, fmt.Errorf("running %q: %w", r.command[0], err)
	}

	result.Findings = ParseFindings(string(out))
	if len(result.Findings) == 0 {
		result.Findings = []agent.Finding{{
			Test:    "(suite)",
			Message: fmt.Sprintf("test command exited %d", exitErr.ExitCode()),
		}}
	}
	log.With("findings", len(result.Findings)).Info("Test run failed")
	return result, nil
}

// apply writes the changeset's edits into the working tree.
func (r *Runner) apply(cs agent.ChangeSet) error {
	for _, e := range cs.Edits {
		target, err := securePath(r.dir, e.Path)
		if err != nil {
			return err
		}
		if e.Delete {
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing %s: %w", e.Path, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", e.Path, err)
		}
		if err := os.WriteFile(target, []byte(e.Content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", e.Path, err)
		}
	}
	return nil
}

// securePath rejects edit paths that escape the working tree.
func securePath(dir, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("edit path %q is absolute", rel)
	}
	target := filepath.Join(dir, rel)
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(filepath.Separator)) {
		return "", fmt.Errorf("edit path %q escapes the working tree", rel)
	}
	return target, nil
}

// ParseFindings distills `go test` style output into findings: one per
// "--- FAIL:" line, carrying the indented detail lines that follow it.
func ParseFindings(output string) []agent.Finding {
	var findings []agent.Finding
	lines := strings.Split(output, "\n")
	for i := 0; i < len(lines); i++ {
		name, ok := failedTest(lines[i])
		if !ok {
			continue
		}
		var detail []string
		for j := i + 1; j < len(lines); j++ {
			if !strings.HasPrefix(lines[j], " ") && !strings.HasPrefix(lines[j], "\t") {
				break
			}
			detail = append(detail, strings.TrimSpace(lines[j]))
		}
		findings = append(findings, agent.Finding{
			Test:    name,
			Message: strings.Join(detail, "\n"),
		})
	}
	return findings
}

func failedTest(line string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimLeft(line, " \t"), "--- FAIL: ")
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(rest, " ")
	return name, name != ""
}
