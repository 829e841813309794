/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs the ticket delivery workflow: it selects eligible
// tickets one at a time and drives each through planning, implementation,
// testing, review packaging, pull request, documentation sync, and ticket
// update, until no eligible ticket remains.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/sethvargo/go-envconfig"

	"github.com/loamworks/conveyor/agent"
	"github.com/loamworks/conveyor/agent/claude"
	"github.com/loamworks/conveyor/agent/execrunner"
	"github.com/loamworks/conveyor/agent/gemini"
	"github.com/loamworks/conveyor/creds"
	"github.com/loamworks/conveyor/docstore"
	"github.com/loamworks/conveyor/forge"
	"github.com/loamworks/conveyor/orchestrator"
	"github.com/loamworks/conveyor/tracker"
)

type config struct {
	TrackerURL     string `env:"TRACKER_URL,required"`
	TrackerProject string `env:"TRACKER_PROJECT,required"`

	ForgeOwner string `env:"FORGE_OWNER,required"`
	ForgeRepo  string `env:"FORGE_REPO,required"`
	BaseBranch string `env:"BASE_BRANCH,default=main"`

	DocsDir  string `env:"DOCS_DIR,required"`
	Identity string `env:"IDENTITY,default=conveyor"`

	Model string `env:"MODEL,default=claude-sonnet-4-5"`

	RepairBudget int           `env:"REPAIR_BUDGET,default=3"`
	WorkDir      string        `env:"WORK_DIR,required"`
	TestCommand  string        `env:"TEST_COMMAND,default=go test ./..."`
	TestTimeout  time.Duration `env:"TEST_TIMEOUT,default=10m"`

	// SecretsDir holds one file per secret; the environment (CONVEYOR_*
	// variables) is consulted as a fallback.
	SecretsDir string `env:"SECRETS_DIR"`

	// DryRun prints the ordered candidate table and exits without
	// mutating the tracker, the forge, or the documentation.
	DryRun bool `env:"DRY_RUN,default=false"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	// Secrets resolve from mounted files first, environment second, and
	// are memoized for the lifetime of this run.
	var sources creds.Chain
	if cfg.SecretsDir != "" {
		sources = append(sources, creds.DirSource{Dir: cfg.SecretsDir})
	}
	sources = append(sources, creds.EnvSource{Prefix: "CONVEYOR_"})
	secrets := creds.NewRunCache(sources)
	defer secrets.Close()

	tickets, err := tracker.New(cfg.TrackerURL, secrets)
	if err != nil {
		clog.FatalContextf(ctx, "creating tracker client: %v", err)
	}

	if cfg.DryRun {
		if err := printCandidates(ctx, tickets, cfg.TrackerProject); err != nil {
			clog.FatalContextf(ctx, "listing candidates: %v", err)
		}
		return
	}

	fg, err := forge.New(ctx, cfg.ForgeOwner, cfg.ForgeRepo, secrets)
	if err != nil {
		clog.FatalContextf(ctx, "creating forge client: %v", err)
	}

	docs, err := docstore.Open(cfg.DocsDir, docstore.WithIdentity(cfg.Identity))
	if err != nil {
		clog.FatalContextf(ctx, "opening documentation store: %v", err)
	}

	planner, proposer, err := newModelAgent(ctx, secrets, cfg.Model)
	if err != nil {
		clog.FatalContextf(ctx, "creating model agent: %v", err)
	}

	runner, err := execrunner.New(cfg.WorkDir, strings.Fields(cfg.TestCommand),
		execrunner.WithTimeout(cfg.TestTimeout))
	if err != nil {
		clog.FatalContextf(ctx, "creating test runner: %v", err)
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Project:      cfg.TrackerProject,
		BaseBranch:   cfg.BaseBranch,
		RepairBudget: cfg.RepairBudget,
		TestCommand:  cfg.TestCommand,
	}, tickets, fg, docs, planner, proposer, runner)
	if err != nil {
		clog.FatalContextf(ctx, "creating orchestrator: %v", err)
	}

	// One work item at a time until the project runs dry.
	for {
		item, err := orch.Run(ctx)
		switch {
		case errors.Is(err, orchestrator.ErrNoCandidateFound):
			clog.InfoContextf(ctx, "No eligible tickets remain, exiting")
			return
		case errors.Is(err, context.Canceled):
			clog.WarnContextf(ctx, "Interrupted, staged work was rolled back")
			return
		case err != nil:
			var stageErr *orchestrator.StageError
			if errors.As(err, &stageErr) {
				clog.ErrorContextf(ctx, "Work item for %s failed at %s: %v",
					stageErr.Ticket, stageErr.Stage, stageErr.Err)
				clog.InfoContextf(ctx, "Remediation: %s", stageErr.Remediation)
				// Move on to the next candidate. The orchestrator
				// excludes the failed ticket from selection for the
				// rest of this process.
				continue
			}
			clog.FatalContextf(ctx, "workflow error: %v", err)
		default:
			clog.InfoContextf(ctx, "Delivered %s: %s", item.Ticket, item.PR.URL)
		}
	}
}

// newModelAgent routes the model name to a provider. Models starting with
// "claude-" use the Anthropic SDK, "gemini-" the Google one.
func newModelAgent(ctx context.Context, src creds.Source, model string) (agent.Planner, agent.Proposer, error) {
	if !agent.SupportedModel(model) {
		return nil, nil, errors.New("unsupported model " + model + " (expected claude-* or gemini-*)")
	}
	if strings.HasPrefix(strings.ToLower(model), "gemini-") {
		a, err := gemini.New(ctx, src, model)
		if err != nil {
			return nil, nil, err
		}
		return a, a, nil
	}
	a, err := claude.New(ctx, src, model)
	if err != nil {
		return nil, nil, err
	}
	return a, a, nil
}

// printCandidates renders the ordered candidate table for dry runs.
func printCandidates(ctx context.Context, tickets *tracker.Client, project string) error {
	candidates, err := orchestrator.Candidates(ctx, tickets, project)
	if err != nil {
		return err
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithHeader([]string{"Ticket", "Priority", "Updated", "Summary"}),
	)
	for _, c := range candidates {
		if err := table.Append(c.ID.String(), c.Priority.String(),
			c.Updated.Format(time.DateOnly), c.Summary); err != nil {
			return err
		}
	}
	return table.Render()
}
