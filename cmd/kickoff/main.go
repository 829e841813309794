/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package main starts an interactive assistant session primed with the
// delivery workflow instructions. It takes no flags: it prints a banner,
// hands the instruction string to the assistant CLI as initial context,
// and exits with whatever code the assistant exits with.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

const assistantBinary = "claude"

const instructions = `You are working a ticket through the Conveyor delivery workflow.

Pick the highest-priority open ticket without unresolved blocking links,
read the documentation store entries for its components, and produce an
ordered plan of file-level changes. Apply the plan, run the test suite,
and repair failures for at most three iterations. When tests pass, open a
pull request whose body contains Summary, Changes, Review Focus Areas,
Critical Files, Testing Instructions, Review Checklist, and Potential
Concerns sections, update the changelog and component documents, then
comment the pull request link on the ticket and move it to PatchAvailable.`

const banner = `
  ___ ___  _ _ __ _____ _  _ ___  _ _
 / __/ _ \| ' \ V / -_) || / _ \| '_|
 \__\___/|_||_\_/\___|\_, \___/|_|
                      |__/
`

func main() {
	fmt.Print(banner)
	fmt.Println("Starting an interactive delivery session.")
	fmt.Println()

	path, err := exec.LookPath(assistantBinary)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kickoff: %q not found on PATH, install the assistant CLI first\n", assistantBinary)
		os.Exit(1)
	}

	cmd := exec.Command(path, instructions)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "kickoff: running %s: %v\n", assistantBinary, err)
		os.Exit(1)
	}
}
