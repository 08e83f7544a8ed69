package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/sauravvenkat/forkline/pkg/record"
	"github.com/sauravvenkat/forkline/pkg/store"
)

// runInitCmd creates (or migrates) a local run store at --db PATH. It is
// thin plumbing around the external-collaborator store, not part of the
// core contract.
//
// --policy PATH optionally validates a JSON or YAML redaction policy
// bundle up front, so a malformed bundle is caught at store-creation
// time rather than silently falling back to SAFE the first time a
// caller tries to record through it.
func runInitCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("init", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var dbPath, policyPath string
	cmd.StringVar(&dbPath, "db", "forkline.db", "Path to the local run store to create")
	cmd.StringVar(&policyPath, "policy", "", "Optional JSON or YAML redaction policy bundle to validate")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	s, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer s.Close()

	if policyPath != "" {
		policy, err := record.LoadPolicyFile(policyPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		fmt.Fprintf(stdout, "Validated redaction policy %q (version %s)\n", policy.Name, policy.Version)
	}

	fmt.Fprintf(stdout, "Initialized run store at %s\n", dbPath)
	return 0
}
