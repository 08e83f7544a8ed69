package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/sauravvenkat/forkline/pkg/runmodel"
	"github.com/sauravvenkat/forkline/pkg/store"
)

// runShowCmd prints a single run's steps and derived fingerprints; thin
// plumbing for inspecting a store without a full diff.
func runShowCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("show", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var dbPath string
	cmd.StringVar(&dbPath, "db", "forkline.db", "Path to the local run store")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	rest := cmd.Args()
	if len(rest) != 1 {
		fmt.Fprintln(stderr, "Usage: forkline show <run_id> [--db PATH]")
		return 2
	}
	runID := rest[0]

	s, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer s.Close()

	run, err := s.LoadRun(context.Background(), runID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	fmt.Fprintf(stdout, "run_id: %s\n", run.RunID)
	fmt.Fprintf(stdout, "schema_version: %s\n", run.SchemaVersion)
	fmt.Fprintf(stdout, "entrypoint: %s\n", run.Entrypoint)
	fmt.Fprintf(stdout, "status: %s\n", run.Status)
	for _, step := range run.Steps {
		printStep(stdout, step)
	}
	return 0
}

func printStep(w io.Writer, s runmodel.Step) {
	fp, err := runmodel.ComputeFingerprint(s)
	if err != nil {
		fmt.Fprintf(w, "[%d] %s: <fingerprint error: %v>\n", s.Idx, s.Name, err)
		return
	}
	fmt.Fprintf(w, "[%d] %s events=%d input_hash=%s output_hash=%s has_error=%t\n",
		s.Idx, s.Name, len(s.Events), fp.InputHash, fp.OutputHash, fp.HasError)
}
