package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/sauravvenkat/forkline/pkg/store"
)

// runListCmd prints a one-line summary of every run in the store, so a
// caller can find the run ids to hand to diff or show.
func runListCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("list", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var dbPath string
	cmd.StringVar(&dbPath, "db", "forkline.db", "Path to the local run store")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	s, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer s.Close()

	summaries, err := s.ListRuns(context.Background())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if len(summaries) == 0 {
		fmt.Fprintln(stdout, "No runs recorded.")
		return 0
	}
	for _, sum := range summaries {
		fmt.Fprintf(stdout, "%s  schema=%s status=%s steps=%d\n", sum.RunID, sum.SchemaVersion, sum.Status, sum.StepCount)
	}
	return 0
}
