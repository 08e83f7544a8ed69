package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/sauravvenkat/forkline/pkg/differ"
	"github.com/sauravvenkat/forkline/pkg/divergence"
	"github.com/sauravvenkat/forkline/pkg/store"
)

// runDiffCmd implements `forkline diff --first <run_a_id> <run_b_id>`.
//
// Exit codes:
//
//	0 = status is exact_match
//	1 = any other divergence status
//	2 = operational failure (run not found, corrupt store, bad flags)
func runDiffCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("diff", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var configPath string
	cmd.StringVar(&configPath, "config", "", "Optional YAML file of CLI defaults (window, show, format, db)")

	// The config path must be known before the other flags' defaults are
	// registered, so it is scanned out of args by hand here; cmd.Parse
	// below still re-parses --config normally alongside everything else.
	defaults, err := loadConfig(scanConfigFlag(args))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	var (
		first  bool
		window int
		format string
		show   string
		canon  string
		dbPath string
	)
	cmd.BoolVar(&first, "first", true, "Report only the first divergence (the only supported mode)")
	cmd.IntVar(&window, "window", defaults.Window, "Resync search window W")
	cmd.StringVar(&format, "format", defaults.Format, "Output format: json|text")
	cmd.StringVar(&show, "show", defaults.Show, "Diff fields to include: input|output|both")
	cmd.StringVar(&canon, "canon", "strict", "Canonicalization profile (only strict is supported)")
	cmd.StringVar(&dbPath, "db", defaults.DBPath, "Path to the local run store")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if canon != "strict" {
		fmt.Fprintf(stderr, "Error: unsupported --canon profile %q\n", canon)
		return 2
	}
	show_, err := parseShow(show)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	rest := cmd.Args()
	if len(rest) != 2 {
		fmt.Fprintln(stderr, "Usage: forkline diff --first <run_a_id> <run_b_id> [flags]")
		return 2
	}
	runAID, runBID := rest[0], rest[1]

	s, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer s.Close()

	ctx := context.Background()
	runA, err := s.LoadRun(ctx, runAID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	runB, err := s.LoadRun(ctx, runBID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	res, err := divergence.FindFirst(runA, runB, divergence.Config{
		Window:      window,
		ContextSize: 2,
		Show:        show_,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	} else {
		printTextResult(stdout, res)
	}

	if res.Status == divergence.StatusExactMatch {
		return 0
	}
	return 1
}

// scanConfigFlag extracts a --config/-config value from args without
// fully parsing them, so it can be read before the rest of the flag set
// is defined with config-derived defaults.
func scanConfigFlag(args []string) string {
	for i, a := range args {
		switch {
		case a == "--config" || a == "-config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(a, "--config="):
			return strings.TrimPrefix(a, "--config=")
		case strings.HasPrefix(a, "-config="):
			return strings.TrimPrefix(a, "-config=")
		}
	}
	return ""
}

func parseShow(s string) (divergence.Show, error) {
	switch s {
	case "input":
		return divergence.ShowInput, nil
	case "output":
		return divergence.ShowOutput, nil
	case "both":
		return divergence.ShowBoth, nil
	default:
		return "", fmt.Errorf("unsupported --show value %q", s)
	}
}

func printTextResult(w io.Writer, res divergence.DivergenceResult) {
	fmt.Fprintf(w, "status: %s\n", res.Status)
	fmt.Fprintf(w, "explanation: %s\n", res.Explanation)
	if res.OldStep != nil {
		fmt.Fprintf(w, "old_step: idx=%d name=%q input_hash=%s output_hash=%s has_error=%t\n",
			res.OldStep.Idx, res.OldStep.Name, res.OldStep.InputHash, res.OldStep.OutputHash, res.OldStep.HasError)
	}
	if res.NewStep != nil {
		fmt.Fprintf(w, "new_step: idx=%d name=%q input_hash=%s output_hash=%s has_error=%t\n",
			res.NewStep.Idx, res.NewStep.Name, res.NewStep.InputHash, res.NewStep.OutputHash, res.NewStep.HasError)
	}
	printOps(w, "input_diff", res.InputDiff)
	printOps(w, "output_diff", res.OutputDiff)
	fmt.Fprintf(w, "last_equal_idx: %d\n", res.LastEqualIdx)
	printContext(w, "context_a", res.ContextA)
	printContext(w, "context_b", res.ContextB)
}

func printOps(w io.Writer, label string, ops []differ.Op) {
	if len(ops) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", label)
	for _, op := range ops {
		old, new_ := "<absent>", "<absent>"
		if op.Old != nil {
			old = fmt.Sprint(op.Old.ToAny())
		}
		if op.New != nil {
			new_ = fmt.Sprint(op.New.ToAny())
		}
		fmt.Fprintf(w, "  %s %s: %s -> %s\n", op.Op, op.Path, old, new_)
	}
}

func printContext(w io.Writer, label string, ctx []divergence.StepSummary) {
	if len(ctx) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", label)
	for _, s := range ctx {
		fmt.Fprintf(w, "  [%d] %s input_hash=%s output_hash=%s has_error=%t\n", s.Idx, s.Name, s.InputHash, s.OutputHash, s.HasError)
	}
}
