package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sauravvenkat/forkline/pkg/redact"
	"github.com/sauravvenkat/forkline/pkg/record"
	"github.com/sauravvenkat/forkline/pkg/runmodel"
	"github.com/sauravvenkat/forkline/pkg/store"
	"github.com/sauravvenkat/forkline/pkg/value"
)

func seedTwoRuns(t *testing.T, dbPath string, outputText string) (aID, bID string) {
	t.Helper()
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	r := record.New(s, redact.SAFEPolicy())
	ctx := context.Background()

	seed := func(text string) string {
		runID, err := r.StartRun(ctx, "1.0.0", "test", value.Null())
		require.NoError(t, err)
		idx, err := r.StartStep(ctx, runID, "generate_response")
		require.NoError(t, err)
		require.NoError(t, r.LogEvent(ctx, runID, idx, "input", "t0",
			value.Map(map[string]value.Value{"q": value.String("hi")})))
		require.NoError(t, r.LogEvent(ctx, runID, idx, "output", "t1",
			value.Seq(value.Map(map[string]value.Value{"text": value.String(text)}))))
		require.NoError(t, r.EndRun(ctx, runID, runmodel.StatusSuccess))
		return runID
	}

	return seed("Expected response"), seed(outputText)
}

func TestCLI_DiffExactMatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "forkline.db")
	aID, bID := seedTwoRuns(t, dbPath, "Expected response")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"forkline", "diff", "--db", dbPath, aID, bID}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "exact_match")
}

func TestCLI_DiffOutputDivergence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "forkline.db")
	aID, bID := seedTwoRuns(t, dbPath, "Different response")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"forkline", "diff", "--db", dbPath, aID, bID}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "output_divergence")
}

func TestCLI_DiffJSONFormat(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "forkline.db")
	aID, bID := seedTwoRuns(t, dbPath, "Different response")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"forkline", "diff", "--format", "json", "--db", dbPath, aID, bID}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(stdout.String()), "{"))
}

func TestCLI_DiffRunNotFound(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "forkline.db")
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	s.Close()

	var stdout, stderr bytes.Buffer
	code := Run([]string{"forkline", "diff", "--db", dbPath, "missing-a", "missing-b"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "not found")
}

func TestCLI_Init(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "forkline.db")
	var stdout, stderr bytes.Buffer
	code := Run([]string{"forkline", "init", "--db", dbPath}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "Initialized")
}

func TestCLI_InitWithValidPolicy(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "forkline.db")
	policyPath := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(policyPath, []byte(`{
		"version": "1.0.0",
		"name": "custom",
		"rules": [{"action": "MASK", "key_pattern": "api_key"}]
	}`), 0o644))

	var stdout, stderr bytes.Buffer
	code := Run([]string{"forkline", "init", "--db", dbPath, "--policy", policyPath}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "Validated redaction policy \"custom\"")
	assert.Contains(t, stdout.String(), "Initialized")
}

func TestCLI_InitWithMalformedPolicyFails(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "forkline.db")
	policyPath := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(policyPath, []byte(`{"name": "no-version-or-rules"}`), 0o644))

	var stdout, stderr bytes.Buffer
	code := Run([]string{"forkline", "init", "--db", dbPath, "--policy", policyPath}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "Error")
}

func TestCLI_List(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "forkline.db")
	aID, bID := seedTwoRuns(t, dbPath, "Different response")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"forkline", "list", "--db", dbPath}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), aID)
	assert.Contains(t, stdout.String(), bID)
	assert.Contains(t, stdout.String(), "steps=1")
}

func TestCLI_ListEmptyStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "forkline.db")
	var stdout, stderr bytes.Buffer
	code := Run([]string{"forkline", "list", "--db", dbPath}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "No runs recorded.")
}

func TestCLI_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"forkline", "bogus"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "Unknown command")
}

func TestCLI_Show(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "forkline.db")
	aID, _ := seedTwoRuns(t, dbPath, "Expected response")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"forkline", "show", "--db", dbPath, aID}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "generate_response")
	assert.Contains(t, stdout.String(), "entrypoint: test")
}
