// Package record implements Forkline's Record interface: the
// caller-facing surface that starts a run, logs events through the
// Redaction Engine, and closes the run. It is an external collaborator,
// not part of the deterministic core; it owns the only I/O and id
// generation in the system.
package record

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sauravvenkat/forkline/pkg/redact"
	"github.com/sauravvenkat/forkline/pkg/runmodel"
	"github.com/sauravvenkat/forkline/pkg/value"
)

// Sink is the subset of *store.Store the Recorder needs, so tests can
// substitute a fake without a database.
type Sink interface {
	CreateRun(ctx context.Context, runID, schemaVersion, entrypoint string, envFingerprint value.Value) error
	AppendStep(ctx context.Context, runID string, idx int, name string) error
	AppendEvent(ctx context.Context, runID string, stepIdx int, eventSeq int, eventType string, payload value.Value, timestamp string) error
	EndRun(ctx context.Context, runID string, status runmodel.Status) error
}

// Recorder is the stateful, caller-facing front end: it tracks
// in-progress runs' next step/event sequence numbers and redacts every
// payload before it reaches the Sink. Every Value passed to persistence
// flows through the Redaction Engine first.
type Recorder struct {
	sink   Sink
	policy redact.Policy

	mu    sync.Mutex
	steps map[string]int  // run_id -> next step idx
	seqs  map[stepKey]int // (run_id, step_idx) -> next event seq
}

type stepKey struct {
	runID string
	idx   int
}

// New creates a Recorder writing through sink under policy. Production
// callers should pass redact.SAFEPolicy(); DEBUG/ENCRYPTED_DEBUG callers
// opt in explicitly at this boundary.
func New(sink Sink, policy redact.Policy) *Recorder {
	return &Recorder{
		sink:   sink,
		policy: policy,
		steps:  make(map[string]int),
		seqs:   make(map[stepKey]int),
	}
}

// LoadPolicyFile reads a policy bundle from path and validates it via
// redact.LoadPolicyJSON or redact.LoadPolicyYAML, dispatching on the
// file's extension (.yaml/.yml vs anything else, treated as JSON). It is
// the entry point embedding callers use to build a Recorder from an
// out-of-process policy bundle instead of a hand-built redact.Policy;
// it is also what cmd/forkline's --policy flag calls.
func LoadPolicyFile(path string) (redact.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return redact.Policy{}, fmt.Errorf("record: read policy %q: %w", path, err)
	}
	ext := strings.ToLower(path)
	if strings.HasSuffix(ext, ".yaml") || strings.HasSuffix(ext, ".yml") {
		return redact.LoadPolicyYAML(path, data)
	}
	return redact.LoadPolicyJSON(path, data)
}

// NewFromPolicyFile is a convenience wrapper combining LoadPolicyFile and
// New for callers that keep their redaction policy in a file rather than
// constructing a redact.Policy by hand.
func NewFromPolicyFile(sink Sink, policyPath string) (*Recorder, error) {
	policy, err := LoadPolicyFile(policyPath)
	if err != nil {
		return nil, err
	}
	return New(sink, policy), nil
}

// StartRun creates a new run, returning its generated run id.
func (r *Recorder) StartRun(ctx context.Context, schemaVersion, entrypoint string, envFingerprint value.Value) (string, error) {
	runID := uuid.NewString()
	redactedEnv, err := redact.Apply(r.policy, envFingerprint)
	if err != nil {
		slog.Error("record: redact env_fingerprint failed", "entrypoint", entrypoint, "error", err)
		return "", fmt.Errorf("record: redact env_fingerprint: %w", err)
	}
	if err := r.sink.CreateRun(ctx, runID, schemaVersion, entrypoint, redactedEnv); err != nil {
		slog.Error("record: create run failed", "run_id", runID, "error", err)
		return "", err
	}
	r.mu.Lock()
	r.steps[runID] = 0
	r.mu.Unlock()
	slog.Info("record: run started", "run_id", runID, "entrypoint", entrypoint, "schema_version", schemaVersion)
	return runID, nil
}

// StartStep appends a new step to runID, returning its index.
func (r *Recorder) StartStep(ctx context.Context, runID, name string) (int, error) {
	r.mu.Lock()
	idx := r.steps[runID]
	r.steps[runID] = idx + 1
	r.mu.Unlock()

	if err := r.sink.AppendStep(ctx, runID, idx, name); err != nil {
		return 0, err
	}
	return idx, nil
}

// LogEvent redacts payload under the Recorder's policy and appends it to
// the given step. timestamp is caller-supplied metadata, excluded from
// every comparison downstream.
func (r *Recorder) LogEvent(ctx context.Context, runID string, stepIdx int, eventType, timestamp string, payload value.Value) error {
	redacted, err := redact.Apply(r.policy, payload)
	if err != nil {
		return fmt.Errorf("record: redact payload: %w", err)
	}

	key := stepKey{runID, stepIdx}
	r.mu.Lock()
	seq := r.seqs[key]
	r.seqs[key] = seq + 1
	r.mu.Unlock()

	return r.sink.AppendEvent(ctx, runID, stepIdx, seq, eventType, redacted, timestamp)
}

// EndRun closes runID with a terminal status.
func (r *Recorder) EndRun(ctx context.Context, runID string, status runmodel.Status) error {
	if err := r.sink.EndRun(ctx, runID, status); err != nil {
		slog.Warn("record: end run failed", "run_id", runID, "status", status, "error", err)
		return err
	}
	slog.Info("record: run ended", "run_id", runID, "status", status)
	return nil
}
