// Package store is Forkline's external collaborator for persistence: an
// append-only, SQLite-backed event log keyed by run, from which the
// core only ever receives whole, invariant-satisfying Runs.
//
// The store migrates its schema on open and exposes parameterized write
// paths that INSERT runs, steps, and events; the one UPDATE is EndRun
// setting a run's status. Row-scan helpers return domain structs rather
// than raw rows.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/sauravvenkat/forkline/pkg/runmodel"
	"github.com/sauravvenkat/forkline/pkg/value"
)

// decodeJSON unmarshals data into a generic interface{} the way FromAny
// expects to receive it: with decoder.UseNumber() set, so an integer
// payload decodes as json.Number rather than collapsing to float64.
func decodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ErrRunNotFound reports that a run id could not be resolved.
type ErrRunNotFound struct {
	RunID string
}

func (e *ErrRunNotFound) Error() string {
	return fmt.Sprintf("store: run %q not found", e.RunID)
}

// RunSummary is one entry of ListRuns: enough to let a caller pick a run
// id without loading the full event log.
type RunSummary struct {
	RunID         string
	SchemaVersion string
	Status        string
	StepCount     int
}

// Store is an append-only SQLite-backed event log. Events within a run
// are totally ordered by (run_id, step_idx, event_seq), and LoadRun only
// ever assembles whole rows, so a reader never observes a torn event.
// A run that has not reached EndRun loads with status pending; the
// engine treats its missing trailing steps as a length mismatch.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and
// migrates its schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenDB wraps an already-open *sql.DB (used by tests with go-sqlmock).
func OpenDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		schema_version TEXT NOT NULL,
		env_fingerprint JSON NOT NULL,
		status TEXT NOT NULL,
		entrypoint TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS steps (
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		step_idx INTEGER NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (run_id, step_idx)
	);
	CREATE TABLE IF NOT EXISTS events (
		run_id TEXT NOT NULL,
		step_idx INTEGER NOT NULL,
		event_seq INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		payload JSON NOT NULL,
		timestamp TEXT NOT NULL,
		PRIMARY KEY (run_id, step_idx, event_seq),
		FOREIGN KEY (run_id, step_idx) REFERENCES steps(run_id, step_idx)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_events_order ON events(run_id, step_idx, event_seq);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreateRun inserts a new pending run row. It is the only writer of the
// runs table's initial row; EndRun later updates status in place.
func (s *Store) CreateRun(ctx context.Context, runID, schemaVersion, entrypoint string, envFingerprint value.Value) error {
	envJSON, err := json.Marshal(envFingerprint.ToAny())
	if err != nil {
		return fmt.Errorf("store: marshal env_fingerprint: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, schema_version, env_fingerprint, status, entrypoint) VALUES (?, ?, ?, ?, ?)`,
		runID, schemaVersion, string(envJSON), string(runmodel.StatusPending), entrypoint,
	)
	if err != nil {
		return fmt.Errorf("store: create run %q: %w", runID, err)
	}
	return nil
}

// AppendStep inserts a step row. Steps, like events, are append-only:
// there is no UPDATE path.
func (s *Store) AppendStep(ctx context.Context, runID string, idx int, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO steps (run_id, step_idx, name) VALUES (?, ?, ?)`,
		runID, idx, name,
	)
	if err != nil {
		return fmt.Errorf("store: append step %d of run %q: %w", idx, runID, err)
	}
	return nil
}

// AppendEvent inserts an event row at the next sequence position within
// its step.
func (s *Store) AppendEvent(ctx context.Context, runID string, stepIdx int, eventSeq int, eventType string, payload value.Value, timestamp string) error {
	payloadJSON, err := json.Marshal(payload.ToAny())
	if err != nil {
		return fmt.Errorf("store: marshal payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (run_id, step_idx, event_seq, event_type, payload, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stepIdx, eventSeq, eventType, string(payloadJSON), timestamp,
	)
	if err != nil {
		return fmt.Errorf("store: append event %d of step %d of run %q: %w", eventSeq, stepIdx, runID, err)
	}
	return nil
}

// EndRun closes a run with a terminal status.
func (s *Store) EndRun(ctx context.Context, runID string, status runmodel.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ? WHERE run_id = ?`, string(status), runID)
	if err != nil {
		return fmt.Errorf("store: end run %q: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: end run %q: %w", runID, err)
	}
	if n == 0 {
		return &ErrRunNotFound{RunID: runID}
	}
	return nil
}

// ListRuns returns an ordered summary of every run in the store.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.schema_version, r.status, COUNT(st.step_idx)
		FROM runs r LEFT JOIN steps st ON st.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.run_id
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var sum RunSummary
		if err := rows.Scan(&sum.RunID, &sum.SchemaVersion, &sum.Status, &sum.StepCount); err != nil {
			return nil, fmt.Errorf("store: scan run summary: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadRun reconstructs a complete, Validate-passing Run from the store.
// A run that fails Run.Validate's invariants is surfaced as an error
// rather than handed to the engine.
func (s *Store) LoadRun(ctx context.Context, runID string) (runmodel.Run, error) {
	run, err := s.loadRunMeta(ctx, runID)
	if err != nil {
		return runmodel.Run{}, err
	}

	stepRows, err := s.db.QueryContext(ctx, `SELECT step_idx, name FROM steps WHERE run_id = ? ORDER BY step_idx`, runID)
	if err != nil {
		return runmodel.Run{}, fmt.Errorf("store: load steps for %q: %w", runID, err)
	}
	defer stepRows.Close()

	var steps []runmodel.Step
	for stepRows.Next() {
		var idx int
		var name string
		if err := stepRows.Scan(&idx, &name); err != nil {
			return runmodel.Run{}, fmt.Errorf("store: scan step: %w", err)
		}
		steps = append(steps, runmodel.Step{Idx: idx, Name: name})
	}
	if err := stepRows.Err(); err != nil {
		return runmodel.Run{}, err
	}

	eventRows, err := s.db.QueryContext(ctx, `
		SELECT step_idx, event_type, payload, timestamp FROM events
		WHERE run_id = ? ORDER BY step_idx, event_seq
	`, runID)
	if err != nil {
		return runmodel.Run{}, fmt.Errorf("store: load events for %q: %w", runID, err)
	}
	defer eventRows.Close()

	byStep := make(map[int][]runmodel.Event)
	for eventRows.Next() {
		var idx int
		var evType, payloadJSON, ts string
		if err := eventRows.Scan(&idx, &evType, &payloadJSON, &ts); err != nil {
			return runmodel.Run{}, fmt.Errorf("store: scan event: %w", err)
		}
		raw, err := decodeJSON([]byte(payloadJSON))
		if err != nil {
			return runmodel.Run{}, fmt.Errorf("store: unmarshal payload of run %q step %d: %w", runID, idx, err)
		}
		v, err := value.FromAny(raw, value.DefaultMaxDepth)
		if err != nil {
			return runmodel.Run{}, fmt.Errorf("store: decode payload of run %q step %d: %w", runID, idx, err)
		}
		byStep[idx] = append(byStep[idx], runmodel.Event{Type: runmodel.EventType(evType), Payload: v, Timestamp: ts})
	}
	if err := eventRows.Err(); err != nil {
		return runmodel.Run{}, err
	}

	for i := range steps {
		steps[i].Events = byStep[steps[i].Idx]
	}
	run.Steps = steps

	if err := run.Validate(); err != nil {
		return runmodel.Run{}, err
	}
	return run, nil
}

func (s *Store) loadRunMeta(ctx context.Context, runID string) (runmodel.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT schema_version, env_fingerprint, status, entrypoint FROM runs WHERE run_id = ?`, runID)
	var schemaVersion, envJSON, status, entrypoint string
	if err := row.Scan(&schemaVersion, &envJSON, &status, &entrypoint); err != nil {
		if err == sql.ErrNoRows {
			return runmodel.Run{}, &ErrRunNotFound{RunID: runID}
		}
		return runmodel.Run{}, fmt.Errorf("store: load run %q: %w", runID, err)
	}
	raw, err := decodeJSON([]byte(envJSON))
	if err != nil {
		return runmodel.Run{}, fmt.Errorf("store: unmarshal env_fingerprint of %q: %w", runID, err)
	}
	env, err := value.FromAny(raw, value.DefaultMaxDepth)
	if err != nil {
		return runmodel.Run{}, fmt.Errorf("store: decode env_fingerprint of %q: %w", runID, err)
	}
	return runmodel.Run{
		RunID:          runID,
		SchemaVersion:  schemaVersion,
		Entrypoint:     entrypoint,
		EnvFingerprint: env,
		Status:         runmodel.Status(status),
	}, nil
}
