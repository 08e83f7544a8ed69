// Package runmodel defines Forkline's recorded-execution data model:
// Run, Step, and Event, plus the derived per-step fingerprints the
// First-Divergence Engine consumes.
//
// Run/Step/Event carry no behavior beyond invariant validation and
// fingerprint derivation; pkg/divergence owns all comparison logic.
package runmodel

import (
	"fmt"

	"github.com/sauravvenkat/forkline/pkg/canonical"
	"github.com/sauravvenkat/forkline/pkg/value"
)

// EventType is an uninterpreted label. Three labels (input, output,
// error) are recognized by the engine; any other label is carried
// through as "other".
type EventType string

const (
	EventInput  EventType = "input"
	EventOutput EventType = "output"
	EventError  EventType = "error"
)

// Event is one labeled payload within a step. Timestamp is metadata and
// excluded from every comparison and every fingerprint.
type Event struct {
	Type      EventType
	Payload   value.Value
	Timestamp string
}

// Step is one logical operation in a run, carrying its events in
// insertion order.
type Step struct {
	Idx    int
	Name   string
	Events []Event
}

// Status is a Run's terminal (or pending) state.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusError   Status = "error"
	StatusPending Status = "pending"
)

// Run is a recorded execution: ordered steps, each with ordered events.
// Runs are immutable once ended; nothing in this module mutates a Run
// it is given. Entrypoint is display/CLI metadata (the name of the
// function, tool, or agent that started the run); it plays no part in
// any comparison or fingerprint.
type Run struct {
	RunID          string
	SchemaVersion  string
	Entrypoint     string
	Steps          []Step
	EnvFingerprint value.Value
	Status         Status
}

// CorruptRunError reports that a loaded Run violates the structural
// invariant (step index gap, duplicate index, or similar structural
// defect).
type CorruptRunError struct {
	RunID  string
	Reason string
}

func (e *CorruptRunError) Error() string {
	return fmt.Sprintf("runmodel: run %q is corrupt: %s", e.RunID, e.Reason)
}

// Validate checks the structural invariant that step indices form
// 0, 1, ..., n-1 with no gaps and idx equals position. Callers that
// construct or load a Run (pkg/store, pkg/record) must call Validate
// before handing it to the engine.
func (r Run) Validate() error {
	for i, s := range r.Steps {
		if s.Idx != i {
			return &CorruptRunError{RunID: r.RunID, Reason: fmt.Sprintf("step at position %d has idx %d", i, s.Idx)}
		}
		if s.Name == "" {
			return &CorruptRunError{RunID: r.RunID, Reason: fmt.Sprintf("step %d has empty name", i)}
		}
	}
	return nil
}

// InputHash is the canonical-hash of the concatenated list of payloads
// of all events of type input, in original order.
func (s Step) InputHash() (string, error) {
	return aggregateHash(s.Events, EventInput)
}

// OutputHash is the canonical-hash of the concatenated list of payloads
// of all events of type output, in original order.
func (s Step) OutputHash() (string, error) {
	return aggregateHash(s.Events, EventOutput)
}

// HasError reports whether the step contains any event of type error.
func (s Step) HasError() bool {
	for _, e := range s.Events {
		if e.Type == EventError {
			return true
		}
	}
	return false
}

// ErrorPayloads returns the payloads of all error-typed events, in
// order, used by the engine's error-state comparison.
func (s Step) ErrorPayloads() []value.Value {
	var out []value.Value
	for _, e := range s.Events {
		if e.Type == EventError {
			out = append(out, e.Payload)
		}
	}
	return out
}

// InputPayloads returns the payloads of all input-typed events, in order.
func (s Step) InputPayloads() []value.Value {
	return payloadsOfType(s.Events, EventInput)
}

// OutputPayloads returns the payloads of all output-typed events, in order.
func (s Step) OutputPayloads() []value.Value {
	return payloadsOfType(s.Events, EventOutput)
}

// EventsHash is the canonical-hash of the full ordered event list (types
// and payloads only, no timestamps).
func (s Step) EventsHash() (string, error) {
	items := make([]value.Value, len(s.Events))
	for i, e := range s.Events {
		items[i] = value.Map(map[string]value.Value{
			"type":    value.String(string(e.Type)),
			"payload": e.Payload,
		})
	}
	return canonical.ConcatHash(items)
}

func payloadsOfType(events []Event, t EventType) []value.Value {
	var out []value.Value
	for _, e := range events {
		if e.Type == t {
			out = append(out, e.Payload)
		}
	}
	return out
}

func aggregateHash(events []Event, t EventType) (string, error) {
	return canonical.ConcatHash(payloadsOfType(events, t))
}

// Fingerprint is a step's derived identity used by the engine:
// (name, input_hash, output_hash, has_error, events_hash).
type Fingerprint struct {
	Name       string
	InputHash  string
	OutputHash string
	HasError   bool
	EventsHash string
}

// SoftSignature is the resync key: (name, input_hash).
type SoftSignature struct {
	Name      string
	InputHash string
}

// ComputeFingerprint derives a step's fingerprint.
func ComputeFingerprint(s Step) (Fingerprint, error) {
	in, err := s.InputHash()
	if err != nil {
		return Fingerprint{}, err
	}
	out, err := s.OutputHash()
	if err != nil {
		return Fingerprint{}, err
	}
	ev, err := s.EventsHash()
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{
		Name:       s.Name,
		InputHash:  in,
		OutputHash: out,
		HasError:   s.HasError(),
		EventsHash: ev,
	}, nil
}

// ComputeSoftSignature derives a step's soft signature.
func ComputeSoftSignature(s Step) (SoftSignature, error) {
	in, err := s.InputHash()
	if err != nil {
		return SoftSignature{}, err
	}
	return SoftSignature{Name: s.Name, InputHash: in}, nil
}
