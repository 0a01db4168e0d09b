// Package events defines the supported telemetry event kinds and the
// transformation from decoded records to normalized store rows.
package events

import (
	"context"
	"fmt"

	"github.com/classtrack/classtrack/internal/errors"
	"github.com/classtrack/classtrack/internal/store"
)

// Kind identifies a telemetry event stream.
type Kind string

const (
	KindContentLoaded        Kind = "content_loaded_event"
	KindInputSubmitted       Kind = "input_submitted_event"
	KindPsetProblemAttempted Kind = "pset_problem_attempted_event"
)

// Record is one decoded flat record as produced by the external decoder.
// Values are the decoder's native types; the transformer validates them at
// this boundary so loosely-typed maps never reach persistence.
type Record map[string]any

// Row is a transformed event ready for persistence.
type Row interface {
	// Persist writes the row through the idempotent writer.
	Persist(ctx context.Context, w *store.Writer) (store.Outcome, error)
}

// baseFields are required by every event kind.
var baseFields = []string{
	"user_uuid", "course_id", "impression_id", "timestamp", "content_id", "variant",
}

// transportFields are source-URL components the decoder carries but the
// pipeline never persists.
var transportFields = []string{
	"source_scheme", "source_host", "source_path", "source_query",
}

// TransportFields returns the decoder-injected fields that are stripped
// before records leave the pipeline.
func TransportFields() []string {
	out := make([]string, len(transportFields))
	copy(out, transportFields)
	return out
}

// Definition describes one supported event kind: its required fields and
// the destination row it builds.
type Definition struct {
	Kind        Kind
	Table       string
	BaseFields  []string
	ExtraFields []string

	build func(base store.EventBase, rec Record) (Row, error)
}

var registry = map[Kind]Definition{
	KindContentLoaded: {
		Kind:       KindContentLoaded,
		Table:      "content_loaded_event",
		BaseFields: baseFields,
		build: func(base store.EventBase, rec Record) (Row, error) {
			return &ContentLoadedRow{store.ContentLoadedEvent{EventBase: base}}, nil
		},
	},
	KindInputSubmitted: {
		Kind:        KindInputSubmitted,
		Table:       "input_submitted_event",
		BaseFields:  baseFields,
		ExtraFields: []string{"input_content_id"},
		build: func(base store.EventBase, rec Record) (Row, error) {
			inputContentID, err := uuidField(rec, "input_content_id")
			if err != nil {
				return nil, err
			}
			return &InputSubmittedRow{store.InputSubmittedEvent{
				EventBase:      base,
				InputContentID: inputContentID,
			}}, nil
		},
	},
	KindPsetProblemAttempted: {
		Kind:       KindPsetProblemAttempted,
		Table:      "pset_problem_attempted_event",
		BaseFields: baseFields,
		ExtraFields: []string{
			"pset_content_id", "pset_problem_content_id", "problem_type",
			"correct", "attempt", "final_attempt",
		},
		build: func(base store.EventBase, rec Record) (Row, error) {
			psetContentID, err := uuidField(rec, "pset_content_id")
			if err != nil {
				return nil, err
			}
			psetProblemContentID, err := uuidField(rec, "pset_problem_content_id")
			if err != nil {
				return nil, err
			}
			problemType, err := stringField(rec, "problem_type")
			if err != nil {
				return nil, err
			}
			correct, err := boolField(rec, "correct")
			if err != nil {
				return nil, err
			}
			attempt, err := intField(rec, "attempt")
			if err != nil {
				return nil, err
			}
			finalAttempt, err := boolField(rec, "final_attempt")
			if err != nil {
				return nil, err
			}
			return &PsetProblemAttemptedRow{store.PsetProblemAttemptedEvent{
				EventBase:            base,
				PsetContentID:        psetContentID,
				PsetProblemContentID: psetProblemContentID,
				ProblemType:          problemType,
				Correct:              correct,
				Attempt:              attempt,
				FinalAttempt:         finalAttempt,
			}}, nil
		},
	},
}

// Lookup returns the definition for a kind. An unknown kind is a
// recognized processing failure.
func Lookup(kind Kind) (Definition, error) {
	def, ok := registry[kind]
	if !ok {
		return Definition{}, errors.New(errors.ErrCategoryDecode, errors.CodeUnknownKind,
			fmt.Sprintf("unknown event kind %q", kind))
	}
	return def, nil
}

// Kinds returns the supported kind names.
func Kinds() []Kind {
	out := make([]Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}

// ContentLoadedRow wraps a content-load row for persistence.
type ContentLoadedRow struct {
	store.ContentLoadedEvent
}

func (r *ContentLoadedRow) Persist(ctx context.Context, w *store.Writer) (store.Outcome, error) {
	return w.InsertContentLoadedEvent(ctx, &r.ContentLoadedEvent)
}

// InputSubmittedRow wraps an input-submission row for persistence.
type InputSubmittedRow struct {
	store.InputSubmittedEvent
}

func (r *InputSubmittedRow) Persist(ctx context.Context, w *store.Writer) (store.Outcome, error) {
	return w.InsertInputSubmittedEvent(ctx, &r.InputSubmittedEvent)
}

// PsetProblemAttemptedRow wraps a problem-attempt row for persistence.
type PsetProblemAttemptedRow struct {
	store.PsetProblemAttemptedEvent
}

func (r *PsetProblemAttemptedRow) Persist(ctx context.Context, w *store.Writer) (store.Outcome, error) {
	return w.InsertPsetProblemAttemptedEvent(ctx, &r.PsetProblemAttemptedEvent)
}
