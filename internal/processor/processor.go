// Package processor wires notification parsing, object retrieval, and the
// per-payload pipelines into message handlers for the queue runner.
package processor

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/classtrack/classtrack/internal/errors"
	"github.com/classtrack/classtrack/internal/events"
	"github.com/classtrack/classtrack/internal/notification"
	"github.com/classtrack/classtrack/internal/objectstore"
	"github.com/classtrack/classtrack/internal/snapshot"
	"github.com/classtrack/classtrack/internal/store"
)

// EventProcessor handles notifications for Avro event containers of a
// single event kind.
type EventProcessor struct {
	objects objectstore.ObjectStore
	decoder events.Decoder
	writer  *store.Writer
	kind    events.Kind
}

// NewEventProcessor builds a processor for the given kind. An unknown kind
// is a configuration mistake and fails construction.
func NewEventProcessor(objects objectstore.ObjectStore, decoder events.Decoder, writer *store.Writer, kind events.Kind) (*EventProcessor, error) {
	if _, err := events.Lookup(kind); err != nil {
		return nil, errors.NewConfigError(errors.CodeInvalidConfig,
			fmt.Sprintf("unsupported event type %q", kind))
	}
	return &EventProcessor{
		objects: objects,
		decoder: decoder,
		writer:  writer,
		kind:    kind,
	}, nil
}

// Process handles one queue message: fetch each created object, decode its
// records, and persist each as a normalized row. A record that fails
// decoding or transformation fails the whole notification so the message
// is redelivered; rows already written stay safe behind the uniqueness
// constraints.
func (p *EventProcessor) Process(ctx context.Context, body string) error {
	created, err := notification.Parse(body)
	if err != nil {
		return err
	}

	for _, obj := range created {
		payload, err := p.objects.Fetch(ctx, obj.Bucket, obj.Key, "")
		if err != nil {
			return errors.NewStoreError(errors.CodeReadFailed,
				fmt.Sprintf("failed to fetch s3://%s/%s", obj.Bucket, obj.Key), err)
		}

		records, err := p.decoder.Decode(bytes.NewReader(payload.Body))
		if err != nil {
			return err
		}

		inserted, conflicts := 0, 0
		for _, rec := range records {
			row, err := events.Transform(rec, p.kind)
			if err != nil {
				return err
			}
			outcome, err := row.Persist(ctx, p.writer)
			if err != nil {
				return err
			}
			if outcome == store.OutcomeConflict {
				conflicts++
			} else {
				inserted++
			}
		}
		log.Printf("processor: s3://%s/%s: %d rows inserted, %d already present",
			obj.Bucket, obj.Key, inserted, conflicts)
	}
	return nil
}

// Snapshot data-type tags, matching the DATA_TYPE environment setting.
const (
	DataTypeUsers  = "users"
	DataTypeGrades = "grades"
)

// SnapshotProcessor handles notifications for roster or grades snapshot
// documents, selected by data type.
type SnapshotProcessor struct {
	objects    objectstore.ObjectStore
	aggregator *snapshot.Aggregator
	dataType   string
}

func NewSnapshotProcessor(objects objectstore.ObjectStore, aggregator *snapshot.Aggregator, dataType string) *SnapshotProcessor {
	return &SnapshotProcessor{
		objects:    objects,
		aggregator: aggregator,
		dataType:   dataType,
	}
}

// Process handles one queue message: recover the course id and term from
// the object key, fetch the exact object version the notification names,
// and run the matching aggregation.
func (p *SnapshotProcessor) Process(ctx context.Context, body string) error {
	created, err := notification.Parse(body)
	if err != nil {
		return err
	}

	for _, obj := range created {
		courseID, err := notification.CourseIDFromSnapshotKey(obj.Key)
		if err != nil {
			return err
		}
		term, err := notification.TermFromSnapshotKey(obj.Key)
		if err != nil {
			return err
		}

		payload, err := p.objects.Fetch(ctx, obj.Bucket, obj.Key, obj.VersionID)
		if err != nil {
			return errors.NewStoreError(errors.CodeReadFailed,
				fmt.Sprintf("failed to fetch s3://%s/%s", obj.Bucket, obj.Key), err)
		}

		switch p.dataType {
		case DataTypeUsers:
			err = p.aggregator.ProcessRoster(ctx, courseID, term, payload.Body, payload.LastModified)
		case DataTypeGrades:
			err = p.aggregator.ProcessGrades(ctx, courseID, payload.Body)
		default:
			err = errors.NewSnapshotError(errors.CodeUnknownDataType,
				fmt.Sprintf("unexpected data type %q", p.dataType), nil)
		}
		if err != nil {
			return err
		}
		log.Printf("processor: aggregated %s snapshot for course %d (%s)", p.dataType, courseID, term)
	}
	return nil
}
