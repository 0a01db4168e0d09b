// Package collector accumulates decoded events into a single JSON document
// in the object store, for downstream consumers that want raw events rather
// than relational rows.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log"

	"github.com/classtrack/classtrack/internal/errors"
	"github.com/classtrack/classtrack/internal/events"
	"github.com/classtrack/classtrack/internal/notification"
	"github.com/classtrack/classtrack/internal/objectstore"
)

// Document is the accumulated output object. DataSources records every
// source object already folded in, keyed by s3 URL, and makes reprocessing
// a notification a no-op.
type Document struct {
	DataSources []string        `json:"data_sources"`
	Data        []events.Record `json:"data"`
}

func emptyDocument() *Document {
	return &Document{DataSources: []string{}, Data: []events.Record{}}
}

// Collector appends the events behind each notification to one output
// object, skipping source files it has already recorded.
type Collector struct {
	objects      objectstore.ObjectStore
	decoder      events.Decoder
	outputBucket string
	outputKey    string
}

func New(objects objectstore.ObjectStore, decoder events.Decoder, outputBucket, outputKey string) *Collector {
	return &Collector{
		objects:      objects,
		decoder:      decoder,
		outputBucket: outputBucket,
		outputKey:    outputKey,
	}
}

// load reads the current output document, or starts fresh when the object
// does not exist yet.
func (c *Collector) load(ctx context.Context) (*Document, error) {
	obj, err := c.objects.Fetch(ctx, c.outputBucket, c.outputKey, "")
	if err != nil {
		if stderrors.Is(err, objectstore.ErrObjectNotFound) {
			return emptyDocument(), nil
		}
		return nil, errors.NewStoreError(errors.CodeReadFailed,
			fmt.Sprintf("failed to fetch s3://%s/%s", c.outputBucket, c.outputKey), err)
	}

	var doc Document
	if err := json.Unmarshal(obj.Body, &doc); err != nil {
		return nil, errors.NewInternalError("output document is corrupt", err)
	}
	return &doc, nil
}

func (c *Collector) save(ctx context.Context, doc *Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.NewInternalError("failed to encode output document", err)
	}
	if err := c.objects.Put(ctx, c.outputBucket, c.outputKey, body); err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed,
			fmt.Sprintf("failed to write s3://%s/%s", c.outputBucket, c.outputKey), err)
	}
	return nil
}

// Process handles one queue message: decode each newly created object and
// append its records, minus transport fields, to the output document.
func (c *Collector) Process(ctx context.Context, body string) error {
	created, err := notification.Parse(body)
	if err != nil {
		return err
	}

	doc, err := c.load(ctx)
	if err != nil {
		return err
	}

	for _, obj := range created {
		sourceURL := fmt.Sprintf("s3://%s/%s", obj.Bucket, obj.Key)
		if contains(doc.DataSources, sourceURL) {
			log.Printf("collector: ignoring previously processed file %s", sourceURL)
			continue
		}
		doc.DataSources = append(doc.DataSources, sourceURL)

		payload, err := c.objects.Fetch(ctx, obj.Bucket, obj.Key, "")
		if err != nil {
			return errors.NewStoreError(errors.CodeReadFailed,
				fmt.Sprintf("failed to fetch %s", sourceURL), err)
		}
		records, err := c.decoder.Decode(bytes.NewReader(payload.Body))
		if err != nil {
			return err
		}
		for _, rec := range records {
			for _, field := range events.TransportFields() {
				delete(rec, field)
			}
			doc.Data = append(doc.Data, rec)
		}
	}

	return c.save(ctx, doc)
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
