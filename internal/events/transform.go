package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"

	"github.com/classtrack/classtrack/internal/errors"
	"github.com/classtrack/classtrack/internal/store"
)

// Pseudonymize maps a raw user identifier to its storage pseudonym: the
// 128-bit murmur3 digest rendered as hex. Deterministic and one-way; not a
// keyed or secret hash.
func Pseudonymize(raw string) string {
	h1, h2 := murmur3.Sum128([]byte(raw))
	return fmt.Sprintf("%016x%016x", h1, h2)
}

// TimestampUTC converts an epoch-millisecond timestamp to a UTC instant.
// Sub-second precision is discarded by truncating division.
func TimestampUTC(ms int64) time.Time {
	return time.Unix(ms/1000, 0).UTC()
}

// Transform validates one decoded record against its kind's definition and
// builds the normalized row. A missing or ill-typed required field is a
// recognized processing failure.
func Transform(rec Record, kind Kind) (Row, error) {
	def, err := Lookup(kind)
	if err != nil {
		return nil, err
	}

	base, err := transformBase(rec)
	if err != nil {
		return nil, err
	}

	return def.build(base, rec)
}

// transformBase derives the shared row fields: truncated UTC timestamp,
// pseudonymized user id, validated identifiers.
func transformBase(rec Record) (store.EventBase, error) {
	var base store.EventBase

	ms, err := intField(rec, "timestamp")
	if err != nil {
		return base, err
	}

	userUUID, err := stringField(rec, "user_uuid")
	if err != nil {
		return base, err
	}

	courseID, err := intField(rec, "course_id")
	if err != nil {
		return base, err
	}

	impressionID, err := uuidField(rec, "impression_id")
	if err != nil {
		return base, err
	}

	contentID, err := uuidField(rec, "content_id")
	if err != nil {
		return base, err
	}

	variant, err := stringField(rec, "variant")
	if err != nil {
		return base, err
	}

	base = store.EventBase{
		UserUUIDHash: Pseudonymize(userUUID),
		CourseID:     courseID,
		ImpressionID: impressionID,
		OccurredAt:   TimestampUTC(ms),
		ContentID:    contentID,
		Variant:      variant,
	}
	return base, nil
}

func stringField(rec Record, name string) (string, error) {
	v, ok := rec[name]
	if !ok || v == nil {
		return "", errors.NewTransformError(errors.CodeMissingField,
			fmt.Sprintf("record is missing required field %q", name))
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.NewTransformError(errors.CodeBadField,
			fmt.Sprintf("field %q is not a string", name))
	}
	return s, nil
}

// intField accepts the integer widths the decoder may produce for Avro
// int/long values.
func intField(rec Record, name string) (int64, error) {
	v, ok := rec[name]
	if !ok || v == nil {
		return 0, errors.NewTransformError(errors.CodeMissingField,
			fmt.Sprintf("record is missing required field %q", name))
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, errors.NewTransformError(errors.CodeBadField,
			fmt.Sprintf("field %q is not an integer", name))
	}
}

func boolField(rec Record, name string) (bool, error) {
	v, ok := rec[name]
	if !ok || v == nil {
		return false, errors.NewTransformError(errors.CodeMissingField,
			fmt.Sprintf("record is missing required field %q", name))
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.NewTransformError(errors.CodeBadField,
			fmt.Sprintf("field %q is not a boolean", name))
	}
	return b, nil
}

func uuidField(rec Record, name string) (uuid.UUID, error) {
	s, err := stringField(rec, name)
	if err != nil {
		return uuid.UUID{}, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, errors.NewTransformError(errors.CodeBadField,
			fmt.Sprintf("field %q is not a valid UUID", name))
	}
	return id, nil
}
