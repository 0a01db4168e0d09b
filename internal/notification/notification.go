// Package notification parses queue message envelopes into units of work
// and decodes the semantic context carried by object key conventions.
package notification

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/classtrack/classtrack/internal/errors"
)

// creationPrefix is the action prefix for object-created notifications.
// Anything else (removal, restore, ...) is rejected.
const creationPrefix = "ObjectCreated:"

// ObjectCreated is one unit of work: a newly created object in the store.
// VersionID is empty when the notification is not version-qualified.
type ObjectCreated struct {
	Bucket    string
	Key       string
	VersionID string
}

// envelope is the outer message shape: the actual notification is a JSON
// string nested inside the Message field.
type envelope struct {
	Message string `json:"Message"`
}

type objectNotification struct {
	Records []notificationRecord `json:"Records"`
}

type notificationRecord struct {
	EventName string `json:"eventName"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key       string `json:"key"`
			VersionID string `json:"versionId"`
		} `json:"object"`
	} `json:"s3"`
}

// Parse unwraps a queue message body into its object-created units.
// A malformed envelope or a non-creation action is a recognized
// processing failure.
func Parse(body string) ([]ObjectCreated, error) {
	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil, errors.Wrap(errors.ErrCategoryNotification, errors.CodeBadEnvelope,
			"failed to parse message envelope", err)
	}

	var inner objectNotification
	if err := json.Unmarshal([]byte(env.Message), &inner); err != nil {
		return nil, errors.Wrap(errors.ErrCategoryNotification, errors.CodeBadEnvelope,
			"failed to parse nested notification", err)
	}

	units := make([]ObjectCreated, 0, len(inner.Records))
	for _, rec := range inner.Records {
		if !strings.HasPrefix(rec.EventName, creationPrefix) {
			return nil, errors.New(errors.ErrCategoryNotification, errors.CodeUnexpectedEvent,
				fmt.Sprintf("unexpected S3 event: %s", rec.EventName))
		}

		// Keys arrive percent-encoded in notifications.
		key, err := url.PathUnescape(rec.S3.Object.Key)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCategoryNotification, errors.CodeBadObjectKey,
				fmt.Sprintf("failed to decode object key %q", rec.S3.Object.Key), err)
		}

		units = append(units, ObjectCreated{
			Bucket:    rec.S3.Bucket.Name,
			Key:       key,
			VersionID: rec.S3.Object.VersionID,
		})
	}
	return units, nil
}

// Synthetic renders a queue message body announcing the given object
// version, in the same envelope shape real notifications arrive in. Used
// to replay historical objects through the processors.
func Synthetic(bucket, key, versionID string) (string, error) {
	var rec notificationRecord
	rec.EventName = creationPrefix + "Put"
	rec.S3.Bucket.Name = bucket
	rec.S3.Object.Key = key
	rec.S3.Object.VersionID = versionID

	nested, err := json.Marshal(objectNotification{Records: []notificationRecord{rec}})
	if err != nil {
		return "", errors.NewInternalError("failed to encode synthetic notification", err)
	}
	body, err := json.Marshal(envelope{Message: string(nested)})
	if err != nil {
		return "", errors.NewInternalError("failed to encode synthetic envelope", err)
	}
	return string(body), nil
}

// CourseIDFromSnapshotKey recovers the course id from the snapshot key
// layout <prefix>/<term>/moodle/<type>/<course-id>.json. The filename is
// authoritative because the document payloads do not consistently carry
// the course id.
func CourseIDFromSnapshotKey(key string) (int64, error) {
	segments := strings.Split(key, "/")
	filename := segments[len(segments)-1]
	idPart := strings.TrimSuffix(filename, ".json")

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, errors.New(errors.ErrCategoryNotification, errors.CodeBadObjectKey,
			fmt.Sprintf("object key %q does not carry a course id", key))
	}
	return id, nil
}

// TermFromSnapshotKey recovers the term label: the path segment
// immediately before the /moodle/ component.
func TermFromSnapshotKey(key string) (string, error) {
	before, _, found := strings.Cut(key, "/moodle/")
	if !found {
		return "", errors.New(errors.ErrCategoryNotification, errors.CodeBadObjectKey,
			fmt.Sprintf("object key %q does not follow the snapshot layout", key))
	}
	segments := strings.Split(before, "/")
	return segments[len(segments)-1], nil
}

// TermFromCSVKey recovers the term label from a course CSV key, where the
// term is the second path segment.
func TermFromCSVKey(key string) (string, error) {
	segments := strings.Split(key, "/")
	if len(segments) < 2 {
		return "", errors.New(errors.ErrCategoryNotification, errors.CodeBadObjectKey,
			fmt.Sprintf("object key %q does not carry a term segment", key))
	}
	return segments[1], nil
}
