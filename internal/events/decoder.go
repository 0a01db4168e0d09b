package events

import (
	"io"

	"github.com/hamba/avro/v2/ocf"

	"github.com/classtrack/classtrack/internal/errors"
)

// Decoder turns one fetched event object into its ordered flat records.
// The production implementation reads Avro object container files; tests
// substitute their own.
type Decoder interface {
	Decode(r io.Reader) ([]Record, error)
}

// OCFDecoder decodes Avro object container files. Record fields come back
// in the decoder's native representation (string, int64, bool, ...).
type OCFDecoder struct{}

// Decode reads every record in the container.
func (OCFDecoder) Decode(r io.Reader) ([]Record, error) {
	dec, err := ocf.NewDecoder(r)
	if err != nil {
		return nil, errors.NewDecodeError(errors.CodeBadContainer,
			"failed to open event container", err)
	}

	var records []Record
	for dec.HasNext() {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			return nil, errors.NewDecodeError(errors.CodeBadContainer,
				"failed to decode event record", err)
		}
		records = append(records, Record(rec))
	}
	return records, nil
}
