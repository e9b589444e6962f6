package consumer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEnvelope is returned for a body that is not an event envelope.
var ErrMalformedEnvelope = errors.New("malformed event envelope")

// EnvelopeRecord is one entry of an S3 event notification.
type EnvelopeRecord struct {
	S3 struct {
		Bucket struct {
			Name *string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key *string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}

// Bucket returns the bucket name, if present. An empty name is passed on and
// fails later in the pipeline, which keeps the message for redelivery.
func (r EnvelopeRecord) Bucket() (string, bool) {
	if r.S3.Bucket.Name == nil {
		return "", false
	}
	return *r.S3.Bucket.Name, true
}

// Key returns the object key, if present.
func (r EnvelopeRecord) Key() (string, bool) {
	if r.S3.Object.Key == nil {
		return "", false
	}
	return *r.S3.Object.Key, true
}

// DecodeEnvelope splits body into its records, in order. An entry that is not
// an object decodes as an empty record so the caller can skip it on its own.
func DecodeEnvelope(body string) ([]EnvelopeRecord, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	raw, ok := top["Records"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("%w: no Records array", ErrMalformedEnvelope)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: Records is not an array", ErrMalformedEnvelope)
	}

	records := make([]EnvelopeRecord, len(items))
	for i, item := range items {
		// Wrong shapes leave the fields nil.
		_ = json.Unmarshal(item, &records[i])
	}
	return records, nil
}
