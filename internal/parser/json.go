package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
)

// JSON parses a document holding one object or an array of objects.
// Numbers are kept as json.Number; nested values are kept as decoded.
type JSON struct{}

// NewJSON creates the JSON document strategy.
func NewJSON() *JSON {
	return &JSON{}
}

// Name returns the strategy identifier.
func (j *JSON) Name() string {
	return "json"
}

// Parse decodes data into records.
func (j *JSON) Parse(data []byte, opts Options) ([]*model.Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var records []*model.Record
	switch data[0] {
	case '{':
		rec, err := decodeObject(dec)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	case '[':
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		for dec.More() {
			rec, err := decodeObject(dec)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", len(records), err)
			}
			records = append(records, rec)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("expected object or array, got %q", data[0])
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return records, nil
}

// NDJSON parses newline-delimited JSON objects. Blank lines are ignored.
type NDJSON struct{}

// NewNDJSON creates the newline-delimited JSON strategy.
func NewNDJSON() *NDJSON {
	return &NDJSON{}
}

// Name returns the strategy identifier.
func (n *NDJSON) Name() string {
	return "ndjson"
}

// Parse decodes one record per non-blank line.
func (n *NDJSON) Parse(data []byte, opts Options) ([]*model.Record, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var (
		records []*model.Record
		line    int
	)
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()
		rec, err := decodeObject(dec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if dec.More() {
			return nil, fmt.Errorf("line %d: more than one value", line)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning: %w", err)
	}
	return records, nil
}

// decodeObject reads one JSON object from dec, keeping key order.
func decodeObject(dec *json.Decoder) (*model.Record, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	rec := model.NewRecord(8)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		rec.Set(name, value)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return rec, nil
}
