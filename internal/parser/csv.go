package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
)

// CSV parses delimited text. The first row names the fields; each later row
// becomes one record keyed by header position. Values stay strings.
type CSV struct{}

// NewCSV creates the delimited-text strategy.
func NewCSV() *CSV {
	return &CSV{}
}

// Name returns the strategy identifier.
func (c *CSV) Name() string {
	return "csv"
}

var utf8BOM = []byte("\xef\xbb\xbf")

// Parse reads every row of data. Row fields beyond the header are dropped;
// header fields beyond the row are absent from that record. A leading UTF-8
// byte order mark is ignored.
func (c *CSV) Parse(data []byte, opts Options) ([]*model.Record, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = opts.LazyQuotes
	r.TrimLeadingSpace = opts.TrimLeadingSpace

	if opts.Delimiter != "" {
		d, err := singleRune("delimiter", opts.Delimiter)
		if err != nil {
			return nil, err
		}
		r.Comma = d
	}
	if opts.Comment != "" {
		cm, err := singleRune("comment", opts.Comment)
		if err != nil {
			return nil, err
		}
		r.Comment = cm
	}

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var records []*model.Record
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(records)+1, err)
		}

		n := min(len(row), len(header))
		rec := model.NewRecord(n)
		for i := 0; i < n; i++ {
			rec.Set(header[i], row[i])
		}
		records = append(records, rec)
	}
	return records, nil
}

func singleRune(name, s string) (rune, error) {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("csv %s must be a single character, got %q", name, s)
	}
	return r, nil
}
