// Package model defines the core data structures used throughout the ingestor.
package model

import (
	"encoding/json"
	"fmt"
)

// FileReference identifies one object-store entry to ingest.
// It lives only for the duration of one pipeline run.
type FileReference struct {
	Bucket string
	Key    string
}

// String renders the reference as an s3 URL for log messages.
func (r FileReference) String() string {
	return fmt.Sprintf("s3://%s/%s", r.Bucket, r.Key)
}

// RoutingRule maps object keys matching Pattern to the Target destination.
type RoutingRule struct {
	// Pattern is an unanchored regular expression tested against the object key.
	Pattern string `json:"pattern" yaml:"pattern" bson:"pattern"`

	// Target is the destination table, collection or index name.
	Target string `json:"target_table" yaml:"target_table" bson:"target_table"`

	// ParserConfig is passed untouched to the parsing strategy.
	ParserConfig json.RawMessage `json:"parser_config,omitempty" yaml:"-" bson:"-"`
}

// Outcome summarizes a successful pipeline run for one file reference.
// Failures are reported through *IngestError instead.
type Outcome struct {
	Ref      FileReference
	Target   string
	FileType string
	Records  int

	// IDs holds backend-generated identifiers, when the backend returns any.
	IDs []string
}
