package model

import (
	"errors"
	"fmt"
)

// Kind classifies an ingestion failure.
type Kind string

const (
	KindNoMatchingRule Kind = "no_matching_rule"
	KindConfig         Kind = "config"
	KindRuleStore      Kind = "rule_store"
	KindFetch          Kind = "fetch"
	KindParse          Kind = "parse"
	KindStorage        Kind = "storage"
)

// Stage names one step of the ingestion pipeline.
type Stage string

const (
	StageResolve Stage = "resolve"
	StageFetch   Stage = "fetch"
	StageDetect  Stage = "detect"
	StageParse   Stage = "parse"
	StageStore   Stage = "store"
)

var (
	// ErrNoMatchingRule is returned when no routing rule matches an object key.
	ErrNoMatchingRule = errors.New("no matching routing rule")

	// ErrConfig marks invalid routing configuration (bad pattern, malformed stored rule).
	ErrConfig = errors.New("invalid routing configuration")

	// ErrUnsupportedType is returned when no parsing strategy is registered for a file type.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// IngestError is a classified, stage-tagged failure for one file reference.
// All kinds are terminal for the reference; nothing is retried internally.
type IngestError struct {
	Kind  Kind
	Stage Stage
	Ref   FileReference
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("%s failed for %s (%s): %v", e.Stage, e.Ref, e.Kind, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first IngestError in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

// StageOf returns the stage of the first IngestError in err's chain, or "" if there is none.
func StageOf(err error) Stage {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Stage
	}
	return ""
}
