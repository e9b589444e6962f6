// Package ingest runs the per-file pipeline: resolve, fetch, detect, parse, store.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/s3-ingestor/internal/backend"
	"github.com/GabrielNunesIT/s3-ingestor/internal/fetcher"
	"github.com/GabrielNunesIT/s3-ingestor/internal/metrics"
	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
	"github.com/GabrielNunesIT/s3-ingestor/internal/parser"
)

// RuleResolver finds the routing rule for an object key.
type RuleResolver interface {
	Resolve(ctx context.Context, key string) (model.RoutingRule, bool, error)
}

// Parser parses file bytes of a given type.
type Parser interface {
	Parse(data []byte, fileType string, opts parser.Options) ([]*model.Record, error)
}

// Orchestrator processes one file reference at a time. It holds no mutable
// state and may be reused across calls.
type Orchestrator struct {
	resolver RuleResolver
	fetcher  fetcher.Fetcher
	parser   Parser
	store    backend.Inserter
	logger   logger.ILogger
}

// NewOrchestrator wires the pipeline collaborators.
func NewOrchestrator(resolver RuleResolver, f fetcher.Fetcher, p Parser, store backend.Inserter, log logger.ILogger) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		fetcher:  f,
		parser:   p,
		store:    store,
		logger:   log.SubLogger("Orchestrator"),
	}
}

// ProcessFile runs every stage in order and stops at the first failure.
// Failures are returned as *model.IngestError; nothing is retried.
func (o *Orchestrator) ProcessFile(ctx context.Context, ref model.FileReference) (model.Outcome, error) {
	start := time.Now()

	outcome, err := o.run(ctx, ref)
	if err != nil {
		var ie *model.IngestError
		if errors.As(err, &ie) {
			metrics.FileFailed(string(ie.Stage), string(ie.Kind), time.Since(start))
			o.logger.Errorf("ingestion failed: bucket=%s, key=%s, stage=%s, kind=%s, error=%v",
				ref.Bucket, ref.Key, ie.Stage, ie.Kind, ie.Err)
		}
		return outcome, err
	}

	metrics.FileStored(outcome.Target, outcome.Records, time.Since(start))
	o.logger.Infof("file ingested: bucket=%s, key=%s, type=%s, target=%s, records=%d",
		ref.Bucket, ref.Key, outcome.FileType, outcome.Target, outcome.Records)
	return outcome, nil
}

func (o *Orchestrator) run(ctx context.Context, ref model.FileReference) (model.Outcome, error) {
	outcome := model.Outcome{Ref: ref}

	rule, found, err := o.resolver.Resolve(ctx, ref.Key)
	if err != nil {
		kind := model.KindRuleStore
		if errors.Is(err, model.ErrConfig) {
			kind = model.KindConfig
		}
		return outcome, fail(kind, model.StageResolve, ref, err)
	}
	if !found {
		return outcome, fail(model.KindNoMatchingRule, model.StageResolve, ref, model.ErrNoMatchingRule)
	}
	outcome.Target = rule.Target

	data, err := o.fetcher.Fetch(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return outcome, fail(model.KindFetch, model.StageFetch, ref, err)
	}

	opts, err := parser.ParseOptions(rule.ParserConfig)
	if err != nil {
		return outcome, fail(model.KindConfig, model.StageDetect, ref, err)
	}
	fileType := parser.DetectType(ref.Key)
	if fileType == "" {
		o.logger.Warningf("object key has no extension: bucket=%s, key=%s", ref.Bucket, ref.Key)
	}
	if opts.Format != "" {
		fileType = opts.Format
	}
	outcome.FileType = fileType

	records, err := o.parser.Parse(data, fileType, opts)
	if err != nil {
		return outcome, fail(model.KindParse, model.StageParse, ref, err)
	}

	ids, err := o.store.InsertMany(ctx, rule.Target, records)
	if err != nil {
		return outcome, fail(model.KindStorage, model.StageStore, ref, err)
	}
	outcome.Records = len(records)
	outcome.IDs = ids

	return outcome, nil
}

func fail(kind model.Kind, stage model.Stage, ref model.FileReference, err error) error {
	return &model.IngestError{Kind: kind, Stage: stage, Ref: ref, Err: err}
}
