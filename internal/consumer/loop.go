// Package consumer polls the notification channel and feeds file references
// to the ingestion pipeline.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/s3-ingestor/internal/metrics"
	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
	"github.com/GabrielNunesIT/s3-ingestor/internal/queue"
)

// FileProcessor runs the pipeline for one file reference.
type FileProcessor interface {
	ProcessFile(ctx context.Context, ref model.FileReference) (model.Outcome, error)
}

// Option configures a Loop.
type Option func(*Loop)

// WithBatchSize sets the maximum messages per poll.
func WithBatchSize(n int) Option {
	return func(l *Loop) {
		l.batchSize = n
	}
}

// WithWaitTime sets the long-poll wait.
func WithWaitTime(d time.Duration) Option {
	return func(l *Loop) {
		l.waitTime = d
	}
}

// WithDecodeKeys URL-decodes object keys, as S3 event notifications encode them.
func WithDecodeKeys(decode bool) Option {
	return func(l *Loop) {
		l.decodeKeys = decode
	}
}

// Loop alternates between polling the channel and processing the received
// batch, one message and one record at a time.
type Loop struct {
	channel    queue.Channel
	processor  FileProcessor
	batchSize  int
	waitTime   time.Duration
	decodeKeys bool
	logger     logger.ILogger
}

// NewLoop creates a consumer loop.
func NewLoop(ch queue.Channel, processor FileProcessor, log logger.ILogger, opts ...Option) *Loop {
	l := &Loop{
		channel:   ch,
		processor: processor,
		batchSize: 10,
		waitTime:  20 * time.Second,
		logger:    log.SubLogger("Consumer"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run polls until ctx is cancelled. Only channel failures are returned; a
// failed file leaves its message undeleted for redelivery.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Infof("consumer started: batch_size=%d, wait_time=%s", l.batchSize, l.waitTime)

	for ctx.Err() == nil {
		if err := l.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
	}

	l.logger.Info("consumer stopped")
	return nil
}

// Poll receives one batch and processes it. Once ctx is cancelled the message
// in progress is finished and the rest of the batch is left for redelivery.
func (l *Loop) Poll(ctx context.Context) error {
	msgs, err := l.channel.Receive(ctx, l.batchSize, l.waitTime)
	metrics.Polled()
	if err != nil {
		return fmt.Errorf("receiving messages: %w", err)
	}

	for i, msg := range msgs {
		if ctx.Err() != nil {
			l.logger.Infof("stopping with undelivered batch: remaining=%d", len(msgs)-i)
			return nil
		}
		if err := l.HandleMessage(context.WithoutCancel(ctx), msg); err != nil {
			return err
		}
	}
	return nil
}

// HandleMessage processes every record of msg in order and deletes msg only
// when all of them succeeded. The first failed record stops the message.
// Only a failed delete is returned.
func (l *Loop) HandleMessage(ctx context.Context, msg queue.Message) error {
	records, err := DecodeEnvelope(msg.Body)
	if err != nil {
		metrics.MessageHandled(metrics.MessageMalformed)
		l.logger.Warningf("message retained: message_id=%s, error=%v", msg.ID, err)
		return nil
	}

	for i, rec := range records {
		ref, ok := l.reference(msg, i, rec)
		if !ok {
			continue
		}

		if _, err := l.processor.ProcessFile(ctx, ref); err != nil {
			metrics.MessageHandled(metrics.MessageRetained)
			l.logger.Warningf("message retained for redelivery: message_id=%s, record=%d, bucket=%s, key=%s, kind=%s",
				msg.ID, i, ref.Bucket, ref.Key, kindOf(err))
			return nil
		}
	}

	if err := l.channel.Delete(ctx, msg); err != nil {
		return fmt.Errorf("deleting message %s: %w", msg.ID, err)
	}
	metrics.MessageHandled(metrics.MessageDeleted)
	l.logger.Debugf("message deleted: message_id=%s, records=%d", msg.ID, len(records))
	return nil
}

// reference extracts the file reference of record i, logging why it is skipped.
func (l *Loop) reference(msg queue.Message, i int, rec EnvelopeRecord) (model.FileReference, bool) {
	bucket, okBucket := rec.Bucket()
	key, okKey := rec.Key()
	if !okBucket || !okKey {
		metrics.RecordSkipped()
		l.logger.Warningf("skipping envelope record: message_id=%s, record=%d, has_bucket=%t, has_key=%t",
			msg.ID, i, okBucket, okKey)
		return model.FileReference{}, false
	}

	if l.decodeKeys {
		decoded, err := url.QueryUnescape(key)
		if err != nil {
			l.logger.Warningf("using undecoded key: message_id=%s, key=%s, error=%v", msg.ID, key, err)
		} else {
			key = decoded
		}
	}
	return model.FileReference{Bucket: bucket, Key: key}, true
}

func kindOf(err error) string {
	if kind := model.KindOf(err); kind != "" {
		return string(kind)
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "unknown"
}
