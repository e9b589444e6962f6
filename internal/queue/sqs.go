package queue

import (
	"context"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/pkg/errors"
)

const (
	// sqsMaxBatch is the largest batch ReceiveMessage accepts.
	sqsMaxBatch = 10
	// sqsMaxWait is the longest long-poll ReceiveMessage accepts.
	sqsMaxWait = 20 * time.Second
)

// SQS is a Channel backed by an SQS queue.
type SQS struct {
	client sqsiface.SQSAPI
	url    string
	logger logger.ILogger
}

// NewSQS creates a channel for the queue at queueURL. When queueURL is empty
// the URL is looked up from queueName.
func NewSQS(ctx context.Context, client sqsiface.SQSAPI, queueURL, queueName string, log logger.ILogger) (*SQS, error) {
	if queueURL == "" {
		if queueName == "" {
			return nil, errors.New("sqs queue url or name is required")
		}
		out, err := client.GetQueueUrlWithContext(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(queueName)})
		if err != nil {
			return nil, errors.Wrapf(err, "resolving url of queue %s", queueName)
		}
		queueURL = aws.StringValue(out.QueueUrl)
	}

	return &SQS{
		client: client,
		url:    queueURL,
		logger: log.SubLogger("SQS"),
	}, nil
}

// URL returns the queue URL.
func (q *SQS) URL() string {
	return q.url
}

// Receive long-polls the queue. limit is clamped to 1..10 and wait to 0..20s.
func (q *SQS) Receive(ctx context.Context, limit int, wait time.Duration) ([]Message, error) {
	limit = min(max(limit, 1), sqsMaxBatch)
	wait = min(max(wait, 0), sqsMaxWait)

	out, err := q.client.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: aws.Int64(int64(limit)),
		WaitTimeSeconds:     aws.Int64(int64(wait / time.Second)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "receiving from %s", q.url)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			ID:      aws.StringValue(m.MessageId),
			Body:    aws.StringValue(m.Body),
			Receipt: aws.StringValue(m.ReceiptHandle),
		})
	}

	if len(msgs) > 0 {
		q.logger.Debugf("received messages: queue=%s, count=%d", q.url, len(msgs))
	}
	return msgs, nil
}

// Delete removes the message delivery identified by msg.Receipt.
func (q *SQS) Delete(ctx context.Context, msg Message) error {
	_, err := q.client.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(msg.Receipt),
	})
	if err != nil {
		return errors.Wrapf(err, "deleting message %s", msg.ID)
	}
	return nil
}
