package backend

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
)

// DynamoDBBackend writes one PutItem per record.
//
// DynamoDB does not return an identifier for a put, so InsertMany returns a
// random UUID per written record. These are for logging only; they do not
// identify the stored items.
type DynamoDBBackend struct {
	client dynamodbiface.DynamoDBAPI
	logger logger.ILogger
}

// NewDynamoDBBackend creates a backend using client.
func NewDynamoDBBackend(client dynamodbiface.DynamoDBAPI, log logger.ILogger) *DynamoDBBackend {
	return &DynamoDBBackend{
		client: client,
		logger: log.SubLogger("DynamoDBBackend"),
	}
}

// Name returns the backend identifier.
func (b *DynamoDBBackend) Name() string {
	return "dynamodb"
}

// Start is a no-op.
func (b *DynamoDBBackend) Start(ctx context.Context) error {
	return nil
}

// Stop is a no-op.
func (b *DynamoDBBackend) Stop(ctx context.Context) error {
	return nil
}

// InsertMany puts records in order. The first failed put aborts the rest of
// the batch; items already written stay written.
func (b *DynamoDBBackend) InsertMany(ctx context.Context, target string, records []*model.Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(records))
	for i, r := range records {
		_, err := b.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(target),
			Item:      toItem(r),
		})
		if err != nil {
			return ids, errors.Wrapf(err, "putting record %d of %d into %s", i+1, len(records), target)
		}
		ids = append(ids, uuid.NewString())
	}

	b.logger.Debugf("put items: table=%s, count=%d", target, len(ids))
	return ids, nil
}

func toItem(r *model.Record) map[string]*dynamodb.AttributeValue {
	item := make(map[string]*dynamodb.AttributeValue, r.Len())
	for _, f := range r.Fields() {
		item[f.Name] = attributeValue(f.Value)
	}
	return item
}

// attributeValue maps strings to S, numbers to N, booleans to BOOL and
// anything else to S holding its string form.
func attributeValue(v any) *dynamodb.AttributeValue {
	switch val := v.(type) {
	case string:
		return &dynamodb.AttributeValue{S: aws.String(val)}
	case bool:
		return &dynamodb.AttributeValue{BOOL: aws.Bool(val)}
	case json.Number:
		return &dynamodb.AttributeValue{N: aws.String(val.String())}
	case int:
		return &dynamodb.AttributeValue{N: aws.String(strconv.Itoa(val))}
	case int32:
		return &dynamodb.AttributeValue{N: aws.String(strconv.FormatInt(int64(val), 10))}
	case int64:
		return &dynamodb.AttributeValue{N: aws.String(strconv.FormatInt(val, 10))}
	case float32:
		return &dynamodb.AttributeValue{N: aws.String(strconv.FormatFloat(float64(val), 'f', -1, 32))}
	case float64:
		return &dynamodb.AttributeValue{N: aws.String(strconv.FormatFloat(val, 'f', -1, 64))}
	default:
		return &dynamodb.AttributeValue{S: aws.String(stringForm(val))}
	}
}
