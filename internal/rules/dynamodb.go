package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/pkg/errors"

	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
)

// DynamoDBStore reads rules by scanning a DynamoDB table.
// Enumeration order is the scan order, which DynamoDB does not define.
type DynamoDBStore struct {
	client dynamodbiface.DynamoDBAPI
	table  string
}

// NewDynamoDBStore creates a store scanning table.
func NewDynamoDBStore(client dynamodbiface.DynamoDBAPI, table string) *DynamoDBStore {
	return &DynamoDBStore{client: client, table: table}
}

// Rules scans every page of the rule table.
func (s *DynamoDBStore) Rules(ctx context.Context) ([]model.RoutingRule, error) {
	var (
		rules     []model.RoutingRule
		decodeErr error
	)

	input := &dynamodb.ScanInput{TableName: aws.String(s.table)}
	err := s.client.ScanPagesWithContext(ctx, input, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, item := range page.Items {
			rule, err := decodeDynamoRule(item)
			if err != nil {
				decodeErr = fmt.Errorf("%w: rule %d: %v", model.ErrConfig, len(rules), err)
				return false
			}
			rules = append(rules, rule)
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scanning table %s", s.table)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return rules, nil
}

func decodeDynamoRule(item map[string]*dynamodb.AttributeValue) (model.RoutingRule, error) {
	rule := model.RoutingRule{
		Pattern: stringAttr(item, "pattern"),
		Target:  stringAttr(item, "target_table"),
	}

	av, ok := item["parser_config"]
	if !ok || av == nil || aws.BoolValue(av.NULL) {
		return rule, nil
	}

	switch {
	case av.S != nil:
		rule.ParserConfig = json.RawMessage(*av.S)
	case av.M != nil:
		var m map[string]interface{}
		if err := dynamodbattribute.UnmarshalMap(av.M, &m); err != nil {
			return rule, fmt.Errorf("decoding parser_config: %w", err)
		}
		raw, err := json.Marshal(m)
		if err != nil {
			return rule, fmt.Errorf("encoding parser_config: %w", err)
		}
		rule.ParserConfig = raw
	default:
		return rule, fmt.Errorf("unsupported parser_config attribute")
	}
	return rule, nil
}

func stringAttr(item map[string]*dynamodb.AttributeValue, name string) string {
	if av, ok := item[name]; ok && av != nil {
		return aws.StringValue(av.S)
	}
	return ""
}
