package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
)

// ErrThrottled is returned when DynamoDB rejects the counter update for capacity.
var ErrThrottled = errors.New("counter update throttled")

// Counter hands out monotonically increasing numbers per key. Each call is a
// single atomic ADD, so concurrent callers never receive the same value.
type Counter struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewCounter returns a Counter backed by tableName (PK counter_key).
func NewCounter(client aws.DynamoDBAPI, tableName string) *Counter {
	return &Counter{client: client, tableName: tableName, nowFunc: time.Now}
}

// Next increments key and returns the new value. The first call for a key returns 1.
func (c *Counter) Next(ctx context.Context, key string) (int64, error) {
	out, err := c.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &c.tableName,
		Key: map[string]types.AttributeValue{
			"counter_key": &types.AttributeValueMemberS{Value: key},
		},
		UpdateExpression: awsString("ADD seq :one SET updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":ua":  &types.AttributeValueMemberS{Value: c.nowFunc().UTC().Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ProvisionedThroughputExceededException" {
			return 0, fmt.Errorf("next %s: %w", key, ErrThrottled)
		}
		return 0, fmt.Errorf("next %s: %w", key, err)
	}
	seq, ok := out.Attributes["seq"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("next %s: counter value missing from response", key)
	}
	n, err := strconv.ParseInt(seq.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("next %s: parse counter: %w", key, err)
	}
	return n, nil
}

// PeriodKey is prefix + two-digit year + two-digit month, e.g. "CR2510".
func PeriodKey(prefix string, t time.Time) string {
	return fmt.Sprintf("%s%02d%02d", prefix, t.Year()%100, int(t.Month()))
}

// Number renders a human-readable identifier: period key + zero padded sequence.
func Number(periodKey string, seq int64, width int) string {
	return fmt.Sprintf("%s%0*d", periodKey, width, seq)
}

func awsString(s string) *string { return &s }
