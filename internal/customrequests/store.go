package customrequests

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
	"github.com/imrishuroy/go-storefront-orders/internal/paging"
)

var (
	ErrNotFound       = errors.New("custom request not found")
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
)

// ListResult is one page of requests, newest first.
type ListResult struct {
	Requests   []Request         `json:"requests"`
	Pagination paging.Pagination `json:"pagination"`
}

// Store encapsulates operations on the custom requests table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	userIndex string
	nowFunc   func() time.Time
}

// NewStore creates a new Store. userIndex is the sparse GSI keyed by
// user_id (hash) and created_at (range); guest requests are absent from it.
func NewStore(client aws.DynamoDBAPI, tableName, userIndex string) *Store {
	return &Store{client: client, tableName: tableName, userIndex: userIndex, nowFunc: time.Now}
}

func requestKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"request_id": &types.AttributeValueMemberS{Value: id},
	}
}

// Create inserts r. It fails if the id is already taken.
func (s *Store) Create(ctx context.Context, r Request) error {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(request_id)"),
	})
	if err != nil {
		return fmt.Errorf("put request: %w", err)
	}
	return nil
}

// Get fetches a request by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*Request, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            requestKey(id),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var r Request
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}
	return &r, nil
}

// ListByUser returns a page of the user's requests, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, status Status, page, limit int) (ListResult, error) {
	input := &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &s.userIndex,
		KeyConditionExpression: awsString("user_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: awsBool(false),
	}
	if status != "" {
		input.FilterExpression = awsString("#s = :status")
		input.ExpressionAttributeNames = map[string]string{"#s": "status"}
		input.ExpressionAttributeValues[":status"] = &types.AttributeValueMemberS{Value: string(status)}
	}

	all := []Request{}
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return ListResult{}, fmt.Errorf("query requests: %w", err)
		}
		var items []Request
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return ListResult{}, fmt.Errorf("unmarshal requests: %w", err)
		}
		all = append(all, items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	start, end, pagination := paging.Window(len(all), page, limit, paging.DefaultLimit)
	return ListResult{Requests: all[start:end], Pagination: pagination}, nil
}

// AddCommunication appends c to the request's thread and returns the
// updated request.
func (s *Store) AddCommunication(ctx context.Context, id string, c Communication) (*Request, error) {
	entry, err := attributevalue.Marshal([]Communication{c})
	if err != nil {
		return nil, fmt.Errorf("marshal communication: %w", err)
	}
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 requestKey(id),
		UpdateExpression:    awsString("SET communications = list_append(if_not_exists(communications, :empty), :c), updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(request_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c":     entry,
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":ua":    &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("add communication: %w", err)
	}
	return unmarshalAttributes(out.Attributes)
}

// UpdateStatus moves the request from expected to next, optionally replacing
// the admin response and appending communications, in one conditional write.
// Returns ErrStatusMismatch if the stored status is not expected.
func (s *Store) UpdateStatus(ctx context.Context, id string, expected, next Status, resp *AdminResponse, notes []Communication) (*Request, error) {
	updateExpr := "SET #s = :new, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: string(next)},
		":expected": &types.AttributeValueMemberS{Value: string(expected)},
		":ua":       &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)},
	}
	if resp != nil {
		av, err := attributevalue.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("marshal admin response: %w", err)
		}
		updateExpr += ", admin_response = :ar"
		values[":ar"] = av
	}
	if len(notes) > 0 {
		av, err := attributevalue.Marshal(notes)
		if err != nil {
			return nil, fmt.Errorf("marshal communications: %w", err)
		}
		updateExpr += ", communications = list_append(if_not_exists(communications, :empty), :c)"
		values[":c"] = av
		values[":empty"] = &types.AttributeValueMemberL{Value: []types.AttributeValue{}}
	}

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       requestKey(id),
		UpdateExpression:          &updateExpr,
		ConditionExpression:       awsString("attribute_exists(request_id) AND #s = :expected"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrStatusMismatch
		}
		return nil, fmt.Errorf("update request status: %w", err)
	}
	return unmarshalAttributes(out.Attributes)
}

func unmarshalAttributes(item map[string]types.AttributeValue) (*Request, error) {
	var r Request
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}
	return &r, nil
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
