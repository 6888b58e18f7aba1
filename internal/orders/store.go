package orders

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
	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orders/internal/paging"
)

// DynamoDB caps a transaction at 100 items: one order Put, one optional
// idempotency Put, and one Update per distinct product.
const maxTransactItems = 100

// MaxProductsPerOrder is the number of distinct products one order may reserve.
const MaxProductsPerOrder = maxTransactItems - 2

var (
	// ErrStatusMismatch means the order was not in the expected status when the
	// conditional write ran.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrDuplicateRequest means the idempotency key was already claimed.
	ErrDuplicateRequest = errors.New("idempotency key already used")
)

// ReservationError ties a failed stock reservation to its product.
// Err is one of the catalog errors (*catalog.InsufficientStockError,
// catalog.ErrProductInactive, catalog.ErrProductNotFound).
type ReservationError struct {
	ProductID string
	Err       error
}

func (e *ReservationError) Error() string {
	return fmt.Sprintf("reserve %s: %v", e.ProductID, e.Err)
}

func (e *ReservationError) Unwrap() error { return e.Err }

// Store encapsulates operations on the orders table. Writes that touch stock
// go through a single TransactWriteItems call so they commit or fail as a unit.
type Store struct {
	client      aws.DynamoDBAPI
	tableName   string
	userIndex   string
	catalog     *catalog.Store
	idempotency *idempotency.Store
	nowFunc     func() time.Time
}

// NewStore creates a new orders Store. userIndex is the GSI keyed by
// user_id (hash) and created_at (range).
func NewStore(client aws.DynamoDBAPI, tableName, userIndex string, cat *catalog.Store, idem *idempotency.Store) *Store {
	return &Store{
		client:      client,
		tableName:   tableName,
		userIndex:   userIndex,
		catalog:     cat,
		idempotency: idem,
		nowFunc:     time.Now,
	}
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

// Create atomically reserves stock for every reservation, claims the
// idempotency key (when non-empty) and inserts the order.
//
// Transaction layout: [idempotency Put]?, product Updates..., order Put.
// A failed product condition is reported as *ReservationError; a claimed
// key as ErrDuplicateRequest.
func (s *Store) Create(ctx context.Context, order Order, reservations []Reservation, idempotencyKey string) error {
	if len(reservations) > MaxProductsPerOrder {
		return fmt.Errorf("order reserves %d products, limit is %d", len(reservations), MaxProductsPerOrder)
	}

	now := s.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	var transactItems []types.TransactWriteItem
	offset := 0
	if idempotencyKey != "" && s.idempotency != nil {
		claim, err := s.idempotency.ClaimItem(idempotencyKey, order.OrderID)
		if err != nil {
			return err
		}
		transactItems = append(transactItems, claim)
		offset = 1
	}
	for _, r := range reservations {
		transactItems = append(transactItems, s.catalog.ReserveItem(r.ProductID, r.Quantities))
	}
	transactItems = append(transactItems, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &s.tableName,
			Item:                orderMap,
			ConditionExpression: awsString("attribute_not_exists(order_id)"),
		},
	})

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems:      transactItems,
		ClientRequestToken: awsString(order.OrderID),
	})
	if err == nil {
		return nil
	}

	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return fmt.Errorf("transact write: %w", err)
	}
	for i, reason := range tce.CancellationReasons {
		if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
			continue
		}
		switch {
		case offset == 1 && i == 0:
			return ErrDuplicateRequest
		case i >= offset && i < offset+len(reservations):
			r := reservations[i-offset]
			return &ReservationError{
				ProductID: r.ProductID,
				Err:       catalog.ClassifyReserveFailure(r.ProductID, r.Quantities, reason.Item),
			}
		}
	}
	return fmt.Errorf("transaction canceled: %w", err)
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            orderKey(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// ListByUser returns a page of the user's orders, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, q ListQuery) (ListResult, error) {
	input := &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &s.userIndex,
		KeyConditionExpression: awsString("user_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: awsBool(false),
	}
	if q.Status != "" {
		input.FilterExpression = awsString("#s = :status")
		input.ExpressionAttributeNames = map[string]string{"#s": "status"}
		input.ExpressionAttributeValues[":status"] = &types.AttributeValueMemberS{Value: string(q.Status)}
	}

	var all []Order
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return ListResult{}, fmt.Errorf("query orders: %w", err)
		}
		var page []Order
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return ListResult{}, fmt.Errorf("unmarshal orders: %w", err)
		}
		all = append(all, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	start, end, pagination := paging.Window(len(all), q.Page, q.Limit, paging.DefaultLimit)
	return ListResult{Orders: all[start:end], Pagination: pagination}, nil
}

// UpdateStatus conditionally updates the order status from expected -> next.
// A non-empty note replaces the order notes. Returns ErrStatusMismatch if the
// condition failed.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, expected, next Status, note string) (*Order, error) {
	now := s.nowFunc().UTC()
	updateExpr := "SET #s = :new, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: string(next)},
		":expected": &types.AttributeValueMemberS{Value: string(expected)},
		":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
	}
	if note != "" {
		updateExpr += ", notes = :note"
		values[":note"] = &types.AttributeValueMemberS{Value: note}
	}

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       orderKey(orderID),
		UpdateExpression:          &updateExpr,
		ConditionExpression:       awsString("attribute_exists(order_id) AND #s = :expected"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrStatusMismatch
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Attributes, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// Cancel moves order from its current status to cancelled and restores the
// stock it reserved, in one transaction keyed on the status the caller read.
// Two concurrent cancels cannot both commit: the loser gets ErrStatusMismatch
// and restores nothing.
//
// Reservations whose product item no longer exists are dropped from the
// transaction and reported in CancelResult.Unreconciled.
func (s *Store) Cancel(ctx context.Context, order Order, note string) (*CancelResult, error) {
	pending := reservationsFor(order.Items)
	var unreconciled []Reservation

	for attempt := 0; attempt <= len(pending); attempt++ {
		now := s.nowFunc().UTC()
		err := s.cancelTx(ctx, order, pending, note, now)
		if err == nil {
			cancelled := order
			cancelled.Status = StatusCancelled
			cancelled.CancelledAt = &now
			cancelled.UpdatedAt = now
			if note != "" {
				cancelled.Notes = note
			}
			return &CancelResult{Order: &cancelled, Unreconciled: unreconciled}, nil
		}

		var missing *missingProductError
		if !errors.As(err, &missing) {
			return nil, err
		}
		unreconciled = append(unreconciled, pending[missing.index])
		pending = append(pending[:missing.index:missing.index], pending[missing.index+1:]...)
	}
	return nil, fmt.Errorf("cancel %s: restoration did not converge", order.OrderID)
}

type missingProductError struct{ index int }

func (e *missingProductError) Error() string { return "product item missing" }

func (s *Store) cancelTx(ctx context.Context, order Order, restores []Reservation, note string, now time.Time) error {
	updateExpr := "SET #s = :cancelled, cancelled_at = :ca, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":cancelled": &types.AttributeValueMemberS{Value: string(StatusCancelled)},
		":expected":  &types.AttributeValueMemberS{Value: string(order.Status)},
		":ca":        &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		":ua":        &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
	}
	if note != "" {
		updateExpr += ", notes = :note"
		values[":note"] = &types.AttributeValueMemberS{Value: note}
	}

	transactItems := []types.TransactWriteItem{{
		Update: &types.Update{
			TableName:                 &s.tableName,
			Key:                       orderKey(order.OrderID),
			UpdateExpression:          &updateExpr,
			ConditionExpression:       awsString("attribute_exists(order_id) AND #s = :expected"),
			ExpressionAttributeNames:  map[string]string{"#s": "status"},
			ExpressionAttributeValues: values,
		},
	}}
	for _, r := range restores {
		transactItems = append(transactItems, s.catalog.RestoreItem(r.ProductID, r.Quantities))
	}

	_, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: transactItems})
	if err == nil {
		return nil
	}
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return fmt.Errorf("transact write: %w", err)
	}
	for i, reason := range tce.CancellationReasons {
		if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
			continue
		}
		if i == 0 {
			return ErrStatusMismatch
		}
		return &missingProductError{index: i - 1}
	}
	return fmt.Errorf("transaction canceled: %w", err)
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
