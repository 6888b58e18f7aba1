package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
)

// Store is the catalog guard: it owns the per-size stock counters in the
// products table. Every stock mutation is a single conditional write.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new catalog Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

func productKey(productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: productID},
	}
}

// Get fetches a product by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, productID string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            productKey(productID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return unmarshalProduct(out.Item)
}

// Put creates or replaces a product. A missing id is generated; a nil size
// map is stored as an empty map so nested size updates always have a parent.
func (s *Store) Put(ctx context.Context, p Product) (*Product, error) {
	now := s.nowFunc().UTC()
	if p.ProductID == "" {
		p.ProductID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Sizes == nil {
		p.Sizes = map[string]int{}
	}
	for size, n := range p.Sizes {
		if !Size(size).Valid() {
			return nil, fmt.Errorf("invalid size %q", size)
		}
		if n < 0 {
			return nil, fmt.Errorf("negative stock for size %s", size)
		}
	}

	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return nil, fmt.Errorf("marshal product: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{TableName: &s.tableName, Item: item}); err != nil {
		return nil, fmt.Errorf("put product: %w", err)
	}
	return &p, nil
}

// GetStock returns the stock for one size of a product.
func (s *Store) GetStock(ctx context.Context, productID string, size Size) (int, error) {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, ErrProductNotFound
	}
	n, ok := p.Stock(size)
	if !ok {
		return 0, ErrSizeNotFound
	}
	return n, nil
}

// AdjustStock applies stock += delta to one size and returns the new level.
// A negative delta larger than the current stock fails with
// *InsufficientStockError and leaves the item untouched.
func (s *Store) AdjustStock(ctx context.Context, productID string, size Size, delta int) (int, error) {
	if delta == 0 {
		return s.GetStock(ctx, productID, size)
	}

	cond := "attribute_exists(product_id) AND attribute_exists(sizes.#sz)"
	values := map[string]types.AttributeValue{
		":delta": numberAttr(delta),
		":ua":    &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339)},
	}
	if delta < 0 {
		cond += " AND sizes.#sz >= :need"
		values[":need"] = numberAttr(-delta)
	}

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                           &s.tableName,
		Key:                                 productKey(productID),
		UpdateExpression:                    awsString("SET sizes.#sz = sizes.#sz + :delta, updated_at = :ua"),
		ConditionExpression:                 &cond,
		ExpressionAttributeNames:            map[string]string{"#sz": string(size)},
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueUpdatedNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, classifyAdjustFailure(productID, size, -delta, ccf.Item)
		}
		return 0, fmt.Errorf("adjust stock: %w", err)
	}

	var updated struct {
		Sizes map[string]int `dynamodbav:"sizes"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return 0, fmt.Errorf("unmarshal adjusted stock: %w", err)
	}
	return updated.Sizes[string(size)], nil
}

func classifyAdjustFailure(productID string, size Size, need int, old map[string]types.AttributeValue) error {
	if len(old) == 0 {
		return ErrProductNotFound
	}
	p, err := unmarshalProduct(old)
	if err != nil {
		return err
	}
	n, ok := p.Stock(size)
	if !ok {
		return ErrSizeNotFound
	}
	return &InsufficientStockError{ProductID: productID, ProductName: p.Name, Size: size, Requested: need, Available: n}
}

// ReserveItem builds the transactional update that decrements every size in
// qty for one product. The condition re-validates that the product is active
// and that each size still covers its quantity at commit time.
func (s *Store) ReserveItem(productID string, qty map[Size]int) types.TransactWriteItem {
	names, values, sets, conds := sizeExpressions(qty, func(path, val string) string {
		return path + " = " + path + " - " + val
	})
	conds = append([]string{"attribute_exists(product_id)", "is_active = :active"}, conds...)
	values[":active"] = &types.AttributeValueMemberBOOL{Value: true}
	values[":ua"] = &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339)}

	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:                           &s.tableName,
			Key:                                 productKey(productID),
			UpdateExpression:                    awsString("SET " + strings.Join(append(sets, "updated_at = :ua"), ", ")),
			ConditionExpression:                 awsString(strings.Join(conds, " AND ")),
			ExpressionAttributeNames:            names,
			ExpressionAttributeValues:           values,
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		},
	}
}

// RestoreItem builds the transactional update that adds qty back. Restoration
// is additive and never clamped; a size entry removed since the reservation
// is recreated.
func (s *Store) RestoreItem(productID string, qty map[Size]int) types.TransactWriteItem {
	names, values, sets, _ := sizeExpressions(qty, func(path, val string) string {
		return path + " = if_not_exists(" + path + ", :zero) + " + val
	})
	values[":zero"] = numberAttr(0)
	values[":ua"] = &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339)}

	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:                           &s.tableName,
			Key:                                 productKey(productID),
			UpdateExpression:                    awsString("SET " + strings.Join(append(sets, "updated_at = :ua"), ", ")),
			ConditionExpression:                 awsString("attribute_exists(product_id)"),
			ExpressionAttributeNames:            names,
			ExpressionAttributeValues:           values,
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		},
	}
}

// ClassifyReserveFailure explains why a ReserveItem condition failed, given
// the item image DynamoDB returned with the cancellation reason.
func ClassifyReserveFailure(productID string, qty map[Size]int, old map[string]types.AttributeValue) error {
	if len(old) == 0 {
		return ErrProductNotFound
	}
	p, err := unmarshalProduct(old)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return ErrProductInactive
	}
	for _, size := range sortedSizes(qty) {
		n, _ := p.Stock(size)
		if n < qty[size] {
			return &InsufficientStockError{ProductID: productID, ProductName: p.Name, Size: size, Requested: qty[size], Available: n}
		}
	}
	// condition failed but the image satisfies it: stock moved between the
	// failure and the read. Report the first size as contended.
	sizes := sortedSizes(qty)
	if len(sizes) == 0 {
		return fmt.Errorf("reserve %s: condition failed with no sizes", productID)
	}
	n, _ := p.Stock(sizes[0])
	return &InsufficientStockError{ProductID: productID, ProductName: p.Name, Size: sizes[0], Requested: qty[sizes[0]], Available: n}
}

// sizeExpressions renders one SET clause and one ">=" condition per size.
func sizeExpressions(qty map[Size]int, set func(path, val string) string) (map[string]string, map[string]types.AttributeValue, []string, []string) {
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	var sets, conds []string
	for i, size := range sortedSizes(qty) {
		nameKey := "#s" + strconv.Itoa(i)
		valKey := ":q" + strconv.Itoa(i)
		path := "sizes." + nameKey
		names[nameKey] = string(size)
		values[valKey] = numberAttr(qty[size])
		sets = append(sets, set(path, valKey))
		conds = append(conds, path+" >= "+valKey)
	}
	return names, values, sets, conds
}

func sortedSizes(qty map[Size]int) []Size {
	out := make([]Size, 0, len(qty))
	for s := range qty {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].rank() < out[j].rank() })
	return out
}

// List scans active products and applies filter, sort and pagination.
func (s *Store) List(ctx context.Context, f ListFilter) (ListResult, error) {
	var all []Product
	input := &dyn.ScanInput{
		TableName:                 &s.tableName,
		FilterExpression:          awsString("is_active = :active"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":active": &types.AttributeValueMemberBOOL{Value: true}},
	}
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return ListResult{}, fmt.Errorf("scan products: %w", err)
		}
		var page []Product
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return ListResult{}, fmt.Errorf("unmarshal products: %w", err)
		}
		all = append(all, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return ApplyFilter(all, f), nil
}

func unmarshalProduct(item map[string]types.AttributeValue) (*Product, error) {
	var p Product
	if err := attributevalue.UnmarshalMap(item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	if p.Sizes == nil {
		p.Sizes = map[string]int{}
	}
	return &p, nil
}

func numberAttr(n int) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.Itoa(n)}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
