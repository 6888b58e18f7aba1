package catalog

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
)

// productsMock keeps products as typed values and understands the single-size
// stock update issued by AdjustStock. Methods not overridden panic via the
// nil embedded interface.
type productsMock struct {
	aws.DynamoDBAPI

	mu       sync.Mutex
	products map[string]Product
	updates  int
}

func newProductsMock(products ...Product) *productsMock {
	m := &productsMock{products: map[string]Product{}}
	for _, p := range products {
		m.products[p.ProductID] = p
	}
	return m
}

func (m *productsMock) image(id string) map[string]types.AttributeValue {
	p, ok := m.products[id]
	if !ok {
		return nil
	}
	item, _ := attributevalue.MarshalMap(p)
	return item
}

func (m *productsMock) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := in.Key["product_id"].(*types.AttributeValueMemberS).Value
	return &dyn.GetItemOutput{Item: m.image(id)}, nil
}

func (m *productsMock) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var p Product
	if err := attributevalue.UnmarshalMap(in.Item, &p); err != nil {
		return nil, err
	}
	m.products[p.ProductID] = p
	return &dyn.PutItemOutput{}, nil
}

func (m *productsMock) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++

	id := in.Key["product_id"].(*types.AttributeValueMemberS).Value
	size := in.ExpressionAttributeNames["#sz"]
	if size == "" {
		return nil, errors.New("mock only supports single size updates")
	}
	p, ok := m.products[id]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	current, ok := p.Sizes[size]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Item: m.image(id)}
	}
	if need, ok := in.ExpressionAttributeValues[":need"]; ok {
		n, _ := strconv.Atoi(need.(*types.AttributeValueMemberN).Value)
		if current < n {
			return nil, &types.ConditionalCheckFailedException{Item: m.image(id)}
		}
	}
	delta, _ := strconv.Atoi(in.ExpressionAttributeValues[":delta"].(*types.AttributeValueMemberN).Value)

	sizes := map[string]int{}
	for k, v := range p.Sizes {
		sizes[k] = v
	}
	sizes[size] = current + delta
	p.Sizes = sizes
	m.products[id] = p

	return &dyn.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		"sizes": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			size: &types.AttributeValueMemberN{Value: strconv.Itoa(sizes[size])},
		}},
	}}, nil
}

func (m *productsMock) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &dyn.ScanOutput{}
	for id, p := range m.products {
		if p.IsActive {
			out.Items = append(out.Items, m.image(id))
		}
	}
	return out, nil
}
