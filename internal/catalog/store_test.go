package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func eveningDress() Product {
	return Product{
		ProductID: "p-dress",
		Name:      "Elegant Evening Dress",
		Price:     299.99,
		Category:  CategoryEvening,
		IsActive:  true,
		Sizes:     map[string]int{"S": 5, "M": 8, "L": 6, "XL": 3},
	}
}

func TestGetStock(t *testing.T) {
	s := NewStore(newProductsMock(eveningDress()), "products")
	ctx := context.Background()

	n, err := s.GetStock(ctx, "p-dress", SizeM)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 8 {
		t.Fatalf("expected 8, got %d", n)
	}

	if _, err := s.GetStock(ctx, "p-dress", SizeXXL); !errors.Is(err, ErrSizeNotFound) {
		t.Fatalf("expected ErrSizeNotFound, got %v", err)
	}
	if _, err := s.GetStock(ctx, "missing", SizeM); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestAdjustStock_DecrementAndIncrement(t *testing.T) {
	mock := newProductsMock(eveningDress())
	s := NewStore(mock, "products")
	ctx := context.Background()

	n, err := s.AdjustStock(ctx, "p-dress", SizeM, -3)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 after decrement, got %d", n)
	}

	n, err = s.AdjustStock(ctx, "p-dress", SizeM, 3)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if n != 8 {
		t.Fatalf("expected 8 after increment, got %d", n)
	}
}

func TestAdjustStock_InsufficientLeavesStockUnchanged(t *testing.T) {
	mock := newProductsMock(eveningDress())
	s := NewStore(mock, "products")

	_, err := s.AdjustStock(context.Background(), "p-dress", SizeXL, -4)
	var ise *InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if ise.Available != 3 || ise.Requested != 4 || ise.Size != SizeXL {
		t.Fatalf("unexpected error detail: %+v", ise)
	}
	if mock.products["p-dress"].Sizes["XL"] != 3 {
		t.Fatalf("stock changed on failure: %d", mock.products["p-dress"].Sizes["XL"])
	}
}

func TestAdjustStock_NotFound(t *testing.T) {
	s := NewStore(newProductsMock(eveningDress()), "products")
	ctx := context.Background()

	if _, err := s.AdjustStock(ctx, "nope", SizeM, 1); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := s.AdjustStock(ctx, "p-dress", SizeXS, 1); !errors.Is(err, ErrSizeNotFound) {
		t.Fatalf("expected ErrSizeNotFound, got %v", err)
	}
}

func TestAdjustStock_ConcurrentDecrementsNeverGoNegative(t *testing.T) {
	mock := newProductsMock(eveningDress())
	s := NewStore(mock, "products")

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, insufficient := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AdjustStock(context.Background(), "p-dress", SizeXL, -1)
			mu.Lock()
			defer mu.Unlock()
			var ise *InsufficientStockError
			switch {
			case err == nil:
				ok++
			case errors.As(err, &ise):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 3 || insufficient != 17 {
		t.Fatalf("expected 3 successes and 17 rejections, got %d/%d", ok, insufficient)
	}
	if got := mock.products["p-dress"].Sizes["XL"]; got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

func TestPut_RejectsInvalidSizes(t *testing.T) {
	s := NewStore(newProductsMock(), "products")
	_, err := s.Put(context.Background(), Product{Name: "x", Sizes: map[string]int{"XXXL": 1}})
	if err == nil {
		t.Fatalf("expected error for invalid size")
	}
	_, err = s.Put(context.Background(), Product{Name: "x", Sizes: map[string]int{"M": -1}})
	if err == nil {
		t.Fatalf("expected error for negative stock")
	}
}

func TestPut_AssignsIDAndTimestamps(t *testing.T) {
	mock := newProductsMock()
	s := NewStore(mock, "products")
	fixed := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return fixed }

	p, err := s.Put(context.Background(), Product{Name: "Scarf", Price: 20, IsActive: true})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if p.ProductID == "" {
		t.Fatalf("expected generated id")
	}
	if !p.CreatedAt.Equal(fixed) || !p.UpdatedAt.Equal(fixed) {
		t.Fatalf("timestamps not set: %v %v", p.CreatedAt, p.UpdatedAt)
	}
	if p.Sizes == nil {
		t.Fatalf("sizes should be an empty map")
	}
}

func TestReserveItem_BuildsConditionalMultiSizeUpdate(t *testing.T) {
	s := NewStore(newProductsMock(), "products")
	item := s.ReserveItem("p-dress", map[Size]int{SizeL: 1, SizeS: 2})

	u := item.Update
	if u == nil {
		t.Fatalf("expected Update")
	}
	if *u.TableName != "products" {
		t.Fatalf("table = %s", *u.TableName)
	}
	// sizes are rendered in display order: S before L
	if u.ExpressionAttributeNames["#s0"] != "S" || u.ExpressionAttributeNames["#s1"] != "L" {
		t.Fatalf("unexpected names %v", u.ExpressionAttributeNames)
	}
	wantSet := "SET sizes.#s0 = sizes.#s0 - :q0, sizes.#s1 = sizes.#s1 - :q1, updated_at = :ua"
	if *u.UpdateExpression != wantSet {
		t.Fatalf("update expression = %q", *u.UpdateExpression)
	}
	cond := *u.ConditionExpression
	for _, part := range []string{"attribute_exists(product_id)", "is_active = :active", "sizes.#s0 >= :q0", "sizes.#s1 >= :q1"} {
		if !strings.Contains(cond, part) {
			t.Fatalf("condition %q missing %q", cond, part)
		}
	}
	if u.ReturnValuesOnConditionCheckFailure != types.ReturnValuesOnConditionCheckFailureAllOld {
		t.Fatalf("expected ALL_OLD on condition failure")
	}
}

func TestRestoreItem_IsAdditiveAndRecreatesMissingSizes(t *testing.T) {
	s := NewStore(newProductsMock(), "products")
	item := s.RestoreItem("p-dress", map[Size]int{SizeM: 3})

	want := "SET sizes.#s0 = if_not_exists(sizes.#s0, :zero) + :q0, updated_at = :ua"
	if got := *item.Update.UpdateExpression; got != want {
		t.Fatalf("update expression = %q", got)
	}
	if got := *item.Update.ConditionExpression; got != "attribute_exists(product_id)" {
		t.Fatalf("condition = %q", got)
	}
}

func TestClassifyReserveFailure(t *testing.T) {
	dress := eveningDress()
	image, _ := attributevalue.MarshalMap(dress)

	err := ClassifyReserveFailure("p-dress", map[Size]int{SizeM: 2, SizeXL: 4}, image)
	var ise *InsufficientStockError
	if !errors.As(err, &ise) || ise.Size != SizeXL || ise.Available != 3 {
		t.Fatalf("expected XL shortfall, got %v", err)
	}

	dress.IsActive = false
	inactive, _ := attributevalue.MarshalMap(dress)
	if err := ClassifyReserveFailure("p-dress", map[Size]int{SizeM: 1}, inactive); !errors.Is(err, ErrProductInactive) {
		t.Fatalf("expected ErrProductInactive, got %v", err)
	}

	if err := ClassifyReserveFailure("p-dress", map[Size]int{SizeM: 1}, nil); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}
