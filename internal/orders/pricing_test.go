package orders

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputePricing_EveningDressOrder(t *testing.T) {
	p := ComputePricing([]Item{{ProductID: "p1", Quantity: 3, Size: "M", Price: 299.99}})

	if p.Subtotal != 899.97 {
		t.Fatalf("subtotal = %v", p.Subtotal)
	}
	if p.Tax != 89.997 {
		t.Fatalf("tax = %v", p.Tax)
	}
	if p.Shipping != 0 {
		t.Fatalf("shipping = %v", p.Shipping)
	}
	if p.Total != 989.967 {
		t.Fatalf("total = %v", p.Total)
	}
}

func TestComputePricing_ShippingThreshold(t *testing.T) {
	cases := []struct {
		name     string
		price    float64
		qty      int
		shipping float64
	}{
		{"below threshold", 49.99, 1, 15},
		{"exactly 100 still pays", 50, 2, 15},
		{"just above threshold", 100.01, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := ComputePricing([]Item{{Quantity: tc.qty, Price: tc.price}})
			if p.Shipping != tc.shipping {
				t.Fatalf("shipping = %v, want %v", p.Shipping, tc.shipping)
			}
		})
	}
}

func TestComputePricing_TotalIsSumOfParts(t *testing.T) {
	carts := [][]Item{
		{{Quantity: 1, Price: 89.99}},
		{{Quantity: 2, Price: 149.99}, {Quantity: 1, Price: 199.99}},
		{{Quantity: 7, Price: 12.35}, {Quantity: 3, Price: 0.99}},
	}
	for _, items := range carts {
		p := ComputePricing(items)
		sum := decimal.NewFromFloat(p.Subtotal).Add(decimal.NewFromFloat(p.Tax)).Add(decimal.NewFromFloat(p.Shipping))
		if !sum.Equal(decimal.NewFromFloat(p.Total)) {
			t.Fatalf("total %v != subtotal+tax+shipping %v", p.Total, sum)
		}
		wantTax := decimal.NewFromFloat(p.Subtotal).Mul(decimal.RequireFromString("0.1"))
		if !wantTax.Equal(decimal.NewFromFloat(p.Tax)) {
			t.Fatalf("tax %v != 10%% of %v", p.Tax, p.Subtotal)
		}
	}
}
