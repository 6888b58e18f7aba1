package orders

import "github.com/shopspring/decimal"

var (
	taxRate               = decimal.RequireFromString("0.10")
	freeShippingThreshold = decimal.NewFromInt(100)
	flatShipping          = decimal.NewFromInt(15)
)

// ComputePricing prices items from their captured unit prices:
// tax is a flat 10% of the subtotal and shipping is free above 100, else 15.
// Amounts are exact decimals; nothing is rounded.
func ComputePricing(items []Item) Pricing {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	tax := subtotal.Mul(taxRate)
	shipping := flatShipping
	if subtotal.GreaterThan(freeShippingThreshold) {
		shipping = decimal.Zero
	}
	total := subtotal.Add(tax).Add(shipping)

	return Pricing{
		Subtotal: subtotal.InexactFloat64(),
		Tax:      tax.InexactFloat64(),
		Shipping: shipping.InexactFloat64(),
		Total:    total.InexactFloat64(),
	}
}
