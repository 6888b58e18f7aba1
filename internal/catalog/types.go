package catalog

import (
	"encoding/json"
	"time"
)

// Size is a garment size with its own stock counter.
type Size string

const (
	SizeXS  Size = "XS"
	SizeS   Size = "S"
	SizeM   Size = "M"
	SizeL   Size = "L"
	SizeXL  Size = "XL"
	SizeXXL Size = "XXL"
)

// Sizes lists every size in display order.
var Sizes = []Size{SizeXS, SizeS, SizeM, SizeL, SizeXL, SizeXXL}

// Valid reports whether s is one of Sizes.
func (s Size) Valid() bool {
	for _, v := range Sizes {
		if s == v {
			return true
		}
	}
	return false
}

func (s Size) rank() int {
	for i, v := range Sizes {
		if s == v {
			return i
		}
	}
	return len(Sizes)
}

// Category values
const (
	CategoryCasual      = "casual"
	CategoryFormal      = "formal"
	CategoryEvening     = "evening"
	CategoryWedding     = "wedding"
	CategoryCustom      = "custom"
	CategoryAccessories = "accessories"
)

// Product is the item stored in the products table. Stock lives in Sizes,
// keyed by size, so a single item update can touch several sizes at once.
type Product struct {
	ProductID   string         `dynamodbav:"product_id" json:"id"` // PK
	Name        string         `dynamodbav:"name" json:"name"`
	Description string         `dynamodbav:"description,omitempty" json:"description,omitempty"`
	Price       float64        `dynamodbav:"price" json:"price"`
	Category    string         `dynamodbav:"category" json:"category"`
	IsActive    bool           `dynamodbav:"is_active" json:"isActive"`
	Featured    bool           `dynamodbav:"featured" json:"featured"`
	Sizes       map[string]int `dynamodbav:"sizes" json:"-"`
	Colors      []string       `dynamodbav:"colors,omitempty" json:"colors,omitempty"`
	Tags        []string       `dynamodbav:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt   time.Time      `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `dynamodbav:"updated_at" json:"updatedAt"`
}

// SizeEntry is one size counter as exposed over the API.
type SizeEntry struct {
	Size  Size `json:"size"`
	Stock int  `json:"stock"`
}

// Stock returns the stock for size and whether the size entry exists.
func (p *Product) Stock(size Size) (int, bool) {
	n, ok := p.Sizes[string(size)]
	return n, ok
}

// SizeEntries returns the size counters in display order.
func (p *Product) SizeEntries() []SizeEntry {
	out := make([]SizeEntry, 0, len(p.Sizes))
	for _, s := range Sizes {
		if n, ok := p.Sizes[string(s)]; ok {
			out = append(out, SizeEntry{Size: s, Stock: n})
		}
	}
	return out
}

// MarshalJSON renders sizes as an ordered list of {size, stock}.
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		Sizes []SizeEntry `json:"sizes"`
	}{plain(p), p.SizeEntries()})
}
