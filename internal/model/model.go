// Package model holds the canonical shapes every other package works with.
// Wire aliases are resolved by pickerapi before values reach this package.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a picker order as reported by the shop API.
type Order struct {
	ID            int64       `json:"id"`
	ShopID        int64       `json:"shop_id"`
	Status        string      `json:"status"`
	CreatedAt     *time.Time  `json:"created_at"`
	CustomerName  *string     `json:"customer_name"`
	CustomerPhone *string     `json:"customer_phone"`
	CustomerNotes *string     `json:"customer_notes"`
	PickerNote    *string     `json:"picker_note"`
	Items         []OrderItem `json:"items"`
}

// OrderItem is one line of an order. Picked is only meaningful before the
// order reaches ready.
type OrderItem struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	Amount         decimal.Decimal  `json:"amount"`
	Unit           *string          `json:"unit"`
	SoldByWeight   bool             `json:"sold_by_weight"`
	RequestedUnits *decimal.Decimal `json:"requested_units"`
	Picked         bool             `json:"picked"`
	Notes          *string          `json:"notes"`
}

// Clone returns a copy whose Items slice can be modified independently.
func (o Order) Clone() Order {
	c := o
	c.Items = make([]OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	return c
}

// StockProduct is a catalog entry.
type StockProduct struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	DisplayNameEn string           `json:"display_name_en"`
	Price         *decimal.Decimal `json:"price"`
	StockAmount   *decimal.Decimal `json:"stock_amount"`
	StockUnit     string           `json:"stock_unit"`
	Category      *string          `json:"category"`
	SubCategory   *string          `json:"sub_category"`
	CreatedAt     *time.Time       `json:"created_at"`
	UpdatedAt     *time.Time       `json:"updated_at"`
}

// ProductPage is one cursor page of products.
type ProductPage struct {
	Products   []StockProduct `json:"products"`
	NextCursor string         `json:"next_cursor"`
	TotalCount *int64         `json:"total_count"`
}

// CategoryTree maps a category to its sub-categories.
type CategoryTree map[string][]string

// HasSub reports whether sub is a declared child of category.
func (t CategoryTree) HasSub(category, sub string) bool {
	for _, s := range t[category] {
		if s == sub {
			return true
		}
	}
	return false
}
