package pickerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/picknpack/dashboard/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	stockCategoriesPath = "/api/dashboard/stock/categories"
	stockProductsPath   = "/api/dashboard/stock/products"

	// DefaultPageSize is the product page size when ProductQuery.Limit is unset.
	DefaultPageSize = 40
)

// ListCategories fetches the category → sub-category mapping.
func (c *Client) ListCategories(ctx context.Context) (model.CategoryTree, error) {
	body, err := c.do(ctx, http.MethodGet, stockCategoriesPath, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return decodeCategories(body), nil
}

// ProductQuery selects one page of products. Empty fields are not sent.
type ProductQuery struct {
	Query       string
	Category    string
	SubCategory string
	Cursor      string
	Limit       int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	v.Set("limit", strconv.Itoa(limit))
	if q.Cursor != "" {
		v.Set("cursor", q.Cursor)
	}
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.SubCategory != "" {
		v.Set("sub_category", q.SubCategory)
	}
	return v
}

// ListProducts fetches one page of products.
func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (*model.ProductPage, error) {
	body, err := c.do(ctx, http.MethodGet, stockProductsPath, q.values(), nil)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return c.decodeProductPage(body), nil
}

func (c *Client) decodeProductPage(body []byte) *model.ProductPage {
	page := &model.ProductPage{Products: []model.StockProduct{}}
	raw := bytes.TrimSpace(body)
	if len(raw) == 0 {
		return page
	}

	var rows []json.RawMessage
	if raw[0] == '[' {
		_ = json.Unmarshal(raw, &rows)
	} else if f, ok := decodeFields(raw); ok {
		rows, _ = f.array(pageProductsKeys...)
		if s := f.str(pageCursorKeys...); s != nil {
			page.NextCursor = *s
		}
		if n, ok := f.int64(pageTotalKeys...); ok {
			page.TotalCount = &n
		}
	}

	for i, row := range rows {
		p, err := decodeProduct(row)
		if err != nil {
			c.log.Warn("skipping undecodable product", zap.Int("index", i), zap.Error(err))
			continue
		}
		page.Products = append(page.Products, p)
	}
	return page
}

// ProductInput is a full product for creation.
type ProductInput struct {
	Name          string
	DisplayNameEn string
	Price         decimal.Decimal
	StockAmount   decimal.Decimal
	StockUnit     string
	Category      string
	SubCategory   string
}

// ProductPatch carries only the fields being changed.
type ProductPatch struct {
	Name          *string
	DisplayNameEn *string
	Price         *decimal.Decimal
	StockAmount   *decimal.Decimal
	StockUnit     *string
	Category      *string
	SubCategory   *string
}

// Empty reports whether the patch changes nothing.
func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.DisplayNameEn == nil && p.Price == nil &&
		p.StockAmount == nil && p.StockUnit == nil && p.Category == nil && p.SubCategory == nil
}

// productBody is the wire form. Decimals go out as JSON numbers.
type productBody struct {
	ShopID        int64        `json:"shop_id"`
	Name          *string      `json:"name,omitempty"`
	DisplayNameEn *string      `json:"display_name_en,omitempty"`
	Price         *json.Number `json:"price,omitempty"`
	StockAmount   *json.Number `json:"stock_amount,omitempty"`
	StockUnit     *string      `json:"stock_unit,omitempty"`
	Category      *string      `json:"category,omitempty"`
	SubCategory   *string      `json:"sub_category,omitempty"`
}

func number(d *decimal.Decimal) *json.Number {
	if d == nil {
		return nil
	}
	n := json.Number(d.String())
	return &n
}

func (c *Client) createBody(in ProductInput) productBody {
	b := productBody{
		ShopID:        c.shopID,
		Name:          &in.Name,
		DisplayNameEn: &in.DisplayNameEn,
		Price:         number(&in.Price),
		StockAmount:   number(&in.StockAmount),
		Category:      &in.Category,
		SubCategory:   &in.SubCategory,
	}
	if in.StockUnit != "" {
		unit := NormalizeStockUnit(in.StockUnit)
		b.StockUnit = &unit
	}
	return b
}

func (c *Client) patchBody(p ProductPatch) productBody {
	b := productBody{
		ShopID:        c.shopID,
		Name:          p.Name,
		DisplayNameEn: p.DisplayNameEn,
		Price:         number(p.Price),
		StockAmount:   number(p.StockAmount),
		Category:      p.Category,
		SubCategory:   p.SubCategory,
	}
	if p.StockUnit != nil {
		unit := NormalizeStockUnit(*p.StockUnit)
		b.StockUnit = &unit
	}
	return b
}

// CreateProduct adds a product. The returned product is nil when the API
// answers without one.
func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (*model.StockProduct, error) {
	body, err := c.do(ctx, http.MethodPost, stockProductsPath, nil, c.createBody(in))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return decodeProductResponse(body), nil
}

// UpdateProduct changes the fields set in p.
func (c *Client) UpdateProduct(ctx context.Context, id int64, p ProductPatch) (*model.StockProduct, error) {
	path := fmt.Sprintf("%s/%d", stockProductsPath, id)
	body, err := c.do(ctx, http.MethodPatch, path, nil, c.patchBody(p))
	if err != nil {
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	return decodeProductResponse(body), nil
}

// DeleteProduct removes a product.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	path := fmt.Sprintf("%s/%d", stockProductsPath, id)
	if _, err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return nil
}

func decodeProductResponse(body []byte) *model.StockProduct {
	inner, ok := unwrap(body, productWrapperKeys...)
	if !ok {
		return nil
	}
	p, err := decodeProduct(inner)
	if err != nil {
		return nil
	}
	return &p
}
