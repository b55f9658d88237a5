package pickerapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/picknpack/dashboard/internal/enum"
	"github.com/picknpack/dashboard/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Accepted source aliases, first match wins. A key holding JSON null counts
// as absent.
var (
	orderIDKeys       = []string{"id", "order_id", "orderId"}
	orderShopKeys     = []string{"shop_id", "shopId"}
	orderStatusKeys   = []string{"status"}
	orderCreatedKeys  = []string{"created_at", "createdAt"}
	orderNoteKeys     = []string{"picker_note", "pickerNote"}
	orderNameKeys     = []string{"customer_name", "customerName", "name"}
	orderPhoneKeys    = []string{"customer_phone", "customerPhone", "phone"}
	orderCustNoteKeys = []string{"customer_notes", "customerNotes", "notes"}
	orderItemsKeys    = []string{"items", "order_items", "orderItems", "lines"}

	itemIDKeys        = []string{"id", "order_item_id", "orderItemId"}
	itemNameKeys      = []string{"name", "product_name", "label", "title"}
	itemAmountKeys    = []string{"amount", "qty", "quantity"}
	itemUnitKeys      = []string{"unit", "units", "unit_label"}
	itemWeightKeys    = []string{"sold_by_weight", "soldByWeight"}
	itemRequestedKeys = []string{"requested_units", "requestedUnits"}
	itemPickedKeys    = []string{"picked", "is_picked", "isPicked", "picked_up"}
	itemNotesKeys     = []string{"notes", "comment"}

	productDisplayKeys = []string{"display_name_en", "displayNameEn"}
	productStockKeys   = []string{"stock_amount", "stockAmount"}
	productUnitKeys    = []string{"stock_unit", "stockUnit"}
	productSubKeys     = []string{"sub_category", "subCategory"}
	productCreatedKeys = []string{"created_at", "createdAt"}
	productUpdatedKeys = []string{"updated_at", "updatedAt"}

	pageProductsKeys = []string{"products", "data"}
	pageCursorKeys   = []string{"next_cursor", "nextCursor"}
	pageTotalKeys    = []string{"total_count", "totalCount", "total", "count_total"}

	orderListKeys      = []string{"orders", "data"}
	orderWrapperKeys   = []string{"order", "data"}
	productWrapperKeys = []string{"product", "data"}
	categoryRowsKeys   = []string{"categories", "data"}
	categoryNameKeys   = []string{"category", "name", "key"}
	categorySubKeys    = []string{"sub_categories", "subCategories"}
)

const defaultItemName = "item"

var errMissingID = errors.New("missing id")

var truthy = map[string]bool{"1": true, "true": true, "yes": true, "כן": true}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// fields is one JSON object with lookups across aliases.
type fields map[string]json.RawMessage

func decodeFields(data []byte) (fields, bool) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil || f == nil {
		return nil, false
	}
	return f, true
}

func isNull(v json.RawMessage) bool {
	t := bytes.TrimSpace(v)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func (f fields) raw(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := f[k]; ok && !isNull(v) {
			return v, true
		}
	}
	return nil, false
}

func (f fields) str(keys ...string) *string {
	v, ok := f.raw(keys...)
	if !ok {
		return nil
	}
	s, ok := scalarString(v)
	if !ok {
		return nil
	}
	return &s
}

func (f fields) int64(keys ...string) (int64, bool) {
	v, ok := f.raw(keys...)
	if !ok {
		return 0, false
	}
	s, ok := scalarString(v)
	if !ok {
		return 0, false
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return n, true
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsInteger() {
		return 0, false
	}
	return d.IntPart(), true
}

func (f fields) decimal(keys ...string) *decimal.Decimal {
	v, ok := f.raw(keys...)
	if !ok {
		return nil
	}
	s, ok := scalarString(v)
	if !ok {
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &d
}

func (f fields) boolean(keys ...string) bool {
	v, ok := f.raw(keys...)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		fv, err := n.Float64()
		return err == nil && fv != 0
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return truthy[strings.ToLower(strings.TrimSpace(s))]
	}
	return false
}

func (f fields) time(keys ...string) *time.Time {
	v, ok := f.raw(keys...)
	if !ok {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		ms, err := n.Int64()
		if err != nil {
			return nil
		}
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil
	}
	return parseTime(s)
}

func (f fields) array(keys ...string) ([]json.RawMessage, bool) {
	v, ok := f.raw(keys...)
	if !ok {
		return nil, false
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(v, &arr); err != nil {
		return nil, false
	}
	return arr, true
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// scalarString renders a JSON string, number or bool as text.
func scalarString(v json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String(), true
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}

// decodeOrder normalizes one order. Items without a usable id are skipped
// and logged; the rest of the order is kept.
func (c *Client) decodeOrder(data []byte) (model.Order, error) {
	f, ok := decodeFields(data)
	if !ok {
		return model.Order{}, errors.New("order is not an object")
	}
	id, ok := f.int64(orderIDKeys...)
	if !ok {
		return model.Order{}, errMissingID
	}

	o := model.Order{
		ID:            id,
		ShopID:        c.shopID,
		Status:        enum.OrderStatusConfirmed,
		CreatedAt:     f.time(orderCreatedKeys...),
		CustomerName:  f.str(orderNameKeys...),
		CustomerPhone: f.str(orderPhoneKeys...),
		CustomerNotes: f.str(orderCustNoteKeys...),
		PickerNote:    f.str(orderNoteKeys...),
		Items:         []model.OrderItem{},
	}
	if shop, ok := f.int64(orderShopKeys...); ok {
		o.ShopID = shop
	}
	if s := f.str(orderStatusKeys...); s != nil {
		o.Status = *s
	}

	rawItems, _ := f.array(orderItemsKeys...)
	for i, raw := range rawItems {
		item, err := decodeItem(raw)
		if err != nil {
			c.log.Warn("skipping undecodable order item", zap.Int64("order_id", id),
				zap.Error(&decodeError{what: "item", index: i, err: err}))
			continue
		}
		o.Items = append(o.Items, item)
	}
	return o, nil
}

func decodeItem(data []byte) (model.OrderItem, error) {
	f, ok := decodeFields(data)
	if !ok {
		return model.OrderItem{}, errors.New("item is not an object")
	}
	id, ok := f.int64(itemIDKeys...)
	if !ok {
		return model.OrderItem{}, errMissingID
	}

	byWeight := f.boolean(itemWeightKeys...)
	item := model.OrderItem{
		ID:             id,
		Name:           defaultItemName,
		Amount:         decimal.NewFromInt(1),
		Unit:           f.str(itemUnitKeys...),
		SoldByWeight:   byWeight,
		RequestedUnits: f.decimal(itemRequestedKeys...),
		Picked:         f.boolean(itemPickedKeys...),
		Notes:          f.str(itemNotesKeys...),
	}
	if name := f.str(itemNameKeys...); name != nil {
		item.Name = *name
	}
	if amount := f.decimal(itemAmountKeys...); amount != nil {
		item.Amount = *amount
	}
	if item.Unit == nil {
		unit := enum.StockUnitUnit
		if byWeight {
			unit = enum.StockUnitKg
		}
		item.Unit = &unit
	}
	return item, nil
}

func decodeProduct(data []byte) (model.StockProduct, error) {
	f, ok := decodeFields(data)
	if !ok {
		return model.StockProduct{}, errors.New("product is not an object")
	}
	id, ok := f.int64("id")
	if !ok {
		return model.StockProduct{}, errMissingID
	}
	p := model.StockProduct{
		ID:          id,
		Price:       f.decimal("price"),
		StockAmount: f.decimal(productStockKeys...),
		Category:    f.str("category"),
		SubCategory: f.str(productSubKeys...),
		CreatedAt:   f.time(productCreatedKeys...),
		UpdatedAt:   f.time(productUpdatedKeys...),
	}
	if s := f.str("name"); s != nil {
		p.Name = *s
	}
	if s := f.str(productDisplayKeys...); s != nil {
		p.DisplayNameEn = *s
	}
	if s := f.str(productUnitKeys...); s != nil {
		p.StockUnit = NormalizeStockUnit(*s)
	}
	return p, nil
}

// NormalizeStockUnit maps the unit labels seen in the wild onto kg/unit.
// Unknown labels pass through.
func NormalizeStockUnit(u string) string {
	switch strings.TrimSpace(u) {
	case "":
		return ""
	case "kg", `ק"ג`, "ק״ג":
		return enum.StockUnitKg
	case "unit", "units", "יח'", "יח׳":
		return enum.StockUnitUnit
	}
	return u
}

func decodeCategories(data []byte) model.CategoryTree {
	tree := model.CategoryTree{}
	t := bytes.TrimSpace(data)
	if len(t) == 0 {
		return tree
	}

	var rows []json.RawMessage
	if t[0] == '[' {
		if err := json.Unmarshal(t, &rows); err != nil {
			return tree
		}
		return categoryRows(rows)
	}

	f, ok := decodeFields(t)
	if !ok {
		return tree
	}
	if rows, ok := f.array(categoryRowsKeys...); ok {
		return categoryRows(rows)
	}
	for k, v := range f {
		if k == "" {
			continue
		}
		tree[k] = stringList(v)
	}
	return tree
}

func categoryRows(rows []json.RawMessage) model.CategoryTree {
	tree := model.CategoryTree{}
	for _, raw := range rows {
		f, ok := decodeFields(raw)
		if !ok {
			continue
		}
		name := f.str(categoryNameKeys...)
		if name == nil || *name == "" {
			continue
		}
		subs := []string{}
		if v, ok := f.raw(categorySubKeys...); ok {
			subs = stringList(v)
		}
		tree[*name] = subs
	}
	return tree
}

func stringList(v json.RawMessage) []string {
	var arr []json.RawMessage
	if err := json.Unmarshal(v, &arr); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, el := range arr {
		if s, ok := scalarString(el); ok {
			out = append(out, s)
		}
	}
	return out
}

// unwrap returns the object stored under the first wrapper key, or data
// itself when no wrapper is present.
func unwrap(data []byte, keys ...string) ([]byte, bool) {
	f, ok := decodeFields(data)
	if !ok {
		return nil, false
	}
	if inner, ok := f.raw(keys...); ok && bytes.HasPrefix(bytes.TrimSpace(inner), []byte("{")) {
		return inner, true
	}
	if _, ok := f.raw(orderIDKeys...); ok {
		return data, true
	}
	return nil, false
}

type decodeError struct {
	what  string
	index int
	err   error
}

func (e *decodeError) Error() string {
	return e.what + "[" + strconv.Itoa(e.index) + "]: " + e.err.Error()
}

func (e *decodeError) Unwrap() error {
	return e.err
}
