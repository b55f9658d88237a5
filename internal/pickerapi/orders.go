package pickerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/picknpack/dashboard/internal/enum"
	"github.com/picknpack/dashboard/internal/model"
	"go.uber.org/zap"
)

const pickerOrdersPath = "/api/dashboard/picker/orders"

// defaultStatuses is what the API is asked for when the caller names none.
var defaultStatuses = []string{enum.OrderStatusConfirmed, enum.OrderStatusPreparing}

// ListOrders fetches the shop's orders in the given statuses.
// Orders without a usable id are skipped and logged, as are such items;
// an order keeps its other items.
func (c *Client) ListOrders(ctx context.Context, statuses []string) ([]model.Order, error) {
	if len(statuses) == 0 {
		statuses = defaultStatuses
	}
	q := url.Values{}
	q.Set("status", strings.Join(statuses, ","))

	body, err := c.do(ctx, http.MethodGet, pickerOrdersPath, q, nil)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return c.decodeOrderList(body), nil
}

func (c *Client) decodeOrderList(body []byte) []model.Order {
	raw := bytes.TrimSpace(body)
	if len(raw) == 0 {
		return []model.Order{}
	}

	var rows []json.RawMessage
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &rows); err != nil {
			c.log.Warn("order list is not an array", zap.Error(err))
			return []model.Order{}
		}
	} else if f, ok := decodeFields(raw); ok {
		rows, _ = f.array(orderListKeys...)
	}

	orders := make([]model.Order, 0, len(rows))
	for i, row := range rows {
		o, err := c.decodeOrder(row)
		if err != nil {
			c.log.Warn("skipping undecodable order", zap.Int("index", i), zap.Error(err))
			continue
		}
		orders = append(orders, o)
	}
	return orders
}

type setStatusRequest struct {
	Status     string  `json:"status"`
	PickerNote *string `json:"picker_note,omitempty"`
}

// SetOrderStatus asks the API to move an order to status. A nil note leaves
// the server-held picker note untouched. The returned order is nil when the
// API answers without one.
func (c *Client) SetOrderStatus(ctx context.Context, orderID int64, status string, note *string) (*model.Order, error) {
	path := fmt.Sprintf("%s/%d/status", pickerOrdersPath, orderID)
	body, err := c.do(ctx, http.MethodPatch, path, nil, setStatusRequest{Status: status, PickerNote: note})
	if err != nil {
		return nil, fmt.Errorf("set order %d status %s: %w", orderID, status, err)
	}
	inner, ok := unwrap(body, orderWrapperKeys...)
	if !ok {
		return nil, nil
	}
	o, err := c.decodeOrder(inner)
	if err != nil {
		c.log.Warn("status response carried no usable order", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, nil
	}
	return &o, nil
}
