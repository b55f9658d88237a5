package service

import (
	"cmp"
	"slices"
	"time"

	"github.com/picknpack/dashboard/internal/enum"
	"github.com/picknpack/dashboard/internal/model"
)

// rankUnknown places statuses outside the pipeline after every known one.
const rankUnknown = 9

// StatusRank is the display precedence of a status.
func StatusRank(status string) int {
	switch status {
	case enum.OrderStatusPreparing:
		return 0
	case enum.OrderStatusConfirmed:
		return 1
	case enum.OrderStatusReady:
		return 2
	case enum.OrderStatusCompleted:
		return 3
	default:
		return rankUnknown
	}
}

func createdUnix(o model.Order) int64 {
	if o.CreatedAt == nil {
		return 0
	}
	return o.CreatedAt.UnixNano()
}

// SortOrders returns a sorted copy: by status rank, then created_at
// ascending (missing counts as the epoch), then id.
func SortOrders(orders []model.Order) []model.Order {
	out := slices.Clone(orders)
	slices.SortStableFunc(out, func(a, b model.Order) int {
		if c := cmp.Compare(StatusRank(a.Status), StatusRank(b.Status)); c != 0 {
			return c
		}
		if c := cmp.Compare(createdUnix(a), createdUnix(b)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// overlayApplies reports whether local picks still override the server.
func overlayApplies(status string) bool {
	return status != enum.OrderStatusReady && status != enum.OrderStatusCompleted
}

// MergeOverlay applies the locally picked set to a copy of order. Before
// ready, an item is picked iff its id is in picked; a nil set is empty.
// Ready and completed orders keep the server values.
func MergeOverlay(order model.Order, picked map[int64]bool) model.Order {
	merged := order.Clone()
	if !overlayApplies(order.Status) {
		return merged
	}
	for i := range merged.Items {
		merged.Items[i].Picked = picked[merged.Items[i].ID]
	}
	return merged
}

func PickedCount(o model.Order) int {
	n := 0
	for _, it := range o.Items {
		if it.Picked {
			n++
		}
	}
	return n
}

// ProgressPct is the picked share rounded half-up to a whole percent.
func ProgressPct(o model.Order) int {
	total := len(o.Items)
	if total == 0 {
		return 0
	}
	return (PickedCount(o)*200 + total) / (2 * total)
}

func AllPicked(o model.Order) bool {
	return len(o.Items) > 0 && PickedCount(o) == len(o.Items)
}

// CanMarkReady gates the ready transition. Only preparing orders qualify;
// unless allowPartial is set, every item must be picked.
func CanMarkReady(o model.Order, allowPartial bool) bool {
	if o.Status != enum.OrderStatusPreparing {
		return false
	}
	return allowPartial || AllPicked(o)
}

// StatusesForTab lists the order statuses a tab shows. The stock tab shows
// none; an unknown tab returns nil, false.
func StatusesForTab(tab string) ([]string, bool) {
	switch tab {
	case enum.TabPending:
		return []string{enum.OrderStatusConfirmed, enum.OrderStatusPreparing}, true
	case enum.TabReady:
		return []string{enum.OrderStatusReady}, true
	case enum.TabCompleted:
		return []string{enum.OrderStatusCompleted}, true
	case enum.TabStock:
		return nil, true
	default:
		return nil, false
	}
}

func InTab(status, tab string) bool {
	statuses, _ := StatusesForTab(tab)
	return slices.Contains(statuses, status)
}

// ToggleIntent is the plan for an item toggle. Promote means the order must
// move confirmed → preparing before the pick is recorded.
type ToggleIntent struct {
	Promote bool
	Locked  bool
}

func PlanToggle(o model.Order, picked bool) ToggleIntent {
	if !overlayApplies(o.Status) {
		return ToggleIntent{Locked: true}
	}
	return ToggleIntent{Promote: picked && o.Status == enum.OrderStatusConfirmed}
}

// PickedSource yields the local picked set of an order.
type PickedSource interface {
	PickedSet(orderID int64) map[int64]bool
}

// ItemView is an item after the overlay merge.
type ItemView struct {
	model.OrderItem
	Busy bool `json:"busy"`
}

// OrderView is an order as the dashboard renders it.
type OrderView struct {
	ID            int64      `json:"id"`
	ShopID        int64      `json:"shop_id"`
	Status        string     `json:"status"`
	CreatedAt     *time.Time `json:"created_at"`
	CustomerName  *string    `json:"customer_name"`
	CustomerPhone *string    `json:"customer_phone"`
	CustomerNotes *string    `json:"customer_notes"`
	PickerNote    *string    `json:"picker_note"`
	NoteDraft     *string    `json:"note_draft"`
	Items         []ItemView `json:"items"`
	PickedCount   int        `json:"picked_count"`
	TotalItems    int        `json:"total_items"`
	ProgressPct   int        `json:"progress_pct"`
	AllPicked     bool       `json:"all_picked"`
	CanMarkReady  bool       `json:"can_mark_ready"`
	Busy          bool       `json:"busy"`
}

func newOrderView(merged model.Order, allowPartial bool) OrderView {
	v := OrderView{
		ID:            merged.ID,
		ShopID:        merged.ShopID,
		Status:        merged.Status,
		CreatedAt:     merged.CreatedAt,
		CustomerName:  merged.CustomerName,
		CustomerPhone: merged.CustomerPhone,
		CustomerNotes: merged.CustomerNotes,
		PickerNote:    merged.PickerNote,
		Items:         make([]ItemView, len(merged.Items)),
		PickedCount:   PickedCount(merged),
		TotalItems:    len(merged.Items),
		ProgressPct:   ProgressPct(merged),
		AllPicked:     AllPicked(merged),
		CanMarkReady:  CanMarkReady(merged, allowPartial),
	}
	for i, it := range merged.Items {
		v.Items[i] = ItemView{OrderItem: it}
	}
	return v
}

// Derive sorts, filters and annotates orders for one tab.
func Derive(orders []model.Order, overlay PickedSource, tab string, allowPartial bool) []OrderView {
	views := []OrderView{}
	for _, o := range SortOrders(orders) {
		if !InTab(o.Status, tab) {
			continue
		}
		var picked map[int64]bool
		if overlay != nil {
			picked = overlay.PickedSet(o.ID)
		}
		views = append(views, newOrderView(MergeOverlay(o, picked), allowPartial))
	}
	return views
}
