package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/picknpack/dashboard/internal/enum"
	"github.com/picknpack/dashboard/internal/model"
	"github.com/picknpack/dashboard/internal/overlay"
	"go.uber.org/zap"
)

// OrderAPI defines the remote calls needed for the picker flow.
// Satisfied by *pickerapi.Client.
type OrderAPI interface {
	ListOrders(ctx context.Context, statuses []string) ([]model.Order, error)
	SetOrderStatus(ctx context.Context, orderID int64, status string, note *string) (*model.Order, error)
}

// OverlayStore defines the local draft state the service reads and clears.
// Satisfied by *overlay.Store.
type OverlayStore interface {
	PickedSource
	SetItemPicked(ctx context.Context, orderID, itemID int64, picked bool) error
	ClearPicked(ctx context.Context, orderID int64) error
	NoteDraft(orderID int64) (string, bool)
	SetNoteDraft(ctx context.Context, orderID int64, note string) error
	ClearNote(ctx context.Context, orderID int64) error
}

var _ OverlayStore = (*overlay.Store)(nil)

// ToggleResult reports what a toggle did.
type ToggleResult struct {
	Promoted bool `json:"promoted"`
}

// Confirmation is what the mark-ready dialog shows before submitting.
type Confirmation struct {
	Order        OrderView `json:"order"`
	NoteDraft    string    `json:"note_draft"`
	HasDraft     bool      `json:"has_draft"`
	CanMarkReady bool      `json:"can_mark_ready"`
}

// OrderService holds the last fetched order snapshot and runs picker intents.
type OrderService struct {
	api          OrderAPI
	overlay      OverlayStore
	inflight     *Inflight
	notifier     Notifier
	log          *zap.Logger
	allowPartial bool

	mu      sync.RWMutex
	orders  []model.Order
	lastErr error

	onChange func()
}

// OrderOption configures an OrderService.
type OrderOption func(*OrderService)

func WithNotifier(n Notifier) OrderOption {
	return func(s *OrderService) { s.notifier = n }
}

func WithLogger(l *zap.Logger) OrderOption {
	return func(s *OrderService) { s.log = l }
}

func WithAllowPartial(allow bool) OrderOption {
	return func(s *OrderService) { s.allowPartial = allow }
}

// WithOnChange registers a hook fired after the snapshot or overlay changes.
func WithOnChange(fn func()) OrderOption {
	return func(s *OrderService) { s.onChange = fn }
}

// NewOrderService creates a new OrderService.
func NewOrderService(api OrderAPI, store OverlayStore, inflight *Inflight, opts ...OrderOption) *OrderService {
	s := &OrderService{
		api:      api,
		overlay:  store,
		inflight: inflight,
		notifier: nopNotifier{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.inflight == nil {
		s.inflight = NewInflight()
	}
	return s
}

func (s *OrderService) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Refresh replaces the snapshot with every tracked status. On failure the
// previous snapshot is kept and the error is remembered for LastError.
func (s *OrderService) Refresh(ctx context.Context) error {
	orders, err := s.api.ListOrders(ctx, enum.TrackedStatuses)

	s.mu.Lock()
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		return fmt.Errorf("refresh orders: %w", err)
	}
	s.orders = orders
	s.lastErr = nil
	s.mu.Unlock()

	s.changed()
	return nil
}

// LastError is the error of the most recent failed refresh, nil after a
// successful one.
func (s *OrderService) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// View derives the orders of a tab with busy flags and note drafts.
func (s *OrderService) View(tab string) ([]OrderView, error) {
	if _, ok := StatusesForTab(tab); !ok {
		return nil, fmt.Errorf("%q: %w", tab, ErrUnknownTab)
	}
	s.mu.RLock()
	orders := slices.Clone(s.orders)
	s.mu.RUnlock()

	views := Derive(orders, s.overlay, tab, s.allowPartial)
	for i := range views {
		s.annotate(&views[i])
	}
	return views, nil
}

func (s *OrderService) annotate(v *OrderView) {
	v.Busy = s.inflight.Pending(orderKey(enum.MutationStatus, v.ID))
	for j := range v.Items {
		v.Items[j].Busy = s.inflight.Pending(itemKey(enum.MutationToggleItem, v.ID, v.Items[j].ID))
	}
	if note, ok := s.overlay.NoteDraft(v.ID); ok {
		v.NoteDraft = &note
	}
}

// Counts returns the number of orders per order tab.
func (s *OrderService) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]int{enum.TabPending: 0, enum.TabReady: 0, enum.TabCompleted: 0}
	for _, o := range s.orders {
		for tab := range counts {
			if InTab(o.Status, tab) {
				counts[tab]++
			}
		}
	}
	return counts
}

func (s *OrderService) find(orderID int64) (model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.ID == orderID {
			return o.Clone(), nil
		}
	}
	return model.Order{}, fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
}

// applyStatus records a confirmed transition in the snapshot so the view is
// right even if the follow-up refetch fails.
func (s *OrderService) applyStatus(orderID int64, status string, updated *model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID != orderID {
			continue
		}
		if updated != nil && updated.ID == orderID {
			s.orders[i] = *updated
		}
		s.orders[i].Status = status
		return
	}
}

func (s *OrderService) refetch(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("refetch after mutation failed", zap.Error(err))
		s.changed()
	}
}

func (s *OrderService) fail(err error) error {
	s.notifier.Notify(enum.NotifyError, UserMessage(err))
	return err
}

// setStatus calls the API and records the result. The caller holds the
// order's status key.
func (s *OrderService) setStatus(ctx context.Context, orderID int64, status string, note *string) error {
	updated, err := s.api.SetOrderStatus(ctx, orderID, status, note)
	if err != nil {
		return fmt.Errorf("set order %d %s: %w", orderID, status, err)
	}
	s.applyStatus(orderID, status, updated)
	return nil
}

// StartPicking moves a confirmed order to preparing.
func (s *OrderService) StartPicking(ctx context.Context, orderID int64) error {
	o, err := s.find(orderID)
	if err != nil {
		return s.fail(err)
	}
	if o.Status != enum.OrderStatusConfirmed {
		return s.fail(fmt.Errorf("start picking order %d from %s: %w", orderID, o.Status, ErrIllegalTransition))
	}

	done, err := s.inflight.Begin(orderKey(enum.MutationStatus, orderID))
	if err != nil {
		return s.fail(err)
	}
	defer done()
	s.changed()

	if err := s.setStatus(ctx, orderID, enum.OrderStatusPreparing, nil); err != nil {
		s.changed()
		return s.fail(err)
	}
	s.log.Info("picking started", zap.Int64("order_id", orderID))
	s.refetch(ctx)
	return nil
}

// TogglePicked records a local pick. Picking on a confirmed order first
// promotes it to preparing; when the promotion fails nothing is recorded.
func (s *OrderService) TogglePicked(ctx context.Context, orderID, itemID int64, picked bool) (ToggleResult, error) {
	o, err := s.find(orderID)
	if err != nil {
		return ToggleResult{}, s.fail(err)
	}
	found := false
	for _, it := range o.Items {
		if it.ID == itemID {
			found = true
			break
		}
	}
	if !found {
		return ToggleResult{}, s.fail(fmt.Errorf("item %d of order %d: %w", itemID, orderID, ErrItemNotFound))
	}

	intent := PlanToggle(o, picked)
	if intent.Locked {
		return ToggleResult{}, s.fail(fmt.Errorf("toggle item %d of order %d: %w", itemID, orderID, ErrOrderLocked))
	}

	keys := []Key{itemKey(enum.MutationToggleItem, orderID, itemID)}
	if intent.Promote {
		keys = append(keys, orderKey(enum.MutationStatus, orderID))
	}
	done, err := s.inflight.Begin(keys...)
	if err != nil {
		return ToggleResult{}, s.fail(err)
	}
	defer done()

	if intent.Promote {
		s.changed()
		if err := s.setStatus(ctx, orderID, enum.OrderStatusPreparing, nil); err != nil {
			s.changed()
			return ToggleResult{}, s.fail(fmt.Errorf("promote before pick: %w", err))
		}
		s.log.Info("order promoted by pick", zap.Int64("order_id", orderID), zap.Int64("item_id", itemID))
	}

	if err := s.overlay.SetItemPicked(ctx, orderID, itemID, picked); err != nil {
		s.log.Warn("overlay write failed", zap.Int64("order_id", orderID), zap.Error(err))
	}

	if intent.Promote {
		s.refetch(ctx)
	} else {
		s.changed()
	}
	return ToggleResult{Promoted: intent.Promote}, nil
}

// SetNoteDraft stores the picker note draft for an order not yet ready.
func (s *OrderService) SetNoteDraft(ctx context.Context, orderID int64, note string) error {
	o, err := s.find(orderID)
	if err != nil {
		return s.fail(err)
	}
	if !overlayApplies(o.Status) {
		return s.fail(fmt.Errorf("note for order %d: %w", orderID, ErrOrderLocked))
	}
	if err := s.overlay.SetNoteDraft(ctx, orderID, note); err != nil {
		s.log.Warn("note draft write failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
	s.changed()
	return nil
}

// ReadyConfirmation returns the order, its items and the draft note the
// mark-ready dialog displays.
func (s *OrderService) ReadyConfirmation(orderID int64) (Confirmation, error) {
	o, err := s.find(orderID)
	if err != nil {
		return Confirmation{}, err
	}
	v := newOrderView(MergeOverlay(o, s.overlay.PickedSet(orderID)), s.allowPartial)
	s.annotate(&v)
	note, ok := s.overlay.NoteDraft(orderID)
	return Confirmation{Order: v, NoteDraft: note, HasDraft: ok, CanMarkReady: v.CanMarkReady}, nil
}

// MarkReady submits status=ready. A draft note is sent trimmed; without a
// draft the note field is omitted so the server's note survives. The local
// picks and draft are cleared once the server accepts.
func (s *OrderService) MarkReady(ctx context.Context, orderID int64) error {
	o, err := s.find(orderID)
	if err != nil {
		return s.fail(err)
	}
	if o.Status != enum.OrderStatusPreparing {
		return s.fail(fmt.Errorf("mark order %d ready from %s: %w", orderID, o.Status, ErrIllegalTransition))
	}
	if !CanMarkReady(MergeOverlay(o, s.overlay.PickedSet(orderID)), s.allowPartial) {
		return s.fail(fmt.Errorf("order %d: %w", orderID, ErrNotEligible))
	}

	done, err := s.inflight.Begin(orderKey(enum.MutationStatus, orderID))
	if err != nil {
		return s.fail(err)
	}
	defer done()
	s.changed()

	var note *string
	if draft, ok := s.overlay.NoteDraft(orderID); ok {
		trimmed := strings.TrimSpace(draft)
		note = &trimmed
	}
	if err := s.setStatus(ctx, orderID, enum.OrderStatusReady, note); err != nil {
		s.changed()
		return s.fail(err)
	}

	if err := s.overlay.ClearPicked(ctx, orderID); err != nil {
		s.log.Warn("clear picked overlay failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
	if err := s.overlay.ClearNote(ctx, orderID); err != nil {
		s.log.Warn("clear note draft failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
	s.log.Info("order marked ready", zap.Int64("order_id", orderID))
	s.notifier.Notify(enum.NotifySuccess, fmt.Sprintf("order %d is ready", orderID))
	s.refetch(ctx)
	return nil
}
