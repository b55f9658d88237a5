package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/picknpack/dashboard/internal/enum"
	"github.com/picknpack/dashboard/internal/model"
	"github.com/picknpack/dashboard/internal/overlay"
	"github.com/picknpack/dashboard/internal/pickerapi"
)

// --- Mock implementations ---

type statusCall struct {
	OrderID int64
	Status  string
	Note    *string
}

// mockOrderAPI implements OrderAPI. By default it serves orders and applies
// status changes to them so a refetch sees the new state.
type mockOrderAPI struct {
	mu               sync.Mutex
	orders           []model.Order
	listCalls        int
	statusCalls      []statusCall
	listOrdersFn     func(ctx context.Context, statuses []string) ([]model.Order, error)
	setOrderStatusFn func(ctx context.Context, orderID int64, status string, note *string) (*model.Order, error)
}

func (m *mockOrderAPI) ListOrders(ctx context.Context, statuses []string) ([]model.Order, error) {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, statuses)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Order, len(m.orders))
	for i, o := range m.orders {
		out[i] = o.Clone()
	}
	return out, nil
}

func (m *mockOrderAPI) SetOrderStatus(ctx context.Context, orderID int64, status string, note *string) (*model.Order, error) {
	m.mu.Lock()
	m.statusCalls = append(m.statusCalls, statusCall{OrderID: orderID, Status: status, Note: note})
	m.mu.Unlock()
	if m.setOrderStatusFn != nil {
		return m.setOrderStatusFn(ctx, orderID, status, note)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == orderID {
			m.orders[i].Status = status
			if note != nil {
				m.orders[i].PickerNote = note
			}
		}
	}
	return nil, nil
}

type recordedNotice struct{ Kind, Message string }

type mockNotifier struct {
	notices []recordedNotice
}

func (m *mockNotifier) Notify(kind, message string) {
	m.notices = append(m.notices, recordedNotice{kind, message})
}

func (m *mockNotifier) last() recordedNotice {
	if len(m.notices) == 0 {
		return recordedNotice{}
	}
	return m.notices[len(m.notices)-1]
}

// --- Test helpers ---

func newTestOrderService(t *testing.T, api *mockOrderAPI, opts ...OrderOption) (*OrderService, *overlay.Store, *mockNotifier) {
	t.Helper()
	store := overlay.Open(context.Background(), overlay.NewMemoryKV(), nil)
	n := &mockNotifier{}
	opts = append([]OrderOption{WithNotifier(n)}, opts...)
	svc := NewOrderService(api, store, NewInflight(), opts...)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	return svc, store, n
}

func viewOf(t *testing.T, svc *OrderService, tab string, id int64) OrderView {
	t.Helper()
	views, err := svc.View(tab)
	if err != nil {
		t.Fatalf("View(%s): %v", tab, err)
	}
	for _, v := range views {
		if v.ID == id {
			return v
		}
	}
	t.Fatalf("order %d not in %s tab", id, tab)
	return OrderView{}
}

// --- Tests ---

func TestRefresh_FetchesTrackedStatuses(t *testing.T) {
	var got []string
	api := &mockOrderAPI{listOrdersFn: func(ctx context.Context, statuses []string) ([]model.Order, error) {
		got = statuses
		return nil, nil
	}}
	newTestOrderService(t, api)

	if len(got) != 4 {
		t.Fatalf("statuses: got %v, want all four tracked", got)
	}
}

func TestRefresh_FailureKeepsSnapshot(t *testing.T) {
	api := &mockOrderAPI{orders: []model.Order{order(1, enum.OrderStatusConfirmed, item(1, false))}}
	svc, _, _ := newTestOrderService(t, api)

	boom := errors.New("boom")
	api.listOrdersFn = func(ctx context.Context, statuses []string) ([]model.Order, error) { return nil, boom }

	if err := svc.Refresh(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("error: got %v, want %v", err, boom)
	}
	if !errors.Is(svc.LastError(), boom) {
		t.Fatalf("LastError: got %v", svc.LastError())
	}
	if views, _ := svc.View(enum.TabPending); len(views) != 1 {
		t.Fatalf("previous snapshot lost: %d views", len(views))
	}
}

func TestView_UnknownTab(t *testing.T) {
	svc, _, _ := newTestOrderService(t, &mockOrderAPI{})
	if _, err := svc.View("archive"); !errors.Is(err, ErrUnknownTab) {
		t.Fatalf("error: got %v, want ErrUnknownTab", err)
	}
}

func TestCounts(t *testing.T) {
	api := &mockOrderAPI{orders: []model.Order{
		order(1, enum.OrderStatusConfirmed),
		order(2, enum.OrderStatusPreparing),
		order(3, enum.OrderStatusReady),
		order(4, "cancelled"),
	}}
	svc, _, _ := newTestOrderService(t, api)

	got := svc.Counts()
	if got[enum.TabPending] != 2 || got[enum.TabReady] != 1 || got[enum.TabCompleted] != 0 {
		t.Fatalf("counts: got %v", got)
	}
}

func TestTogglePicked_PromotesConfirmedOrderFirst(t *testing.T) {
	api := &mockOrderAPI{orders: []model.Order{
		order(7, enum.OrderStatusConfirmed, item(1, false), item(2, false)),
	}}
	var steps []string
	svc, store, _ := newTestOrderService(t, api)
	api.setOrderStatusFn = func(ctx context.Context, orderID int64, status string, note *string) (*model.Order, error) {
		if store.HasOverlay(orderID) {
			steps = append(steps, "pick")
		}
		steps = append(steps, "promote")
		api.orders[0].Status = status
		return nil, nil
	}

	res, err := svc.TogglePicked(context.Background(), 7, 1, true)
	if err != nil {
		t.Fatalf("TogglePicked: %v", err)
	}
	if !res.Promoted {
		t.Fatal("expected promotion")
	}
	if len(steps) != 1 || steps[0] != "promote" {
		t.Fatalf("promotion must precede the pick record, got %v", steps)
	}
	if len(api.statusCalls) != 1 || api.statusCalls[0].Status != enum.OrderStatusPreparing || api.statusCalls[0].Note != nil {
		t.Fatalf("status calls: got %+v", api.statusCalls)
	}

	v := viewOf(t, svc, enum.TabPending, 7)
	if v.Status != enum.OrderStatusPreparing {
		t.Errorf("status: got %s, want preparing", v.Status)
	}
	if v.ProgressPct != 50 {
		t.Errorf("progress: got %d, want 50", v.ProgressPct)
	}
	if v.CanMarkReady {
		t.Error("canMarkReady: got true, want false")
	}
}

func TestTogglePicked_PromotionFailureRecordsNothing(t *testing.T) {
	api := &mockOrderAPI{orders: []model.Order{
		order(7, enum.OrderStatusConfirmed, item(1, false), item(2, false)),
	}}
	svc, store, n := newTestOrderService(t, api)
	api.setOrderStatusFn = func(ctx context.Context, orderID int64, status string, note *string) (*model.Order, error) {
		return nil, &pickerapi.APIError{Status: 409, Message: "order locked by another picker"}
	}

	_, err := svc.TogglePicked(context.Background(), 7, 1, true)
	if err == nil {
		t.Fatal("expected error")
	}
	if store.HasOverlay(7) {
		t.Fatal("pick recorded despite failed promotion")
	}
	if got := n.last(); got.Kind != enum.NotifyError || got.Message != "order locked by another picker" {
		t.Fatalf("notification: got %+v", got)
	}
	if v := viewOf(t, svc, enum.TabPending, 7); v.Status != enum.OrderStatusConfirmed {
		t.Fatalf("status: got %s, want confirmed", v.Status)
	}
}

func TestTogglePicked_PreparingNoPromotion(t *testing.T) {
	api := &mockOrderAPI{orders: []model.Order{order(8, enum.OrderStatusPreparing, item(1, false))}}
	svc, _, _ := newTestOrderService(t, api)

	res, err := svc.TogglePicked(context.Background(), 8, 1, true)
	if err != nil {
		t.Fatalf("TogglePicked: %v", err)
	}
	if res.Promoted || len(api.statusCalls) != 0 {
		t.Fatalf("unexpected promotion: %+v, calls %d", res, len(api.statusCalls))
	}
	if v := viewOf(t, svc, enum.TabPending, 8); !v.Items[0].Picked {
		t.Fatal("item not picked in view")
	}

	if _, err := svc.TogglePicked(context.Background(), 8, 1, false); err != nil {
		t.Fatalf("unpick: %v", err)
	}
	if v := viewOf(t, svc, enum.TabPending, 8); v.Items[0].Picked {
		t.Fatal("item still picked after unpick")
	}
}

func TestTogglePicked_Errors(t *testing.T) {
	api := &mockOrderAPI{orders: []model.Order{
		order(1, enum.OrderStatusPreparing, item(1, false)),
		order(2, enum.OrderStatusReady, item(1, true)),
	}}
	svc, _, _ := newTestOrderService(t, api)
	ctx := context.Background()

	if _, err := svc.TogglePicked(ctx, 99, 1, true); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("missing order: got %v", err)
	}
	if _, err := svc.TogglePicked(ctx, 1, 99, true); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("missing item: got %v", err)
	}
	if _, err := svc.TogglePicked(ctx, 2, 1, false); !errors.Is(err, ErrOrderLocked) {
		t.Errorf("ready order: got %v", err)
	}
}

func TestTogglePicked_BusyKeyIsPerItem(t *testing.T) {
	api := &mockOrderAPI{orders: []model.Order{order(1, enum.OrderStatusPreparing, item(1, false), item(2, false))}}
	inflight := NewInflight()
	store := overlay.Open(context.Background(), overlay.NewMemoryKV(), nil)
	svc := NewOrderService(api, store, inflight)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	done, err := inflight.Begin(itemKey(enum.MutationToggleItem, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	defer done()

	if _, err := svc.TogglePicked(context.Background(), 1, 1, true); !errors.Is(err, ErrBusy) {
		t.Fatalf("same item: got %v, want ErrBusy", err)
	}
	if _, err := svc.TogglePicked(context.Background(), 1, 2, true); err != nil {
		t.Fatalf("other item must proceed: %v", err)
	}

	v := viewOf(t, svc, enum.TabPending, 1)
	if !v.Items[0].Busy || v.Items[1].Busy {
		t.Fatalf("busy flags: got %v, %v", v.Items[0].Busy, v.Items[1].Busy)
	}
}

func TestStartPicking(t *testing.T) {
	api := &mockOrderAPI{orders: []model.Order{
		order(1, enum.OrderStatusConfirmed),
		order(2, enum.OrderStatusPreparing),
	}}
	changes := 0
	svc, _, _ := newTestOrderService(t, api, WithOnChange(func() { changes++ }))
	ctx := context.Background()

	if err := svc.StartPicking(ctx, 1); err != nil {
		t.Fatalf("StartPicking: %v", err)
	}
	if v := viewOf(t, svc, enum.TabPending, 1); v.Status != enum.OrderStatusPreparing {
		t.Fatalf("status: got %s", v.Status)
	}
	if changes == 0 {
		t.Fatal("OnChange not fired")
	}
	if api.listCalls < 2 {
		t.Fatalf("no refetch after status change: %d list calls", api.listCalls)
	}

	if err := svc.StartPicking(ctx, 2); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("from preparing: got %v, want ErrIllegalTransition", err)
	}
}

func TestView_ConcurrentWithStatusChanges(t *testing.T) {
	const n = 200
	api := &mockOrderAPI{}
	for id := int64(1); id <= n; id++ {
		api.orders = append(api.orders, order(id, enum.OrderStatusConfirmed))
	}
	svc, _, _ := newTestOrderService(t, api)
	api.listOrdersFn = func(context.Context, []string) ([]model.Order, error) {
		return nil, errors.New("refetch unavailable")
	}
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for id := int64(1); id <= n; id++ {
			if err := svc.StartPicking(ctx, id); err != nil {
				t.Errorf("StartPicking(%d): %v", id, err)
			}
		}
	}()

	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
			if _, err := svc.View(enum.TabPending); err != nil {
				t.Fatalf("View: %v", err)
			}
		}
	}

	views, err := svc.View(enum.TabPending)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	for _, v := range views {
		if v.Status != enum.OrderStatusPreparing {
			t.Fatalf("order %d: got %s, want preparing", v.ID, v.Status)
		}
	}
}

func TestMarkReady_SubmitsTrimmedDraftAndClearsOverlay(t *testing.T) {
	api := &mockOrderAPI{orders: []model.Order{
		order(7, enum.OrderStatusPreparing, item(1, false), item(2, false)),
	}}
	svc, store, n := newTestOrderService(t, api)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		if _, err := svc.TogglePicked(ctx, 7, id, true); err != nil {
			t.Fatalf("pick %d: %v", id, err)
		}
	}
	if err := svc.SetNoteDraft(ctx, 7, "  packed separately \n"); err != nil {
		t.Fatalf("SetNoteDraft: %v", err)
	}

	conf, err := svc.ReadyConfirmation(7)
	if err != nil {
		t.Fatalf("ReadyConfirmation: %v", err)
	}
	if !conf.CanMarkReady || !conf.HasDraft || len(conf.Order.Items) != 2 {
		t.Fatalf("confirmation: got %+v", conf)
	}

	if err := svc.MarkReady(ctx, 7); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}

	if len(api.statusCalls) != 1 {
		t.Fatalf("status calls: got %d, want 1", len(api.statusCalls))
	}
	call := api.statusCalls[0]
	if call.Status != enum.OrderStatusReady || call.Note == nil || *call.Note != "packed separately" {
		t.Fatalf("status call: got %+v", call)
	}
	if store.HasOverlay(7) {
		t.Fatal("picked overlay not cleared")
	}
	if _, ok := store.NoteDraft(7); ok {
		t.Fatal("note draft not cleared")
	}
	if got := n.last(); got.Kind != enum.NotifySuccess {
		t.Fatalf("notification: got %+v", got)
	}
	if v := viewOf(t, svc, enum.TabReady, 7); v.PickerNote == nil || *v.PickerNote != "packed separately" {
		t.Fatalf("ready view: got %+v", v)
	}
}

func TestMarkReady_OmitsNoteWithoutDraft(t *testing.T) {
	server := "from the office"
	o := order(3, enum.OrderStatusPreparing)
	o.PickerNote = &server
	api := &mockOrderAPI{orders: []model.Order{o}}
	svc, _, _ := newTestOrderService(t, api, WithAllowPartial(true))

	if err := svc.MarkReady(context.Background(), 3); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	if api.statusCalls[0].Note != nil {
		t.Fatalf("note must be omitted, got %q", *api.statusCalls[0].Note)
	}
}

func TestMarkReady_Ineligible(t *testing.T) {
	api := &mockOrderAPI{orders: []model.Order{
		order(1, enum.OrderStatusPreparing, item(1, false), item(2, false)),
		order(2, enum.OrderStatusConfirmed, item(1, false)),
	}}
	svc, _, _ := newTestOrderService(t, api)
	ctx := context.Background()

	if _, err := svc.TogglePicked(ctx, 1, 1, true); err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkReady(ctx, 1); !errors.Is(err, ErrNotEligible) {
		t.Errorf("partial picks: got %v, want ErrNotEligible", err)
	}
	if err := svc.MarkReady(ctx, 2); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("confirmed: got %v, want ErrIllegalTransition", err)
	}
	if len(api.statusCalls) != 0 {
		t.Fatalf("no status call expected, got %d", len(api.statusCalls))
	}
}

func TestMarkReady_FailureKeepsOverlay(t *testing.T) {
	api := &mockOrderAPI{orders: []model.Order{order(1, enum.OrderStatusPreparing, item(1, false))}}
	svc, store, _ := newTestOrderService(t, api)
	ctx := context.Background()

	if _, err := svc.TogglePicked(ctx, 1, 1, true); err != nil {
		t.Fatal(err)
	}
	api.setOrderStatusFn = func(ctx context.Context, orderID int64, status string, note *string) (*model.Order, error) {
		return nil, pickerapi.ErrTransport
	}

	if err := svc.MarkReady(ctx, 1); !errors.Is(err, pickerapi.ErrTransport) {
		t.Fatalf("error: got %v", err)
	}
	if !store.HasOverlay(1) {
		t.Fatal("overlay cleared although the server rejected the transition")
	}
}

func TestSetNoteDraft_LockedAfterReady(t *testing.T) {
	api := &mockOrderAPI{orders: []model.Order{order(1, enum.OrderStatusReady)}}
	svc, _, _ := newTestOrderService(t, api)

	if err := svc.SetNoteDraft(context.Background(), 1, "late"); !errors.Is(err, ErrOrderLocked) {
		t.Fatalf("error: got %v, want ErrOrderLocked", err)
	}
}

func TestView_NoteDraftShown(t *testing.T) {
	api := &mockOrderAPI{orders: []model.Order{order(1, enum.OrderStatusPreparing)}}
	svc, _, _ := newTestOrderService(t, api)

	if err := svc.SetNoteDraft(context.Background(), 1, ""); err != nil {
		t.Fatal(err)
	}
	v := viewOf(t, svc, enum.TabPending, 1)
	if v.NoteDraft == nil || *v.NoteDraft != "" {
		t.Fatalf("empty draft should still be present, got %v", v.NoteDraft)
	}
}
