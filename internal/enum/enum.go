package enum

// ── Group A: State machine (owned by the remote API) ──

const (
	OrderStatusConfirmed = "confirmed"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
)

// TrackedStatuses is every status the dashboard fetches on a full refresh.
var TrackedStatuses = []string{
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusCompleted,
}

// ── Group B: Dashboard tabs ──

const (
	TabPending   = "pending"
	TabReady     = "ready"
	TabCompleted = "completed"
	TabStock     = "stock"
)

// ── Group C: Stock units ──

const (
	StockUnitKg   = "kg"
	StockUnitUnit = "unit"
)

// ── Group D: Notifications and in-flight mutations ──

const (
	NotifySuccess = "success"
	NotifyError   = "error"
	NotifyInfo    = "info"
)

const (
	MutationStatus        = "status"
	MutationToggleItem    = "toggle_item"
	MutationCreateProduct = "create_product"
	MutationUpdateProduct = "update_product"
	MutationDeleteProduct = "delete_product"
)

// ── Group E: Websocket events ──

const (
	EventOrdersUpdated = "orders.updated"
	EventStockUpdated  = "stock.updated"
	EventNotification  = "notification"
)
