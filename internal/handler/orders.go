package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/picknpack/dashboard/internal/enum"
	"github.com/picknpack/dashboard/internal/service"
)

// OrderServicer is the picker order workflow.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Refresh(ctx context.Context) error
	LastError() error
	View(tab string) ([]service.OrderView, error)
	Counts() map[string]int
	StartPicking(ctx context.Context, orderID int64) error
	TogglePicked(ctx context.Context, orderID, itemID int64, picked bool) (service.ToggleResult, error)
	SetNoteDraft(ctx context.Context, orderID int64, note string) error
	ReadyConfirmation(orderID int64) (service.Confirmation, error)
	MarkReady(ctx context.Context, orderID int64) error
}

// OrderHandler serves the order tabs and picker intents.
type OrderHandler struct {
	svc OrderServicer
}

func NewOrderHandler(svc OrderServicer) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterRoutes registers order endpoints on the given router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/refresh", h.Refresh)
	r.Route("/{id}", func(r chi.Router) {
		r.Post("/start", h.Start)
		r.Post("/items/{itemID}/picked", h.TogglePicked)
		r.Put("/note", h.SetNote)
		r.Get("/ready", h.ReadyConfirmation)
		r.Post("/ready", h.MarkReady)
	})
}

// --- Request / Response types ---

type orderListResponse struct {
	Tab    string              `json:"tab"`
	Orders []service.OrderView `json:"orders"`
	Counts map[string]int      `json:"counts"`
	// Error is set when the last refresh failed; Orders then hold the
	// previous snapshot.
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

type togglePickedRequest struct {
	Picked *bool `json:"picked"`
}

type noteRequest struct {
	Note string `json:"note"`
}

// --- Handlers ---

// List handles GET /orders?tab=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	if tab == "" {
		tab = enum.TabPending
	}

	views, err := h.svc.View(tab)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if views == nil {
		views = []service.OrderView{}
	}

	resp := orderListResponse{Tab: tab, Orders: views, Counts: h.svc.Counts()}
	if lastErr := h.svc.LastError(); lastErr != nil {
		resp.Error = service.UserMessage(lastErr)
		resp.Details = lastErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /orders/refresh.
func (h *OrderHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Refresh(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]map[string]int{"counts": h.svc.Counts()})
}

// Start handles POST /orders/{id}/start.
func (h *OrderHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.StartPicking(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TogglePicked handles POST /orders/{id}/items/{itemID}/picked.
func (h *OrderHandler) TogglePicked(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := idParam(w, r, "itemID")
	if !ok {
		return
	}

	var req togglePickedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Picked == nil {
		writeMessage(w, http.StatusBadRequest, "picked is required")
		return
	}

	result, err := h.svc.TogglePicked(r.Context(), id, itemID, *req.Picked)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SetNote handles PUT /orders/{id}/note.
func (h *OrderHandler) SetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetNoteDraft(r.Context(), id, req.Note); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReadyConfirmation handles GET /orders/{id}/ready.
func (h *OrderHandler) ReadyConfirmation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	conf, err := h.svc.ReadyConfirmation(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conf)
}

// MarkReady handles POST /orders/{id}/ready.
func (h *OrderHandler) MarkReady(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.MarkReady(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
