package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/picknpack/dashboard/internal/notify"
)

// NotificationSource exposes the transient notification.
// Satisfied by *notify.Notifier; narrow interface for testability.
type NotificationSource interface {
	Current() (notify.Notification, bool)
	Dismiss(id uuid.UUID) bool
}

type NotificationHandler struct {
	src NotificationSource
}

func NewNotificationHandler(src NotificationSource) *NotificationHandler {
	return &NotificationHandler{src: src}
}

// RegisterRoutes registers notification endpoints on the given router.
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/current", h.Current)
	r.Delete("/{id}", h.Dismiss)
}

type currentResponse struct {
	Notification *notify.Notification `json:"notification"`
}

// Current handles GET /notifications/current. The notification is null when
// nothing is shown.
func (h *NotificationHandler) Current(w http.ResponseWriter, r *http.Request) {
	var resp currentResponse
	if n, ok := h.src.Current(); ok {
		resp.Notification = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

// Dismiss handles DELETE /notifications/{id}.
func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid notification ID")
		return
	}
	if !h.src.Dismiss(id) {
		writeMessage(w, http.StatusNotFound, "notification is no longer shown")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
