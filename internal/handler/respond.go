package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/picknpack/dashboard/internal/middleware"
	"github.com/picknpack/dashboard/internal/pickerapi"
	"github.com/picknpack/dashboard/internal/search"
	"github.com/picknpack/dashboard/internal/service"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string               `json:"error"`
	Details string               `json:"details,omitempty"`
	Fields  []service.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("failed to encode JSON response", zap.Error(err))
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps a service or upstream error to a status code. Upstream
// messages are passed through verbatim.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *service.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  "invalid product",
			Fields: validation.Fields,
		})
		return
	}

	var apiErr *pickerapi.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{Error: apiErr.Message, Details: apiErr.Details})
		return
	}

	switch {
	case errors.Is(err, search.ErrInvalidSubCategory), errors.Is(err, service.ErrInvalidSubCategory):
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrBusy),
		errors.Is(err, service.ErrIllegalTransition),
		errors.Is(err, service.ErrNotEligible),
		errors.Is(err, service.ErrOrderLocked):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrItemNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnknownTab):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pickerapi.ErrTransport):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: service.UserMessage(err), Details: err.Error()})
	default:
		middleware.LoggerFromContext(r.Context()).Error("unhandled handler error", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reports a 400 and returns false when the body is not valid JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// idParam parses a positive integer path parameter.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
