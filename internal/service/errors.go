package service

import (
	"errors"
	"strings"

	"github.com/picknpack/dashboard/internal/pickerapi"
)

// Errors returned by the order and stock services.
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrItemNotFound       = errors.New("item not found in order")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrNotEligible        = errors.New("order is not ready to be marked ready")
	ErrOrderLocked        = errors.New("order is ready or completed; picks are locked")
	ErrUnknownTab         = errors.New("unknown tab")
	ErrInvalidSubCategory = errors.New("sub_category does not belong to category")
)

// FieldError is one invalid form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a form.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid product: " + strings.Join(parts, "; ")
}

// Notifier receives user-facing outcome messages.
type Notifier interface {
	Notify(kind, message string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string) {}

// UserMessage is the text shown to a picker for err. Upstream messages are
// passed through verbatim.
func UserMessage(err error) string {
	var apiErr *pickerapi.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, pickerapi.ErrTransport) {
		return pickerapi.ErrTransport.Error()
	}
	return err.Error()
}
