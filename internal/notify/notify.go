// Package notify holds the single transient notification shown to pickers.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/picknpack/dashboard/internal/enum"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 4 * time.Second

// Notification is one user-facing message.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier keeps the current notification and dismisses it after the TTL.
// publish receives the new current value, nil on dismissal.
type Notifier struct {
	ttl     time.Duration
	publish func(*Notification)

	mu      sync.Mutex
	current *Notification
	timer   *time.Timer
	closed  bool
}

func New(ttl time.Duration, publish func(*Notification)) *Notifier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Notifier{ttl: ttl, publish: publish}
}

func validKind(kind string) string {
	switch kind {
	case enum.NotifySuccess, enum.NotifyError, enum.NotifyInfo:
		return kind
	default:
		return enum.NotifyInfo
	}
}

// Notify replaces the current notification.
func (n *Notifier) Notify(kind, message string) {
	note := &Notification{
		ID:        uuid.New(),
		Kind:      validKind(kind),
		Message:   message,
		CreatedAt: time.Now(),
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.current = note
	id := note.ID
	n.timer = time.AfterFunc(n.ttl, func() { n.expire(id) })
	n.mu.Unlock()

	n.emit(note)
}

func (n *Notifier) expire(id uuid.UUID) {
	n.mu.Lock()
	if n.current == nil || n.current.ID != id {
		n.mu.Unlock()
		return
	}
	n.current = nil
	n.timer = nil
	n.mu.Unlock()

	n.emit(nil)
}

// Dismiss clears the notification with id, if it is still current.
func (n *Notifier) Dismiss(id uuid.UUID) bool {
	n.mu.Lock()
	if n.current == nil || n.current.ID != id {
		n.mu.Unlock()
		return false
	}
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.current = nil
	n.mu.Unlock()

	n.emit(nil)
	return true
}

// Current returns a copy of the visible notification.
func (n *Notifier) Current() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notification{}, false
	}
	return *n.current, true
}

// Close stops the dismissal timer. Later notifications are dropped.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

func (n *Notifier) emit(note *Notification) {
	if n.publish != nil {
		n.publish(note)
	}
}
