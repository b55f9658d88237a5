package service

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// ErrBusy is returned when the same mutation on the same target is pending.
var ErrBusy = errors.New("operation already in progress")

// Key identifies a mutation by kind and target.
type Key struct {
	Kind   string
	Target string
}

func orderKey(kind string, orderID int64) Key {
	return Key{Kind: kind, Target: strconv.FormatInt(orderID, 10)}
}

func itemKey(kind string, orderID, itemID int64) Key {
	return Key{Kind: kind, Target: fmt.Sprintf("%d/%d", orderID, itemID)}
}

// Inflight allows at most one pending mutation per key.
type Inflight struct {
	mu      sync.Mutex
	pending map[Key]struct{}
}

func NewInflight() *Inflight {
	return &Inflight{pending: make(map[Key]struct{})}
}

// Begin claims every key or none. The returned func releases them.
func (f *Inflight) Begin(keys ...Key) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		if _, ok := f.pending[k]; ok {
			return nil, fmt.Errorf("%s %s: %w", k.Kind, k.Target, ErrBusy)
		}
	}
	for _, k := range keys {
		f.pending[k] = struct{}{}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			for _, k := range keys {
				delete(f.pending, k)
			}
		})
	}, nil
}

func (f *Inflight) Pending(k Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pending[k]
	return ok
}
