// Package overlay is the local draft state merged over server orders:
// items picked on this station and picker notes not yet submitted. It also
// remembers the last stock filters. Everything here is best-effort; the
// server always wins once it confirms a transition.
package overlay

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

const (
	keyPickedItems  = "picker_picked_items_v1"
	keyNotes        = "picker_notes_v1"
	keyStockFilters = "picker_stock_filters_v1"
)

// Filters are the last-used stock search inputs.
type Filters struct {
	Category    string `json:"category"`
	SubCategory string `json:"subCategory"`
	Query       string `json:"q"`
}

// Store holds the overlay in memory and writes every change through to KV.
type Store struct {
	mu      sync.RWMutex
	kv      KV
	log     *zap.Logger
	picked  map[int64]map[int64]struct{}
	notes   map[int64]string
	filters Filters
}

// Open loads the overlay from kv. Missing or corrupt documents load as empty.
func Open(ctx context.Context, kv KV, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		kv:     kv,
		log:    log,
		picked: make(map[int64]map[int64]struct{}),
		notes:  make(map[int64]string),
	}

	var picked map[string][]int64
	if s.load(ctx, keyPickedItems, &picked) {
		for k, ids := range picked {
			orderID, err := strconv.ParseInt(k, 10, 64)
			if err != nil {
				continue
			}
			set := make(map[int64]struct{}, len(ids))
			for _, id := range ids {
				set[id] = struct{}{}
			}
			s.picked[orderID] = set
		}
	}

	var notes map[string]string
	if s.load(ctx, keyNotes, &notes) {
		for k, note := range notes {
			if orderID, err := strconv.ParseInt(k, 10, 64); err == nil {
				s.notes[orderID] = note
			}
		}
	}

	var f Filters
	if s.load(ctx, keyStockFilters, &f) {
		s.filters = f
	}
	return s
}

func (s *Store) load(ctx context.Context, key string, dst any) bool {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Warn("overlay read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.log.Warn("overlay document corrupt, starting empty", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// PickedSet returns a copy of the locally picked item ids for an order.
func (s *Store) PickedSet(orderID int64) map[int64]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]bool, len(s.picked[orderID]))
	for id := range s.picked[orderID] {
		out[id] = true
	}
	return out
}

// HasOverlay reports whether any local picks exist for an order.
func (s *Store) HasOverlay(orderID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.picked[orderID]
	return ok
}

// SetItemPicked records or removes a local pick.
func (s *Store) SetItemPicked(ctx context.Context, orderID, itemID int64, picked bool) error {
	s.mu.Lock()
	set := s.picked[orderID]
	if picked {
		if set == nil {
			set = make(map[int64]struct{})
			s.picked[orderID] = set
		}
		set[itemID] = struct{}{}
	} else if set != nil {
		delete(set, itemID)
		if len(set) == 0 {
			delete(s.picked, orderID)
		}
	}
	doc := s.pickedDoc()
	s.mu.Unlock()

	return s.persist(ctx, keyPickedItems, doc)
}

// ClearPicked drops every local pick for an order.
func (s *Store) ClearPicked(ctx context.Context, orderID int64) error {
	s.mu.Lock()
	if _, ok := s.picked[orderID]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.picked, orderID)
	doc := s.pickedDoc()
	s.mu.Unlock()

	return s.persist(ctx, keyPickedItems, doc)
}

// NoteDraft returns the unsubmitted picker note for an order.
func (s *Store) NoteDraft(orderID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	note, ok := s.notes[orderID]
	return note, ok
}

// SetNoteDraft stores a draft note. An empty draft is still a draft.
func (s *Store) SetNoteDraft(ctx context.Context, orderID int64, note string) error {
	s.mu.Lock()
	s.notes[orderID] = note
	doc := s.notesDoc()
	s.mu.Unlock()

	return s.persist(ctx, keyNotes, doc)
}

// ClearNote drops the draft note for an order.
func (s *Store) ClearNote(ctx context.Context, orderID int64) error {
	s.mu.Lock()
	if _, ok := s.notes[orderID]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.notes, orderID)
	doc := s.notesDoc()
	s.mu.Unlock()

	return s.persist(ctx, keyNotes, doc)
}

func (s *Store) Filters() Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

func (s *Store) SaveFilters(ctx context.Context, f Filters) error {
	s.mu.Lock()
	if s.filters == f {
		s.mu.Unlock()
		return nil
	}
	s.filters = f
	s.mu.Unlock()

	return s.persist(ctx, keyStockFilters, f)
}

// pickedDoc must be called with mu held.
func (s *Store) pickedDoc() map[string][]int64 {
	doc := make(map[string][]int64, len(s.picked))
	for orderID, set := range s.picked {
		ids := make([]int64, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		doc[strconv.FormatInt(orderID, 10)] = ids
	}
	return doc
}

// notesDoc must be called with mu held.
func (s *Store) notesDoc() map[string]string {
	doc := make(map[string]string, len(s.notes))
	for orderID, note := range s.notes {
		doc[strconv.FormatInt(orderID, 10)] = note
	}
	return doc
}

func (s *Store) persist(ctx context.Context, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}
