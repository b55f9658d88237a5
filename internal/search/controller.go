package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/picknpack/dashboard/internal/model"
	"github.com/picknpack/dashboard/internal/overlay"
	"github.com/picknpack/dashboard/internal/pickerapi"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// StockAPI is what the controller reads from the shop API.
// Satisfied by *pickerapi.Client.
type StockAPI interface {
	ProductLister
	ListCategories(ctx context.Context) (model.CategoryTree, error)
}

// FilterStore persists the last used filters.
// Satisfied by *overlay.Store.
type FilterStore interface {
	Filters() overlay.Filters
	SaveFilters(ctx context.Context, f overlay.Filters) error
}

// Category is one category with its sub-categories in display order.
type Category struct {
	Name          string   `json:"name"`
	SubCategories []string `json:"sub_categories"`
}

// Snapshot is the stock listing state as the dashboard renders it.
type Snapshot struct {
	Category       string               `json:"category"`
	SubCategory    string               `json:"sub_category"`
	Query          string               `json:"q"`
	EffectiveQuery string               `json:"effective_q"`
	Eligible       bool                 `json:"eligible"`
	Hint           string               `json:"hint,omitempty"`
	Products       []model.StockProduct `json:"products"`
	Total          *int64               `json:"total_count"`
	HasNext        bool                 `json:"has_next"`
	Loading        bool                 `json:"loading"`
	LoadingNext    bool                 `json:"loading_next"`
	Error          string               `json:"error,omitempty"`
}

// Controller owns the stock filters, the debounced query and the pager.
type Controller struct {
	api      StockAPI
	store    FilterStore
	pager    *Pager
	debounce *Debouncer
	log      *zap.Logger
	onChange func()

	categoriesGroup singleflight.Group

	mu          sync.RWMutex
	rawQuery    string
	query       string
	category    string
	subCategory string
	tree        model.CategoryTree
}

// ControllerOption configures a Controller.
type ControllerOption func(*controllerConfig)

type controllerConfig struct {
	debounce time.Duration
	pageSize int
	log      *zap.Logger
	onChange func()
}

func WithDebounce(d time.Duration) ControllerOption {
	return func(c *controllerConfig) { c.debounce = d }
}

func WithPageSize(n int) ControllerOption {
	return func(c *controllerConfig) { c.pageSize = n }
}

func WithLogger(l *zap.Logger) ControllerOption {
	return func(c *controllerConfig) { c.log = l }
}

// WithOnChange registers a hook fired when the effective filter or the
// cached results change.
func WithOnChange(fn func()) ControllerOption {
	return func(c *controllerConfig) { c.onChange = fn }
}

// NewController restores the saved filters. The saved query applies without
// waiting for the debounce.
func NewController(api StockAPI, store FilterStore, opts ...ControllerOption) *Controller {
	cfg := controllerConfig{debounce: DefaultDebounce, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Controller{
		api:      api,
		store:    store,
		pager:    NewPager(api, cfg.pageSize, cfg.log),
		log:      cfg.log,
		onChange: cfg.onChange,
	}
	c.debounce = NewDebouncer(cfg.debounce, c.applyQuery)

	f := store.Filters()
	c.rawQuery, c.query = f.Query, f.Query
	c.category, c.subCategory = f.Category, f.SubCategory
	if c.category == "" {
		c.subCategory = ""
	}
	return c
}

// Close cancels a pending debounced query.
func (c *Controller) Close() {
	c.debounce.Stop()
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

func (c *Controller) applyQuery(q string) {
	c.mu.Lock()
	if c.query == q {
		c.mu.Unlock()
		return
	}
	c.query = q
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) persist(ctx context.Context) {
	c.mu.RLock()
	f := overlay.Filters{Category: c.category, SubCategory: c.subCategory, Query: c.rawQuery}
	c.mu.RUnlock()
	if err := c.store.SaveFilters(ctx, f); err != nil {
		c.log.Warn("save stock filters failed", zap.Error(err))
	}
}

// Categories returns the category tree, loading it once. Concurrent first
// callers share one request.
func (c *Controller) Categories(ctx context.Context) (model.CategoryTree, error) {
	c.mu.RLock()
	tree := c.tree
	c.mu.RUnlock()
	if tree != nil {
		return tree, nil
	}

	v, err, _ := c.categoriesGroup.Do("categories", func() (any, error) {
		return c.api.ListCategories(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	tree, _ = v.(model.CategoryTree)
	if tree == nil {
		tree = model.CategoryTree{}
	}
	c.mu.Lock()
	c.tree = tree
	c.mu.Unlock()
	return tree, nil
}

// ReloadCategories drops the cached tree and fetches it again.
func (c *Controller) ReloadCategories(ctx context.Context) (model.CategoryTree, error) {
	c.mu.Lock()
	c.tree = nil
	c.mu.Unlock()
	return c.Categories(ctx)
}

// CategoryList returns the categories sorted with Hebrew collation.
func (c *Controller) CategoryList(ctx context.Context) ([]Category, error) {
	tree, err := c.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return SortedCategories(tree), nil
}

// SortedCategories orders categories and their children for display.
func SortedCategories(tree model.CategoryTree) []Category {
	col := collate.New(language.Hebrew)
	names := make([]string, 0, len(tree))
	for name := range tree {
		names = append(names, name)
	}
	col.SortStrings(names)

	out := make([]Category, len(names))
	for i, name := range names {
		subs := append([]string(nil), tree[name]...)
		col.SortStrings(subs)
		out[i] = Category{Name: name, SubCategories: subs}
	}
	return out
}

// SetQuery records raw input. The effective query follows after the
// debounce delay.
func (c *Controller) SetQuery(ctx context.Context, raw string) {
	c.mu.Lock()
	c.rawQuery = raw
	c.mu.Unlock()
	c.persist(ctx)
	c.debounce.Set(raw)
	c.changed()
}

// FlushQuery applies a pending query immediately.
func (c *Controller) FlushQuery() {
	c.debounce.Flush()
}

// SetCategory selects a category. The sub-category is kept only when it
// belongs to the new category.
func (c *Controller) SetCategory(ctx context.Context, category string) {
	tree, err := c.Categories(ctx)
	if err != nil {
		c.log.Warn("categories unavailable while changing category", zap.Error(err))
	}
	c.mu.Lock()
	if category != c.category {
		c.subCategory = CoherentSubCategory(tree, category, c.subCategory)
		c.category = category
	}
	c.mu.Unlock()
	c.persist(ctx)
	c.changed()
}

// SetSubCategory selects a sub-category of the current category.
func (c *Controller) SetSubCategory(ctx context.Context, sub string) error {
	c.mu.RLock()
	category := c.category
	c.mu.RUnlock()

	if sub != "" {
		tree, err := c.Categories(ctx)
		if err != nil {
			return err
		}
		if category == "" || !tree.HasSub(category, sub) {
			return fmt.Errorf("sub-category %q under %q: %w", sub, category, ErrInvalidSubCategory)
		}
	}
	c.mu.Lock()
	c.subCategory = sub
	c.mu.Unlock()
	c.persist(ctx)
	c.changed()
	return nil
}

// SetFilters applies category, sub-category and raw query at once.
func (c *Controller) SetFilters(ctx context.Context, f overlay.Filters) error {
	c.SetCategory(ctx, f.Category)
	if err := c.SetSubCategory(ctx, f.SubCategory); err != nil {
		return err
	}
	c.mu.RLock()
	same := c.rawQuery == f.Query
	c.mu.RUnlock()
	if !same {
		c.SetQuery(ctx, f.Query)
	}
	return nil
}

// Filters returns the current raw filters.
func (c *Controller) Filters() overlay.Filters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return overlay.Filters{Category: c.category, SubCategory: c.subCategory, Query: c.rawQuery}
}

func (c *Controller) session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Session{Category: c.category, SubCategory: c.subCategory, Query: c.query}
}

// Load makes sure the first page of the effective filter is loaded and
// returns the snapshot.
func (c *Controller) Load(ctx context.Context) (Snapshot, error) {
	c.pager.Reset(c.session())
	err := c.pager.LoadFirst(ctx)
	return c.Snapshot(), err
}

// NextPage handles a near-end signal.
func (c *Controller) NextPage(ctx context.Context) (Snapshot, error) {
	if c.pager.Reset(c.session()) {
		if err := c.pager.LoadFirst(ctx); err != nil {
			return c.Snapshot(), err
		}
		return c.Snapshot(), nil
	}
	fetched, err := c.pager.NearEnd(ctx)
	if fetched {
		c.changed()
	}
	return c.Snapshot(), err
}

// Invalidate drops cached pages after a stock mutation.
func (c *Controller) Invalidate() {
	c.pager.Invalidate()
	c.changed()
}

// Product returns a product of the loaded pages.
func (c *Controller) Product(id int64) (model.StockProduct, bool) {
	return c.pager.Product(id)
}

// Snapshot combines the filters with the pager state without fetching.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	snap := Snapshot{
		Category:       c.category,
		SubCategory:    c.subCategory,
		Query:          c.rawQuery,
		EffectiveQuery: c.query,
		Eligible:       Eligible(c.category, c.query),
		Hint:           Hint(c.category, c.rawQuery),
	}
	c.mu.RUnlock()

	state := c.pager.State()
	if c.pager.Session() == (Session{Category: snap.Category, SubCategory: snap.SubCategory, Query: snap.EffectiveQuery}) {
		snap.Products = state.Products
		snap.Total = state.Total
		snap.HasNext = state.HasNext
		snap.Loading = state.Loading
		snap.LoadingNext = state.LoadingNext
		if state.Err != nil {
			snap.Error = errorText(state.Err)
		}
	}
	if snap.Products == nil {
		snap.Products = []model.StockProduct{}
	}
	return snap
}

func errorText(err error) string {
	var apiErr *pickerapi.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
