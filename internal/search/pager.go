package search

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/picknpack/dashboard/internal/model"
	"github.com/picknpack/dashboard/internal/pickerapi"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ProductLister fetches one page of products.
// Satisfied by *pickerapi.Client.
type ProductLister interface {
	ListProducts(ctx context.Context, q pickerapi.ProductQuery) (*model.ProductPage, error)
}

// Session is the effective filter a page sequence belongs to.
type Session struct {
	Category    string
	SubCategory string
	Query       string
}

func (s Session) Eligible() bool {
	return Eligible(s.Category, s.Query)
}

func (s Session) query(cursor string, limit int) pickerapi.ProductQuery {
	return pickerapi.ProductQuery{
		Query:       strings.TrimSpace(s.Query),
		Category:    s.Category,
		SubCategory: s.SubCategory,
		Cursor:      cursor,
		Limit:       limit,
	}
}

// PageState is the accumulated result of the current session.
type PageState struct {
	Products    []model.StockProduct
	Total       *int64
	HasNext     bool
	Loading     bool
	LoadingNext bool
	Loaded      bool
	Err         error
}

// Pager walks the cursor pages of one session at a time. A new session or
// an invalidation bumps the generation; responses of older generations are
// dropped.
type Pager struct {
	api   ProductLister
	limit int
	log   *zap.Logger
	group singleflight.Group

	mu          sync.Mutex
	gen         uint64
	session     Session
	products    []model.StockProduct
	seen        map[int64]struct{}
	cursor      string
	total       *int64
	loaded      bool
	loading     bool
	loadingNext bool
	err         error
}

func NewPager(api ProductLister, limit int, log *zap.Logger) *Pager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pager{api: api, limit: limit, log: log, seen: make(map[int64]struct{})}
}

// clear must be called with mu held.
func (p *Pager) clear() {
	p.gen++
	p.products = nil
	p.seen = make(map[int64]struct{})
	p.cursor = ""
	p.total = nil
	p.loaded = false
	p.loading = false
	p.loadingNext = false
	p.err = nil
}

// Reset switches to s. It reports whether the session changed.
func (p *Pager) Reset(s Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s == p.session {
		return false
	}
	p.session = s
	p.clear()
	return true
}

// Invalidate drops every loaded page; the next LoadFirst refetches.
func (p *Pager) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clear()
}

func (p *Pager) Session() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// append must be called with mu held.
func (p *Pager) append(page *model.ProductPage) {
	if page == nil {
		p.cursor = ""
		return
	}
	for _, prod := range page.Products {
		if _, dup := p.seen[prod.ID]; dup {
			continue
		}
		p.seen[prod.ID] = struct{}{}
		p.products = append(p.products, prod)
	}
	p.cursor = page.NextCursor
	if page.TotalCount != nil {
		p.total = page.TotalCount
	}
}

// LoadFirst loads the first page of the session once. Concurrent callers
// share one request, which is applied to the pager even when the caller
// that started it gives up. Ineligible sessions issue nothing.
func (p *Pager) LoadFirst(ctx context.Context) error {
	p.mu.Lock()
	if !p.session.Eligible() || p.loaded {
		p.mu.Unlock()
		return nil
	}
	gen, s := p.gen, p.session
	p.loading = true
	p.mu.Unlock()

	fetchCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		page, err := p.api.ListProducts(fetchCtx, s.query("", p.limit))

		p.mu.Lock()
		defer p.mu.Unlock()
		if gen != p.gen {
			p.log.Debug("dropping stale first page", zap.Uint64("gen", gen))
			return nil, nil
		}
		p.loading = false
		if err != nil {
			p.err = err
			return nil, err
		}
		if !p.loaded {
			p.err = nil
			p.loaded = true
			p.append(page)
		}
		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("load products: %w", res.Err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NearEnd is the signal that the end of the list is close. It fetches the
// next page when the session is eligible, a cursor exists and no next-page
// fetch is already running; otherwise it returns false without a request.
func (p *Pager) NearEnd(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if !p.session.Eligible() || !p.loaded || p.cursor == "" || p.loadingNext {
		p.mu.Unlock()
		return false, nil
	}
	gen, s, cursor := p.gen, p.session, p.cursor
	p.loadingNext = true
	p.mu.Unlock()

	page, err := p.api.ListProducts(ctx, s.query(cursor, p.limit))

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		p.log.Debug("dropping stale page", zap.Uint64("gen", gen), zap.String("cursor", cursor))
		return false, nil
	}
	p.loadingNext = false
	if err != nil {
		p.err = err
		return true, fmt.Errorf("load next products: %w", err)
	}
	p.err = nil
	p.append(page)
	return true, nil
}

// State returns a copy of the accumulated results.
func (p *Pager) State() PageState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PageState{
		Products:    slices.Clone(p.products),
		Total:       p.total,
		HasNext:     p.cursor != "",
		Loading:     p.loading,
		LoadingNext: p.loadingNext,
		Loaded:      p.loaded,
		Err:         p.err,
	}
}

// Product finds a loaded product by id.
func (p *Pager) Product(id int64) (model.StockProduct, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, prod := range p.products {
		if prod.ID == id {
			return prod, true
		}
	}
	return model.StockProduct{}, false
}
