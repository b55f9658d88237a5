package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/picknpack/dashboard/internal/model"
	"github.com/picknpack/dashboard/internal/overlay"
	"github.com/picknpack/dashboard/internal/search"
	"github.com/picknpack/dashboard/internal/service"
)

// StockBrowser is the filtered product list.
// Satisfied by *search.Controller; narrow interface for testability.
type StockBrowser interface {
	CategoryList(ctx context.Context) ([]search.Category, error)
	Filters() overlay.Filters
	SetFilters(ctx context.Context, f overlay.Filters) error
	Snapshot() search.Snapshot
	Load(ctx context.Context) (search.Snapshot, error)
	NextPage(ctx context.Context) (search.Snapshot, error)
	Product(id int64) (model.StockProduct, bool)
}

// StockMutator creates, edits and deletes products.
// Satisfied by *service.StockService; narrow interface for testability.
type StockMutator interface {
	Create(ctx context.Context, form service.ProductForm) (*model.StockProduct, error)
	Update(ctx context.Context, before model.StockProduct, form service.ProductForm) (*model.StockProduct, error)
	Delete(ctx context.Context, id int64) error
}

// StockHandler serves the stock tab.
type StockHandler struct {
	browser StockBrowser
	mutator StockMutator
}

func NewStockHandler(browser StockBrowser, mutator StockMutator) *StockHandler {
	return &StockHandler{browser: browser, mutator: mutator}
}

// RegisterRoutes registers stock endpoints on the given router.
func (h *StockHandler) RegisterRoutes(r chi.Router) {
	r.Get("/categories", h.Categories)
	r.Get("/filters", h.GetFilters)
	r.Put("/filters", h.PutFilters)
	r.Get("/products", h.Products)
	r.Post("/products/next", h.NextPage)
	r.Post("/products", h.Create)
	r.Patch("/products/{id}", h.Update)
	r.Delete("/products/{id}", h.Delete)
}

// --- Request / Response types ---

type filtersBody struct {
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
	Query       string `json:"q"`
}

func toFiltersBody(f overlay.Filters) filtersBody {
	return filtersBody{Category: f.Category, SubCategory: f.SubCategory, Query: f.Query}
}

type categoriesResponse struct {
	Categories []search.Category `json:"categories"`
}

// --- Handlers ---

// Categories handles GET /stock/categories.
func (h *StockHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.browser.CategoryList(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cats == nil {
		cats = []search.Category{}
	}
	writeJSON(w, http.StatusOK, categoriesResponse{Categories: cats})
}

// GetFilters handles GET /stock/filters.
func (h *StockHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toFiltersBody(h.browser.Filters()))
}

// PutFilters handles PUT /stock/filters. The query takes effect after the
// debounce; the response is the snapshot at the time of the call.
func (h *StockHandler) PutFilters(w http.ResponseWriter, r *http.Request) {
	var req filtersBody
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.browser.SetFilters(r.Context(), overlay.Filters{
		Category:    req.Category,
		SubCategory: req.SubCategory,
		Query:       req.Query,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.browser.Snapshot())
}

// Products handles GET /stock/products.
func (h *StockHandler) Products(w http.ResponseWriter, r *http.Request) {
	snap, err := h.browser.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// NextPage handles POST /stock/products/next.
func (h *StockHandler) NextPage(w http.ResponseWriter, r *http.Request) {
	snap, err := h.browser.NextPage(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Create handles POST /stock/products.
func (h *StockHandler) Create(w http.ResponseWriter, r *http.Request) {
	var form service.ProductForm
	if !decodeJSON(w, r, &form) {
		return
	}
	p, err := h.mutator.Create(r.Context(), form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Update handles PATCH /stock/products/{id}. Only fields that differ from
// the loaded product are sent upstream.
func (h *StockHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	before, found := h.browser.Product(id)
	if !found {
		writeMessage(w, http.StatusNotFound, "product is not in the loaded list")
		return
	}

	var form service.ProductForm
	if !decodeJSON(w, r, &form) {
		return
	}
	p, err := h.mutator.Update(r.Context(), before, form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /stock/products/{id}.
func (h *StockHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.mutator.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
