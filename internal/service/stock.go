package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/picknpack/dashboard/internal/enum"
	"github.com/picknpack/dashboard/internal/model"
	"github.com/picknpack/dashboard/internal/pickerapi"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockAPI defines the remote product mutations.
// Satisfied by *pickerapi.Client.
type StockAPI interface {
	CreateProduct(ctx context.Context, in pickerapi.ProductInput) (*model.StockProduct, error)
	UpdateProduct(ctx context.Context, id int64, p pickerapi.ProductPatch) (*model.StockProduct, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// CategorySource provides the category tree used to check coherence.
type CategorySource interface {
	Categories(ctx context.Context) (model.CategoryTree, error)
}

// Invalidator drops cached product pages after a mutation.
type Invalidator interface {
	Invalidate()
}

// Refresher refetches the order snapshot.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// ProductForm is the product editor input. Numbers arrive as text.
type ProductForm struct {
	Name          string `json:"name"`
	DisplayNameEn string `json:"display_name_en"`
	Category      string `json:"category"`
	SubCategory   string `json:"sub_category"`
	Price         string `json:"price"`
	StockAmount   string `json:"stock_amount"`
	StockUnit     string `json:"stock_unit"`
}

func parseAmount(field, raw string, errs *[]FieldError) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*errs = append(*errs, FieldError{Field: field, Message: "required"})
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		*errs = append(*errs, FieldError{Field: field, Message: "must be a number"})
		return decimal.Zero
	}
	if d.IsNegative() {
		*errs = append(*errs, FieldError{Field: field, Message: "must be zero or more"})
	}
	return d
}

// Validate checks every field and reports all failures at once. tree may be
// nil when categories could not be loaded; coherence is then not checked.
func (f ProductForm) Validate(tree model.CategoryTree) (pickerapi.ProductInput, error) {
	var errs []FieldError
	required := func(field, v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			errs = append(errs, FieldError{Field: field, Message: "required"})
		}
		return v
	}

	in := pickerapi.ProductInput{
		Name:          required("name", f.Name),
		DisplayNameEn: required("display_name_en", f.DisplayNameEn),
		Category:      required("category", f.Category),
		SubCategory:   required("sub_category", f.SubCategory),
	}
	in.Price = parseAmount("price", f.Price, &errs)
	in.StockAmount = parseAmount("stock_amount", f.StockAmount, &errs)

	if unit := strings.TrimSpace(f.StockUnit); unit != "" {
		in.StockUnit = pickerapi.NormalizeStockUnit(unit)
		if in.StockUnit != enum.StockUnitKg && in.StockUnit != enum.StockUnitUnit {
			errs = append(errs, FieldError{Field: "stock_unit", Message: "must be kg or unit"})
		}
	}

	if tree != nil && in.Category != "" && in.SubCategory != "" && !tree.HasSub(in.Category, in.SubCategory) {
		errs = append(errs, FieldError{Field: "sub_category", Message: ErrInvalidSubCategory.Error()})
	}

	if len(errs) > 0 {
		return pickerapi.ProductInput{}, &ValidationError{Fields: errs}
	}
	return in, nil
}

// diff builds a patch of the fields in that differ from before.
func diff(before model.StockProduct, in pickerapi.ProductInput) pickerapi.ProductPatch {
	var p pickerapi.ProductPatch
	if in.Name != before.Name {
		p.Name = &in.Name
	}
	if in.DisplayNameEn != before.DisplayNameEn {
		p.DisplayNameEn = &in.DisplayNameEn
	}
	if before.Price == nil || !before.Price.Equal(in.Price) {
		p.Price = &in.Price
	}
	if before.StockAmount == nil || !before.StockAmount.Equal(in.StockAmount) {
		p.StockAmount = &in.StockAmount
	}
	if in.StockUnit != "" && in.StockUnit != before.StockUnit {
		p.StockUnit = &in.StockUnit
	}
	if before.Category == nil || *before.Category != in.Category {
		p.Category = &in.Category
	}
	if before.SubCategory == nil || *before.SubCategory != in.SubCategory {
		p.SubCategory = &in.SubCategory
	}
	return p
}

// StockService validates and runs product mutations.
type StockService struct {
	api        StockAPI
	categories CategorySource
	inflight   *Inflight
	notifier   Notifier
	log        *zap.Logger

	invalidator Invalidator
	orders      Refresher
	onChange    func()
}

// StockDeps are the optional collaborators of a StockService.
type StockDeps struct {
	Categories  CategorySource
	Invalidator Invalidator
	Orders      Refresher
	Notifier    Notifier
	Logger      *zap.Logger
	OnChange    func()
}

// NewStockService creates a new StockService.
func NewStockService(api StockAPI, inflight *Inflight, deps StockDeps) *StockService {
	s := &StockService{
		api:         api,
		categories:  deps.Categories,
		inflight:    inflight,
		notifier:    deps.Notifier,
		log:         deps.Logger,
		invalidator: deps.Invalidator,
		orders:      deps.Orders,
		onChange:    deps.OnChange,
	}
	if s.inflight == nil {
		s.inflight = NewInflight()
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

func (s *StockService) tree(ctx context.Context) model.CategoryTree {
	if s.categories == nil {
		return nil
	}
	tree, err := s.categories.Categories(ctx)
	if err != nil {
		s.log.Warn("categories unavailable, skipping coherence check", zap.Error(err))
		return nil
	}
	return tree
}

func (s *StockService) fail(err error) error {
	s.notifier.Notify(enum.NotifyError, UserMessage(err))
	return err
}

func (s *StockService) succeeded(ctx context.Context, message string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}
	if s.orders != nil {
		if err := s.orders.Refresh(ctx); err != nil {
			s.log.Warn("order refresh after stock change failed", zap.Error(err))
		}
	}
	if s.onChange != nil {
		s.onChange()
	}
	s.notifier.Notify(enum.NotifySuccess, message)
}

// Create validates form and adds the product. Nothing is sent when the
// form is invalid.
func (s *StockService) Create(ctx context.Context, form ProductForm) (*model.StockProduct, error) {
	in, err := form.Validate(s.tree(ctx))
	if err != nil {
		return nil, s.fail(err)
	}

	done, err := s.inflight.Begin(Key{Kind: enum.MutationCreateProduct, Target: in.Name})
	if err != nil {
		return nil, s.fail(err)
	}
	defer done()

	p, err := s.api.CreateProduct(ctx, in)
	if err != nil {
		return nil, s.fail(err)
	}
	s.log.Info("product created", zap.String("name", in.Name))
	s.succeeded(ctx, fmt.Sprintf("product %q created", in.Name))
	return p, nil
}

// Update validates form and sends only the fields that differ from before.
// An unchanged form returns before without calling the API.
func (s *StockService) Update(ctx context.Context, before model.StockProduct, form ProductForm) (*model.StockProduct, error) {
	in, err := form.Validate(s.tree(ctx))
	if err != nil {
		return nil, s.fail(err)
	}
	patch := diff(before, in)
	if patch.Empty() {
		return &before, nil
	}

	done, err := s.inflight.Begin(Key{Kind: enum.MutationUpdateProduct, Target: strconv.FormatInt(before.ID, 10)})
	if err != nil {
		return nil, s.fail(err)
	}
	defer done()

	p, err := s.api.UpdateProduct(ctx, before.ID, patch)
	if err != nil {
		return nil, s.fail(err)
	}
	s.log.Info("product updated", zap.Int64("product_id", before.ID))
	s.succeeded(ctx, fmt.Sprintf("product %q updated", in.Name))
	return p, nil
}

// Delete removes a product. On failure the cached pages are left alone.
func (s *StockService) Delete(ctx context.Context, id int64) error {
	done, err := s.inflight.Begin(Key{Kind: enum.MutationDeleteProduct, Target: strconv.FormatInt(id, 10)})
	if err != nil {
		return s.fail(err)
	}
	defer done()

	if err := s.api.DeleteProduct(ctx, id); err != nil {
		return s.fail(err)
	}
	s.log.Info("product deleted", zap.Int64("product_id", id))
	s.succeeded(ctx, fmt.Sprintf("product %d deleted", id))
	return nil
}
