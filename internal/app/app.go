// Package app wires the dashboard's components from a Config.
package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/picknpack/dashboard/internal/config"
	"github.com/picknpack/dashboard/internal/enum"
	"github.com/picknpack/dashboard/internal/notify"
	"github.com/picknpack/dashboard/internal/overlay"
	"github.com/picknpack/dashboard/internal/pickerapi"
	"github.com/picknpack/dashboard/internal/refresh"
	"github.com/picknpack/dashboard/internal/search"
	"github.com/picknpack/dashboard/internal/service"
	"github.com/picknpack/dashboard/internal/ws"
)

// NewLogger builds the process logger from the production config. Only
// "debug" changes the level.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.EqualFold(strings.TrimSpace(level), "debug") {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// App holds every long-lived component.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	API      *pickerapi.Client
	Overlay  *overlay.Store
	Hub      *ws.Hub
	Notifier *notify.Notifier
	Search   *search.Controller
	Orders   *service.OrderService
	Stock    *service.StockService
	Poller   *refresh.Poller

	kv *overlay.SQLiteKV
}

// Option adjusts wiring, mostly for tests.
type Option func(*options)

type options struct {
	kv         overlay.KV
	apiOpts    []pickerapi.Option
	searchOpts []search.ControllerOption
}

// WithKV replaces the SQLite file named by Config.StatePath.
func WithKV(kv overlay.KV) Option {
	return func(o *options) { o.kv = kv }
}

// WithAPIOptions passes options to the shop API client.
func WithAPIOptions(opts ...pickerapi.Option) Option {
	return func(o *options) { o.apiOpts = append(o.apiOpts, opts...) }
}

// WithSearchOptions passes options to the stock search controller.
func WithSearchOptions(opts ...search.ControllerOption) Option {
	return func(o *options) { o.searchOpts = append(o.searchOpts, opts...) }
}

// New builds the component graph. Nothing is fetched; call Orders.Refresh
// and run the Hub and Poller as needed.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Log: log}

	kv := o.kv
	if kv == nil {
		sqlite, err := overlay.OpenSQLite(cfg.StatePath)
		if err != nil {
			return nil, fmt.Errorf("open overlay state: %w", err)
		}
		a.kv = sqlite
		kv = sqlite
	}

	api, err := pickerapi.New(cfg.APIBaseURL, cfg.ShopID,
		append([]pickerapi.Option{pickerapi.WithLogger(log.Named("pickerapi"))}, o.apiOpts...)...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create shop api client: %w", err)
	}
	a.API = api

	a.Overlay = overlay.Open(ctx, kv, log.Named("overlay"))
	a.Hub = ws.NewHub(log.Named("ws"))
	shopID := cfg.ShopID

	a.Notifier = notify.New(cfg.NotifyTTL, func(n *notify.Notification) {
		a.Hub.Publish(shopID, enum.EventNotification, n)
	})

	searchOpts := append([]search.ControllerOption{
		search.WithLogger(log.Named("search")),
		search.WithOnChange(func() {
			a.Hub.Publish(shopID, enum.EventStockUpdated, a.Search.Snapshot())
		}),
	}, o.searchOpts...)
	a.Search = search.NewController(api, a.Overlay, searchOpts...)

	inflight := service.NewInflight()
	a.Orders = service.NewOrderService(api, a.Overlay, inflight,
		service.WithNotifier(a.Notifier),
		service.WithLogger(log.Named("orders")),
		service.WithAllowPartial(cfg.AllowReadyPartial),
		service.WithOnChange(func() {
			a.Hub.Publish(shopID, enum.EventOrdersUpdated, a.Orders.Counts())
		}),
	)

	a.Stock = service.NewStockService(api, inflight, service.StockDeps{
		Categories:  a.Search,
		Invalidator: a.Search,
		Orders:      a.Orders,
		Notifier:    a.Notifier,
		Logger:      log.Named("stock"),
	})

	a.Poller = refresh.NewPoller(cfg.RefreshInterval, a.Orders.Refresh, log.Named("refresh"))
	return a, nil
}

// Close releases timers and the state file.
func (a *App) Close() error {
	if a.Notifier != nil {
		a.Notifier.Close()
	}
	if a.Search != nil {
		a.Search.Close()
	}
	if a.kv != nil {
		return a.kv.Close()
	}
	return nil
}
