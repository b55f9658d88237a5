package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/picknpack/dashboard/internal/config"
	"github.com/picknpack/dashboard/internal/handler"
	mw "github.com/picknpack/dashboard/internal/middleware"
	"github.com/picknpack/dashboard/internal/ws"
)

// Services are the handlers' dependencies.
type Services struct {
	Orders        handler.OrderServicer
	Stock         handler.StockBrowser
	Mutations     handler.StockMutator
	Notifications handler.NotificationSource
}

// New creates a Chi router with all dashboard routes wired up.
func New(cfg *config.Config, svc Services, hub *ws.Hub, log *zap.Logger) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger(log))
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/orders", handler.NewOrderHandler(svc.Orders).RegisterRoutes)
	r.Route("/stock", handler.NewStockHandler(svc.Stock, svc.Mutations).RegisterRoutes)
	r.Route("/notifications", handler.NewNotificationHandler(svc.Notifications).RegisterRoutes)

	r.Method(http.MethodGet, "/ws", ws.NewHandler(hub, cfg.ShopID, cfg.AllowedOrigins))

	return r
}
