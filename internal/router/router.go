package router

import (
	"log"
	"net/http"

	"github.com/chaipoint/api/internal/config"
	"github.com/chaipoint/api/internal/enum"
	"github.com/chaipoint/api/internal/handler"
	mw "github.com/chaipoint/api/internal/middleware"
	"github.com/chaipoint/api/internal/service"
	"github.com/chaipoint/api/internal/store"
	"github.com/chaipoint/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// New creates a Chi router with all application routes wired up.
// Customer-facing ordering endpoints are public; the kitchen queue,
// order list, status updates, bills, and reports require a staff token.
func New(cfg *config.Config, st *store.MemoryStore, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",        // dev server
			"https://order.chaipoint.in",   // customer tabs
			"https://kitchen.chaipoint.in", // kitchen dashboard
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(st, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	orderService := service.NewOrderService(st)
	orderHandler := handler.NewOrderHandler(orderService, st, hub)
	billHandler := handler.NewBillHandler(orderService, st, hub)
	menuHandler := handler.NewMenuHandler(st, hub)

	// Customer routes: no token needed to browse the menu, place an
	// order at the table, watch its status, or ask for the bill.
	r.Route("/menu", func(r chi.Router) {
		menuHandler.RegisterPublicRoutes(r)

		// Mutations are manager-only
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRole(enum.UserRoleManager))
			menuHandler.RegisterManagerRoutes(r)
		})
	})
	r.Route("/orders", func(r chi.Router) {
		orderHandler.RegisterPublicRoutes(r)

		// Staff routes on the same prefix
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRole(enum.UserRoleManager, enum.UserRoleKitchen))
			orderHandler.RegisterStaffRoutes(r)
		})
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Kitchen + manager routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleManager, enum.UserRoleKitchen))

			r.Get("/kitchen/queue", orderHandler.Queue)
			r.Route("/bills", billHandler.RegisterRoutes)
		})

		// Manager-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleManager))

			reportsHandler := handler.NewReportsHandler(st)
			r.Route("/reports", reportsHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
