// Package api exposes the bookkeeping service over HTTP JSON.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kassabook/ledger-service/internal/ledger"
	"github.com/kassabook/ledger-service/internal/registry"
)

// Server holds the services behind the HTTP handlers.
type Server struct {
	ledger   *ledger.Service
	registry *registry.Service
	log      *zap.Logger
	validate *validator.Validate
}

// NewServer builds the HTTP server facade.
func NewServer(ledgerSvc *ledger.Service, registrySvc *registry.Service, log *zap.Logger) *Server {
	return &Server{
		ledger:   ledgerSvc,
		registry: registrySvc,
		log:      log,
		validate: validator.New(),
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", s.handleCreateAccount)
			r.Get("/", s.handleListAccounts)
			r.Put("/{id}", s.handleRenameAccount)
			r.Put("/{id}/balance", s.handleAdjustBalance)
			r.Delete("/{id}", s.handleDeleteAccount)
		})

		r.Post("/transfers", s.handleTransfer)
		r.Get("/entries", s.handleListEntries)
		r.Get("/reports/daily", s.handleDailyReport)

		r.Route("/clients", func(r chi.Router) {
			r.Post("/", s.handleCreateClient)
			r.Get("/", s.handleListClients)
			r.Delete("/{id}", s.handleDeleteClient)
		})
		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", s.handleCreateContract)
			r.Get("/", s.handleListContracts)
			r.Delete("/{id}", s.handleDeleteContract)
		})
		r.Route("/templates", func(r chi.Router) {
			r.Post("/", s.handleCreateTemplate)
			r.Get("/", s.handleListTemplates)
			r.Delete("/{id}", s.handleDeleteTemplate)
		})
		r.Route("/products", func(r chi.Router) {
			r.Post("/", s.handleCreateProduct)
			r.Get("/", s.handleListProducts)
			r.Delete("/{id}", s.handleDeleteProduct)
		})
	})

	return r
}
