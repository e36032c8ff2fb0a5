package routes

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/handler/api"
	"github.com/dukerupert/skuld/internal/middleware"
	"github.com/dukerupert/skuld/internal/router"
)

// API builds the HTTP route table for the billing API.
func API(service domain.TemplateService, logger *slog.Logger) *router.Router {
	metrics := middleware.NewMetrics("skuld")

	r := router.New(
		middleware.Recover,
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
		metrics.Middleware,
	)

	// Operational endpoints stay outside the tenant boundary.
	r.Get("/health", healthCheck)
	r.Handle(http.MethodGet, "/metrics", metrics.Handler())

	templates := api.NewTemplateHandler(service, logger)

	r.Post("/api/templates", templates.Create, middleware.WithTenant)
	r.Get("/api/templates", templates.List, middleware.WithTenant)
	r.Get("/api/templates/{id}", templates.Get, middleware.WithTenant)
	r.Patch("/api/templates/{id}", templates.Update, middleware.WithTenant)
	r.Post("/api/templates/{id}/status", templates.UpdateStatus, middleware.WithTenant)
	r.Patch("/api/templates/{id}/schedule", templates.OverrideSchedule, middleware.WithTenant)
	r.Delete("/api/templates/{id}", templates.Delete, middleware.WithTenant)

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
