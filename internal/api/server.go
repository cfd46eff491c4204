// Package api serves stored audit runs over HTTP. It is read-only: runs
// are produced by the batch command and appended to the store; the API
// only queries by batch identifier or serves KPI aggregates.
package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"lineside-audit-service/internal/store"
	"lineside-audit-service/pkg/logger"
)

// Server wraps the fiber application and its route handlers.
type Server struct {
	app    *fiber.App
	logger logger.Logger
}

// NewServer builds the application and registers the query routes.
func NewServer(st *store.Store) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "lineside-audit-service",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	h := newHandlers(st)

	api := app.Group("/api")
	api.Get("/batches", h.ListBatches)
	api.Get("/kpi/summary", h.KPISummary)
	api.Get("/kpi/trend", h.KPITrend)
	api.Get("/kpi/aging-distribution", h.AgingDistribution)
	api.Get("/alerts/:batchID", h.Alerts)
	api.Get("/alerts/:batchID/detail", h.AlertDetails)
	api.Get("/issue-audit/:batchID", h.IssueAudits)
	api.Get("/quality/:batchID", h.Quality)

	return &Server{
		app:    app,
		logger: logger.GetGlobalLogger().WithComponent("api"),
	}
}

// App exposes the underlying fiber application for testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves the API on the given address until shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.WithField("addr", addr).Info("Query API listening")
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
