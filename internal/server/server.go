// Package server exposes the stock log over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/roach88/stocklog/internal/intake"
	"github.com/roach88/stocklog/internal/store"
)

// Applier applies one batch as a processing unit.
type Applier interface {
	Apply(ctx context.Context, b intake.Batch) (intake.Summary, error)
}

// Server serves the HTTP API.
type Server struct {
	app     *fiber.App
	backend store.Backend
	applier Applier
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Server and registers its routes.
func New(backend store.Backend, applier Applier, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		applier: applier,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "stocklog",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.health)

	v1 := s.app.Group("/v1")
	v1.Post("/units", s.postUnit)
	v1.Get("/records", s.listRecords)
	v1.Get("/records/:id", s.getRecord)
	v1.Get("/settings", s.getSettings)
	v1.Put("/settings", s.putSettings)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server, waiting for in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// handleError maps errors to a JSON {"error": msg} body.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	s.logger.Error("request failed",
		"method", c.Method(),
		"path", c.Path(),
		"error", err,
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
