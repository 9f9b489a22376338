// Package health exposes the engine's internal liveness/debug HTTP surface
// over gofiber/fiber/v2, generalizing the teacher's in-process
// LedgerService.HealthCheck (internal/api/service.go) into an HTTP endpoint
// plus a debug view onto the webhook outbox.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
	"go.uber.org/zap"
)

// Server is the internal-only HTTP surface: /healthz for liveness/readiness
// probes, /debug/webhooks for operator visibility into the outbox.
type Server struct {
	app        *fiber.App
	listenAddr string
	log        *zap.Logger
}

func New(cfg models.HealthConfig, domain store.DomainStore, ledger store.LedgerAdapter, log *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return healthCheck(c, domain, ledger)
	})
	app.Get("/debug/webhooks", func(c *fiber.Ctx) error {
		return debugWebhooks(c, domain)
	})

	return &Server{app: app, listenAddr: cfg.ListenAddr, log: log}
}

// Run listens until ctx is canceled, then shuts the fiber app down.
func (s *Server) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.log.Warn("health server shutdown", zap.Error(err))
		}
	}()

	s.log.Info("starting health server", zap.String("addr", s.listenAddr))
	if err := s.app.Listen(s.listenAddr); err != nil {
		s.log.Error("health server stopped", zap.Error(err))
	}
}

// healthCheck pings the relational store and the ledger adapter the way the
// teacher's HealthCheck re-reads a known table rather than trusting that the
// process is merely still running.
func healthCheck(c *fiber.Ctx, domain store.DomainStore, ledger store.LedgerAdapter) error {
	ctx := c.Context()

	if err := domain.Ping(ctx); err != nil {
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "down", "component": "database", "error": err.Error(),
		})
	}
	if err := ledger.Ping(ctx); err != nil {
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "down", "component": "ledger", "error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// debugWebhooks lists the pending and dead-lettered portions of the webhook
// outbox, read-only, never claiming work the dispatcher owns.
func debugWebhooks(c *fiber.Ctx, domain store.DomainStore) error {
	const limit = 100
	pending, err := domain.ListPendingWebhookEvents(c.Context(), limit)
	if err != nil {
		return err
	}
	dead, err := domain.ListDeadWebhookEvents(c.Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"pending": pending,
		"dead":    dead,
	})
}
