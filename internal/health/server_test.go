package health

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
)

type fakeDomain struct {
	store.DomainStore
	pingErr error
	pending []*models.WebhookEvent
	dead    []*models.WebhookEvent
}

func (f *fakeDomain) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeDomain) ListPendingWebhookEvents(ctx context.Context, limit int) ([]*models.WebhookEvent, error) {
	return f.pending, nil
}
func (f *fakeDomain) ListDeadWebhookEvents(ctx context.Context, limit int) ([]*models.WebhookEvent, error) {
	return f.dead, nil
}

type fakeLedger struct {
	store.LedgerAdapter
	pingErr error
}

func (f *fakeLedger) Ping(ctx context.Context) error { return f.pingErr }

func newTestApp(domain *fakeDomain, ledger *fakeLedger) *fiber.App {
	app := fiber.New()
	app.Get("/healthz", func(c *fiber.Ctx) error { return healthCheck(c, domain, ledger) })
	app.Get("/debug/webhooks", func(c *fiber.Ctx) error { return debugWebhooks(c, domain) })
	return app
}

func TestHealthCheck_AllUp(t *testing.T) {
	app := newTestApp(&fakeDomain{}, &fakeLedger{})
	req := httptest.NewRequest("GET", "/healthz", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHealthCheck_DatabaseDownReturns503(t *testing.T) {
	app := newTestApp(&fakeDomain{pingErr: errors.New("db down")}, &fakeLedger{})
	req := httptest.NewRequest("GET", "/healthz", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestHealthCheck_LedgerDownReturns503(t *testing.T) {
	app := newTestApp(&fakeDomain{}, &fakeLedger{pingErr: errors.New("ledger down")})
	req := httptest.NewRequest("GET", "/healthz", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestDebugWebhooks_ReturnsPendingAndDead(t *testing.T) {
	domain := &fakeDomain{
		pending: []*models.WebhookEvent{{ID: "evt-1"}},
		dead:    []*models.WebhookEvent{{ID: "evt-2"}},
	}
	app := newTestApp(domain, &fakeLedger{})
	req := httptest.NewRequest("GET", "/debug/webhooks", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
