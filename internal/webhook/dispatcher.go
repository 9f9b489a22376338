// Package webhook implements the webhook dispatcher (spec.md §4.7): reads
// due events, POSTs their JSON body to the configured URL, and reschedules
// with exponential backoff on failure.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
	"go.uber.org/zap"
)

// Dispatcher polls for due webhook events and delivers them at-least-once.
type Dispatcher struct {
	domain       store.DomainStore
	client       *http.Client
	url          string
	maxAttempts  int
	backoffBase  time.Duration
	backoffMax   time.Duration
	pollInterval time.Duration
	batchSize    int
	log          *zap.Logger
}

func NewDispatcher(domain store.DomainStore, cfg models.Config, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		domain:       domain,
		client:       &http.Client{Timeout: cfg.WebhookTimeout},
		url:          cfg.WebhookURL,
		maxAttempts:  cfg.WebhookMaxAttempts,
		backoffBase:  cfg.WebhookBackoffBase,
		backoffMax:   cfg.WebhookBackoffMax,
		pollInterval: time.Second,
		batchSize:    20,
		log:          log,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) {
	events, err := d.domain.ClaimWebhookEventsDue(ctx, time.Now(), d.batchSize)
	if err != nil {
		d.log.Warn("claiming webhook events", zap.Error(err))
		return
	}
	for _, e := range events {
		d.deliver(ctx, e)
	}
}

// deliver posts one event and reschedules it on failure per spec.md
// §4.7's base*2^attempts backoff, capped at backoffMax; after maxAttempts
// the event is left undeliverable (processAt = nil) and an alert is
// logged.
func (d *Dispatcher) deliver(ctx context.Context, e *models.WebhookEvent) {
	body, err := json.Marshal(webhookPayload{ID: e.ID, Type: string(e.Type), Data: e.Data})
	if err != nil {
		d.log.Error("encoding webhook payload", zap.String("event_id", e.ID), zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		d.log.Error("building webhook request", zap.String("event_id", e.ID), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	e.Attempts++
	resp, err := d.client.Do(req)
	if err != nil {
		d.reschedule(ctx, e, nil, err)
		return
	}
	defer resp.Body.Close()
	status := resp.StatusCode

	if status >= 200 && status < 300 {
		e.StatusCode = &status
		e.ProcessAt = nil
		if err := d.domain.UpdateWebhookEvent(ctx, e); err != nil {
			d.log.Warn("marking webhook delivered", zap.String("event_id", e.ID), zap.Error(err))
		}
		return
	}
	d.reschedule(ctx, e, &status, fmt.Errorf("webhook endpoint returned %d", status))
}

func (d *Dispatcher) reschedule(ctx context.Context, e *models.WebhookEvent, status *int, cause error) {
	e.StatusCode = status
	if e.Attempts >= d.maxAttempts {
		e.ProcessAt = nil
		e.Dead = true
		d.log.Error("webhook delivery exhausted retries", zap.String("event_id", e.ID), zap.String("type", string(e.Type)), zap.Error(cause))
	} else {
		delay := time.Duration(float64(d.backoffBase) * math.Pow(2, float64(e.Attempts)))
		if delay > d.backoffMax {
			delay = d.backoffMax
		}
		next := time.Now().Add(delay)
		e.ProcessAt = &next
	}
	if err := d.domain.UpdateWebhookEvent(ctx, e); err != nil {
		d.log.Warn("rescheduling webhook event", zap.String("event_id", e.ID), zap.Error(err))
	}
}

type webhookPayload struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}
