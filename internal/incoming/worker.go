package incoming

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExpiryWorker implements spec.md §5's incoming-payment timer worker,
// polling for payments whose expiresAt has passed and flipping them to
// Expired via the domain store's atomic claim-and-update query.
type ExpiryWorker struct {
	domain   store.DomainStore
	interval time.Duration
	batch    int
	log      *zap.Logger
}

func NewExpiryWorker(domain store.DomainStore, interval time.Duration, log *zap.Logger) *ExpiryWorker {
	return &ExpiryWorker{domain: domain, interval: interval, batch: 50, log: log}
}

func (w *ExpiryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ExpiryWorker) tick(ctx context.Context) {
	expired, err := w.domain.ClaimExpiredIncomingPayments(ctx, time.Now(), w.batch)
	if err != nil {
		w.log.Warn("claiming expired incoming payments", zap.Error(err))
		return
	}
	for _, p := range expired {
		w.log.Debug("incoming payment expired", zap.String("payment_id", p.ID), zap.String("state", string(p.State)))
	}
}

// WalletAddressWorker implements spec.md §5's wallet-address worker: for
// addresses due for processing, it diffs the web-monetization account's
// cumulative total-received against the previously-withdrawn accumulator
// and emits a webhook event for the delta.
type WalletAddressWorker struct {
	domain   store.DomainStore
	ledger   store.LedgerAdapter
	interval time.Duration
	batch    int
	log      *zap.Logger
}

func NewWalletAddressWorker(domain store.DomainStore, ledger store.LedgerAdapter, interval time.Duration, log *zap.Logger) *WalletAddressWorker {
	return &WalletAddressWorker{domain: domain, ledger: ledger, interval: interval, batch: 50, log: log}
}

func (w *WalletAddressWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *WalletAddressWorker) tick(ctx context.Context) {
	due, err := w.domain.ClaimWalletAddressesDue(ctx, time.Now(), w.batch)
	if err != nil {
		w.log.Warn("claiming due wallet addresses", zap.Error(err))
		return
	}
	for _, wa := range due {
		if err := w.process(ctx, wa); err != nil {
			w.log.Error("processing wallet address", zap.String("wallet_address_id", wa.ID), zap.Error(err))
		}
	}
}

func (w *WalletAddressWorker) process(ctx context.Context, wa *models.WalletAddress) error {
	ref := models.AccountRef{Kind: models.AccountKindWebMonetization, ID: wa.ID, AssetID: wa.AssetID}
	totalReceived, err := w.ledger.GetTotalReceived(ctx, ref)
	if err != nil {
		return err
	}

	previouslyWithdrawn, err := decimal.NewFromString(wa.TotalEventsAmount)
	if err != nil {
		previouslyWithdrawn = decimal.Zero
	}
	delta := totalReceived.Value.Sub(previouslyWithdrawn)
	if !delta.IsPositive() {
		return w.domain.AdvanceWalletAddressEvents(ctx, wa.ID, wa.TotalEventsAmount, nil)
	}

	event := &models.WebhookEvent{
		ID:   uuid.NewString(),
		Type: models.EventWalletAddressWebMonetization,
		Data: map[string]any{"id": wa.ID},
		Withdrawal: &models.WebhookWithdrawal{
			AccountID: wa.ID,
			AssetID:   wa.AssetID,
			Amount:    delta.String(),
		},
	}
	now := time.Now()
	event.ProcessAt = &now
	event.CreatedAt = now
	if err := w.domain.EnqueueWebhookEvent(ctx, event); err != nil {
		return err
	}
	return w.domain.AdvanceWalletAddressEvents(ctx, wa.ID, totalReceived.Value.String(), nil)
}
