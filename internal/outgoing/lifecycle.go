// Package outgoing implements the outgoing-payment lifecycle engine
// (spec.md §4.3): the durable state machine (Funding → Sending →
// Completed/Failed) driven by a polling worker, plus creation-time
// grant-limit enforcement.
package outgoing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
	"go.uber.org/zap"
)

// Engine drives outgoing-payment creation and the pay step.
type Engine struct {
	domain       store.DomainStore
	ledger       store.LedgerAdapter
	pay          PayRunner
	log          *zap.Logger
	retryBackoff time.Duration
	maxAttempts  int
}

// PayRunner drives one send attempt of an outgoing payment through the
// packet pipeline acting as source; implemented by StreamPay (pay.go),
// which reaches the pipeline only through the PacketSender interface to
// keep this package free of a dependency on the pipeline package.
type PayRunner interface {
	Pay(ctx context.Context, payment *models.OutgoingPayment, quote *models.Quote, wallet *models.WalletAddress) (Result, error)
}

// Result is the outcome of one pay-step attempt.
type Result struct {
	AmountSent      string
	AmountDelivered string
	Done            bool // true if the payment reached its target and should complete
	Retryable       bool
	Err             error
}

func NewEngine(domain store.DomainStore, ledger store.LedgerAdapter, pay PayRunner, log *zap.Logger, retryBackoff time.Duration, maxAttempts int) *Engine {
	return &Engine{domain: domain, ledger: ledger, pay: pay, log: log, retryBackoff: retryBackoff, maxAttempts: maxAttempts}
}

// CreateParams is the outgoing-payment creation input (spec.md §4.3
// "Creation").
type CreateParams struct {
	WalletAddressID string
	QuoteID         string
	Metadata        map[string]string
	Grant           *models.OutgoingPaymentGrant
	GrantLimits     *models.GrantLimits
	Client          *string
}

// Create validates the quote and (if a grant is supplied) the grant's
// limits, then inserts the payment in state Funding with a
// PaymentCreated webhook event in the same transaction.
func (e *Engine) Create(ctx context.Context, p CreateParams) (*models.OutgoingPayment, error) {
	wallet, err := e.domain.GetWalletAddress(ctx, p.WalletAddressID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive(time.Now()) {
		return nil, store.NewError(store.ErrInactiveWalletAddress, p.WalletAddressID)
	}
	quote, err := e.domain.GetQuote(ctx, p.QuoteID)
	if err != nil {
		return nil, err
	}
	if quote.WalletAddressID != p.WalletAddressID {
		return nil, store.NewError(store.ErrInvalidQuote, "quote belongs to a different wallet address")
	}
	if quote.ExpiresAt.Before(time.Now()) {
		return nil, store.NewError(store.ErrInvalidQuote, "quote expired")
	}

	var grantID *string
	if p.Grant != nil {
		release, err := e.domain.LockOutgoingPaymentGrant(ctx, p.Grant.ID)
		if err != nil {
			return nil, fmt.Errorf("locking grant: %w", err)
		}
		defer release()

		if err := e.checkGrantLimits(ctx, p.Grant.ID, p.GrantLimits, quote); err != nil {
			return nil, err
		}
		grantID = &p.Grant.ID
	}

	payment := &models.OutgoingPayment{
		ID:              quote.ID,
		WalletAddressID: p.WalletAddressID,
		QuoteID:         quote.ID,
		State:           models.OutgoingPaymentFunding,
		SentAmount:      "0",
		Metadata:        p.Metadata,
		GrantID:         grantID,
		CreatedAt:       time.Now(),
	}
	event := &models.WebhookEvent{
		ID:        uuid.NewString(),
		Type:      models.EventOutgoingPaymentCreated,
		Data:      map[string]any{"id": payment.ID, "walletAddressId": payment.WalletAddressID},
		ProcessAt: timePtr(time.Now()),
		CreatedAt: time.Now(),
	}
	if err := e.domain.CreateOutgoingPayment(ctx, payment, event); err != nil {
		return nil, err
	}
	return payment, nil
}

// checkGrantLimits implements spec.md §4.3's grant-limit validation:
// currency match, interval coverage, and cumulative-contribution budget.
func (e *Engine) checkGrantLimits(ctx context.Context, grantID string, limits *models.GrantLimits, quote *models.Quote) error {
	if limits == nil {
		return nil
	}
	if limits.Receiver != nil && *limits.Receiver != quote.Receiver {
		return store.NewError(store.ErrInvalidQuote, "receiver does not match grant limit")
	}

	debitLimited := limits.DebitAmount != nil
	receiveLimited := limits.ReceiveAmount != nil
	if !debitLimited && !receiveLimited {
		return nil
	}

	if debitLimited {
		sourceAsset, err := e.domain.GetAsset(ctx, quote.AssetID)
		if err != nil {
			return fmt.Errorf("loading quote's source asset: %w", err)
		}
		if limits.DebitAmount.AssetCode != sourceAsset.Code || limits.DebitAmount.AssetScale != sourceAsset.Scale {
			return store.NewError(store.ErrInvalidQuote, "grant debitAmount currency does not match quote's source asset")
		}
	}
	if receiveLimited {
		if limits.ReceiveAmount.AssetCode != quote.ReceiveAssetCode || limits.ReceiveAmount.AssetScale != quote.ReceiveAssetScale {
			return store.NewError(store.ErrInvalidQuote, "grant receiveAmount currency does not match quote's destination asset")
		}
	}

	interval := ""
	if limits.Interval != nil {
		interval = *limits.Interval
		covers, err := intervalCoversNow(interval, time.Now())
		if err != nil {
			return fmt.Errorf("checking grant interval: %w", err)
		}
		if !covers {
			return store.NewError(store.ErrInsufficientGrant, "grant interval does not cover the current time")
		}
	}

	contributed, err := e.domain.SumGrantContribution(ctx, grantID, interval, debitLimited)
	if err != nil {
		return fmt.Errorf("summing grant contribution: %w", err)
	}

	if debitLimited {
		return checkBudget(contributed, quote.DebitAmount, limits.DebitAmount.MinorUnits())
	}
	return checkBudget(contributed, quote.ReceiveAmount, limits.ReceiveAmount.MinorUnits())
}

func timePtr(t time.Time) *time.Time { return &t }
