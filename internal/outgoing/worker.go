package outgoing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Fund transitions a payment Funding → Sending, atomic with a ledger
// deposit of the quote's debitAmount into the payment's own account
// (spec.md §4.3).
func (e *Engine) Fund(ctx context.Context, paymentID, transferID string, amount models.Money) error {
	payment, err := e.domain.GetOutgoingPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.State != models.OutgoingPaymentFunding {
		return store.NewError(store.ErrWrongState, "payment is not in Funding state")
	}
	quote, err := e.domain.GetQuote(ctx, payment.QuoteID)
	if err != nil {
		return err
	}
	if amount.MinorUnits() != quote.DebitAmount {
		return store.NewError(store.ErrInvalidAmount, "fund amount does not match quote.debitAmount")
	}

	if err := e.ledger.CreateDeposit(ctx, store.CreateDepositParams{
		ID:      transferID,
		Account: models.AccountRef{Kind: models.AccountKindOutgoingPayment, ID: payment.ID, AssetID: quote.AssetID},
		Amount:  amount,
	}); err != nil {
		return fmt.Errorf("depositing funding amount: %w", err)
	}

	payment.State = models.OutgoingPaymentSending
	payment.ProcessAt = timePtr(time.Now())
	return e.domain.UpdateOutgoingPayment(ctx, payment, nil)
}

// Worker polls for due outgoing payments and drives them one step at a
// time (spec.md §5 "outgoing-payment worker").
type Worker struct {
	engine   *Engine
	domain   store.DomainStore
	interval time.Duration
	log      *zap.Logger
}

func NewWorker(engine *Engine, domain store.DomainStore, interval time.Duration, log *zap.Logger) *Worker {
	return &Worker{engine: engine, domain: domain, interval: interval, log: log}
}

func (w *Worker) Run(ctx context.Context) {
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

func (w *Worker) tick(ctx context.Context) {
	payment, err := w.domain.ClaimNextOutgoingPayment(ctx, time.Now())
	if err != nil {
		if !errors.Is(err, store.ErrNoRowsClaimed) {
			w.log.Warn("claiming outgoing payment", zap.Error(err))
		}
		return
	}
	if payment == nil {
		return
	}
	if err := w.engine.Step(ctx, payment); err != nil {
		w.log.Error("pay step failed", zap.String("payment_id", payment.ID), zap.Error(err))
	}
}

// Step runs one pay-step attempt and persists the resulting transition
// (spec.md §4.3 "the pay step").
func (e *Engine) Step(ctx context.Context, payment *models.OutgoingPayment) error {
	quote, err := e.domain.GetQuote(ctx, payment.QuoteID)
	if err != nil {
		return e.fail(ctx, payment, fmt.Sprintf("loading quote: %v", err))
	}
	wallet, err := e.domain.GetWalletAddress(ctx, payment.WalletAddressID)
	if err != nil {
		return e.fail(ctx, payment, fmt.Sprintf("loading wallet address: %v", err))
	}
	asset, err := e.domain.GetAsset(ctx, quote.AssetID)
	if err != nil {
		return e.fail(ctx, payment, fmt.Sprintf("loading asset: %v", err))
	}
	if wallet.AssetID != asset.ID {
		return e.fail(ctx, payment, string(store.ErrSourceAssetConflict))
	}

	result, err := e.pay.Pay(ctx, payment, quote, wallet)
	if err != nil {
		return e.fail(ctx, payment, err.Error())
	}
	if result.Err != nil {
		if result.AmountSent != "" {
			payment.SentAmount = result.AmountSent
		}
		if result.Retryable && payment.StateAttempts+1 < e.maxAttempts {
			payment.StateAttempts++
			errMsg := result.Err.Error()
			payment.Error = &errMsg
			payment.ProcessAt = timePtr(time.Now().Add(backoff(e.retryBackoff, payment.StateAttempts)))
			return e.domain.UpdateOutgoingPayment(ctx, payment, nil)
		}
		return e.fail(ctx, payment, result.Err.Error())
	}

	if result.AmountSent != "" {
		payment.SentAmount = result.AmountSent
	}
	if !result.Done {
		payment.ProcessAt = timePtr(time.Now())
		return e.domain.UpdateOutgoingPayment(ctx, payment, nil)
	}
	return e.complete(ctx, payment, quote, asset)
}

// backoff is base * 2^attempts, per spec.md §4.3's RETRY_BACKOFF_SECONDS.
func backoff(base time.Duration, attempts int) time.Duration {
	shift := attempts
	if shift > 20 {
		shift = 20
	}
	return time.Duration(float64(base) * math.Pow(2, float64(shift)))
}

func (e *Engine) fail(ctx context.Context, payment *models.OutgoingPayment, reason string) error {
	payment.State = models.OutgoingPaymentFailed
	payment.Error = &reason
	payment.ProcessAt = nil
	return e.finish(ctx, payment, models.EventOutgoingPaymentFailed)
}

func (e *Engine) complete(ctx context.Context, payment *models.OutgoingPayment, quote *models.Quote, asset *models.Asset) error {
	payment.State = models.OutgoingPaymentCompleted
	payment.ProcessAt = nil
	return e.finish(ctx, payment, models.EventOutgoingPaymentCompleted)
}

// finish attaches any residual balance (debitAmount - sentAmount) to the
// terminal-state webhook event as its withdrawal and enqueues that event
// in the same update.
func (e *Engine) finish(ctx context.Context, payment *models.OutgoingPayment, eventType models.WebhookEventType) error {
	quote, err := e.domain.GetQuote(ctx, payment.QuoteID)
	if err != nil {
		return fmt.Errorf("loading quote for finish: %w", err)
	}
	asset, err := e.domain.GetAsset(ctx, quote.AssetID)
	if err != nil {
		return fmt.Errorf("loading asset for finish: %w", err)
	}

	// The residual (debitAmount - sentAmount) is attached to the terminal
	// event as a pending withdrawal rather than withdrawn here directly;
	// the admin API's withdrawEventLiquidity (spec.md §4.6) is what
	// actually posts it against the ledger, keeping this state transition
	// free of its own two-phase withdrawal lifecycle to track.
	var withdrawal *models.WebhookWithdrawal
	debit, derr := decimal.NewFromString(quote.DebitAmount)
	sent, serr := decimal.NewFromString(payment.SentAmount)
	if derr == nil && serr == nil {
		residual := debit.Sub(sent)
		if residual.Sign() > 0 {
			withdrawal = &models.WebhookWithdrawal{
				AccountID: payment.ID,
				AssetID:   quote.AssetID,
				Amount:    residual.Shift(-int32(asset.Scale)).String(),
			}
		}
	}

	event := &models.WebhookEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Data:       map[string]any{"id": payment.ID, "walletAddressId": payment.WalletAddressID, "sentAmount": payment.SentAmount},
		ProcessAt:  timePtr(time.Now()),
		Withdrawal: withdrawal,
		CreatedAt:  time.Now(),
	}
	return e.domain.UpdateOutgoingPayment(ctx, payment, event)
}
