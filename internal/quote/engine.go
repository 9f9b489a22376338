// Package quote implements the quote engine (spec.md §4.4): given a
// source wallet address and a receiver URL, produces a time-bounded
// commitment of debit amount, receive amount, minimum exchange
// rate, and max packet amount. The quote is stored as plain fields and
// carries no signature.
package quote

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/receiver"
	"github.com/ilpengine/engine/internal/store"
	"github.com/shopspring/decimal"
)

// Engine computes quotes per spec.md §4.4.
type Engine struct {
	domain   store.DomainStore
	rates    *RatesClient
	resolver *receiver.Resolver
	lifespan time.Duration
	slippage float64
}

func NewEngine(domain store.DomainStore, rates *RatesClient, resolver *receiver.Resolver, lifespan time.Duration, slippage float64) *Engine {
	return &Engine{domain: domain, rates: rates, resolver: resolver, lifespan: lifespan, slippage: slippage}
}

// CreateParams is the quote engine's input; exactly one of DebitAmount or
// ReceiveAmount may be set, both as decimal strings in the source/receiver
// asset's minor units respectively.
type CreateParams struct {
	WalletAddressID string
	Receiver        string
	DebitAmount     *string
	ReceiveAmount   *string
	Client          *string
}

// Create validates params, resolves the receiver, derives exchange rates
// and fees, and persists the resulting quote.
func (e *Engine) Create(ctx context.Context, p CreateParams) (*models.Quote, error) {
	if p.DebitAmount != nil && p.ReceiveAmount != nil {
		return nil, store.NewError(store.ErrInvalidAmount, "only one of debitAmount or receiveAmount may be specified")
	}

	wallet, err := e.domain.GetWalletAddress(ctx, p.WalletAddressID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive(time.Now()) {
		return nil, store.NewError(store.ErrInactiveWalletAddress, p.WalletAddressID)
	}
	sourceAsset, err := e.domain.GetAsset(ctx, wallet.AssetID)
	if err != nil {
		return nil, err
	}

	resolved, err := e.resolver.Resolve(ctx, p.Receiver)
	if err != nil {
		return nil, fmt.Errorf("resolving receiver: %w", err)
	}
	if resolved == nil {
		return nil, store.NewError(store.ErrInvalidReceiver, p.Receiver)
	}
	if resolved.IncomingPayment != nil {
		switch resolved.IncomingPayment.State {
		case models.IncomingPaymentCompleted, models.IncomingPaymentExpired:
			return nil, store.NewError(store.ErrInvalidReceiver, "receiver is completed or expired")
		}
	}

	debit, receive, err := e.resolveRequestedAmounts(p, resolved)
	if err != nil {
		return nil, err
	}

	rate, err := e.rates.Rate(ctx, sourceAsset.Code, resolved.AssetCode)
	if err != nil {
		return nil, fmt.Errorf("looking up rate: %w", err)
	}
	lowRate := rate
	highRate := rate.Add(decimal.New(1, int32(-sourceAsset.Scale-3)))
	minRate := lowRate.Mul(decimal.NewFromFloat(1 - e.slippage))

	debit, receive, feeID, err := e.applySendingFees(sourceAsset, debit, receive, rate)
	if err != nil {
		return nil, err
	}

	if debit.Sign() <= 0 || receive.Sign() <= 0 {
		return nil, store.NewError(store.ErrInvalidAmount, "debit/receive amount must be positive")
	}
	if resolved.IncomingAmount != nil {
		incoming, convErr := decimal.NewFromString(*resolved.IncomingAmount)
		if convErr == nil && receive.GreaterThan(incoming) {
			return nil, store.NewError(store.ErrInvalidAmount, "receiveAmount exceeds receiver's incomingAmount")
		}
	}

	expiresAt := time.Now().Add(e.lifespan)
	if resolved.ExpiresAt != nil && resolved.ExpiresAt.Before(expiresAt) {
		expiresAt = *resolved.ExpiresAt
	}

	q := &models.Quote{
		ID:                        uuid.NewString(),
		WalletAddressID:           p.WalletAddressID,
		AssetID:                   sourceAsset.ID,
		Receiver:                  p.Receiver,
		DebitAmount:               debit.String(),
		ReceiveAmount:             receive.String(),
		MaxPacketAmount:           math.MaxInt64,
		MinExchangeRate:           minRate.String(),
		LowEstimatedExchangeRate:  lowRate.String(),
		HighEstimatedExchangeRate: highRate.String(),
		ReceiveAssetCode:          resolved.AssetCode,
		ReceiveAssetScale:         resolved.AssetScale,
		FeeID:                     feeID,
		ExpiresAt:                 expiresAt,
		Client:                    p.Client,
		CreatedAt:                 time.Now(),
	}
	if err := e.domain.CreateQuote(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// resolveRequestedAmounts returns the amount the caller gave and leaves the
// other one zero for applySendingFees to derive from the rate; when neither
// is given, the receiver's incomingAmount (minus already-received) seeds
// the receive amount (fixed-delivery mode).
func (e *Engine) resolveRequestedAmounts(p CreateParams, resolved *receiver.Resolved) (debit, receive decimal.Decimal, err error) {
	switch {
	case p.DebitAmount != nil:
		debit, err = decimal.NewFromString(*p.DebitAmount)
		if err != nil || debit.Sign() <= 0 {
			return decimal.Decimal{}, decimal.Decimal{}, store.NewError(store.ErrInvalidAmount, "invalid debitAmount")
		}
		return debit, decimal.Decimal{}, nil
	case p.ReceiveAmount != nil:
		receive, err = decimal.NewFromString(*p.ReceiveAmount)
		if err != nil || receive.Sign() <= 0 {
			return decimal.Decimal{}, decimal.Decimal{}, store.NewError(store.ErrInvalidAmount, "invalid receiveAmount")
		}
		return decimal.Decimal{}, receive, nil
	default:
		if resolved.IncomingAmount == nil {
			return decimal.Decimal{}, decimal.Decimal{}, store.NewError(store.ErrInvalidAmount, "receiver exposes no incomingAmount; debitAmount or receiveAmount required")
		}
		incoming, convErr := decimal.NewFromString(*resolved.IncomingAmount)
		if convErr != nil {
			return decimal.Decimal{}, decimal.Decimal{}, store.NewError(store.ErrInvalidAmount, "receiver incomingAmount is malformed")
		}
		already := decimal.Zero
		if resolved.ReceivedAmount != nil {
			if v, convErr := decimal.NewFromString(*resolved.ReceivedAmount); convErr == nil {
				already = v
			}
		}
		receive = incoming.Sub(already)
		if receive.Sign() <= 0 {
			return decimal.Decimal{}, decimal.Decimal{}, store.NewError(store.ErrInvalidAmount, "receiver's incomingAmount already satisfied")
		}
		return decimal.Decimal{}, receive, nil
	}
}

// applySendingFees implements spec.md §4.4's two modes: fixed-delivery
// (receiveAmount given) derives debitAmount from the rate then inflates it
// by the fee; fixed-source (debitAmount given) derives receiveAmount from
// the rate then reduces it by the fee.
func (e *Engine) applySendingFees(sourceAsset *models.Asset, debit, receive decimal.Decimal, rate decimal.Decimal) (decimal.Decimal, decimal.Decimal, *string, error) {
	fee := sourceAsset.SendingFee

	if debit.IsZero() {
		// Fixed-delivery: receive is given, derive the debit amount that
		// would deliver it, then inflate by the fee.
		if rate.IsZero() {
			return decimal.Decimal{}, decimal.Decimal{}, nil, fmt.Errorf("zero exchange rate")
		}
		debit = receive.Div(rate).Ceil()
		debit = applyFee(debit, fee)
		return debit, receive, feeID(fee), nil
	}

	// Fixed-source: debit is given, derive the gross receive then reduce
	// by the fee before conversion.
	net := debit.Sub(feeAmount(debit, fee))
	if net.Sign() <= 0 {
		return decimal.Decimal{}, decimal.Decimal{}, nil, store.NewError(store.ErrInvalidAmount, "sending fee exceeds debitAmount")
	}
	receive = net.Mul(rate).Floor()
	return debit, receive, feeID(fee), nil
}

func feeID(fee *models.Fee) *string {
	if fee == nil {
		return nil
	}
	id := "sending"
	return &id
}
