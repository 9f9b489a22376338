// Package admin implements the admin-facing liquidity and webhook-event
// operations of spec.md §4.6: deposits, two-phase withdrawals, and the
// event-bound liquidity moves, each idempotent per a caller-supplied key.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
	"github.com/shopspring/decimal"
)

// Response is the admin API's mutation envelope (spec.md §6): every
// handler returns one of these regardless of success or failure, so the
// schema-driven administrative API can render it uniformly.
type Response struct {
	Code    string `json:"code"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func errResponse(err error) *Response {
	kind := store.KindOf(err)
	if kind == "" {
		return &Response{Code: "500", Success: false, Message: err.Error()}
	}
	return &Response{Code: store.HTTPCode(kind), Success: false, Error: string(kind), Message: err.Error()}
}

func okResponse(data any) *Response {
	return &Response{Code: "200", Success: true, Data: data}
}

// Service implements spec.md §4.6. Every mutating method is idempotent per
// idempotencyKey: the (operation, key) tuple and its eventual result are
// recorded via the domain store, the same "INSERT OR IGNORE" idiom the
// teacher's queryInsertUser uses for address provisioning.
type Service struct {
	domain store.DomainStore
	ledger store.LedgerAdapter
}

func New(domain store.DomainStore, ledger store.LedgerAdapter) *Service {
	return &Service{domain: domain, ledger: ledger}
}

// withIdempotency runs fn at most once per (operation, idempotencyKey);
// repeat calls replay the stored result.
func (s *Service) withIdempotency(ctx context.Context, operation, idempotencyKey string, fn func(ctx context.Context) *Response) *Response {
	ok, prior, err := s.domain.ReserveIdempotencyKey(ctx, operation, idempotencyKey)
	if err != nil {
		return errResponse(fmt.Errorf("reserving idempotency key: %w", err))
	}
	if !ok {
		if prior == nil {
			// Another caller is still computing the result for this key.
			return &Response{Code: "409", Success: false, Error: string(store.ErrTransferExists), Message: "request already in progress"}
		}
		var resp Response
		if err := json.Unmarshal(prior, &resp); err != nil {
			return errResponse(fmt.Errorf("decoding stored idempotency result: %w", err))
		}
		return &resp
	}

	resp := fn(ctx)
	if encoded, err := json.Marshal(resp); err == nil {
		_ = s.domain.StoreIdempotencyResult(ctx, operation, idempotencyKey, encoded)
	}
	return resp
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, store.NewError(store.ErrInvalidAmount, "amount is not a valid decimal")
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, store.NewError(store.ErrAmountZero, "amount must be positive")
	}
	return amount, nil
}

// AddAssetLiquidity deposits amount into the asset's own liquidity account.
func (s *Service) AddAssetLiquidity(ctx context.Context, assetID, amount, idempotencyKey string) *Response {
	return s.withIdempotency(ctx, "addAssetLiquidity", idempotencyKey, func(ctx context.Context) *Response {
		asset, err := s.domain.GetAsset(ctx, assetID)
		if err != nil {
			return errResponse(err)
		}
		value, err := parseAmount(amount)
		if err != nil {
			return errResponse(err)
		}
		ref := models.AccountRef{Kind: models.AccountKindAsset, ID: asset.ID, AssetID: asset.ID}
		if err := s.ledger.CreateDeposit(ctx, store.CreateDepositParams{
			ID:      uuid.NewString(),
			Account: ref,
			Amount:  models.Money{Value: value, AssetCode: asset.Code, AssetScale: asset.Scale},
		}); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)
	})
}

// AddPeerLiquidity deposits amount into a peer's liquidity account.
func (s *Service) AddPeerLiquidity(ctx context.Context, peerID, amount, idempotencyKey string) *Response {
	return s.withIdempotency(ctx, "addPeerLiquidity", idempotencyKey, func(ctx context.Context) *Response {
		peer, err := s.domain.GetPeer(ctx, peerID)
		if err != nil {
			return errResponse(err)
		}
		asset, err := s.domain.GetAsset(ctx, peer.AssetID)
		if err != nil {
			return errResponse(err)
		}
		value, err := parseAmount(amount)
		if err != nil {
			return errResponse(err)
		}
		ref := models.AccountRef{Kind: models.AccountKindPeer, ID: peer.ID, AssetID: peer.AssetID}
		if err := s.ledger.CreateDeposit(ctx, store.CreateDepositParams{
			ID:      uuid.NewString(),
			Account: ref,
			Amount:  models.Money{Value: value, AssetCode: asset.Code, AssetScale: asset.Scale},
		}); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)
	})
}

// CreateAssetLiquidityWithdrawal begins a two-phase withdrawal from an
// asset's liquidity account.
func (s *Service) CreateAssetLiquidityWithdrawal(ctx context.Context, assetID, amount string, timeout time.Duration, idempotencyKey string) *Response {
	return s.withIdempotency(ctx, "createAssetLiquidityWithdrawal", idempotencyKey, func(ctx context.Context) *Response {
		asset, err := s.domain.GetAsset(ctx, assetID)
		if err != nil {
			return errResponse(err)
		}
		return s.createWithdrawal(ctx, models.AccountRef{Kind: models.AccountKindAsset, ID: asset.ID, AssetID: asset.ID}, asset.Code, asset.Scale, amount, timeout)
	})
}

// CreatePeerLiquidityWithdrawal begins a two-phase withdrawal from a peer's
// liquidity account.
func (s *Service) CreatePeerLiquidityWithdrawal(ctx context.Context, peerID, amount string, timeout time.Duration, idempotencyKey string) *Response {
	return s.withIdempotency(ctx, "createPeerLiquidityWithdrawal", idempotencyKey, func(ctx context.Context) *Response {
		peer, err := s.domain.GetPeer(ctx, peerID)
		if err != nil {
			return errResponse(err)
		}
		asset, err := s.domain.GetAsset(ctx, peer.AssetID)
		if err != nil {
			return errResponse(err)
		}
		return s.createWithdrawal(ctx, models.AccountRef{Kind: models.AccountKindPeer, ID: peer.ID, AssetID: peer.AssetID}, asset.Code, asset.Scale, amount, timeout)
	})
}

// CreateWalletAddressWithdrawal begins a two-phase withdrawal from a wallet
// address's web-monetization liquidity account.
func (s *Service) CreateWalletAddressWithdrawal(ctx context.Context, walletAddressID, amount string, timeout time.Duration, idempotencyKey string) *Response {
	return s.withIdempotency(ctx, "createWalletAddressWithdrawal", idempotencyKey, func(ctx context.Context) *Response {
		wallet, err := s.domain.GetWalletAddress(ctx, walletAddressID)
		if err != nil {
			return errResponse(store.NewError(store.ErrUnknownWalletAddress, walletAddressID))
		}
		asset, err := s.domain.GetAsset(ctx, wallet.AssetID)
		if err != nil {
			return errResponse(err)
		}
		ref := models.AccountRef{Kind: models.AccountKindWebMonetization, ID: wallet.ID, AssetID: wallet.AssetID}
		return s.createWithdrawal(ctx, ref, asset.Code, asset.Scale, amount, timeout)
	})
}

func (s *Service) createWithdrawal(ctx context.Context, ref models.AccountRef, assetCode string, assetScale int, amount string, timeout time.Duration) *Response {
	value, err := parseAmount(amount)
	if err != nil {
		return errResponse(err)
	}
	id := uuid.NewString()
	if _, err := s.ledger.CreateWithdrawal(ctx, store.CreateWithdrawalParams{
		ID:      id,
		Account: ref,
		Amount:  models.Money{Value: value, AssetCode: assetCode, AssetScale: assetScale},
		Timeout: timeout,
	}); err != nil {
		return errResponse(err)
	}
	return okResponse(map[string]string{"withdrawalId": id})
}

// PostLiquidityWithdrawal commits a pending withdrawal.
func (s *Service) PostLiquidityWithdrawal(ctx context.Context, withdrawalID string) *Response {
	if withdrawalID == "" {
		return errResponse(store.NewError(store.ErrInvalidID, "withdrawalId is required"))
	}
	if err := s.ledger.PostWithdrawal(ctx, withdrawalID); err != nil {
		return errResponse(err)
	}
	return okResponse(nil)
}

// VoidLiquidityWithdrawal cancels a pending withdrawal.
func (s *Service) VoidLiquidityWithdrawal(ctx context.Context, withdrawalID string) *Response {
	if withdrawalID == "" {
		return errResponse(store.NewError(store.ErrInvalidID, "withdrawalId is required"))
	}
	if err := s.ledger.VoidWithdrawal(ctx, withdrawalID); err != nil {
		return errResponse(err)
	}
	return okResponse(nil)
}

// DepositEventLiquidity funds an outgoing_payment.created event's payment
// account with its quote's debitAmount (spec.md §4.6).
func (s *Service) DepositEventLiquidity(ctx context.Context, eventID, idempotencyKey string) *Response {
	return s.withIdempotency(ctx, "depositEventLiquidity", idempotencyKey, func(ctx context.Context) *Response {
		event, err := s.domain.GetWebhookEvent(ctx, eventID)
		if err != nil {
			return errResponse(err)
		}
		if event.Type != models.EventOutgoingPaymentCreated {
			return errResponse(store.NewError(store.ErrInvalidID, "event is not an outgoing_payment.created event"))
		}
		paymentID, _ := event.Data["id"].(string)
		payment, err := s.domain.GetOutgoingPayment(ctx, paymentID)
		if err != nil {
			return errResponse(err)
		}
		quote, err := s.domain.GetQuote(ctx, payment.QuoteID)
		if err != nil {
			return errResponse(err)
		}
		asset, err := s.domain.GetAsset(ctx, quote.AssetID)
		if err != nil {
			return errResponse(err)
		}
		debitMinor, err := decimal.NewFromString(quote.DebitAmount)
		if err != nil {
			return errResponse(store.NewError(store.ErrInvalidAmount, "quote debitAmount is not a valid decimal"))
		}
		ref := models.AccountRef{Kind: models.AccountKindOutgoingPayment, ID: payment.ID, AssetID: quote.AssetID}
		if err := s.ledger.CreateDeposit(ctx, store.CreateDepositParams{
			ID:      uuid.NewString(),
			Account: ref,
			Amount:  models.Money{Value: debitMinor.Shift(-int32(asset.Scale)), AssetCode: asset.Code, AssetScale: asset.Scale},
		}); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)
	})
}

// WithdrawEventLiquidity posts the withdrawal bound to a webhook event
// (e.g. the residual-balance withdrawal attached to a terminal outgoing
// payment or a web-monetization event) against its account.
func (s *Service) WithdrawEventLiquidity(ctx context.Context, eventID, idempotencyKey string) *Response {
	return s.withIdempotency(ctx, "withdrawEventLiquidity", idempotencyKey, func(ctx context.Context) *Response {
		event, err := s.domain.GetWebhookEvent(ctx, eventID)
		if err != nil {
			return errResponse(err)
		}
		if event.Withdrawal == nil {
			return errResponse(store.NewError(store.ErrInvalidID, "event has no bound withdrawal"))
		}
		asset, err := s.domain.GetAsset(ctx, event.Withdrawal.AssetID)
		if err != nil {
			return errResponse(err)
		}
		value, err := decimal.NewFromString(event.Withdrawal.Amount)
		if err != nil {
			return errResponse(store.NewError(store.ErrInvalidAmount, "bound withdrawal amount is not a valid decimal"))
		}

		var ref models.AccountRef
		switch event.Type {
		case models.EventWalletAddressWebMonetization:
			ref = models.AccountRef{Kind: models.AccountKindWebMonetization, ID: event.Withdrawal.AccountID, AssetID: event.Withdrawal.AssetID}
		default:
			ref = models.AccountRef{Kind: models.AccountKindOutgoingPayment, ID: event.Withdrawal.AccountID, AssetID: event.Withdrawal.AssetID}
		}

		if _, err := s.ledger.CreateWithdrawal(ctx, store.CreateWithdrawalParams{
			ID:      uuid.NewString(),
			Account: ref,
			Amount:  models.Money{Value: value, AssetCode: asset.Code, AssetScale: asset.Scale},
		}); err != nil {
			return errResponse(err)
		}
		return okResponse(nil)
	})
}
