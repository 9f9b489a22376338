package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ilpengine/engine/internal/ilp"
	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
	"github.com/shopspring/decimal"
)

// stageBalance is spec.md §4.2 stage 8: begins a two-phase transfer from
// incoming to outgoing for the packet amount, converting to the
// destination asset via the locked-in quote rate (Pipeline.Send's
// minExchangeRate) when source and destination assets differ. A
// peer-originated packet hopping between two local assets without a rate
// (MinExchangeRate unset) falls back to a 1:1 passthrough — multi-hop
// connector-style rate conversion for inbound traffic is out of scope.
// Exactly one ledger transfer is prepared per packet attempt; it is
// committed or voided exactly once by a later stage (the stream
// controller, the expire guard, or the client on reject/timeout).
func (p *Pipeline) stageBalance(ctx context.Context, pc *ilp.PacketContext) (ilp.Result, error) {
	in := pc.Accounts.Incoming
	out := pc.Accounts.Outgoing
	if in == nil || out == nil {
		return ilp.RejectWith(ilp.NewReject(ilp.CodeUnreachableError, "missing account resolution", p.cfg.ILPAddress)), nil
	}

	sourceAsset, err := p.assetFor(ctx, in.Account)
	if err != nil {
		return ilp.Result{}, err
	}
	destAsset, err := p.assetFor(ctx, out.Account)
	if err != nil {
		return ilp.Result{}, err
	}

	sourceAmount := models.Money{Value: decimal.NewFromInt(pc.Prepare.Amount), AssetCode: sourceAsset.Code, AssetScale: sourceAsset.Scale}
	var destMoney *models.Money
	destAmount := pc.Prepare.Amount
	if sourceAsset.ID != destAsset.ID {
		destAmount = p.convertCrossAsset(pc)
		m := models.Money{Value: decimal.NewFromInt(destAmount), AssetCode: destAsset.Code, AssetScale: destAsset.Scale}
		destMoney = &m
	}
	pc.DestinationAmount = destAmount

	timeout := time.Duration(0)
	if !pc.ExpiresAt.IsZero() {
		if d := time.Until(pc.ExpiresAt); d > 0 {
			timeout = d
		}
	}

	transfer, err := p.ledger.CreateTransfer(ctx, store.CreateTransferParams{
		ID:                 uuid.NewString(),
		SourceAccount:      in.Account,
		DestinationAccount: out.Account,
		SourceAmount:       sourceAmount,
		DestinationAmount:  destMoney,
		Timeout:            timeout,
	})
	if err != nil {
		if store.KindOf(err) == store.ErrInsufficientBalance {
			return ilp.RejectWith(ilp.NewReject(ilp.CodeInsufficientLiquidity, "insufficient source balance", p.cfg.ILPAddress)), nil
		}
		return ilp.RejectWith(ilp.NewReject(ilp.CodeInsufficientLiquidity, "failed to reserve balance", p.cfg.ILPAddress)), nil
	}

	pc.Transfer = &ilp.PendingTransfer{
		ID:   transfer.ID,
		Post: func() error { return transfer.Post(ctx) },
		Void: func() error { return transfer.Void(ctx) },
	}
	return ilp.Proceed(), nil
}

func (p *Pipeline) assetFor(ctx context.Context, ref models.AccountRef) (*models.Asset, error) {
	return p.domain.GetAsset(ctx, ref.AssetID)
}

// convertCrossAsset applies pc.MinExchangeRate (the quote's locked-in rate,
// already denominated minor-unit-to-minor-unit per internal/quote.Engine's
// convention) to the packet's source amount, floored the way the quote
// engine floors receiveAmount. Falls back to a 1:1 passthrough when no rate
// was threaded through (a peer-originated packet; see stageBalance's doc).
func (p *Pipeline) convertCrossAsset(pc *ilp.PacketContext) int64 {
	if pc.MinExchangeRate == "" {
		return pc.Prepare.Amount
	}
	rate, err := decimal.NewFromString(pc.MinExchangeRate)
	if err != nil || rate.Sign() <= 0 {
		return pc.Prepare.Amount
	}
	converted := decimal.NewFromInt(pc.Prepare.Amount).Mul(rate).Floor()
	if !converted.BigInt().IsInt64() {
		return pc.Prepare.Amount
	}
	return converted.IntPart()
}
