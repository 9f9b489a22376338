package pipeline

import (
	"context"

	"github.com/ilpengine/engine/internal/ilp"
	"go.uber.org/zap"
)

// stageStreamAddress is spec.md §4.2 stage 2: if the destination matches a
// STREAM-encoded address derived from the stream receiver's secret, sets
// ctx.streamDestination to the extracted incoming-payment id.
func (p *Pipeline) stageStreamAddress(ctx context.Context, pc *ilp.PacketContext) (ilp.Result, error) {
	tag, err := p.codec.Decode(pc.Prepare.Destination)
	if err == nil {
		id := string(tag)
		pc.StreamDestination = &id
	}
	return ilp.Proceed(), nil
}

// stageStreamController is spec.md §4.2 stage 9: when the outgoing side is
// a local incoming payment or wallet address, the stream receiver computes
// a fulfillment from the packet's data under the connection's derived
// shared secret; a match commits the balance-middleware transfer prepared
// in stage 8, otherwise it voids that transfer and rejects.
func (p *Pipeline) stageStreamController(ctx context.Context, pc *ilp.PacketContext) (ilp.Result, error) {
	out := pc.Accounts.Outgoing
	if out == nil || !out.IsLocal() || out.Peer != nil {
		return ilp.Proceed(), nil
	}
	if out.IncomingPayment == nil && out.WalletAddress == nil {
		return ilp.Proceed(), nil
	}

	tag := []byte(out.Account.ID)
	secret, err := p.codec.DeriveSharedSecret(tag)
	if err != nil {
		return ilp.Proceed(), err
	}

	fulfillment, ok := p.recv.Fulfill(secret, pc.Prepare.Data, pc.Prepare.ExecutionCondition)
	if !ok {
		if pc.Transfer != nil {
			_ = pc.Transfer.Void()
		}
		return ilp.RejectWith(ilp.NewReject(ilp.CodeWrongCondition, "stream fulfillment did not match execution condition", p.cfg.ILPAddress)), nil
	}

	if pc.Transfer != nil {
		// Posting the pending transfer fires the ledger's onCredit hook,
		// which the registry dispatches to the incoming-payment/wallet-
		// address lifecycle handler (Pending/Processing → Completed,
		// totalEventsAmount bookkeeping) -- no duplicate logic needed here.
		if err := pc.Transfer.Post(); err != nil {
			p.log.Error("failed to commit balance transfer", zap.Error(err))
			return ilp.RejectWith(ilp.NewReject(ilp.CodeApplicationError, "failed to commit transfer", p.cfg.ILPAddress)), nil
		}
	}

	return ilp.FulfillWith(&ilp.Fulfill{FulfillmentPreimage: fulfillment, Data: nil}), nil
}
