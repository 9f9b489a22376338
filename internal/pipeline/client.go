package pipeline

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"

	"github.com/ilpengine/engine/internal/ilp"
)

// stageClient is spec.md §4.2 stage 14 (with stage 13's fulfillment
// validation inline on the return path): serializes and sends the packet
// to the outgoing peer. Local destinations never reach here -- the stream
// controller (stage 9) already produced a result for them -- so this stage
// only runs for remote peers.
func (p *Pipeline) stageClient(ctx context.Context, pc *ilp.PacketContext) (ilp.Result, error) {
	out := pc.Accounts.Outgoing
	if out == nil || out.Peer == nil {
		// No peer to forward to and the stream controller didn't resolve
		// it either: the destination matched nothing routable.
		if pc.Transfer != nil {
			_ = pc.Transfer.Void()
		}
		return ilp.RejectWith(ilp.NewReject(ilp.CodeUnreachableError, "no local or remote route for destination", p.cfg.ILPAddress)), nil
	}

	sendAmount := pc.Prepare.Amount
	if pc.DestinationAmount != 0 {
		sendAmount = pc.DestinationAmount
	}
	outPrepare := &ilp.Prepare{
		Amount:             sendAmount,
		Destination:        pc.Prepare.Destination,
		ExpiresAt:          pc.ExpiresAt,
		ExecutionCondition: pc.Prepare.ExecutionCondition,
		Data:               pc.Prepare.Data,
	}

	fulfill, reject, err := p.transport.Send(ctx, out.Peer, outPrepare)
	if err != nil {
		if pc.Transfer != nil {
			_ = pc.Transfer.Void()
		}
		return ilp.RejectWith(ilp.NewReject(ilp.CodeUnreachableError, "peer send failed: "+err.Error(), p.cfg.ILPAddress)), nil
	}
	if reject != nil {
		if pc.Transfer != nil {
			_ = pc.Transfer.Void()
		}
		return ilp.RejectWith(reject), nil
	}

	// Stage 13: the upstream fulfillment's hash must match our own
	// execution condition before we commit and pass it back.
	computed := sha256.Sum256(fulfill.FulfillmentPreimage[:])
	if subtle.ConstantTimeCompare(computed[:], pc.Prepare.ExecutionCondition[:]) != 1 {
		if pc.Transfer != nil {
			_ = pc.Transfer.Void()
		}
		return ilp.RejectWith(ilp.NewReject(ilp.CodeWrongCondition, "upstream fulfillment did not match our execution condition", p.cfg.ILPAddress)), nil
	}

	if pc.Transfer != nil {
		if err := pc.Transfer.Post(); err != nil {
			return ilp.RejectWith(ilp.NewReject(ilp.CodeApplicationError, "failed to commit transfer", p.cfg.ILPAddress)), nil
		}
	}
	return ilp.FulfillWith(fulfill), nil
}
