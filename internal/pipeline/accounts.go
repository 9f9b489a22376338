package pipeline

import (
	"context"
	"strings"

	"github.com/ilpengine/engine/internal/ilp"
	"github.com/ilpengine/engine/internal/models"
)

// stageAccounts is spec.md §4.2 stage 3: resolves ctx.accounts.outgoing by,
// in order, the streamDestination incoming payment, the streamDestination
// wallet address (SPSP fallback), a peer whose staticIlpAddress prefixes
// the destination, or -- currently unimplemented, per the Open Questions
// decision recorded in DESIGN.md -- a local ILP-access account.
// ctx.accounts.incoming is already set by Process/Send before the chain
// runs, so this stage only fills in the outgoing side.
func (p *Pipeline) stageAccounts(ctx context.Context, pc *ilp.PacketContext) (ilp.Result, error) {
	if pc.StreamDestination != nil {
		if ep, err := p.resolveIncomingPaymentDestination(ctx, *pc.StreamDestination); err != nil {
			return ilp.Result{}, err
		} else if ep != nil {
			if ep.IncomingPayment.State.Terminal() && pc.Prepare.Amount != 0 {
				return ilp.RejectWith(ilp.NewReject(ilp.CodeUnreachableError, "incoming payment is completed or expired", p.cfg.ILPAddress)), nil
			}
			pc.Accounts.Outgoing = ep
			return ilp.Proceed(), nil
		}

		if ep, err := p.resolveWalletAddressDestination(ctx, *pc.StreamDestination); err != nil {
			return ilp.Result{}, err
		} else if ep != nil {
			pc.Accounts.Outgoing = ep
			return ilp.Proceed(), nil
		}
	}

	if peer, err := p.domain.FindPeerByAddressPrefix(ctx, pc.Prepare.Destination); err == nil && peer != nil {
		pc.Accounts.Outgoing = &ilp.Endpoint{Peer: peer, Account: models.AccountRef{Kind: models.AccountKindPeer, ID: peer.ID, AssetID: peer.AssetID}}
		return ilp.Proceed(), nil
	}

	// Reserved: a destination of the form ownAddress.accountId identifying
	// a local ILP-access account. No such account kind exists yet; falling
	// through to UnreachableError matches spec.md §4.2 stage 3's default.
	if strings.HasPrefix(pc.Prepare.Destination, p.cfg.ILPAddress+".") {
		return ilp.Proceed(), nil
	}

	return ilp.RejectWith(ilp.NewReject(ilp.CodeUnreachableError, "no route to destination", p.cfg.ILPAddress)), nil
}

func (p *Pipeline) resolveIncomingPaymentDestination(ctx context.Context, id string) (*ilp.Endpoint, error) {
	payment, err := p.domain.GetIncomingPayment(ctx, id)
	if err != nil {
		return nil, nil // not an incoming payment id; try the next resolution
	}
	ref := models.AccountRef{Kind: models.AccountKindIncomingPayment, ID: payment.ID, AssetID: payment.AssetID}
	if payment.State.Terminal() {
		return &ilp.Endpoint{IncomingPayment: payment, Account: ref}, nil
	}
	if err := p.registry.Ensure(ctx, ref); err != nil {
		return nil, err
	}
	return &ilp.Endpoint{IncomingPayment: payment, Account: ref}, nil
}

func (p *Pipeline) resolveWalletAddressDestination(ctx context.Context, id string) (*ilp.Endpoint, error) {
	wallet, err := p.domain.GetWalletAddress(ctx, id)
	if err != nil {
		return nil, nil
	}
	ref := models.AccountRef{Kind: models.AccountKindWebMonetization, ID: wallet.ID, AssetID: wallet.AssetID}
	if err := p.registry.Ensure(ctx, ref); err != nil {
		return nil, err
	}
	return &ilp.Endpoint{WalletAddress: wallet, Account: ref}, nil
}
