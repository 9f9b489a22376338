// Package pipeline implements the ILP packet pipeline (spec.md §4.2): a
// static array of ordered stage functions over a mutable PacketContext,
// replacing the dynamic middleware dispatch the teacher's listener uses
// for its own three-transaction-type switch with an explicit, inspectable
// chain (per SPEC_FULL's §9 redesign note).
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ilpengine/engine/internal/ilp"
	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/ratelimit"
	"github.com/ilpengine/engine/internal/registry"
	"github.com/ilpengine/engine/internal/store"
	"github.com/ilpengine/engine/internal/stream"
	"go.uber.org/zap"
)

// stage is one link in the pipeline's chain. A stage either mutates ctx and
// returns ilp.Proceed(), or short-circuits with ilp.FulfillWith/RejectWith.
type stage func(ctx context.Context, pc *ilp.PacketContext) (ilp.Result, error)

// Pipeline wires every stage's dependencies and exposes the two entry
// points: Process (inbound, from an authenticated peer) and Send (outbound,
// from the outgoing-payment pay step acting as source).
type Pipeline struct {
	domain   store.DomainStore
	ledger   store.LedgerAdapter
	registry *registry.Registry
	codec    *stream.Codec
	recv     *stream.Receiver
	limiter  *ratelimit.Limiter
	transport PeerTransport
	cfg      models.Config
	log      *zap.Logger

	stages []stage
}

// PeerTransport sends a prepared packet to a remote peer over the wire.
type PeerTransport interface {
	Send(ctx context.Context, peer *models.Peer, prepare *ilp.Prepare) (*ilp.Fulfill, *ilp.Reject, error)
}

func New(domain store.DomainStore, ledger store.LedgerAdapter, reg *registry.Registry, codec *stream.Codec, recv *stream.Receiver, limiter *ratelimit.Limiter, transport PeerTransport, cfg models.Config, log *zap.Logger) *Pipeline {
	p := &Pipeline{domain: domain, ledger: ledger, registry: reg, codec: codec, recv: recv, limiter: limiter, transport: transport, cfg: cfg, log: log}
	p.stages = []stage{
		p.stageStreamAddress,       // 2
		p.stageAccounts,            // 3
		p.stageMaxPacketAmount,     // 4
		p.stageIncomingRateLimit,   // 5
		p.stageIncomingThroughput,  // 6
		p.stageILDCP,               // 7
		p.stageBalance,             // 8
		p.stageStreamController,    // 9
		p.stageOutgoingThroughput,  // 10
		p.stageExpireReduce,        // 11
		p.stageExpireGuard,         // 12
		p.stageClient,              // 14 (13's fulfillment check lives inside stageClient, on the return path)
	}
	return p
}

// Process runs the pipeline for a packet arriving from a peer already
// authenticated by the transport boundary (spec.md §1 treats the HTTP
// surface presenting bearer-token credentials as an external collaborator;
// the listener resolves peer by its incoming token and passes it here).
// peer == nil means the packet arrived unauthenticated; callers should have
// already rejected it with a protocol-level 401 before reaching Process.
func (p *Pipeline) Process(ctx context.Context, prepare *ilp.Prepare, peer *models.Peer) (result ilp.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = ilp.RejectWith(ilp.NewReject(ilp.CodeApplicationError, fmt.Sprintf("panic: %v", r), p.cfg.ILPAddress))
		}
	}()

	pc := &ilp.PacketContext{
		Prepare:   prepare,
		ExpiresAt: prepare.ExpiresAt,
		Accounts:  ilp.Accounts{Incoming: &ilp.Endpoint{Peer: peer, Account: peerAccountRef(peer)}},
	}
	return p.run(ctx, pc)
}

func peerAccountRef(peer *models.Peer) models.AccountRef {
	if peer == nil {
		return models.AccountRef{}
	}
	return models.AccountRef{Kind: models.AccountKindPeer, ID: peer.ID, AssetID: peer.AssetID}
}

// Send runs the pipeline for a packet originated locally by the
// outgoing-payment pay step, implementing outgoing.PacketSender. The
// source account is already resolved (the payment's own ledger account),
// so only destination resolution (stage 3's "outgoing" half) runs.
func (p *Pipeline) Send(ctx context.Context, source models.AccountRef, destination string, amount int64, minExchangeRate string, executionCondition [32]byte, data []byte, expiresAt time.Time) (fulfillment [32]byte, reject *ilp.Reject, err error) {
	prepare := &ilp.Prepare{
		Amount:             amount,
		Destination:        destination,
		ExpiresAt:          expiresAt,
		ExecutionCondition: executionCondition,
		Data:               data,
	}
	pc := &ilp.PacketContext{
		Prepare:         prepare,
		ExpiresAt:       expiresAt,
		Accounts:        ilp.Accounts{Incoming: &ilp.Endpoint{Account: source}},
		MinExchangeRate: minExchangeRate,
	}
	result, runErr := p.run(ctx, pc)
	if runErr != nil {
		return [32]byte{}, nil, runErr
	}
	if result.Reject != nil {
		return [32]byte{}, result.Reject, nil
	}
	return result.Fulfill.FulfillmentPreimage, nil, nil
}

// run drives pc through every stage in order, stopping at the first one
// that produces a Result (spec.md §4.2's ordered-stage chain).
func (p *Pipeline) run(ctx context.Context, pc *ilp.PacketContext) (ilp.Result, error) {
	for _, s := range p.stages {
		result, err := s(ctx, pc)
		if err != nil {
			return ilp.Result{}, err
		}
		if result.Done() {
			return result, nil
		}
	}
	return ilp.Result{}, fmt.Errorf("pipeline exhausted all stages without a result")
}
