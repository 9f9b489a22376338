package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/ilpengine/engine/internal/ilp"
	"github.com/ilpengine/engine/internal/ratelimit"
)

const (
	defaultPacketsPerSecond    = 1000.0
	defaultThroughputPerSecond = 1_000_000.0
)

// stageMaxPacketAmount is spec.md §4.2 stage 4: rejects with
// AmountTooLarge (carrying the peer's cap) if the incoming peer's
// maxPacketAmount is exceeded.
func (p *Pipeline) stageMaxPacketAmount(ctx context.Context, pc *ilp.PacketContext) (ilp.Result, error) {
	peer := pc.Accounts.Incoming.Peer
	if peer == nil || peer.MaxPacketAmount == nil {
		return ilp.Proceed(), nil
	}
	if pc.Prepare.Amount > *peer.MaxPacketAmount {
		reject := ilp.NewReject(ilp.CodeAmountTooLarge, "packet amount exceeds peer's maximum", p.cfg.ILPAddress)
		reject.Data = []byte(encodeAmountTooLarge(pc.Prepare.Amount, *peer.MaxPacketAmount))
		return ilp.RejectWith(reject), nil
	}
	return ilp.Proceed(), nil
}

func encodeAmountTooLarge(amount, max int64) string {
	return "receivedAmount=" + strconv.FormatInt(amount, 10) + ",maximumAmount=" + strconv.FormatInt(max, 10)
}

// stageIncomingRateLimit is spec.md §4.2 stage 5: a per-peer packets/s
// token bucket.
func (p *Pipeline) stageIncomingRateLimit(ctx context.Context, pc *ilp.PacketContext) (ilp.Result, error) {
	peer := pc.Accounts.Incoming.Peer
	if peer == nil || p.limiter == nil {
		return ilp.Proceed(), nil
	}
	allowed, err := p.limiter.Allow(ctx, ratelimit.PeerPacketsKey(peer.ID), defaultPacketsPerSecond, defaultPacketsPerSecond, 1, nowSeconds())
	if err != nil {
		return ilp.Result{}, err
	}
	if !allowed {
		return ilp.RejectWith(ilp.NewReject(ilp.CodeRateLimitExceeded, "incoming packet rate exceeded", p.cfg.ILPAddress)), nil
	}
	return ilp.Proceed(), nil
}

// stageIncomingThroughput is spec.md §4.2 stage 6: a per-peer amount/s
// token bucket; exhaustion rejects InsufficientLiquidity rather than
// RateLimitExceeded since it models a liquidity/velocity cap, not a
// request-rate cap.
func (p *Pipeline) stageIncomingThroughput(ctx context.Context, pc *ilp.PacketContext) (ilp.Result, error) {
	peer := pc.Accounts.Incoming.Peer
	if peer == nil || p.limiter == nil {
		return ilp.Proceed(), nil
	}
	allowed, err := p.limiter.Allow(ctx, ratelimit.PeerThroughputKey(peer.ID, false), defaultThroughputPerSecond, defaultThroughputPerSecond, float64(pc.Prepare.Amount), nowSeconds())
	if err != nil {
		return ilp.Result{}, err
	}
	if !allowed {
		return ilp.RejectWith(ilp.NewReject(ilp.CodeInsufficientLiquidity, "incoming throughput exceeded", p.cfg.ILPAddress)), nil
	}
	return ilp.Proceed(), nil
}

// stageOutgoingThroughput is spec.md §4.2 stage 10: the outgoing-side
// analog of stage 6, metered against the outgoing peer if any (a local
// outgoing endpoint has no transport-level throughput concern).
func (p *Pipeline) stageOutgoingThroughput(ctx context.Context, pc *ilp.PacketContext) (ilp.Result, error) {
	out := pc.Accounts.Outgoing
	if out == nil || out.Peer == nil || p.limiter == nil {
		return ilp.Proceed(), nil
	}
	amount := pc.DestinationAmount
	if amount == 0 {
		amount = pc.Prepare.Amount
	}
	allowed, err := p.limiter.Allow(ctx, ratelimit.PeerThroughputKey(out.Peer.ID, true), defaultThroughputPerSecond, defaultThroughputPerSecond, float64(amount), nowSeconds())
	if err != nil {
		return ilp.Result{}, err
	}
	if !allowed {
		return ilp.RejectWith(ilp.NewReject(ilp.CodeInsufficientLiquidity, "outgoing throughput exceeded", p.cfg.ILPAddress)), nil
	}
	return ilp.Proceed(), nil
}

// stageExpireReduce is spec.md §4.2 stage 11: clamps packet expiry to
// min(packet.expiresAt, now + maxHoldTime).
func (p *Pipeline) stageExpireReduce(ctx context.Context, pc *ilp.PacketContext) (ilp.Result, error) {
	if p.cfg.MaxHoldTime > 0 {
		deadline := time.Now().Add(p.cfg.MaxHoldTime)
		if deadline.Before(pc.ExpiresAt) {
			pc.ExpiresAt = deadline
		}
	}
	return ilp.Proceed(), nil
}

// stageExpireGuard is spec.md §4.2 stage 12: rejects TransferTimedOut if
// the clamped expiry has already passed.
func (p *Pipeline) stageExpireGuard(ctx context.Context, pc *ilp.PacketContext) (ilp.Result, error) {
	if !pc.ExpiresAt.After(time.Now()) {
		if pc.Transfer != nil {
			_ = pc.Transfer.Void()
		}
		return ilp.RejectWith(ilp.NewReject(ilp.CodeTransferTimedOut, "packet expired before send", p.cfg.ILPAddress)), nil
	}
	return ilp.Proceed(), nil
}

func nowSeconds() float64 { return float64(time.Now().UnixNano()) / 1e9 }
