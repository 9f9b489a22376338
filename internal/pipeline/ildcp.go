package pipeline

import (
	"context"
	"strconv"

	"github.com/ilpengine/engine/internal/ilp"
)

const ildcpSubAddress = ".ildcp-config"

// stageILDCP is spec.md §4.2 stage 7: if destination equals the peer's
// self-config sub-address, reply with the peer's asset code/scale and
// client address instead of continuing through balance reservation.
func (p *Pipeline) stageILDCP(ctx context.Context, pc *ilp.PacketContext) (ilp.Result, error) {
	peer := pc.Accounts.Incoming.Peer
	if peer == nil || pc.Prepare.Destination != peer.StaticIlpAddress+ildcpSubAddress {
		return ilp.Proceed(), nil
	}

	asset, err := p.domain.GetAsset(ctx, peer.AssetID)
	if err != nil {
		return ilp.RejectWith(ilp.NewReject(ilp.CodeApplicationError, "ildcp: asset lookup failed", p.cfg.ILPAddress)), nil
	}

	data := ildcpEncode(peer.StaticIlpAddress, asset.Scale, asset.Code)
	return ilp.FulfillWith(&ilp.Fulfill{FulfillmentPreimage: ildcpPeerFulfillment, Data: data}), nil
}

// ildcpPeerFulfillment is the all-zero fulfillment ILDCP replies carry, per
// the protocol's fixed peer.config execution condition convention.
var ildcpPeerFulfillment [32]byte

func ildcpEncode(clientAddress string, scale int, code string) []byte {
	return []byte(clientAddress + "|" + code + "|" + strconv.Itoa(scale))
}
