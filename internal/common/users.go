package common

import (
	"context"
	"fmt"

	"github.com/ilpengine/engine/internal/store"

	"go.uber.org/zap"
)

// PeerInfo is simplified peer information for command-line utilities
// (cmd/admin inspect), the counterpart of the teacher's UserInfo lookup
// generalized from "account owner" to "ILP peer".
type PeerInfo struct {
	ID               string
	AssetCode        string
	StaticIlpAddress string
}

// InspectPeer looks up one peer by ID and its bound asset, the way the
// teacher's InitializeUsers resolved a single user by email.
func InspectPeer(ctx context.Context, domain store.DomainStore, peerID string, logger *zap.Logger) (*PeerInfo, error) {
	logger.Info("Looking up peer", zap.String("peer_id", peerID))

	peer, err := domain.GetPeer(ctx, peerID)
	if err != nil {
		return nil, fmt.Errorf("peer not found: %w", err)
	}
	asset, err := domain.GetAsset(ctx, peer.AssetID)
	if err != nil {
		return nil, fmt.Errorf("peer %s has no resolvable asset: %w", peerID, err)
	}

	return &PeerInfo{
		ID:               peer.ID,
		AssetCode:        asset.Code,
		StaticIlpAddress: peer.StaticIlpAddress,
	}, nil
}
