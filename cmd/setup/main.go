package main

import (
	"context"
	"flag"

	"github.com/ilpengine/engine/internal/common"
	"github.com/ilpengine/engine/internal/config"

	"go.uber.org/zap"
)

// seedAssets inserts every asset in seed.Assets that doesn't already exist
// (by code), returning a code -> ID map for seedPeers to bind against.
func seedAssets(ctx context.Context, services *common.Services, seed *common.SeedConfig) map[string]string {
	ids := make(map[string]string, len(seed.Assets))
	for _, a := range seed.Assets {
		asset := a.ToAsset()
		if err := services.Domain.CreateAsset(ctx, asset); err != nil {
			zap.L().Warn("Skipping asset (already exists?)", zap.String("code", a.Code), zap.Error(err))
			continue
		}
		zap.L().Info("Created asset", zap.String("code", asset.Code), zap.String("id", asset.ID))
		ids[asset.Code] = asset.ID
	}
	return ids
}

func seedPeers(ctx context.Context, services *common.Services, seed *common.SeedConfig, assetIDs map[string]string) {
	for _, p := range seed.Peers {
		assetID, ok := assetIDs[common.CanonicalAssetCode(p.AssetCode)]
		if !ok {
			zap.L().Error("Skipping peer: asset not seeded this run", zap.String("assetCode", p.AssetCode), zap.String("address", p.StaticIlpAddress))
			continue
		}
		peer := p.ToPeer(assetID)
		if err := services.Domain.CreatePeer(ctx, peer); err != nil {
			zap.L().Warn("Skipping peer (already exists?)", zap.String("address", p.StaticIlpAddress), zap.Error(err))
			continue
		}
		zap.L().Info("Created peer", zap.String("address", p.StaticIlpAddress), zap.String("id", peer.ID))
	}
}

func main() {
	seedFile := flag.String("seed", "seed.yaml", "Path to a YAML file listing assets and peers to bootstrap")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	seed, err := common.LoadSeedConfig(*seedFile)
	if err != nil {
		zap.L().Fatal("Failed to load seed config", zap.Error(err))
	}
	zap.L().Info("Seed config loaded", zap.Int("assets", len(seed.Assets)), zap.Int("peers", len(seed.Peers)))

	assetIDs := seedAssets(ctx, services, seed)
	seedPeers(ctx, services, seed, assetIDs)

	zap.L().Info("Setup complete")
}
