package common

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	return path
}

func TestLoadSeedConfig_ParsesAssetsAndPeers(t *testing.T) {
	path := writeSeedFile(t, `
assets:
  - code: USD
    scale: 2
  - code: EUR
    scale: 2
    withdrawalThreshold: "100.00"
peers:
  - assetCode: USD
    staticIlpAddress: g.peer1
    outgoingToken: out1
    incomingToken: in1
`)

	cfg, err := LoadSeedConfig(path)
	if err != nil {
		t.Fatalf("LoadSeedConfig failed: %v", err)
	}
	if len(cfg.Assets) != 2 || len(cfg.Peers) != 1 {
		t.Fatalf("unexpected seed config: %+v", cfg)
	}
	if cfg.Assets[1].WithdrawalThreshold == nil || *cfg.Assets[1].WithdrawalThreshold != "100.00" {
		t.Fatalf("expected EUR withdrawal threshold 100.00, got %+v", cfg.Assets[1])
	}
}

func TestLoadSeedConfig_MissingAssetCodeErrors(t *testing.T) {
	path := writeSeedFile(t, `
assets:
  - scale: 2
`)
	if _, err := LoadSeedConfig(path); err == nil {
		t.Fatal("expected an error for an asset missing its code")
	}
}

func TestLoadSeedConfig_MissingPeerFieldsError(t *testing.T) {
	path := writeSeedFile(t, `
peers:
  - outgoingToken: out1
`)
	if _, err := LoadSeedConfig(path); err == nil {
		t.Fatal("expected an error for a peer missing assetCode/staticIlpAddress")
	}
}

func TestLoadSeedConfig_MissingFile(t *testing.T) {
	if _, err := LoadSeedConfig("/nonexistent/seed.yaml"); err == nil {
		t.Fatal("expected an error for a missing seed file")
	}
}

func TestAssetSeed_ToAsset(t *testing.T) {
	threshold := "50.00"
	seed := AssetSeed{Code: "USD", Scale: 2, WithdrawalThreshold: &threshold}
	asset := seed.ToAsset()
	if asset.ID == "" {
		t.Fatal("expected a minted ID")
	}
	if asset.Code != "USD" || asset.Scale != 2 {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if asset.WithdrawalThreshold == nil || string(*asset.WithdrawalThreshold) != "50.00" {
		t.Fatalf("expected threshold 50.00, got %v", asset.WithdrawalThreshold)
	}
}

func TestPeerSeed_ToPeer(t *testing.T) {
	seed := PeerSeed{AssetCode: "USD", StaticIlpAddress: "g.peer1", OutgoingToken: "out", IncomingToken: "in"}
	peer := seed.ToPeer("asset1")
	if peer.ID == "" {
		t.Fatal("expected a minted ID")
	}
	if peer.AssetID != "asset1" || peer.StaticIlpAddress != "g.peer1" {
		t.Fatalf("unexpected peer: %+v", peer)
	}
}
