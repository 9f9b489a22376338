package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/ilpengine/engine/internal/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"
)

// assetCodeCaser canonicalizes asset/currency codes to upper case ("usd" ->
// "USD") at the seed-file boundary, the way an external YAML operator input
// might spell a code in any case.
var assetCodeCaser = cases.Upper(language.Und)

// AssetSeed and PeerSeed are the cmd/setup bootstrap config shapes,
// generalizing the teacher's --assets flag (internal/listener's
// Symbol/Network filter) from "which wallets to watch" into "which assets
// and peers this engine instance should have on startup".
type AssetSeed struct {
	Code                string  `yaml:"code"`
	Scale               int     `yaml:"scale"`
	WithdrawalThreshold *string `yaml:"withdrawalThreshold,omitempty"`
}

type PeerSeed struct {
	AssetCode        string `yaml:"assetCode"`
	StaticIlpAddress string `yaml:"staticIlpAddress"`
	MaxPacketAmount  *int64 `yaml:"maxPacketAmount,omitempty"`
	OutgoingToken    string `yaml:"outgoingToken"`
	IncomingToken    string `yaml:"incomingToken"`
}

// SeedConfig is the top-level YAML document cmd/setup reads.
type SeedConfig struct {
	Assets []AssetSeed `yaml:"assets"`
	Peers  []PeerSeed  `yaml:"peers"`
}

func LoadSeedConfig(path string) (*SeedConfig, error) {
	var seedPath string
	if filepath.IsAbs(path) {
		seedPath = path
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		seedPath = filepath.Join(wd, path)
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}

	var cfg SeedConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", path, err)
	}

	for i, a := range cfg.Assets {
		if a.Code == "" {
			return nil, fmt.Errorf("asset at index %d missing code", i)
		}
		if a.Scale < 0 {
			return nil, fmt.Errorf("asset %s has negative scale", a.Code)
		}
	}
	for i, p := range cfg.Peers {
		if p.AssetCode == "" {
			return nil, fmt.Errorf("peer at index %d missing assetCode", i)
		}
		if p.StaticIlpAddress == "" {
			return nil, fmt.Errorf("peer at index %d missing staticIlpAddress", i)
		}
	}

	return &cfg, nil
}

// ToAsset converts a seed entry into a models.Asset ready for
// store.DomainStore.CreateAsset, minting a fresh ID.
func (a AssetSeed) ToAsset() *models.Asset {
	var threshold *models.DecimalString
	if a.WithdrawalThreshold != nil {
		v := models.DecimalString(*a.WithdrawalThreshold)
		threshold = &v
	}
	return &models.Asset{
		ID:                  uuid.NewString(),
		Code:                assetCodeCaser.String(a.Code),
		Scale:               a.Scale,
		WithdrawalThreshold: threshold,
	}
}

// CanonicalAssetCode upper-cases a code the way ToAsset does, so a lookup
// against asset codes already persisted via ToAsset (e.g. cmd/setup
// resolving a peer's assetCode to an asset ID) matches regardless of the
// seed file's casing.
func CanonicalAssetCode(code string) string { return assetCodeCaser.String(code) }

// ToPeer converts a seed entry into a models.Peer bound to assetID
// (resolved by code during cmd/setup's asset pass).
func (p PeerSeed) ToPeer(assetID string) *models.Peer {
	return &models.Peer{
		ID:               uuid.NewString(),
		AssetID:          assetID,
		StaticIlpAddress: p.StaticIlpAddress,
		MaxPacketAmount:  p.MaxPacketAmount,
		OutgoingToken:    p.OutgoingToken,
		IncomingToken:    p.IncomingToken,
	}
}
