package ledger

import (
	"context"
	"fmt"

	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"go.uber.org/zap"
)

// CreateLiquidityAccount is idempotent: a "created" metadata flag is set on
// first call via AddMetadataToAccount (Formance creates accounts implicitly
// on first posting, so this call exists purely to record ownership and
// support the kind lookup the registry needs on credit). A second call
// observes the flag already set and returns AccountAlreadyExists, which
// callers (the registry) treat as success on retry, per spec.md §4.1.
func (s *Service) CreateLiquidityAccount(ctx context.Context, ref models.AccountRef) error {
	account := accountString(ref)

	existing, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: account,
	})
	if err == nil && existing.V2AccountResponse != nil {
		if _, created := existing.V2AccountResponse.Data.Metadata["kind"]; created {
			return store.NewError(store.ErrAccountAlreadyExists, account)
		}
	}

	_, err = s.client.Ledger.V2.AddMetadataToAccount(ctx, operations.V2AddMetadataToAccountRequest{
		Ledger:  s.ledger,
		Address: account,
		RequestBody: map[string]string{
			"kind":    string(ref.Kind),
			"assetId": ref.AssetID,
		},
	})
	if err != nil {
		return fmt.Errorf("creating liquidity account %s: %w", account, err)
	}

	zap.L().Info("Liquidity account created",
		zap.String("account", account),
		zap.String("kind", string(ref.Kind)))
	return nil
}
