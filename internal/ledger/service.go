package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerAdapter.
var _ store.LedgerAdapter = (*Service)(nil)

// assetPrecisions maps a canonical asset code to its default Formance
// precision when the caller does not carry its own Asset.Scale. Grounded on
// the teacher's assetPrecision table (internal/formance/service.go).
var assetPrecisions = map[string]int{
	"USD":  2,
	"EUR":  2,
	"XRP":  9,
	"USDC": 6,
	"BTC":  8,
	"ETH":  18,
}

// Service implements store.LedgerAdapter backed by a Formance Stack ledger,
// generalizing the teacher's Prime-wallet-to-user double-entry postings into
// asset/peer/wallet-address/payment liquidity accounts.
type Service struct {
	client *v3.Formance
	ledger string
	onCredit store.OnCreditFunc
}

func NewService(ctx context.Context, cfg models.LedgerConfig) (*Service, error) {
	if cfg.StackURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("ledger config requires StackURL, ClientID, and ClientSecret")
	}
	if cfg.LedgerName == "" {
		cfg.LedgerName = "ilp-engine"
	}

	zap.L().Info("Connecting to ledger",
		zap.String("stack_url", cfg.StackURL),
		zap.String("ledger", cfg.LedgerName))

	client := v3.New(
		v3.WithServerURL(cfg.StackURL),
		v3.WithSecurity(shared.Security{
			ClientID:     v3.Pointer(cfg.ClientID),
			ClientSecret: v3.Pointer(cfg.ClientSecret),
		}),
	)

	svc := &Service{client: client, ledger: cfg.LedgerName}

	if err := svc.ensureLedger(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger exists: %w", err)
	}

	zap.L().Info("Ledger adapter initialized", zap.String("ledger", cfg.LedgerName))
	return svc, nil
}

func (s *Service) ensureLedger(ctx context.Context) error {
	_, err := s.client.Ledger.V2.CreateLedger(ctx, operations.V2CreateLedgerRequest{
		Ledger: s.ledger,
		V2CreateLedgerRequest: shared.V2CreateLedgerRequest{
			Metadata: map[string]string{"application": "ilp-engine"},
		},
	})
	if err != nil {
		var apiErr *sdkerrors.V2ErrorResponse
		if errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumLedgerAlreadyExists {
			zap.L().Info("Ledger already exists", zap.String("ledger", s.ledger))
			return nil
		}
		return err
	}
	zap.L().Info("Ledger created", zap.String("ledger", s.ledger))
	return nil
}

func (s *Service) SetOnCredit(fn store.OnCreditFunc) { s.onCredit = fn }

// Ping is a cheap liveness check for internal/health. It reuses
// ensureLedger's idempotent create-or-confirm call rather than adding a
// second Formance API surface just to check connectivity.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.ensureLedger(ctx); err != nil {
		return fmt.Errorf("ledger health check failed: %w", err)
	}
	return nil
}

func (s *Service) Close() {}

// ---------- helpers ----------

// formanceAsset returns the Formance UMN notation, e.g. "USD/2".
func formanceAsset(code string, scale int) string {
	if scale > 0 {
		return fmt.Sprintf("%s/%d", code, scale)
	}
	if p, ok := assetPrecisions[code]; ok {
		return fmt.Sprintf("%s/%d", code, p)
	}
	return fmt.Sprintf("%s/6", code)
}

// accountString maps a tagged account reference onto a Formance account
// path. Replaces the teacher's single "users:$user_id" namespace with one
// segment per domain-object kind, per the registry redesign in SPEC_FULL.
func accountString(ref models.AccountRef) string {
	switch ref.Kind {
	case models.AccountKindAsset:
		return fmt.Sprintf("assets:%s:liquidity", ref.ID)
	case models.AccountKindPeer:
		return fmt.Sprintf("peers:%s", ref.ID)
	case models.AccountKindIncomingPayment:
		return fmt.Sprintf("incoming-payments:%s", ref.ID)
	case models.AccountKindOutgoingPayment:
		return fmt.Sprintf("outgoing-payments:%s", ref.ID)
	case models.AccountKindWebMonetization:
		return fmt.Sprintf("wallet-addresses:%s", ref.ID)
	default:
		return fmt.Sprintf("unknown:%s", ref.ID)
	}
}

func settlementAccount(assetID string) string  { return fmt.Sprintf("assets:%s:settlement", assetID) }
func conversionsAccount(assetID string) string { return fmt.Sprintf("assets:%s:conversions", assetID) }
func pendingAccount(transferID string) string  { return fmt.Sprintf("transfers:pending:%s", transferID) }

func isConflictError(err error) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumConflict
}

func isInsufficientFundsError(err error) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumInsufficientFund
}

func isNotFoundError(err error) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumNotFound
}

func strPtr(s string) *string { return &s }
