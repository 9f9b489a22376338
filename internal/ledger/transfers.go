package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const numscriptDeposit = `vars {
  asset $asset
  number $amount
  account $settlement
  account $destination
}
send [$asset $amount] (
  source = @$settlement allowing unbounded overdraft
  destination = @$destination
)
set_tx_meta("event_type", "deposit")
`

const numscriptPrepare = `vars {
  asset $asset
  number $amount
  account $source
  account $pending
}
send [$asset $amount] (
  source = @$source
  destination = @$pending
)
set_tx_meta("event_type", "prepare")
`

const numscriptPostSameAsset = `vars {
  asset $asset
  number $amount
  account $pending
  account $destination
}
send [$asset $amount] (
  source = @$pending
  destination = @$destination
)
set_tx_meta("event_type", "post")
`

// numscriptPostCrossAsset burns the reserved source-asset amount into the
// source asset's conversions pool and funds the destination from the
// destination asset's conversions pool, mirroring the teacher's two-leg
// RecordConversion (debit source wallet / credit destination wallet via an
// unbounded-overdraft conversion account).
const numscriptPostCrossAsset = `vars {
  asset $sourceAsset
  number $sourceAmount
  asset $destinationAsset
  number $destinationAmount
  account $pending
  account $sourceConversions
  account $destinationConversions
  account $destination
}
send [$sourceAsset $sourceAmount] (
  source = @$pending
  destination = @$sourceConversions
)
send [$destinationAsset $destinationAmount] (
  source = @$destinationConversions allowing unbounded overdraft
  destination = @$destination
)
set_tx_meta("event_type", "post_cross_asset")
`

const numscriptVoid = `vars {
  asset $asset
  number $amount
  account $pending
  account $source
}
send [$asset $amount] (
  source = @$pending
  destination = @$source
)
set_tx_meta("event_type", "void")
`

func (s *Service) CreateDeposit(ctx context.Context, p store.CreateDepositParams) error {
	if !p.Amount.IsPositive() {
		return store.NewError(store.ErrInvalidAmount, "deposit amount must be positive")
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: s.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: strPtr(p.ID),
			Script: &shared.V2PostTransactionScript{
				Plain: numscriptDeposit,
				Vars: map[string]string{
					"asset":       formanceAsset(p.Amount.AssetCode, p.Amount.AssetScale),
					"amount":      p.Amount.MinorUnits(),
					"settlement":  settlementAccount(p.Account.AssetID),
					"destination": accountString(p.Account),
				},
			},
		},
	})
	if err != nil {
		if isConflictError(err) {
			return nil // idempotent replay
		}
		return fmt.Errorf("creating deposit %s: %w", p.ID, err)
	}

	s.fireOnCredit(ctx, p.Account)
	zap.L().Info("Deposit posted", zap.String("id", p.ID), zap.String("account", accountString(p.Account)), zap.String("amount", p.Amount.Value.String()))
	return nil
}

// prepare moves amount from sourcePath into a pending holding account
// dedicated to transferID, recording source/destination/amount as metadata
// on the pending account so Post/Void can be driven by transferID alone --
// the ledger itself is the only durable record of a pending transfer's
// legs, per spec.md §5's "shared resource policy" (no side-channel store).
// destRef is nil for withdrawals, whose destination is the settlement pool
// and never needs an onCredit dispatch.
func (s *Service) prepare(ctx context.Context, transferID, sourcePath, destPath string, destRef *models.AccountRef, amount models.Money, destAmount *models.Money) error {
	pending := pendingAccount(transferID)

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: s.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: strPtr(transferID + "-prepare"),
			Script: &shared.V2PostTransactionScript{
				Plain: numscriptPrepare,
				Vars: map[string]string{
					"asset":   formanceAsset(amount.AssetCode, amount.AssetScale),
					"amount":  amount.MinorUnits(),
					"source":  sourcePath,
					"pending": pending,
				},
			},
		},
	})
	if err != nil {
		if isConflictError(err) {
			return nil // already prepared; metadata was set on first attempt
		}
		if isInsufficientFundsError(err) {
			return store.NewError(store.ErrInsufficientBalance, sourcePath)
		}
		return fmt.Errorf("preparing transfer %s: %w", transferID, err)
	}

	meta := map[string]string{
		"sourcePath":  sourcePath,
		"destPath":    destPath,
		"amountAsset": amount.AssetCode,
		"amountScale": fmt.Sprintf("%d", amount.AssetScale),
		"amountValue": amount.MinorUnits(),
	}
	if destRef != nil {
		meta["destKind"] = string(destRef.Kind)
		meta["destId"] = destRef.ID
		meta["destAssetId"] = destRef.AssetID
	}
	if destAmount != nil {
		meta["destAmountAsset"] = destAmount.AssetCode
		meta["destAmountScale"] = fmt.Sprintf("%d", destAmount.AssetScale)
		meta["destAmountValue"] = destAmount.MinorUnits()
	}
	if _, err := s.client.Ledger.V2.AddMetadataToAccount(ctx, operations.V2AddMetadataToAccountRequest{
		Ledger:      s.ledger,
		Address:     pending,
		RequestBody: meta,
	}); err != nil {
		return fmt.Errorf("recording pending transfer metadata %s: %w", transferID, err)
	}
	return nil
}

// pendingLegs reads back the source/destination/amount recorded by prepare.
func (s *Service) pendingLegs(ctx context.Context, transferID string) (sourcePath, destPath string, destRef *models.AccountRef, amount models.Money, destAmount *models.Money, err error) {
	resp, getErr := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: pendingAccount(transferID),
	})
	if getErr != nil {
		err = store.NewError(store.ErrUnknownTransfer, transferID)
		return
	}
	meta := resp.V2AccountResponse.Data.Metadata
	sourcePath = meta["sourcePath"]
	destPath = meta["destPath"]
	if kind, ok := meta["destKind"]; ok && kind != "" {
		destRef = &models.AccountRef{Kind: models.AccountKind(kind), ID: meta["destId"], AssetID: meta["destAssetId"]}
	}

	scale := 0
	fmt.Sscanf(meta["amountScale"], "%d", &scale)
	value, _ := decimal.NewFromString(meta["amountValue"])
	amount = models.NewMoney(value.Shift(-int32(scale)), meta["amountAsset"], scale)

	if da, ok := meta["destAmountAsset"]; ok && da != "" {
		dScale := 0
		fmt.Sscanf(meta["destAmountScale"], "%d", &dScale)
		dValue, _ := decimal.NewFromString(meta["destAmountValue"])
		m := models.NewMoney(dValue.Shift(-int32(dScale)), da, dScale)
		destAmount = &m
	}
	return
}

func (s *Service) postPending(ctx context.Context, transferID string) error {
	_, destPath, destRef, amount, destAmount, err := s.pendingLegs(ctx, transferID)
	if err != nil {
		return err
	}
	pending := pendingAccount(transferID)

	if destAmount == nil || destAmount.SameAsset(amount) {
		_, err = s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
			Ledger: s.ledger,
			V2PostTransaction: shared.V2PostTransaction{
				Reference: strPtr(transferID + "-post"),
				Script: &shared.V2PostTransactionScript{
					Plain: numscriptPostSameAsset,
					Vars: map[string]string{
						"asset":       formanceAsset(amount.AssetCode, amount.AssetScale),
						"amount":      amount.MinorUnits(),
						"pending":     pending,
						"destination": destPath,
					},
				},
			},
		})
	} else {
		_, err = s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
			Ledger: s.ledger,
			V2PostTransaction: shared.V2PostTransaction{
				Reference: strPtr(transferID + "-post"),
				Script: &shared.V2PostTransactionScript{
					Plain: numscriptPostCrossAsset,
					Vars: map[string]string{
						"sourceAsset":            formanceAsset(amount.AssetCode, amount.AssetScale),
						"sourceAmount":           amount.MinorUnits(),
						"destinationAsset":       formanceAsset(destAmount.AssetCode, destAmount.AssetScale),
						"destinationAmount":      destAmount.MinorUnits(),
						"pending":                pending,
						"sourceConversions":      conversionsAccount(amount.AssetCode),
						"destinationConversions": conversionsAccount(destAmount.AssetCode),
						"destination":            destPath,
					},
				},
			},
		})
	}
	if err != nil {
		if isConflictError(err) {
			return store.NewError(store.ErrAlreadyPosted, transferID)
		}
		return fmt.Errorf("posting transfer %s: %w", transferID, err)
	}

	if destRef != nil {
		s.fireOnCredit(ctx, *destRef)
	}
	return nil
}

func (s *Service) voidPending(ctx context.Context, transferID string) error {
	sourcePath, _, _, amount, _, err := s.pendingLegs(ctx, transferID)
	if err != nil {
		return err
	}

	_, err = s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: s.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: strPtr(transferID + "-void"),
			Script: &shared.V2PostTransactionScript{
				Plain: numscriptVoid,
				Vars: map[string]string{
					"asset":   formanceAsset(amount.AssetCode, amount.AssetScale),
					"amount":  amount.MinorUnits(),
					"pending": pendingAccount(transferID),
					"source":  sourcePath,
				},
			},
		},
	})
	if err != nil {
		if isConflictError(err) {
			return store.NewError(store.ErrAlreadyVoided, transferID)
		}
		return fmt.Errorf("voiding transfer %s: %w", transferID, err)
	}
	return nil
}

func (s *Service) CreateWithdrawal(ctx context.Context, p store.CreateWithdrawalParams) (*store.PendingTransfer, error) {
	if !p.Amount.IsPositive() {
		return nil, store.NewError(store.ErrInvalidAmount, "withdrawal amount must be positive")
	}
	if err := s.prepare(ctx, p.ID, accountString(p.Account), settlementAccount(p.Account.AssetID), nil, p.Amount, nil); err != nil {
		return nil, err
	}

	if p.Timeout > 0 {
		go s.autoVoidAfterTimeout(p.ID, p.Timeout)
	}

	id := p.ID
	return &store.PendingTransfer{
		ID:   id,
		Post: func(ctx context.Context) error { return s.PostWithdrawal(ctx, id) },
		Void: func(ctx context.Context) error { return s.VoidWithdrawal(ctx, id) },
	}, nil
}

// autoVoidAfterTimeout matches spec.md §4.1's "otherwise it auto-voids"
// clause for a withdrawal created with a timeout. This in-process
// goroutine is the only auto-void mechanism: the deadline is not persisted,
// so a pending withdrawal whose process exits before the timer fires is not
// auto-voided.
func (s *Service) autoVoidAfterTimeout(id string, timeout time.Duration) {
	time.Sleep(timeout)
	if err := s.VoidWithdrawal(context.Background(), id); err != nil {
		zap.L().Debug("auto-void skipped (already settled)", zap.String("id", id), zap.Error(err))
	}
}

func (s *Service) PostWithdrawal(ctx context.Context, id string) error { return s.postPending(ctx, id) }
func (s *Service) VoidWithdrawal(ctx context.Context, id string) error { return s.voidPending(ctx, id) }

func (s *Service) CreateTransfer(ctx context.Context, p store.CreateTransferParams) (*store.PendingTransfer, error) {
	dest := p.DestinationAccount
	if err := s.prepare(ctx, p.ID, accountString(p.SourceAccount), accountString(p.DestinationAccount), &dest, p.SourceAmount, p.DestinationAmount); err != nil {
		if store.KindOf(err) == store.ErrInsufficientBalance {
			return nil, store.NewError(store.ErrInsufficientLiquidity, accountString(p.SourceAccount))
		}
		return nil, err
	}

	if p.Timeout > 0 {
		go s.autoVoidAfterTimeout(p.ID, p.Timeout)
	}

	id := p.ID
	return &store.PendingTransfer{
		ID:   id,
		Post: func(ctx context.Context) error { return s.postPending(ctx, id) },
		Void: func(ctx context.Context) error { return s.voidPending(ctx, id) },
	}, nil
}
