package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
)

// fakeLedger implements just enough of store.LedgerAdapter to exercise the
// registry: onCredit dispatch and liquidity-account creation.
type fakeLedger struct {
	onCredit      store.OnCreditFunc
	createErr     error
	createdAccts  []models.AccountRef
}

func (f *fakeLedger) Ping(ctx context.Context) error { return nil }

func (f *fakeLedger) CreateLiquidityAccount(ctx context.Context, ref models.AccountRef) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.createdAccts = append(f.createdAccts, ref)
	return nil
}

func (f *fakeLedger) CreateDeposit(ctx context.Context, p store.CreateDepositParams) error {
	return nil
}
func (f *fakeLedger) CreateWithdrawal(ctx context.Context, p store.CreateWithdrawalParams) (*store.PendingTransfer, error) {
	return nil, nil
}
func (f *fakeLedger) PostWithdrawal(ctx context.Context, id string) error { return nil }
func (f *fakeLedger) VoidWithdrawal(ctx context.Context, id string) error { return nil }
func (f *fakeLedger) CreateTransfer(ctx context.Context, p store.CreateTransferParams) (*store.PendingTransfer, error) {
	return nil, nil
}
func (f *fakeLedger) GetBalance(ctx context.Context, ref models.AccountRef) (models.Money, error) {
	return models.Money{}, nil
}
func (f *fakeLedger) GetTotalSent(ctx context.Context, ref models.AccountRef) (models.Money, error) {
	return models.Money{}, nil
}
func (f *fakeLedger) GetTotalReceived(ctx context.Context, ref models.AccountRef) (models.Money, error) {
	return models.Money{}, nil
}
func (f *fakeLedger) SetOnCredit(fn store.OnCreditFunc) { f.onCredit = fn }
func (f *fakeLedger) Close()                            {}

func TestDispatch_NoHandlerRegistered(t *testing.T) {
	ledger := &fakeLedger{}
	New(ledger)

	if err := ledger.onCredit(context.Background(), models.AccountRef{Kind: models.AccountKindPeer}, models.Money{}); err != nil {
		t.Fatalf("expected no error when no handler is registered, got %v", err)
	}
}

func TestDispatch_RoutesToRegisteredHandler(t *testing.T) {
	ledger := &fakeLedger{}
	reg := New(ledger)

	var gotRef models.AccountRef
	reg.On(models.AccountKindIncomingPayment, func(ctx context.Context, ref models.AccountRef, total models.Money) error {
		gotRef = ref
		return nil
	})

	ref := models.AccountRef{Kind: models.AccountKindIncomingPayment, ID: "incoming1"}
	if err := ledger.onCredit(context.Background(), ref, models.Money{}); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if gotRef.ID != "incoming1" {
		t.Fatalf("expected handler invoked with incoming1, got %+v", gotRef)
	}
}

func TestDispatch_PropagatesHandlerError(t *testing.T) {
	ledger := &fakeLedger{}
	reg := New(ledger)

	wantErr := errors.New("handler boom")
	reg.On(models.AccountKindPeer, func(ctx context.Context, ref models.AccountRef, total models.Money) error {
		return wantErr
	})

	err := ledger.onCredit(context.Background(), models.AccountRef{Kind: models.AccountKindPeer}, models.Money{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected handler error to propagate, got %v", err)
	}
}

func TestEnsure_AlreadyExistsIsNotAnError(t *testing.T) {
	ledger := &fakeLedger{createErr: store.NewError(store.ErrAccountAlreadyExists, "account1")}
	reg := New(ledger)

	if err := reg.Ensure(context.Background(), models.AccountRef{Kind: models.AccountKindAsset, ID: "asset1"}); err != nil {
		t.Fatalf("expected AccountAlreadyExists to be swallowed, got %v", err)
	}
}

func TestEnsure_OtherErrorPropagates(t *testing.T) {
	ledger := &fakeLedger{createErr: errors.New("connection refused")}
	reg := New(ledger)

	if err := reg.Ensure(context.Background(), models.AccountRef{Kind: models.AccountKindAsset, ID: "asset1"}); err == nil {
		t.Fatal("expected a non-AlreadyExists error to propagate")
	}
}

func TestEnsure_CreatesAccountOnSuccess(t *testing.T) {
	ledger := &fakeLedger{}
	reg := New(ledger)

	ref := models.AccountRef{Kind: models.AccountKindAsset, ID: "asset1"}
	if err := reg.Ensure(context.Background(), ref); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if len(ledger.createdAccts) != 1 || ledger.createdAccts[0].ID != "asset1" {
		t.Fatalf("expected asset1 created, got %+v", ledger.createdAccts)
	}
}
