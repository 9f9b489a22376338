package admin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
)

type fakeDomain struct {
	store.DomainStore
	mu     sync.Mutex
	assets map[string]*models.Asset
	peers  map[string]*models.Peer
	idem   map[string][]byte

	getAssetErr error
}

func newFakeDomain() *fakeDomain {
	return &fakeDomain{
		assets: map[string]*models.Asset{},
		peers:  map[string]*models.Peer{},
		idem:   map[string][]byte{},
	}
}

func (f *fakeDomain) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	if f.getAssetErr != nil {
		return nil, f.getAssetErr
	}
	a, ok := f.assets[id]
	if !ok {
		return nil, store.NewError(store.ErrUnknownAsset, id)
	}
	return a, nil
}

func (f *fakeDomain) GetPeer(ctx context.Context, id string) (*models.Peer, error) {
	p, ok := f.peers[id]
	if !ok {
		return nil, store.NewError(store.ErrUnknownPeer, id)
	}
	return p, nil
}

func (f *fakeDomain) ReserveIdempotencyKey(ctx context.Context, operation, key string) (bool, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	full := operation + ":" + key
	if prior, ok := f.idem[full]; ok {
		return false, prior, nil
	}
	f.idem[full] = nil
	return true, nil, nil
}

func (f *fakeDomain) StoreIdempotencyResult(ctx context.Context, operation, key string, result []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idem[operation+":"+key] = result
	return nil
}

type fakeLedger struct {
	store.LedgerAdapter
	depositCalls    int
	withdrawalCalls int
	postCalls       []string
	voidCalls       []string

	createDepositErr    error
	createWithdrawalErr error
}

func (f *fakeLedger) CreateDeposit(ctx context.Context, p store.CreateDepositParams) error {
	f.depositCalls++
	return f.createDepositErr
}

func (f *fakeLedger) CreateWithdrawal(ctx context.Context, p store.CreateWithdrawalParams) (*store.PendingTransfer, error) {
	f.withdrawalCalls++
	if f.createWithdrawalErr != nil {
		return nil, f.createWithdrawalErr
	}
	return &store.PendingTransfer{ID: p.ID}, nil
}

func (f *fakeLedger) PostWithdrawal(ctx context.Context, id string) error {
	f.postCalls = append(f.postCalls, id)
	return nil
}

func (f *fakeLedger) VoidWithdrawal(ctx context.Context, id string) error {
	f.voidCalls = append(f.voidCalls, id)
	return nil
}

func TestAddAssetLiquidity_Success(t *testing.T) {
	domain := newFakeDomain()
	domain.assets["asset1"] = &models.Asset{ID: "asset1", Code: "USD", Scale: 2}
	ledger := &fakeLedger{}
	svc := New(domain, ledger)

	resp := svc.AddAssetLiquidity(context.Background(), "asset1", "100.00", "key1")
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if ledger.depositCalls != 1 {
		t.Fatalf("expected one deposit call, got %d", ledger.depositCalls)
	}
}

func TestAddAssetLiquidity_UnknownAssetFails(t *testing.T) {
	domain := newFakeDomain()
	ledger := &fakeLedger{}
	svc := New(domain, ledger)

	resp := svc.AddAssetLiquidity(context.Background(), "missing", "100.00", "key1")
	if resp.Success {
		t.Fatal("expected failure for an unknown asset")
	}
	if ledger.depositCalls != 0 {
		t.Fatal("expected no deposit call for an unknown asset")
	}
}

func TestAddAssetLiquidity_InvalidAmountFails(t *testing.T) {
	domain := newFakeDomain()
	domain.assets["asset1"] = &models.Asset{ID: "asset1", Code: "USD", Scale: 2}
	ledger := &fakeLedger{}
	svc := New(domain, ledger)

	resp := svc.AddAssetLiquidity(context.Background(), "asset1", "-5", "key1")
	if resp.Success {
		t.Fatal("expected failure for a negative amount")
	}
}

func TestAddAssetLiquidity_IdempotentReplay(t *testing.T) {
	domain := newFakeDomain()
	domain.assets["asset1"] = &models.Asset{ID: "asset1", Code: "USD", Scale: 2}
	ledger := &fakeLedger{}
	svc := New(domain, ledger)

	first := svc.AddAssetLiquidity(context.Background(), "asset1", "100.00", "samekey")
	second := svc.AddAssetLiquidity(context.Background(), "asset1", "100.00", "samekey")
	if !first.Success || !second.Success {
		t.Fatalf("expected both calls to succeed: first=%+v second=%+v", first, second)
	}
	if ledger.depositCalls != 1 {
		t.Fatalf("expected the second call to replay the stored result, not re-deposit; got %d deposit calls", ledger.depositCalls)
	}
}

func TestCreateAssetLiquidityWithdrawal_ReturnsWithdrawalID(t *testing.T) {
	domain := newFakeDomain()
	domain.assets["asset1"] = &models.Asset{ID: "asset1", Code: "USD", Scale: 2}
	ledger := &fakeLedger{}
	svc := New(domain, ledger)

	resp := svc.CreateAssetLiquidityWithdrawal(context.Background(), "asset1", "50.00", time.Minute, "key1")
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	data, ok := resp.Data.(map[string]string)
	if !ok || data["withdrawalId"] == "" {
		t.Fatalf("expected a withdrawalId in the response data, got %+v", resp.Data)
	}
}

func TestPostLiquidityWithdrawal_EmptyIDFails(t *testing.T) {
	svc := New(newFakeDomain(), &fakeLedger{})
	resp := svc.PostLiquidityWithdrawal(context.Background(), "")
	if resp.Success {
		t.Fatal("expected failure for an empty withdrawalId")
	}
}

func TestPostLiquidityWithdrawal_Success(t *testing.T) {
	ledger := &fakeLedger{}
	svc := New(newFakeDomain(), ledger)
	resp := svc.PostLiquidityWithdrawal(context.Background(), "w1")
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if len(ledger.postCalls) != 1 || ledger.postCalls[0] != "w1" {
		t.Fatalf("expected PostWithdrawal called with w1, got %v", ledger.postCalls)
	}
}

func TestVoidLiquidityWithdrawal_Success(t *testing.T) {
	ledger := &fakeLedger{}
	svc := New(newFakeDomain(), ledger)
	resp := svc.VoidLiquidityWithdrawal(context.Background(), "w1")
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if len(ledger.voidCalls) != 1 || ledger.voidCalls[0] != "w1" {
		t.Fatalf("expected VoidWithdrawal called with w1, got %v", ledger.voidCalls)
	}
}

func TestAddPeerLiquidity_UnknownPeerFails(t *testing.T) {
	svc := New(newFakeDomain(), &fakeLedger{})
	resp := svc.AddPeerLiquidity(context.Background(), "missing", "10", "key1")
	if resp.Success {
		t.Fatal("expected failure for an unknown peer")
	}
}
