package outgoing

import (
	"context"
	"testing"
	"time"

	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
	"github.com/shopspring/decimal"
)

type fakeDomain struct {
	store.DomainStore
	wallet       *models.WalletAddress
	quote        *models.Quote
	asset        *models.Asset
	contribution string
	created      *models.OutgoingPayment
	lockErr      error
}

func (f *fakeDomain) GetWalletAddress(ctx context.Context, id string) (*models.WalletAddress, error) {
	return f.wallet, nil
}
func (f *fakeDomain) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	return f.asset, nil
}
func (f *fakeDomain) GetQuote(ctx context.Context, id string) (*models.Quote, error) { return f.quote, nil }
func (f *fakeDomain) LockOutgoingPaymentGrant(ctx context.Context, id string) (func(), error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	return func() {}, nil
}
func (f *fakeDomain) SumGrantContribution(ctx context.Context, grantID, interval string, debitLimited bool) (string, error) {
	return f.contribution, nil
}
func (f *fakeDomain) CreateOutgoingPayment(ctx context.Context, p *models.OutgoingPayment, event *models.WebhookEvent) error {
	f.created = p
	return nil
}

func newTestEngine(domain *fakeDomain) *Engine {
	return NewEngine(domain, nil, nil, nil, time.Second, 5)
}

func TestCreate_InactiveWalletAddressFails(t *testing.T) {
	domain := &fakeDomain{
		wallet: &models.WalletAddress{ID: "w1", DeactivatedAt: timePtr(time.Now().Add(-time.Hour))},
	}
	_, err := newTestEngine(domain).Create(context.Background(), CreateParams{WalletAddressID: "w1"})
	if err == nil {
		t.Fatal("expected an error for a deactivated wallet address")
	}
}

func TestCreate_QuoteForDifferentWalletFails(t *testing.T) {
	domain := &fakeDomain{
		wallet: &models.WalletAddress{ID: "w1"},
		quote:  &models.Quote{ID: "q1", WalletAddressID: "other-wallet", ExpiresAt: time.Now().Add(time.Hour)},
	}
	_, err := newTestEngine(domain).Create(context.Background(), CreateParams{WalletAddressID: "w1", QuoteID: "q1"})
	if err == nil {
		t.Fatal("expected an error for a quote bound to a different wallet address")
	}
}

func TestCreate_ExpiredQuoteFails(t *testing.T) {
	domain := &fakeDomain{
		wallet: &models.WalletAddress{ID: "w1"},
		quote:  &models.Quote{ID: "q1", WalletAddressID: "w1", ExpiresAt: time.Now().Add(-time.Hour)},
	}
	_, err := newTestEngine(domain).Create(context.Background(), CreateParams{WalletAddressID: "w1", QuoteID: "q1"})
	if err == nil {
		t.Fatal("expected an error for an expired quote")
	}
}

func TestCreate_NoGrantSkipsLimitCheckAndSucceeds(t *testing.T) {
	domain := &fakeDomain{
		wallet: &models.WalletAddress{ID: "w1"},
		quote:  &models.Quote{ID: "q1", WalletAddressID: "w1", ExpiresAt: time.Now().Add(time.Hour)},
	}
	payment, err := newTestEngine(domain).Create(context.Background(), CreateParams{WalletAddressID: "w1", QuoteID: "q1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if payment.State != models.OutgoingPaymentFunding {
		t.Fatalf("expected state FUNDING, got %s", payment.State)
	}
	if payment.GrantID != nil {
		t.Fatal("expected a nil grantID when no grant was supplied")
	}
}

func TestCreate_GrantWithinBudgetSucceeds(t *testing.T) {
	domain := &fakeDomain{
		wallet:       &models.WalletAddress{ID: "w1"},
		quote:        &models.Quote{ID: "q1", WalletAddressID: "w1", ExpiresAt: time.Now().Add(time.Hour), Receiver: "https://wallet.example/bob", DebitAmount: "100"},
		asset:        &models.Asset{ID: "asset1", Code: "USD", Scale: 0},
		contribution: "50",
	}
	limit := models.NewMoney(decimal.RequireFromString("200"), "USD", 0)
	payment, err := newTestEngine(domain).Create(context.Background(), CreateParams{
		WalletAddressID: "w1", QuoteID: "q1",
		Grant:       &models.OutgoingPaymentGrant{ID: "grant1"},
		GrantLimits: &models.GrantLimits{DebitAmount: &limit},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if payment.GrantID == nil || *payment.GrantID != "grant1" {
		t.Fatalf("expected grantID grant1, got %v", payment.GrantID)
	}
}

func TestCreate_GrantExceedingBudgetFails(t *testing.T) {
	domain := &fakeDomain{
		wallet:       &models.WalletAddress{ID: "w1"},
		quote:        &models.Quote{ID: "q1", WalletAddressID: "w1", ExpiresAt: time.Now().Add(time.Hour), Receiver: "https://wallet.example/bob", DebitAmount: "150"},
		asset:        &models.Asset{ID: "asset1", Code: "USD", Scale: 0},
		contribution: "100",
	}
	limit := models.NewMoney(decimal.RequireFromString("200"), "USD", 0)
	_, err := newTestEngine(domain).Create(context.Background(), CreateParams{
		WalletAddressID: "w1", QuoteID: "q1",
		Grant:       &models.OutgoingPaymentGrant{ID: "grant1"},
		GrantLimits: &models.GrantLimits{DebitAmount: &limit},
	})
	if err == nil {
		t.Fatal("expected an error when contributed+requested exceeds the grant's debit limit")
	}
}

func TestCreate_GrantReceiverMismatchFails(t *testing.T) {
	domain := &fakeDomain{
		wallet: &models.WalletAddress{ID: "w1"},
		quote:  &models.Quote{ID: "q1", WalletAddressID: "w1", ExpiresAt: time.Now().Add(time.Hour), Receiver: "https://wallet.example/bob"},
	}
	receiver := "https://wallet.example/alice"
	_, err := newTestEngine(domain).Create(context.Background(), CreateParams{
		WalletAddressID: "w1", QuoteID: "q1",
		Grant:       &models.OutgoingPaymentGrant{ID: "grant1"},
		GrantLimits: &models.GrantLimits{Receiver: &receiver},
	})
	if err == nil {
		t.Fatal("expected an error when the grant limit's receiver doesn't match the quote's")
	}
}

func TestCreate_GrantDebitCurrencyMismatchFails(t *testing.T) {
	domain := &fakeDomain{
		wallet: &models.WalletAddress{ID: "w1"},
		quote:  &models.Quote{ID: "q1", WalletAddressID: "w1", ExpiresAt: time.Now().Add(time.Hour), Receiver: "https://wallet.example/bob", DebitAmount: "100"},
		asset:  &models.Asset{ID: "asset1", Code: "USD", Scale: 0},
	}
	limit := models.NewMoney(decimal.RequireFromString("200"), "EUR", 0)
	_, err := newTestEngine(domain).Create(context.Background(), CreateParams{
		WalletAddressID: "w1", QuoteID: "q1",
		Grant:       &models.OutgoingPaymentGrant{ID: "grant1"},
		GrantLimits: &models.GrantLimits{DebitAmount: &limit},
	})
	if err == nil {
		t.Fatal("expected an error when the grant's debitAmount currency doesn't match the quote's source asset")
	}
}

func TestCreate_GrantReceiveCurrencyMismatchFails(t *testing.T) {
	domain := &fakeDomain{
		wallet: &models.WalletAddress{ID: "w1"},
		quote: &models.Quote{
			ID: "q1", WalletAddressID: "w1", ExpiresAt: time.Now().Add(time.Hour), Receiver: "https://wallet.example/bob",
			ReceiveAmount: "100", ReceiveAssetCode: "XRP", ReceiveAssetScale: 9,
		},
	}
	limit := models.NewMoney(decimal.RequireFromString("200"), "USD", 2)
	_, err := newTestEngine(domain).Create(context.Background(), CreateParams{
		WalletAddressID: "w1", QuoteID: "q1",
		Grant:       &models.OutgoingPaymentGrant{ID: "grant1"},
		GrantLimits: &models.GrantLimits{ReceiveAmount: &limit},
	})
	if err == nil {
		t.Fatal("expected an error when the grant's receiveAmount currency doesn't match the quote's destination asset")
	}
}
