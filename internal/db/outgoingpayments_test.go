package db

import (
	"context"
	"testing"
	"time"

	"github.com/ilpengine/engine/internal/models"
)

func seedWalletAddress(t *testing.T, svc *Service, id, assetID string) {
	t.Helper()
	w := &models.WalletAddress{ID: id, URL: "https://wallet.example/" + id, AssetID: assetID, TotalEventsAmount: "0"}
	if err := svc.CreateWalletAddress(context.Background(), w); err != nil {
		t.Fatalf("seeding wallet address %s failed: %v", id, err)
	}
}

func seedQuote(t *testing.T, svc *Service, id, walletID, assetID, debitAmount, receiveAmount string) {
	t.Helper()
	q := &models.Quote{
		ID:                        id,
		WalletAddressID:           walletID,
		AssetID:                   assetID,
		Receiver:                  "https://wallet.example/receiver",
		DebitAmount:               debitAmount,
		ReceiveAmount:             receiveAmount,
		MaxPacketAmount:           1000,
		MinExchangeRate:           "1",
		LowEstimatedExchangeRate:  "1",
		HighEstimatedExchangeRate: "1",
		ExpiresAt:                 time.Now().Add(time.Hour),
	}
	if err := svc.CreateQuote(context.Background(), q); err != nil {
		t.Fatalf("seeding quote %s failed: %v", id, err)
	}
}

func seedOutgoingPayment(t *testing.T, svc *Service, id, walletID, quoteID, grantID string, state models.OutgoingPaymentState, sentAmount string) {
	t.Helper()
	p := &models.OutgoingPayment{
		ID:              id,
		WalletAddressID: walletID,
		QuoteID:         quoteID,
		State:           state,
		SentAmount:      sentAmount,
		GrantID:         &grantID,
		CreatedAt:       time.Now(),
	}
	event := &models.WebhookEvent{ID: id + "-evt", Type: models.EventOutgoingPaymentCreated, Data: map[string]any{}}
	if err := svc.CreateOutgoingPayment(context.Background(), p, event); err != nil {
		t.Fatalf("seeding outgoing payment %s failed: %v", id, err)
	}
}

func TestSumGrantContribution_DebitLimited_FailedPaymentSubstitutesSentAmount(t *testing.T) {
	svc, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	seedAsset(t, svc, "asset1")
	seedWalletAddress(t, svc, "wallet1", "asset1")

	seedQuote(t, svc, "quote-completed", "wallet1", "asset1", "1000", "900")
	seedOutgoingPayment(t, svc, "pay-completed", "wallet1", "quote-completed", "grant1", models.OutgoingPaymentCompleted, "1000")

	seedQuote(t, svc, "quote-failed", "wallet1", "asset1", "500", "450")
	seedOutgoingPayment(t, svc, "pay-failed", "wallet1", "quote-failed", "grant1", models.OutgoingPaymentFailed, "200")

	got, err := svc.SumGrantContribution(ctx, "grant1", "", true)
	if err != nil {
		t.Fatalf("SumGrantContribution failed: %v", err)
	}
	// completed contributes its full debitAmount (1000); failed contributes
	// its actual sentAmount (200), not its quoted debitAmount (500).
	if got != "1200" {
		t.Fatalf("expected 1200 (1000 completed + 200 failed-partial), got %s", got)
	}
}

func TestSumGrantContribution_ReceiveLimited_FailedPaymentUsesRateDerivedAmount(t *testing.T) {
	svc, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	seedAsset(t, svc, "asset1")
	seedWalletAddress(t, svc, "wallet1", "asset1")

	// debit:receive rate is 1:1 here, so a 200 sentAmount failure contributes 200.
	seedQuote(t, svc, "quote-failed", "wallet1", "asset1", "500", "500")
	seedOutgoingPayment(t, svc, "pay-failed", "wallet1", "quote-failed", "grant1", models.OutgoingPaymentFailed, "200")

	got, err := svc.SumGrantContribution(ctx, "grant1", "", false)
	if err != nil {
		t.Fatalf("SumGrantContribution failed: %v", err)
	}
	if got != "200" {
		t.Fatalf("expected 200, got %s", got)
	}
}

func TestSumGrantContribution_UnrelatedGrantNotCounted(t *testing.T) {
	svc, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	seedAsset(t, svc, "asset1")
	seedWalletAddress(t, svc, "wallet1", "asset1")
	seedQuote(t, svc, "quote1", "wallet1", "asset1", "1000", "900")
	seedOutgoingPayment(t, svc, "pay1", "wallet1", "quote1", "other-grant", models.OutgoingPaymentCompleted, "1000")

	got, err := svc.SumGrantContribution(ctx, "grant1", "", true)
	if err != nil {
		t.Fatalf("SumGrantContribution failed: %v", err)
	}
	if got != "0" {
		t.Fatalf("expected 0 for an unrelated grant, got %s", got)
	}
}
