package db

import (
	"context"
	"testing"

	"github.com/ilpengine/engine/internal/models"
)

func TestCreateAndGetAsset(t *testing.T) {
	svc, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	threshold := models.DecimalString("10.00")
	asset := &models.Asset{
		ID:                  "asset1",
		Code:                "USD",
		Scale:               2,
		WithdrawalThreshold: &threshold,
		SendingFee:          &models.Fee{FixedFee: 5, BasisPoints: 10},
	}
	if err := svc.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}

	got, err := svc.GetAsset(ctx, "asset1")
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if got.Code != "USD" || got.Scale != 2 {
		t.Fatalf("unexpected asset: %+v", got)
	}
	if got.WithdrawalThreshold == nil || *got.WithdrawalThreshold != "10.00" {
		t.Fatalf("expected withdrawal threshold 10.00, got %v", got.WithdrawalThreshold)
	}
	if got.SendingFee == nil || got.SendingFee.FixedFee != 5 || got.SendingFee.BasisPoints != 10 {
		t.Fatalf("expected sending fee 5/10bp, got %+v", got.SendingFee)
	}
	if got.ReceivingFee != nil {
		t.Fatalf("expected nil receiving fee, got %+v", got.ReceivingFee)
	}
}

func TestGetAsset_NotFound(t *testing.T) {
	svc, cleanup := setupTestDB(t)
	defer cleanup()

	if _, err := svc.GetAsset(context.Background(), "missing"); err == nil {
		t.Fatal("expected an error for a missing asset")
	}
}

func TestUpdateAssetWithdrawalThreshold(t *testing.T) {
	svc, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	asset := &models.Asset{ID: "asset1", Code: "USD", Scale: 2}
	if err := svc.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}

	threshold := "25.50"
	if err := svc.UpdateAssetWithdrawalThreshold(ctx, "asset1", &threshold); err != nil {
		t.Fatalf("UpdateAssetWithdrawalThreshold failed: %v", err)
	}

	got, err := svc.GetAsset(ctx, "asset1")
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if got.WithdrawalThreshold == nil || *got.WithdrawalThreshold != "25.50" {
		t.Fatalf("expected threshold 25.50, got %v", got.WithdrawalThreshold)
	}
}
