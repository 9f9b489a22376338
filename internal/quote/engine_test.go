package quote

import (
	"testing"

	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/receiver"
	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func TestResolveRequestedAmounts_DebitAmountGiven(t *testing.T) {
	e := &Engine{}
	debit, receive, err := e.resolveRequestedAmounts(CreateParams{DebitAmount: strPtr("100")}, &receiver.Resolved{})
	if err != nil {
		t.Fatalf("resolveRequestedAmounts failed: %v", err)
	}
	if !debit.Equal(decimal.NewFromInt(100)) || !receive.IsZero() {
		t.Fatalf("expected debit=100 receive=0, got debit=%s receive=%s", debit, receive)
	}
}

func TestResolveRequestedAmounts_InvalidDebitAmountErrors(t *testing.T) {
	e := &Engine{}
	if _, _, err := e.resolveRequestedAmounts(CreateParams{DebitAmount: strPtr("not-a-number")}, &receiver.Resolved{}); err == nil {
		t.Fatal("expected an error for a malformed debitAmount")
	}
}

func TestResolveRequestedAmounts_ZeroDebitAmountErrors(t *testing.T) {
	e := &Engine{}
	if _, _, err := e.resolveRequestedAmounts(CreateParams{DebitAmount: strPtr("0")}, &receiver.Resolved{}); err == nil {
		t.Fatal("expected an error for a non-positive debitAmount")
	}
}

func TestResolveRequestedAmounts_ReceiveAmountGiven(t *testing.T) {
	e := &Engine{}
	debit, receive, err := e.resolveRequestedAmounts(CreateParams{ReceiveAmount: strPtr("50")}, &receiver.Resolved{})
	if err != nil {
		t.Fatalf("resolveRequestedAmounts failed: %v", err)
	}
	if !receive.Equal(decimal.NewFromInt(50)) || !debit.IsZero() {
		t.Fatalf("expected receive=50 debit=0, got debit=%s receive=%s", debit, receive)
	}
}

func TestResolveRequestedAmounts_FixedDeliveryUsesIncomingAmount(t *testing.T) {
	e := &Engine{}
	resolved := &receiver.Resolved{IncomingAmount: strPtr("100"), ReceivedAmount: strPtr("30")}
	debit, receive, err := e.resolveRequestedAmounts(CreateParams{}, resolved)
	if err != nil {
		t.Fatalf("resolveRequestedAmounts failed: %v", err)
	}
	if !debit.IsZero() || !receive.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected receive=70 (100-30), got debit=%s receive=%s", debit, receive)
	}
}

func TestResolveRequestedAmounts_FixedDeliveryAlreadySatisfiedErrors(t *testing.T) {
	e := &Engine{}
	resolved := &receiver.Resolved{IncomingAmount: strPtr("100"), ReceivedAmount: strPtr("100")}
	if _, _, err := e.resolveRequestedAmounts(CreateParams{}, resolved); err == nil {
		t.Fatal("expected an error when incomingAmount is already fully received")
	}
}

func TestResolveRequestedAmounts_NoAmountsAndNoIncomingAmountErrors(t *testing.T) {
	e := &Engine{}
	if _, _, err := e.resolveRequestedAmounts(CreateParams{}, &receiver.Resolved{}); err == nil {
		t.Fatal("expected an error when neither amount is given and the receiver has no incomingAmount")
	}
}

func TestApplySendingFees_FixedSourceReducesReceiveByFee(t *testing.T) {
	e := &Engine{}
	asset := &models.Asset{SendingFee: &models.Fee{FixedFee: 10, BasisPoints: 0}}
	debit, receive, feeID, err := e.applySendingFees(asset, decimal.NewFromInt(1000), decimal.Decimal{}, decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("applySendingFees failed: %v", err)
	}
	if !debit.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected debit unchanged at 1000, got %s", debit)
	}
	// net = 1000 - 10 = 990, receive = 990 * rate(1) = 990
	if !receive.Equal(decimal.NewFromInt(990)) {
		t.Fatalf("expected receive=990, got %s", receive)
	}
	if feeID == nil || *feeID != "sending" {
		t.Fatalf("expected feeID 'sending', got %v", feeID)
	}
}

func TestApplySendingFees_FixedSourceFeeExceedsDebitErrors(t *testing.T) {
	e := &Engine{}
	asset := &models.Asset{SendingFee: &models.Fee{FixedFee: 2000, BasisPoints: 0}}
	if _, _, _, err := e.applySendingFees(asset, decimal.NewFromInt(1000), decimal.Decimal{}, decimal.NewFromInt(1)); err == nil {
		t.Fatal("expected an error when the sending fee exceeds debitAmount")
	}
}

func TestApplySendingFees_FixedDeliveryInflatesDebitByFee(t *testing.T) {
	e := &Engine{}
	asset := &models.Asset{SendingFee: &models.Fee{FixedFee: 10, BasisPoints: 0}}
	debit, receive, feeID, err := e.applySendingFees(asset, decimal.Decimal{}, decimal.NewFromInt(990), decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("applySendingFees failed: %v", err)
	}
	// debit = ceil(990/1) + 10 = 1000
	if !debit.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected debit=1000, got %s", debit)
	}
	if !receive.Equal(decimal.NewFromInt(990)) {
		t.Fatalf("expected receive unchanged at 990, got %s", receive)
	}
	if feeID == nil || *feeID != "sending" {
		t.Fatalf("expected feeID 'sending', got %v", feeID)
	}
}

func TestApplySendingFees_NoFeeIsPassthrough(t *testing.T) {
	e := &Engine{}
	asset := &models.Asset{}
	debit, receive, feeID, err := e.applySendingFees(asset, decimal.NewFromInt(1000), decimal.Decimal{}, decimal.NewFromInt(2))
	if err != nil {
		t.Fatalf("applySendingFees failed: %v", err)
	}
	if !debit.Equal(decimal.NewFromInt(1000)) || !receive.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected debit=1000 receive=2000, got debit=%s receive=%s", debit, receive)
	}
	if feeID != nil {
		t.Fatalf("expected nil feeID when asset has no sending fee, got %v", feeID)
	}
}
