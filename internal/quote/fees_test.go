package quote

import (
	"testing"

	"github.com/ilpengine/engine/internal/models"
	"github.com/shopspring/decimal"
)

func TestApplyFee_NilFeeIsNoOp(t *testing.T) {
	amount := decimal.NewFromInt(100)
	if got := applyFee(amount, nil); !got.Equal(amount) {
		t.Fatalf("expected unchanged amount, got %s", got)
	}
}

func TestApplyFee_FixedAndBasisPoints(t *testing.T) {
	amount := decimal.NewFromInt(1000)
	fee := &models.Fee{FixedFee: 10, BasisPoints: 100} // 1%
	got := applyFee(amount, fee)
	// 1000 + 10 + ceil(1000*100/10000=10) = 1020
	want := decimal.NewFromInt(1020)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestApplyFee_BasisPointsRoundUp(t *testing.T) {
	amount := decimal.NewFromInt(99)
	fee := &models.Fee{FixedFee: 0, BasisPoints: 50} // 0.5%
	got := applyFee(amount, fee)
	// 99*50/10000 = 0.495 -> ceil = 1
	want := decimal.NewFromInt(100)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestFeeAmount_NilFeeIsZero(t *testing.T) {
	if got := feeAmount(decimal.NewFromInt(500), nil); !got.Equal(decimal.Zero) {
		t.Fatalf("expected zero fee, got %s", got)
	}
}

func TestFeeAmount_ComputesJustTheFee(t *testing.T) {
	fee := &models.Fee{FixedFee: 5, BasisPoints: 200} // 2%
	got := feeAmount(decimal.NewFromInt(1000), fee)
	// 5 + ceil(1000*200/10000=20) = 25
	want := decimal.NewFromInt(25)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
