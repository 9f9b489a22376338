package quote

import (
	"github.com/ilpengine/engine/internal/models"
	"github.com/shopspring/decimal"
)

// applyFee computes fixedFee + ceil(amount * basisPointFee / 10000),
// spec.md §4.4's fee formula.
func applyFee(amount decimal.Decimal, fee *models.Fee) decimal.Decimal {
	if fee == nil {
		return amount
	}
	bp := decimal.NewFromInt(fee.BasisPoints).Mul(amount).Div(decimal.NewFromInt(10000))
	return amount.Add(decimal.NewFromInt(fee.FixedFee)).Add(bp.Ceil())
}

// feeAmount is applyFee minus the base fixed/bp contribution alone, used
// when the caller needs just the fee rather than amount+fee.
func feeAmount(amount decimal.Decimal, fee *models.Fee) decimal.Decimal {
	if fee == nil {
		return decimal.Zero
	}
	bp := decimal.NewFromInt(fee.BasisPoints).Mul(amount).Div(decimal.NewFromInt(10000))
	return decimal.NewFromInt(fee.FixedFee).Add(bp.Ceil())
}
