package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money pairs a decimal value with the asset it is denominated in. All
// amount arithmetic in the engine (quotes, fees, grant accounting, ledger
// postings) flows through this type rather than bare decimals so a mismatched
// asset comparison fails to compile into a silent bug.
type Money struct {
	Value      decimal.Decimal
	AssetCode  string
	AssetScale int
}

func NewMoney(value decimal.Decimal, assetCode string, assetScale int) Money {
	return Money{Value: value, AssetCode: assetCode, AssetScale: assetScale}
}

func ZeroMoney(assetCode string, assetScale int) Money {
	return Money{Value: decimal.Zero, AssetCode: assetCode, AssetScale: assetScale}
}

func (m Money) SameAsset(other Money) bool {
	return m.AssetCode == other.AssetCode && m.AssetScale == other.AssetScale
}

func (m Money) Add(other Money) (Money, error) {
	if !m.SameAsset(other) {
		return Money{}, fmt.Errorf("asset mismatch: %s/%d vs %s/%d", m.AssetCode, m.AssetScale, other.AssetCode, other.AssetScale)
	}
	return Money{Value: m.Value.Add(other.Value), AssetCode: m.AssetCode, AssetScale: m.AssetScale}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if !m.SameAsset(other) {
		return Money{}, fmt.Errorf("asset mismatch: %s/%d vs %s/%d", m.AssetCode, m.AssetScale, other.AssetCode, other.AssetScale)
	}
	return Money{Value: m.Value.Sub(other.Value), AssetCode: m.AssetCode, AssetScale: m.AssetScale}, nil
}

func (m Money) IsPositive() bool { return m.Value.IsPositive() }
func (m Money) IsZero() bool     { return m.Value.IsZero() }

// MinorUnits renders the value as the ledger's minor-unit integer string,
// i.e. shifted by AssetScale, matching how the teacher converts Prime
// decimal amounts into Formance's smallest-unit integers.
func (m Money) MinorUnits() string {
	return m.Value.Shift(int32(m.AssetScale)).BigInt().String()
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s (scale %d)", m.Value.String(), m.AssetCode, m.AssetScale)
}
