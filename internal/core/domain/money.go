package domain

import "github.com/shopspring/decimal"

// The gateway reports amounts in minor units (kobo): 100 minor units per
// base unit. The scaling between the two representations is kept explicit
// because a mismatched scale is a direct financial-correctness bug.
const minorUnitsPerBase = 2 // decimal exponent, 10^2

// FromMinorUnits converts a gateway minor-unit amount to the ledger's
// base-unit decimal representation.
func FromMinorUnits(n int64) decimal.Decimal {
	return decimal.New(n, -minorUnitsPerBase)
}

// ToMinorUnits converts a ledger base-unit amount to the gateway's
// minor-unit integer representation.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(minorUnitsPerBase).IntPart()
}
