package bidding

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/evcraddock/propchain/internal/apperr"
)

// Decimals is the ledger token's fixed-point scale.
const Decimals = 18

// The contract takes uint256 amounts; 2^256 has 78 decimal digits.
const (
	maxBaseUnitBits   = 256
	maxBaseUnitDigits = 78
)

// ToBaseUnits converts a positive decimal amount to base units.
// More than 18 significant decimal places or a result above uint256 is rejected.
func ToBaseUnits(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, apperr.Validation("missing_fields", "bid amount is required")
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, apperr.Validation("invalid_amount", fmt.Sprintf("bid amount %q is not a number", amount))
	}
	if !d.IsPositive() {
		return nil, apperr.Validation("invalid_amount", "bid amount must be positive")
	}

	// Reject out-of-range scales before the shift expands them.
	digits, exp := int64(d.NumDigits()), int64(d.Exponent())
	if digits+exp+Decimals > maxBaseUnitDigits {
		return nil, apperr.Validation("invalid_amount", "bid amount is too large")
	}
	if -exp > digits+Decimals {
		return nil, apperr.Validation("invalid_amount", fmt.Sprintf("bid amount has more than %d decimals", Decimals))
	}

	shifted := d.Shift(Decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, apperr.Validation("invalid_amount", fmt.Sprintf("bid amount has more than %d decimals", Decimals))
	}

	wei := shifted.BigInt()
	if wei.BitLen() > maxBaseUnitBits {
		return nil, apperr.Validation("invalid_amount", "bid amount is too large")
	}
	return wei, nil
}

// FormatBaseUnits renders base units as a decimal amount without trailing zeros.
func FormatBaseUnits(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -Decimals).String()
}
