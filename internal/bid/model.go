// Package bid records the on-chain bid history of each property.
package bid

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle event a history row records.
type Status string

const (
	StatusPlaced    Status = "placed"
	StatusCancelled Status = "cancelled"
	StatusFinalized Status = "finalized"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPlaced, StatusCancelled, StatusFinalized:
		return true
	}
	return false
}

// Entry is one append-only bid history row. Amount is in wei.
type Entry struct {
	ID            int64     `json:"id"`
	PropertyID    int64     `json:"property_id"`
	UserID        string    `json:"user_id"`
	WalletAddress string    `json:"wallet_address"`
	Amount        string    `json:"amount"`
	TxHash        string    `json:"tx_hash"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Decimals is the fixed-point scale of bid amounts.
const Decimals = 18

// FormatAmount renders a wei amount in whole tokens with four decimal places.
// Unparseable input is returned unchanged.
func FormatAmount(wei string) string {
	n, ok := new(big.Int).SetString(wei, 10)
	if !ok {
		return wei
	}
	return decimal.NewFromBigInt(n, -Decimals).StringFixed(4)
}
