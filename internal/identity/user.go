// Package identity reads and updates user profiles held by the identity provider
// and resolves the caller of each request.
package identity

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CoinsKey is the metadata field holding a user's reward balance.
const CoinsKey = "coins"

// User is a profile from the identity provider.
type User struct {
	ID       string         `json:"id"`
	Username string         `json:"username"`
	Metadata map[string]any `json:"metadata"`
}

// Coins returns the reward balance. Missing, negative or non-numeric values read as 0;
// values beyond int64 read as math.MaxInt64.
func (u *User) Coins() int64 {
	if u == nil || u.Metadata == nil {
		return 0
	}
	return coinsValue(u.Metadata[CoinsKey])
}

func coinsValue(v any) int64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		return max(int64(n), 0)
	case int64:
		return max(n, 0)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return max(i, 0)
		}
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

// MetadataWithCoins returns a copy of the user's metadata with coins replaced.
// Every other key is preserved.
func (u *User) MetadataWithCoins(coins int64) map[string]any {
	md := make(map[string]any, len(u.Metadata)+1)
	for k, v := range u.Metadata {
		md[k] = v
	}
	md[CoinsKey] = coins
	return md
}

// Store is the identity provider's user API.
type Store interface {
	// GetUser returns the user with id, or an apperr not-found error.
	GetUser(ctx context.Context, id string) (*User, error)
	// FindByUsername returns the user with username, or an apperr not-found error.
	FindByUsername(ctx context.Context, username string) (*User, error)
	// UpdateMetadata replaces the user's metadata bag.
	UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error
}
