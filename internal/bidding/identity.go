package bidding

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// IDHash is the keccak256 of a user id. Bids are keyed by it so the chain
// never sees the raw identity.
func IDHash(userID string) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(userID))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// CanonicalIdentity normalises an identity for comparison. EVM addresses
// become their checksummed form; anything else is trimmed and lower-cased.
func CanonicalIdentity(s string) string {
	s = strings.TrimSpace(s)
	if common.IsHexAddress(s) {
		return common.HexToAddress(s).Hex()
	}
	return strings.ToLower(s)
}

// SameIdentity reports whether two non-empty identities refer to the same owner.
func SameIdentity(a, b string) bool {
	ca, cb := CanonicalIdentity(a), CanonicalIdentity(b)
	return ca != "" && ca == cb
}
