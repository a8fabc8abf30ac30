package pull

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeIdentity returns the canonical form of a requester identity. Hex addresses are
// lower-cased so that checksummed and plain forms compare equal. Other identities are trimmed
// and lower-cased.
func NormalizeIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	if common.IsHexAddress(identity) {
		return strings.ToLower(common.HexToAddress(identity).Hex())
	}
	return strings.ToLower(identity)
}

// SameIdentity returns true if both identities are non-empty and refer to the same account.
func SameIdentity(a, b string) bool {
	na := NormalizeIdentity(a)
	return len(na) > 0 && na == NormalizeIdentity(b)
}
