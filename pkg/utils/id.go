package utils

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// ID prefixes. All identifiers are opaque prefixed strings.
const (
	PrefixUser        = "user"
	PrefixProject     = "proj"
	PrefixAPIKey      = "key"
	PrefixPaymaster   = "pm"
	PrefixWallet      = "wal"
	PrefixTransaction = "tx"
	PrefixUsage       = "use"
)

// NewID returns a prefixed identifier, e.g. "proj_018f3c2a…". The random part
// is a UUIDv7 so IDs sort roughly by creation time.
func NewID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + "_" + hex.EncodeToString(id[:])
}
