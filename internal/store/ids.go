package store

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

var idEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns prefix-<suffix> where suffix is 8 lowercase base32 chars taken
// from a random (v4) uuid, i.e. 40 bits of randomness.
func NewID(prefix string) string {
	u := uuid.New()
	suffix := strings.ToLower(idEncoding.EncodeToString(u[:5]))
	return prefix + "-" + suffix
}
