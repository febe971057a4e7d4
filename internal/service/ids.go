package service

import (
	"crypto/rand"
	"encoding/hex"
)

// newID returns 16 random bytes as 32 hex chars; used for document, group
// and storage-key identifiers.
func newID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
