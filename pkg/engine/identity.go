package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// FindingHash is the deduplication key of a finding. Field order and the ":" separator
// are part of the stored identity and must not change.
func FindingHash(scanner, checkID, resourceID, title string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{scanner, checkID, resourceID, title}, ":")))
	return hex.EncodeToString(sum[:])
}
