package utils

import (
	"crypto/sha1"
	"encoding/hex"
)

// HashContent returns the hex SHA-1 of content. Content identity across
// the store is the hash of the decompressed bytes, never the compressed
// form, so identical files dedupe regardless of compression settings.
func HashContent(content []byte) string {
	hash := sha1.Sum(content)
	return hex.EncodeToString(hash[:])
}
