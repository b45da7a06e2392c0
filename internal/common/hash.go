package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashParts returns the lowercase hex SHA-256 of parts. Each part is
// terminated by a NUL byte so ("ab", "c") and ("a", "bc") differ.
func HashParts(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
