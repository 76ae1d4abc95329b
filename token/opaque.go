package token

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

// GenerateOpaqueValue returns byteLength random bytes, hex encoded.
func GenerateOpaqueValue(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = 32 // 256 bits
	}
	tokenBytes := make([]byte, byteLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "GenerateOpaqueValue rand.Read")
	}
	return hex.EncodeToString(tokenBytes), nil
}
