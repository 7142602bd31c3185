package paychangu

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// hmacHex returns the hex HMAC-SHA256 of body under key, the scheme
// PayChangu signs webhook deliveries with.
func hmacHex(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}
