package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateCode returns an uppercase hex string from n random bytes. Used for
// ticket secrets and gateway reference labels.
func GenerateCode(n int) (string, error) {
	byt := make([]byte, n)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// GenerateAttemptID returns a fresh purchase-attempt idempotency token.
func GenerateAttemptID() (string, error) {
	code, err := GenerateCode(12)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("attempt_%s", strings.ToLower(code)), nil
}
