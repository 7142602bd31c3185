package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hmac256 returns the hex HMAC-SHA256 of body under key.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// SignQRPayload builds the opaque scannable payload for a ticket:
// "<ticketID>.<secret>.<sig>" where sig binds both under the signing key.
// The secret itself is never stored in the ledger, only its bcrypt hash.
func SignQRPayload(ticketID, secret string, key []byte) string {
	sig := Hmac256([]byte(ticketID+"."+secret), key)
	return fmt.Sprintf("%s.%s.%s", ticketID, secret, sig)
}

// VerifyQRPayload checks the signature and returns the embedded secret.
func VerifyQRPayload(ticketID, secret, sig string, key []byte) bool {
	expected := Hmac256([]byte(ticketID+"."+secret), key)
	return hmac.Equal([]byte(sig), []byte(expected))
}

// HashTicketSecret hashes a ticket secret for at-rest storage.
func HashTicketSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CompareTicketSecret reports whether the presented secret matches the
// stored hash.
func CompareTicketSecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
