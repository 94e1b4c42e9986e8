package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	// AccessCodeLength is the number of characters in an access code.
	AccessCodeLength = 6
	// AccessCodeTTL is how long a code stays valid after issuance.
	AccessCodeTTL = time.Hour
)

// GenerateAccessCode returns a 6-character upper-case hex code from
// crypto/rand.
func GenerateAccessCode() (string, error) {
	buf := make([]byte, AccessCodeLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate access code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// CompareAccessCodes reports whether the supplied code matches the stored
// one. Comparison is constant time so response latency does not reveal how
// many leading characters matched. Input casing is normalized first.
func CompareAccessCodes(stored, supplied string) bool {
	stored = strings.ToUpper(strings.TrimSpace(stored))
	supplied = strings.ToUpper(strings.TrimSpace(supplied))
	if len(stored) != len(supplied) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}
