package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	MinOTPDigits = 6
	MaxOTPDigits = 10
)

// NewOTP returns a numeric code of the given length. Each digit is drawn
// from crypto/rand by rejection sampling, so every digit is uniform and
// leading zeros are kept.
func NewOTP(digits int) (string, error) {
	if digits < MinOTPDigits || digits > MaxOTPDigits {
		return "", fmt.Errorf("otp: digits must be in [%d,%d], got %d", MinOTPDigits, MaxOTPDigits, digits)
	}

	out := make([]byte, 0, digits)
	buf := make([]byte, digits*2)
	for len(out) < digits {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("otp: read random: %w", err)
		}
		for _, b := range buf {
			// 250 is the largest multiple of 10 that fits in a byte.
			if b >= 250 {
				continue
			}
			out = append(out, '0'+b%10)
			if len(out) == digits {
				break
			}
		}
	}
	return string(out), nil
}

// HashToken returns the hex SHA-256 digest of token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
