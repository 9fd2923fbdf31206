package common

import (
	"crypto/rand"
	"strings"

	gutils "github.com/Laisky/go-utils/v6"
)

const verificationCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateVerificationCode returns a random alphanumeric code of the given
// length. length=0 returns a dash-free UUIDv7, giving callers that don't
// care about length a collision-resistant 32-character default.
func GenerateVerificationCode(length int) string {
	if length == 0 {
		return strings.ReplaceAll(gutils.UUID7(), "-", "")
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is broken;
		// fall back to a UUID-derived code rather than panicking.
		fallback := strings.ReplaceAll(gutils.UUID7(), "-", "")
		for len(fallback) < length {
			fallback += fallback
		}
		return fallback[:length]
	}

	code := make([]byte, length)
	for i, b := range buf {
		code[i] = verificationCodeAlphabet[int(b)%len(verificationCodeAlphabet)]
	}
	return string(code)
}
