package room

import (
	"crypto/rand"
	"strings"
)

const (
	codeAlphabet      = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	defaultCodeLength = 6
	maxCodeAttempts   = 32
)

// newCodeGen returns a generator of fixed-length upper alphanumeric room codes.
// Ambiguous glyphs (0/O, 1/I) are excluded so codes survive being read aloud.
func newCodeGen(length int) func() (string, error) {
	if length <= 0 {
		length = defaultCodeLength
	}
	return func() (string, error) {
		b := make([]byte, length)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		for i := range b {
			b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
		}
		return string(b), nil
	}
}

// NormalizeID upper-cases and trims a user-typed room code.
func NormalizeID(id string) string { return strings.ToUpper(strings.TrimSpace(id)) }
