package photo

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet intentionally drops vowels and look-alikes (0/O, 1/I) so codes
// stay shoutable across a noisy party and never spell anything rude.
const codeAlphabet = "23456789BCDFGHJKLMNPQRSTVWXZ"

const codeLength = 4

// newCode returns a random pickup code. Uniqueness is enforced by the
// repository's unique index; callers retry on collision.
func newCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating photo code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
