package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

const (
	// ByteLength is the entropy drawn per token (256 bits)
	ByteLength = 32

	// EncodedLength is the hex-encoded token length
	EncodedLength = 64

	// maxAttempts bounds collision regeneration
	maxAttempts = 5
)

var wellFormed = regexp.MustCompile(`^[a-f0-9]{64}$`)

// IsWellFormed reports whether s is structurally a meeting token: exactly 64
// lowercase hex characters. Callers use this to reject garbage before any
// storage lookup.
func IsWellFormed(s string) bool {
	return wellFormed.MatchString(s)
}

// ActiveChecker reports whether a token is already held by a still-valid
// meeting (active and unexpired)
type ActiveChecker interface {
	TokenActive(ctx context.Context, token string) (bool, error)
}

// Generator produces unique high-entropy meeting tokens
type Generator struct {
	checker ActiveChecker
}

// NewGenerator creates a token generator backed by the given uniqueness check
func NewGenerator(checker ActiveChecker) *Generator {
	return &Generator{checker: checker}
}

// Generate draws 32 random bytes and hex-encodes them, retrying on collision
// with a still-valid token. Collisions are astronomically unlikely at 256
// bits, so a handful of attempts is plenty; an exhausted retry budget or a
// failed entropy read is an environment problem, not a caller error.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		buf := make([]byte, ByteLength)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("entropy source unavailable: %w", err)
		}

		candidate := hex.EncodeToString(buf)

		inUse, err := g.checker.TokenActive(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check token uniqueness: %w", err)
		}
		if !inUse {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique token after %d attempts", maxAttempts)
}
