package token

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubChecker scripts TokenActive responses
type stubChecker struct {
	calls   int
	results []bool
	err     error
}

func (s *stubChecker) TokenActive(ctx context.Context, token string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	if s.calls <= len(s.results) {
		return s.results[s.calls-1], nil
	}
	return false, nil
}

func TestGenerateFormat(t *testing.T) {
	gen := NewGenerator(&stubChecker{})

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok, err := gen.Generate(context.Background())

		assert.NoError(t, err)
		assert.Len(t, tok, EncodedLength)
		assert.True(t, IsWellFormed(tok), "token %q is not 64 lowercase hex chars", tok)
		assert.False(t, seen[tok], "token %q generated twice", tok)
		seen[tok] = true
	}
}

func TestGenerateRetriesOnCollision(t *testing.T) {
	checker := &stubChecker{results: []bool{true, true, false}}
	gen := NewGenerator(checker)

	tok, err := gen.Generate(context.Background())

	assert.NoError(t, err)
	assert.True(t, IsWellFormed(tok))
	assert.Equal(t, 3, checker.calls)
}

func TestGenerateExhaustsRetryBudget(t *testing.T) {
	checker := &stubChecker{results: []bool{true, true, true, true, true}}
	gen := NewGenerator(checker)

	tok, err := gen.Generate(context.Background())

	assert.Error(t, err)
	assert.Empty(t, tok)
	assert.Equal(t, maxAttempts, checker.calls)
}

func TestGenerateCheckerError(t *testing.T) {
	checker := &stubChecker{err: errors.New("db down")}
	gen := NewGenerator(checker)

	_, err := gen.Generate(context.Background())

	assert.Error(t, err)
	assert.Equal(t, 1, checker.calls)
}

func TestIsWellFormed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid token", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", true},
		{"uppercase hex", "0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF", false},
		{"too short", "0123456789abcdef", false},
		{"too long", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0", false},
		{"non-hex characters", "zzzz456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", false},
		{"empty", "", false},
		{"sql injection attempt", "' OR '1'='1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWellFormed(tt.input))
		})
	}
}
