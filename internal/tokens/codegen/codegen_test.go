package codegen_test

import (
	"testing"

	"relief-tokens/internal/tokens/codegen"

	"github.com/stretchr/testify/assert"
)

func TestNewCodeLengthAndCharset(t *testing.T) {
	gen := codegen.New()

	for i := 0; i < 100; i++ {
		code, err := gen.NewCode()
		assert.NoError(t, err)
		assert.Len(t, code, codegen.CodeLength)
		for _, c := range code {
			ok := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
			assert.True(t, ok, "unexpected character %q in code %s", c, code)
		}
	}
}

func TestNewCodeUniqueness(t *testing.T) {
	gen := codegen.New()

	seen := make(map[string]bool)
	for i := 0; i < 5000; i++ {
		code, err := gen.NewCode()
		assert.NoError(t, err)
		assert.False(t, seen[code], "duplicate code generated: %s", code)
		seen[code] = true
	}
}
