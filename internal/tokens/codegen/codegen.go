package codegen

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// CodeLength is the fixed length of every token code.
const CodeLength = 12

// MaxAttempts bounds the insert-retry loop at the storage layer when a
// generated code collides with an existing one.
const MaxAttempts = 5

// Generator produces opaque alphanumeric token codes from a
// cryptographically strong random source. Codes carry no embedded
// structure and are not derivable from event or house IDs.
type Generator struct {
	length int
}

func New() *Generator {
	return &Generator{length: CodeLength}
}

// NewCode returns a fresh random code of the configured length. Random bytes
// are base64-encoded, stripped down to alphanumerics and truncated; the loop
// tops up until enough alphanumeric characters have accumulated.
func (g *Generator) NewCode() (string, error) {
	var b strings.Builder
	for b.Len() < g.length {
		raw := make([]byte, (g.length*3+3)/4)
		if _, err := rand.Read(raw); err != nil {
			return "", fmt.Errorf("codegen: read random: %w", err)
		}
		for _, c := range base64.StdEncoding.EncodeToString(raw) {
			if isAlphanumeric(c) {
				b.WriteRune(c)
				if b.Len() == g.length {
					break
				}
			}
		}
	}
	return b.String(), nil
}

func isAlphanumeric(c rune) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
