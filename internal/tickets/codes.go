package tickets

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

const codePrefix = "TKT-"

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateCode returns a new opaque ticket code such as TKT-9X3KQ7M2P4L6A8B5.
// 10 random bytes give 16 base32 characters, enough that collisions are
// handled by the unique index rather than avoided up front.
func GenerateCode() (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return codePrefix + codeEncoding.EncodeToString(buf), nil
}

// NormalizeCode uppercases and trims a scanned code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
