package certificates

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength   = 12
)

// Largest multiple of len(CodeAlphabet) that fits in a byte. Bytes at or
// above it are discarded so every symbol is equally likely.
const codeRejectAbove = 256 - 256%len(CodeAlphabet)

// CodeGenerator returns a candidate verification code.
type CodeGenerator func() (string, error)

// NewVerificationCode draws CodeLength symbols from CodeAlphabet using the
// operating system CSPRNG.
func NewVerificationCode() (string, error) {
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)
	for len(code) < CodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= codeRejectAbove {
				continue
			}
			code = append(code, CodeAlphabet[int(b)%len(CodeAlphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code), nil
}

// IsVerificationCode reports whether s has the shape of a generated code.
func IsVerificationCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(CodeAlphabet, rune(s[i])) {
			return false
		}
	}
	return true
}
