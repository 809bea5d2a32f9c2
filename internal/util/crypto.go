package util

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// 64 url-safe symbols, 6 bits per character. Tokens sit in path segments unescaped.
const tokenAlphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func GenerateNChar(n int) (string, error) {
	id, err := gonanoid.Generate(tokenAlphabet, n)
	if err != nil {
		return "", err
	}
	return id, nil
}

// IsNChar reports whether s could have come from GenerateNChar(n).
func IsNChar(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(tokenAlphabet, r) {
			return false
		}
	}
	return true
}
