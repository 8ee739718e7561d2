package http

import (
	"errors"
	"strings"
)

// errInvalidParam marks malformed query or body values.
var errInvalidParam = errors.New("invalid parameter")

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}
