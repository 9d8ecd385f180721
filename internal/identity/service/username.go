package service

import (
	"strings"

	"github.com/google/uuid"
)

const usernameDigits = 9

// Username prefixes for generated accounts.
const (
	UsernamePrefixQQ    = "qq_"
	UsernamePrefixEmail = "m0_"
)

// GenerateUsername returns prefix followed by nine random digits taken from UUIDs.
func GenerateUsername(prefix string) string {
	var b strings.Builder
	b.WriteString(prefix)
	n := 0
	for n < usernameDigits {
		for _, r := range uuid.New().String() {
			if r < '0' || r > '9' {
				continue
			}
			b.WriteRune(r)
			n++
			if n == usernameDigits {
				break
			}
		}
	}
	return b.String()
}
