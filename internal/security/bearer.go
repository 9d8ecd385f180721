package security

import "strings"

// BearerToken extracts the token from an Authorization header value. The
// "Bearer " prefix is optional and case-insensitive; a bare token is accepted.
func BearerToken(header string) string {
	v := strings.TrimSpace(header)
	const prefix = "bearer "
	if len(v) >= len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
		v = strings.TrimSpace(v[len(prefix):])
	}
	return v
}
