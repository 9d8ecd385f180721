package gate

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultAllowList is the set of paths reachable without a credential.
var DefaultAllowList = []string{
	"/images/**",
	"/files/**",
	"/doc.html",
	"/favicon.ico",
	"/webjars/**",
	"/swagger-resources/**",
	"/v3/**",
	"/swagger-ui/**",
	"/swagger-ui.html",
	"/ws/**",
}

// AllowList matches request paths against glob patterns. "*" stays within a
// path segment, "**" crosses segments.
type AllowList struct {
	patterns []glob.Glob
}

// NewAllowList compiles patterns. Blank patterns are skipped.
func NewAllowList(patterns []string) (*AllowList, error) {
	a := &AllowList{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("allow-list pattern %q: %w", p, err)
		}
		a.patterns = append(a.patterns, g)
	}
	return a, nil
}

// Match reports whether path is on the list.
func (a *AllowList) Match(path string) bool {
	if a == nil {
		return false
	}
	for _, g := range a.patterns {
		if g.Match(path) {
			return true
		}
	}
	return false
}
