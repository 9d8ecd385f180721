package gate

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// TrustedProxies is the set of peers allowed to report the client address in
// X-Forwarded-For or X-Real-IP. The zero value and nil trust nobody.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// NewTrustedProxies parses entries as CIDRs or single addresses. Blank
// entries are skipped.
func NewTrustedProxies(entries []string) (*TrustedProxies, error) {
	t := &TrustedProxies{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			t.prefixes = append(t.prefixes, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		a = a.Unmap()
		t.prefixes = append(t.prefixes, netip.PrefixFrom(a, a.BitLen()))
	}
	return t, nil
}

// Trusts reports whether remote, a host or host:port, is a trusted proxy.
func (t *TrustedProxies) Trusts(remote string) bool {
	if t == nil || len(t.prefixes) == 0 {
		return false
	}
	a, err := netip.ParseAddr(hostOnly(remote))
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range t.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// ClientIP picks the client address for a request that arrived from remote.
// The forwarded headers are consulted only when remote is trusted: the first
// X-Forwarded-For entry wins, then X-Real-IP. Returns "unknown" when nothing
// usable is left.
func (t *TrustedProxies) ClientIP(remote, forwardedFor, realIP string) string {
	host := hostOnly(remote)
	if t.Trusts(host) {
		if s, _, _ := strings.Cut(forwardedFor, ","); strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
		if s := strings.TrimSpace(realIP); s != "" {
			return s
		}
	}
	if host == "" {
		return "unknown"
	}
	return host
}

func hostOnly(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
