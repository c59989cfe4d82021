package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"
)

// ClientIPExtractor resolves the address of the caller. X-Forwarded-For
// is honored only when the direct peer is a trusted proxy.
type ClientIPExtractor struct {
	trusted []netip.Prefix
}

// NewClientIPExtractor trusts the given CIDRs and single addresses.
// Entries that parse as neither are skipped; config validation reports
// them.
func NewClientIPExtractor(trustedProxies []string) *ClientIPExtractor {
	e := &ClientIPExtractor{}
	for _, entry := range trustedProxies {
		if p, err := netip.ParsePrefix(entry); err == nil {
			e.trusted = append(e.trusted, p.Masked())
		} else if a, err := netip.ParseAddr(entry); err == nil {
			e.trusted = append(e.trusted, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
		}
	}
	return e
}

// Extract returns the client address of r without a port. Behind trusted
// proxies X-Forwarded-For is walked right to left and the first
// untrusted hop wins.
func (e *ClientIPExtractor) Extract(r *http.Request) string {
	peer := hostOnly(r.RemoteAddr)
	if !e.trusts(peer) {
		return peer
	}

	hops := strings.Split(r.Header.Get(HeaderXForwardedFor), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		if hop := strings.TrimSpace(hops[i]); hop != "" && !e.trusts(hop) {
			return hop
		}
	}
	return peer
}

func (e *ClientIPExtractor) trusts(addr string) bool {
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range e.trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

var clientIPs atomic.Pointer[ClientIPExtractor]

func init() {
	clientIPs.Store(&ClientIPExtractor{})
}

// SetGlobalIPExtractor replaces the extractor used by the logging and
// rate limiting middleware. nil is ignored.
func SetGlobalIPExtractor(e *ClientIPExtractor) {
	if e != nil {
		clientIPs.Store(e)
	}
}

func getClientIP(r *http.Request) string {
	return clientIPs.Load().Extract(r)
}
