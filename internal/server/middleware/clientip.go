package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKeyIP string

// ClientIPKey is the context key for the resolved client address.
const ClientIPKey contextKeyIP = "client_ip"

// ClientIPExtractor resolves the real client address, honoring
// X-Forwarded-For only when the direct peer is a trusted proxy. With no
// trusted proxies configured, RemoteAddr is always used, which prevents
// address spoofing against the key allowlists.
type ClientIPExtractor struct {
	trustedCIDRs []*net.IPNet
}

// NewClientIPExtractor builds an extractor from the configured trusted
// proxy list. Entries may be single addresses or CIDR ranges; invalid
// entries are skipped.
func NewClientIPExtractor(trustedProxies []string) *ClientIPExtractor {
	cidrs := make([]*net.IPNet, 0, len(trustedProxies))
	for _, proxy := range trustedProxies {
		_, cidr, err := net.ParseCIDR(proxy)
		if err != nil {
			ip := net.ParseIP(proxy)
			if ip == nil {
				continue
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			cidr = &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
		}
		cidrs = append(cidrs, cidr)
	}
	return &ClientIPExtractor{trustedCIDRs: cidrs}
}

// Extract returns the client address for the request. When the peer is a
// trusted proxy, X-Forwarded-For is walked right to left and the first
// untrusted hop wins.
func (e *ClientIPExtractor) Extract(r *http.Request) string {
	remoteIP := stripPort(r.RemoteAddr)

	if len(e.trustedCIDRs) == 0 || !e.isTrusted(remoteIP) {
		return remoteIP
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return remoteIP
	}

	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !e.isTrusted(hop) {
			return hop
		}
	}
	return remoteIP
}

func (e *ClientIPExtractor) isTrusted(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range e.trustedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// ClientIP resolves the client address once and stores it on the context
// for the auth middleware and the handlers.
func ClientIP(extractor *ClientIPExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ClientIPKey, extractor.Extract(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIP extracts the resolved client address from the context,
// falling back to RemoteAddr when the middleware did not run.
func GetClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ClientIPKey).(string); ok {
		return ip
	}
	return stripPort(r.RemoteAddr)
}
