package service

import (
	"net"
	"strings"
)

// Allowlist matches client addresses against a key's allowed_ips field: a
// comma-separated list of single addresses and CIDR ranges. An empty list
// places no restriction on the key.
type Allowlist struct {
	cidrs []*net.IPNet
	empty bool
}

// ParseAllowlist parses the stored allowed_ips value. Entries that are
// neither a CIDR nor a single address are skipped; a list made entirely of
// garbage matches nothing rather than everything.
func ParseAllowlist(allowedIPs string) *Allowlist {
	trimmed := strings.TrimSpace(allowedIPs)
	if trimmed == "" {
		return &Allowlist{empty: true}
	}

	var cidrs []*net.IPNet
	for _, entry := range strings.Split(trimmed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		_, cidr, err := net.ParseCIDR(entry)
		if err != nil {
			ip := net.ParseIP(entry)
			if ip == nil {
				continue
			}
			cidr = singleIPToCIDR(ip)
		}
		cidrs = append(cidrs, cidr)
	}
	return &Allowlist{cidrs: cidrs}
}

// singleIPToCIDR converts a single address to a /32 or /128 range.
func singleIPToCIDR(ip net.IP) *net.IPNet {
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
}

// Contains reports whether the client address passes the list. An empty
// list admits every address.
func (a *Allowlist) Contains(ipStr string) bool {
	if a.empty {
		return true
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range a.cidrs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
