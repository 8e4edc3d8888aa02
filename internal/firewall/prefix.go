package firewall

import (
	"net"
	"strings"
)

// ParsePrefix parses an IPv4/IPv6 CIDR prefix, accepting a bare address as
// a /32 (v4) or /128 (v6) prefix.
func ParsePrefix(s string) (*net.IPNet, error) {
	if !strings.Contains(s, "/") {
		ip := net.ParseIP(s)
		if ip == nil {
			return nil, &net.ParseError{Type: "IP address", Text: s}
		}
		if ip.To4() != nil {
			s += "/32"
		} else {
			s += "/128"
		}
	}
	_, ipNet, err := net.ParseCIDR(s)
	if err != nil {
		return nil, err
	}
	return ipNet, nil
}
