package privacy

import (
	"net"
	"strings"
)

// Gate applies the configured privacy policy before anything is captured.
type Gate struct {
	anonymizeIP bool
	respectDNT  bool
}

func NewGate(anonymizeIP, respectDNT bool) *Gate {
	return &Gate{
		anonymizeIP: anonymizeIP,
		respectDNT:  respectDNT,
	}
}

// ShouldCapture reports whether capture may proceed. It is suppressed only
// when the request signals Do-Not-Track and the policy says to honor it.
func (g *Gate) ShouldCapture(dntHeaderPresent bool) bool {
	return !(dntHeaderPresent && g.respectDNT)
}

// ApplyIPPolicy anonymizes the address when the policy asks for it.
func (g *Gate) ApplyIPPolicy(ip string) string {
	if !g.anonymizeIP {
		return ip
	}
	return AnonymizeIP(ip)
}

// AnonymizeIP strips the host-identifying bits from an address: the last
// octet of an IPv4 address, the last 80 bits of an IPv6 address (applied to
// the expanded form, so compressed "::" inputs anonymize consistently).
// Malformed input passes through unchanged; unlike bot detection this is
// policy, not validation.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip
	}

	if v4 := parsed.To4(); v4 != nil && !strings.Contains(ip, ":") {
		masked := v4.Mask(net.CIDRMask(24, 32))
		return masked.String()
	}

	v6 := parsed.To16()
	if v6 == nil {
		return ip
	}
	masked := v6.Mask(net.CIDRMask(48, 128))
	return masked.String()
}
