package privacy

import (
	"net"
	"testing"
)

func TestShouldCapture(t *testing.T) {
	tests := []struct {
		name       string
		dntPresent bool
		respectDNT bool
		want       bool
	}{
		{"dnt set and respected", true, true, false},
		{"dnt set but ignored", true, false, true},
		{"no dnt, respect configured", false, true, true},
		{"no dnt, respect off", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(false, tt.respectDNT)
			if got := g.ShouldCapture(tt.dntPresent); got != tt.want {
				t.Errorf("ShouldCapture(%v) = %v, want %v", tt.dntPresent, got, tt.want)
			}
		})
	}
}

func TestAnonymizeIPv4(t *testing.T) {
	tests := []struct {
		original string
		want     string
	}{
		{"192.168.1.100", "192.168.1.0"},
		{"10.0.0.255", "10.0.0.0"},
		{"203.0.113.7", "203.0.113.0"},
		{"8.8.8.8", "8.8.8.0"},
	}

	for _, tt := range tests {
		got := AnonymizeIP(tt.original)
		if got != tt.want {
			t.Errorf("AnonymizeIP(%q) = %q, want %q", tt.original, got, tt.want)
		}
		if net.ParseIP(got).To4() == nil {
			t.Errorf("anonymized %q is not a valid IPv4 address", got)
		}
	}
}

func TestAnonymizeIPv6(t *testing.T) {
	tests := []struct {
		original string
		want     string
	}{
		{"2001:db8:85a3:8d3:1319:8a2e:370:7348", "2001:db8:85a3::"},
		{"2001:db8::ff00:42:8329", "2001:db8::"},
		// Compressed input anonymizes against the expanded address.
		{"fe80::1", "fe80::"},
		{"::1", "::"},
	}

	for _, tt := range tests {
		if got := AnonymizeIP(tt.original); got != tt.want {
			t.Errorf("AnonymizeIP(%q) = %q, want %q", tt.original, got, tt.want)
		}
	}
}

func TestAnonymizeMalformedIPPassesThrough(t *testing.T) {
	for _, ip := range []string{"", "not-an-ip", "999.999.999.999", "almost:ipv6"} {
		if got := AnonymizeIP(ip); got != ip {
			t.Errorf("AnonymizeIP(%q) = %q, want input unchanged", ip, got)
		}
	}
}

func TestApplyIPPolicy(t *testing.T) {
	enabled := NewGate(true, false)
	disabled := NewGate(false, false)

	if got := enabled.ApplyIPPolicy("192.168.1.100"); got != "192.168.1.0" {
		t.Errorf("expected anonymized address, got %q", got)
	}
	if got := disabled.ApplyIPPolicy("192.168.1.100"); got != "192.168.1.100" {
		t.Errorf("expected untouched address, got %q", got)
	}
}
