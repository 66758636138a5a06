// Package iputil parses client addresses and decides which of them may be
// forwarded to bidders.
package iputil

import (
	"net"
	"strings"
)

// IPVersion is the numerical version of an IP address.
type IPVersion int

const (
	IPvUnknown IPVersion = 0
	IPv4       IPVersion = 4
	IPv6       IPVersion = 6
)

// ParseIP parses v as an ip address returning the result and version, or nil and unknown if invalid.
// IPv4-mapped IPv6 literals such as "::ffff:1.2.3.4" keep IPv6 as their version.
func ParseIP(v string) (net.IP, IPVersion) {
	ip := net.ParseIP(v)
	switch {
	case ip == nil:
		return nil, IPvUnknown
	case ip.To4() != nil && !strings.Contains(v, ":"):
		return ip, IPv4
	default:
		return ip, IPv6
	}
}

type IPValidator interface {
	IsValid(ip net.IP, ver IPVersion) bool
}

// ValidatorFunc adapts a plain function to IPValidator.
type ValidatorFunc func(ip net.IP, ver IPVersion) bool

func (f ValidatorFunc) IsValid(ip net.IP, ver IPVersion) bool {
	return f(ip, ver)
}

// PublicIPValidator accepts addresses outside every configured private network.
type PublicIPValidator struct {
	ipv4Private []net.IPNet
	ipv6Private []net.IPNet
}

func NewPublicIPValidator(ipv4Private, ipv6Private []net.IPNet) PublicIPValidator {
	return PublicIPValidator{ipv4Private: ipv4Private, ipv6Private: ipv6Private}
}

func (v PublicIPValidator) IsValid(ip net.IP, ver IPVersion) bool {
	switch ver {
	case IPv4:
		return !containedIn(ip, v.ipv4Private)
	case IPv6:
		return !containedIn(ip, v.ipv6Private)
	}
	return false
}

func containedIn(ip net.IP, networks []net.IPNet) bool {
	for _, network := range networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
