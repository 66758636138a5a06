package config

import (
	"fmt"
	"net"
	"strings"
)

// RequestValidation lists the networks whose addresses are never forwarded to the
// campaign server as the user's IP.
type RequestValidation struct {
	IPv4PrivateNetworks       []string `mapstructure:"ipv4_private_networks"`
	IPv4PrivateNetworksParsed []net.IPNet

	IPv6PrivateNetworks       []string `mapstructure:"ipv6_private_networks"`
	IPv6PrivateNetworksParsed []net.IPNet
}

// Parse converts the configured networks into CIDR blocks. IPv4 problems are reported
// before IPv6 problems.
func (r *RequestValidation) Parse() error {
	var err error
	if r.IPv4PrivateNetworksParsed, err = parseNetworks(r.IPv4PrivateNetworks, "IPv4", isIPv4); err != nil {
		return err
	}
	if r.IPv6PrivateNetworksParsed, err = parseNetworks(r.IPv6PrivateNetworks, "IPv6", isIPv6); err != nil {
		return err
	}
	return nil
}

func isIPv4(ip net.IP) bool { return ip.To4() != nil }

func isIPv6(ip net.IP) bool { return ip.To4() == nil }

func parseNetworks(networks []string, version string, versionMatches func(net.IP) bool) ([]net.IPNet, error) {
	var errInvalid []string
	parsed := make([]net.IPNet, 0, len(networks))

	for _, network := range networks {
		network = strings.TrimSpace(network)
		if ip, ipNet, err := net.ParseCIDR(network); err == nil && versionMatches(ip) {
			parsed = append(parsed, *ipNet)
		} else {
			errInvalid = append(errInvalid, "'"+network+"'")
		}
	}

	if len(errInvalid) > 0 {
		return nil, fmt.Errorf("Invalid private %s network: %s", version, strings.Join(errInvalid, ","))
	}
	return parsed, nil
}
