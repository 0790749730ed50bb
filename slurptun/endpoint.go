package slurptun

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// Endpoint is one end of a proxied flow -- either a concrete ip and port, or a hostname and port
// when the address was recovered from a synthetic (fake-ip) mapping. Exactly one of IP/Host is
// ever set.
type Endpoint struct {
	IP   net.IP
	Host string
	Port uint16
}

// IPEndpoint returns a concrete Endpoint from an ip and port.
func IPEndpoint(ip net.IP, port uint16) Endpoint {
	return Endpoint{IP: ip, Port: port}
}

// HostEndpoint returns a hostname Endpoint from a host and port.
func HostEndpoint(host string, port uint16) Endpoint {
	return Endpoint{Host: host, Port: port}
}

// EndpointFromAddr returns a concrete Endpoint from a net.Addr -- only tcp and udp addr flavors
// are understood, anything else yields a zero Endpoint.
func EndpointFromAddr(addr net.Addr) Endpoint {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return Endpoint{IP: a.IP, Port: uint16(a.Port)} //nolint:gosec
	case *net.UDPAddr:
		return Endpoint{IP: a.IP, Port: uint16(a.Port)} //nolint:gosec
	default:
		return Endpoint{}
	}
}

// IsHostname returns true when the endpoint carries a hostname rather than a concrete ip.
func (e Endpoint) IsHostname() bool {
	return e.Host != ""
}

// IsZero returns true for the zero Endpoint -- udp flow-bundle sessions leave their endpoints as
// defaults since each packet carries its own.
func (e Endpoint) IsZero() bool {
	return e.Host == "" && e.IP == nil && e.Port == 0
}

// addrPort returns the concrete endpoint in canonical netip form so v4 and v4-in-v6 renderings
// of the same address compare equal. Hostname endpoints yield an invalid addr.
func (e Endpoint) addrPort() netip.AddrPort {
	addr, _ := netip.AddrFromSlice(e.IP)

	return netip.AddrPortFrom(addr.Unmap(), e.Port)
}

// UDPAddr returns the endpoint as a *net.UDPAddr -- only valid for concrete endpoints.
func (e Endpoint) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: e.IP, Port: int(e.Port)}
}

func (e Endpoint) String() string {
	if e.IsHostname() {
		return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
	}

	if e.IP == nil {
		return fmt.Sprintf(":%d", e.Port)
	}

	return net.JoinHostPort(e.IP.String(), strconv.Itoa(int(e.Port)))
}
