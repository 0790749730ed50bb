package slurptun

import "fmt"

// Network is the transport kind of a session.
type Network int

const (
	// NetworkTCP is a tcp session.
	NetworkTCP Network = iota
	// NetworkUDP is a udp session.
	NetworkUDP
)

func (n Network) String() string {
	switch n {
	case NetworkTCP:
		return "tcp"
	case NetworkUDP:
		return "udp"
	default:
		return fmt.Sprintf("network(%d)", int(n))
	}
}

// Session identifies one logical proxied flow. It is created fresh per accepted tcp connection
// (or once for the whole multiplexed udp flow bundle), handed to the dispatcher, and never
// retained by slurptun afterward. A session whose destination was produced by a synthetic
// (fake-ip) address always has that destination replaced with the mapped hostname before
// dispatch -- sessions never leave slurptun with an unresolved synthetic destination.
type Session struct {
	Network     Network
	Source      Endpoint
	Destination Endpoint
}

func (s Session) String() string {
	return fmt.Sprintf("%s %s -> %s", s.Network, s.Source, s.Destination)
}
