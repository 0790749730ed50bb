package slurptun

import "net"

// Dispatcher is the external component that takes a session plus its live transport and applies
// routing/proxying to it. slurptun hands sessions off and never looks back -- the dispatcher owns
// the stream or datagram conn from the moment of dispatch.
type Dispatcher interface {
	// DispatchStream takes ownership of an accepted tcp connection.
	DispatchStream(sess Session, stream net.Conn)
	// DispatchDatagram takes ownership of a bidirectional datagram endpoint carrying all udp
	// flows multiplexed through the tunnel -- the dispatcher demuxes by per-packet endpoints,
	// not by session identity.
	DispatchDatagram(sess Session, conn DatagramConn)
}

// Resolver is the read-only view of the dns layer's synthetic (fake-ip) mapping table. All
// methods are non-mutating and safe to call concurrently from any number of goroutines.
type Resolver interface {
	// FakeIPEnabled reports whether fake-ip translation is on at all.
	FakeIPEnabled() bool
	// IsFakeIP reports whether ip falls inside the synthetic range.
	IsFakeIP(ip net.IP) bool
	// ReverseLookup returns the hostname a synthetic ip maps to, if any.
	ReverseLookup(ip net.IP) (string, bool)
	// LookupFakeIP returns the synthetic ip allocated for host, if any.
	LookupFakeIP(host string) (net.IP, bool)
}

// DatagramConn is the bidirectional logical datagram channel handed to the dispatcher --
// ReadPacket yields traffic that arrived via the tunnel, WritePacket sends traffic back toward
// it.
type DatagramConn interface {
	// ReadPacket returns the next packet from the tunnel side; ok is false once the tunnel has
	// wound down.
	ReadPacket() (pkt Packet, ok bool)
	// WritePacket queues a packet for delivery back through the tunnel. It suspends when the
	// tunnel side is backed up and returns ErrClosed after Close.
	WritePacket(pkt Packet) error
	// Close tears the channel down; subsequent WritePacket calls fail, in-flight packets may be
	// dropped.
	Close() error
}
