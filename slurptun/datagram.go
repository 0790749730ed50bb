package slurptun

import (
	"fmt"
	"sync"
)

// TunDatagram is the logical datagram channel handed to the dispatcher. It bridges two bounded
// channels: packets arriving via the tunnel flow out through ReadPacket, packets the dispatcher
// writes flow back toward the tunnel. Either side backing up suspends the other's writer rather
// than dropping.
type TunDatagram struct {
	fromTun chan Packet
	toTun   chan Packet

	closed    chan struct{}
	closeOnce sync.Once
}

func newTunDatagram(depth int) *TunDatagram {
	return &TunDatagram{
		fromTun: make(chan Packet, depth),
		toTun:   make(chan Packet, depth),
		closed:  make(chan struct{}),
	}
}

// ReadPacket returns the next packet that arrived via the tunnel; ok is false once the channel
// is closed.
func (d *TunDatagram) ReadPacket() (pkt Packet, ok bool) {
	select {
	case pkt = <-d.fromTun:
		return pkt, true
	case <-d.closed:
		return Packet{}, false
	}
}

// WritePacket queues a packet for delivery back through the tunnel, suspending while the tunnel
// side is backed up.
func (d *TunDatagram) WritePacket(pkt Packet) error {
	select {
	case d.toTun <- pkt:
		return nil
	case <-d.closed:
		return fmt.Errorf("%w: datagram channel is closed", ErrClosed)
	}
}

// Close tears the channel down; packets still queued in either direction are dropped.
func (d *TunDatagram) Close() error {
	d.closeOnce.Do(func() {
		close(d.closed)
	})

	return nil
}

// outbound returns the next packet the dispatcher wrote; ok is false once the channel is closed
// and drained -- packets already queued at close time are still handed out. This is the
// tunnel-side read half.
func (d *TunDatagram) outbound() (pkt Packet, ok bool) {
	select {
	case pkt = <-d.toTun:
		return pkt, true
	default:
	}

	select {
	case pkt = <-d.toTun:
		return pkt, true
	case <-d.closed:
		return Packet{}, false
	}
}

// deliver queues a packet from the tunnel for the dispatcher to read. This is the tunnel-side
// write half.
func (d *TunDatagram) deliver(pkt Packet) error {
	select {
	case d.fromTun <- pkt:
		return nil
	case <-d.closed:
		return fmt.Errorf("%w: datagram channel is closed", ErrClosed)
	}
}
