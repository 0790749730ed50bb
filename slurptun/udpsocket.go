package slurptun

import (
	"fmt"
	"log"
	"net/netip"
	"sync"

	"gvisor.dev/gvisor/pkg/tcpip/adapters/gonet"
	"gvisor.dev/gvisor/pkg/tcpip/transport/udp"
	"gvisor.dev/gvisor/pkg/waiter"
)

// udpFlowKey identifies one udp flow through the tunnel -- the client behind the tun and the
// origin it is talking to.
type udpFlowKey struct {
	client netip.AddrPort
	origin netip.AddrPort
}

// udpDatagram is one datagram read off the stack, tagged with its flow endpoints.
type udpDatagram struct {
	data Bytes
	src  Endpoint
	dst  Endpoint
}

// udpSocket multiplexes every udp flow traversing the tunnel into a single recv stream and a
// single sendTo entrypoint. Per-flow endpoints are kept internally so replies can be written
// back on the flow the client opened.
type udpSocket struct {
	recvChan chan udpDatagram

	mu    sync.Mutex
	flows map[udpFlowKey]*gonet.UDPConn

	closed    chan struct{}
	closeOnce sync.Once
}

func newUDPSocket(backlog int) *udpSocket {
	return &udpSocket{
		recvChan: make(chan udpDatagram, backlog),
		flows:    map[udpFlowKey]*gonet.UDPConn{},
		closed:   make(chan struct{}),
	}
}

// handleFlow is the udp forwarder callback -- it fires once per new (client, origin) pair and
// registers a connected endpoint for that flow. The request is always consumed, even when
// endpoint creation fails.
//
// TODO: expire flows that have been idle for a while; right now they live until the client
// resets them or the socket closes.
func (u *udpSocket) handleFlow(r *udp.ForwarderRequest) bool {
	fid := r.ID()

	var wq waiter.Queue

	ep, tcpipErr := r.CreateEndpoint(&wq)
	if tcpipErr != nil {
		log.Printf(
			"encountered error creating endpoint for udp flow %s:%d -> %s:%d, err: %s",
			fid.RemoteAddress, fid.RemotePort, fid.LocalAddress, fid.LocalPort, tcpipErr,
		)

		return true
	}

	conn := gonet.NewUDPConn(&wq, ep)

	src := endpointFromTCPIP(fid.RemoteAddress, fid.RemotePort)
	dst := endpointFromTCPIP(fid.LocalAddress, fid.LocalPort)

	key := udpFlowKey{client: src.addrPort(), origin: dst.addrPort()}

	u.mu.Lock()

	prev, exists := u.flows[key]
	if exists {
		_ = prev.Close()
	}

	u.flows[key] = conn

	u.mu.Unlock()

	go u.readFlow(key, conn, src, dst)

	return true
}

// readFlow shovels datagrams from one flow into the shared recv stream until the flow dies.
func (u *udpSocket) readFlow(key udpFlowKey, conn *gonet.UDPConn, src, dst Endpoint) {
	for {
		data := make(Bytes, DefaultMTU)

		readN, err := conn.Read(data)
		if err != nil {
			u.dropFlow(key, conn)

			return
		}

		select {
		case u.recvChan <- udpDatagram{data: data[:readN], src: src, dst: dst}:
		case <-u.closed:
			_ = conn.Close()

			return
		}
	}
}

func (u *udpSocket) dropFlow(key udpFlowKey, conn *gonet.UDPConn) {
	u.mu.Lock()
	defer u.mu.Unlock()

	// only remove the mapping if it is still ours -- the forwarder may have already replaced it
	if u.flows[key] == conn {
		delete(u.flows, key)
	}

	_ = conn.Close()
}

// recvFrom returns the next datagram that arrived via the tunnel; ok is false once the socket
// is closed.
func (u *udpSocket) recvFrom() (dg udpDatagram, ok bool) {
	select {
	case dg = <-u.recvChan:
		return dg, true
	case <-u.closed:
		return udpDatagram{}, false
	}
}

// sendTo writes one datagram back toward the tunnel -- src is the origin the reply appears to
// come from, dst is the client behind the tun. Fails when no live flow matches the pair.
func (u *udpSocket) sendTo(data Bytes, src, dst Endpoint) error {
	key := udpFlowKey{client: dst.addrPort(), origin: src.addrPort()}

	u.mu.Lock()
	conn := u.flows[key]
	u.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("%w: no udp flow for %s -> %s", ErrNetstack, src, dst)
	}

	_, err := conn.Write(data)
	if err != nil {
		return fmt.Errorf("%w: failed writing udp datagram for %s -> %s: %s", ErrNetstack, src, dst, err)
	}

	return nil
}

func (u *udpSocket) close() {
	u.closeOnce.Do(func() {
		close(u.closed)

		u.mu.Lock()
		defer u.mu.Unlock()

		for key, conn := range u.flows {
			_ = conn.Close()

			delete(u.flows, key)
		}
	})
}
