package slurptun

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	"gvisor.dev/gvisor/pkg/buffer"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/adapters/gonet"
	"gvisor.dev/gvisor/pkg/tcpip/header"
	"gvisor.dev/gvisor/pkg/tcpip/link/channel"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv6"
	"gvisor.dev/gvisor/pkg/tcpip/stack"
	"gvisor.dev/gvisor/pkg/tcpip/transport/tcp"
	"gvisor.dev/gvisor/pkg/tcpip/transport/udp"
	"gvisor.dev/gvisor/pkg/waiter"
)

const (
	nicID tcpip.NICID = 1

	// linkQueueDepth is the channel link endpoint's outbound frame queue length.
	linkQueueDepth = 512
)

// acceptedConn is one tcp connection accepted by the netstack along with the flow's endpoints --
// src is the client behind the tun, dst is the destination it dialed.
type acceptedConn struct {
	stream net.Conn
	src    Endpoint
	dst    Endpoint
}

// netStack wraps the in-process tcp/ip stack. slurptun treats it as a black box: raw ip frames
// go in and out via writeFrame/readFrame, accepted tcp connections come out of accept, and all
// udp flows are multiplexed through the single udp socket.
type netStack struct {
	stack *stack.Stack
	link  *channel.Endpoint

	acceptChan chan acceptedConn
	udp        *udpSocket

	ctx       context.Context
	ctxCancel context.CancelFunc
	closed    chan struct{}
	closeOnce sync.Once
}

// newNetStack builds the stack with the given policy backlogs -- tcpBacklog caps un-accepted
// inbound tcp connections, udpBacklog caps buffered inbound udp datagrams.
func newNetStack(tcpBacklog, udpBacklog int) (*netStack, error) {
	ctx, ctxCancel := context.WithCancel(context.Background())

	ns := &netStack{
		link:       channel.New(linkQueueDepth, DefaultMTU, ""),
		acceptChan: make(chan acceptedConn, tcpBacklog),
		udp:        newUDPSocket(udpBacklog),
		ctx:        ctx,
		ctxCancel:  ctxCancel,
		closed:     make(chan struct{}),
	}

	ns.stack = stack.New(stack.Options{
		NetworkProtocols:   []stack.NetworkProtocolFactory{ipv4.NewProtocol, ipv6.NewProtocol},
		TransportProtocols: []stack.TransportProtocolFactory{tcp.NewProtocol, udp.NewProtocol},
	})

	tcpipErr := ns.stack.CreateNIC(nicID, ns.link)
	if tcpipErr != nil {
		ctxCancel()

		return nil, fmt.Errorf("%w: failed creating nic: %s", ErrNetstack, tcpipErr)
	}

	// the tun carries traffic for arbitrary destinations, so the nic must accept packets for any
	// address and be able to answer from any address
	tcpipErr = ns.stack.SetPromiscuousMode(nicID, true)
	if tcpipErr != nil {
		ctxCancel()

		return nil, fmt.Errorf("%w: failed setting promiscuous mode: %s", ErrNetstack, tcpipErr)
	}

	tcpipErr = ns.stack.SetSpoofing(nicID, true)
	if tcpipErr != nil {
		ctxCancel()

		return nil, fmt.Errorf("%w: failed setting spoofing: %s", ErrNetstack, tcpipErr)
	}

	ns.stack.SetRouteTable([]tcpip.Route{
		{Destination: header.IPv4EmptySubnet, NIC: nicID},
		{Destination: header.IPv6EmptySubnet, NIC: nicID},
	})

	tcpForwarder := tcp.NewForwarder(ns.stack, 0, tcpBacklog, ns.handleTCPConnect)
	ns.stack.SetTransportProtocolHandler(tcp.ProtocolNumber, tcpForwarder.HandlePacket)

	udpForwarder := udp.NewForwarder(ns.stack, ns.udp.handleFlow)
	ns.stack.SetTransportProtocolHandler(udp.ProtocolNumber, udpForwarder.HandlePacket)

	return ns, nil
}

// handleTCPConnect is the tcp forwarder callback -- it completes the handshake and queues the
// resulting connection for accept.
func (ns *netStack) handleTCPConnect(r *tcp.ForwarderRequest) {
	fid := r.ID()

	var wq waiter.Queue

	ep, tcpipErr := r.CreateEndpoint(&wq)
	if tcpipErr != nil {
		log.Printf(
			"encountered error creating endpoint for tcp flow %s:%d -> %s:%d, err: %s",
			fid.RemoteAddress, fid.RemotePort, fid.LocalAddress, fid.LocalPort, tcpipErr,
		)

		r.Complete(true)

		return
	}

	r.Complete(false)

	conn := acceptedConn{
		stream: gonet.NewTCPConn(&wq, ep),
		src:    endpointFromTCPIP(fid.RemoteAddress, fid.RemotePort),
		dst:    endpointFromTCPIP(fid.LocalAddress, fid.LocalPort),
	}

	select {
	case ns.acceptChan <- conn:
	case <-ns.closed:
		_ = conn.stream.Close()
	}
}

// accept returns the next accepted tcp connection; ok is false once the stack is closed.
func (ns *netStack) accept() (conn acceptedConn, ok bool) {
	select {
	case conn = <-ns.acceptChan:
		return conn, true
	case <-ns.closed:
		return acceptedConn{}, false
	}
}

// writeFrame hands one raw ip frame read from the device to the stack. Non-ip frames are
// dropped.
func (ns *netStack) writeFrame(frame Bytes) error {
	var proto tcpip.NetworkProtocolNumber

	switch header.IPVersion(frame) {
	case header.IPv4Version:
		proto = header.IPv4ProtocolNumber
	case header.IPv6Version:
		proto = header.IPv6ProtocolNumber
	default:
		return nil
	}

	pkt := stack.NewPacketBuffer(stack.PacketBufferOptions{
		Payload: buffer.MakeWithData(append(Bytes(nil), frame...)),
	})

	ns.link.InjectInbound(proto, pkt)

	pkt.DecRef()

	return nil
}

// readFrame returns the next outbound frame from the stack; ok is false once the stack is
// closed. Each returned slice is one whole ip frame.
func (ns *netStack) readFrame() (frame Bytes, ok bool) {
	pkt := ns.link.ReadContext(ns.ctx)
	if pkt == nil {
		return nil, false
	}

	frame = append(Bytes(nil), pkt.ToView().AsSlice()...)

	pkt.DecRef()

	return frame, true
}

// close tears the stack down; pending and future accept/readFrame calls return not-ok.
func (ns *netStack) close() {
	ns.closeOnce.Do(func() {
		close(ns.closed)
		ns.ctxCancel()
		ns.udp.close()
		ns.stack.Close()
	})
}

func endpointFromTCPIP(addr tcpip.Address, port uint16) Endpoint {
	return Endpoint{IP: net.IP(addr.AsSlice()), Port: port}
}
