package slurptun

import "log"

// datagramSendHalf is the tunnel-bound write half of the stack's udp socket.
type datagramSendHalf interface {
	sendTo(data Bytes, src, dst Endpoint) error
}

// datagramRecvHalf is the tunnel-origin read half of the stack's udp socket.
type datagramRecvHalf interface {
	recvFrom() (dg udpDatagram, ok bool)
}

// writeDatagrams drains packets the dispatcher wrote and pushes them into the stack. A hostname
// source is translated back to its synthetic (fake-ip) address first -- the stack only speaks
// concrete addresses -- and a packet whose hostname has no mapping is dropped with a log. Send
// failures are logged and the loop keeps draining.
func writeDatagrams(conn *TunDatagram, send datagramSendHalf, resolver Resolver) {
	for {
		pkt, ok := conn.outbound()
		if !ok {
			return
		}

		src := pkt.Source

		if src.IsHostname() {
			ip, found := resolver.LookupFakeIP(src.Host)
			if !found {
				log.Printf(
					"failed resolving synthetic address for host %q, dropping udp packet",
					src.Host,
				)

				continue
			}

			src = IPEndpoint(ip, src.Port)
		}

		if pkt.Destination.IsHostname() {
			log.Printf(
				"udp packet destination %s is a hostname, dropping it", pkt.Destination,
			)

			continue
		}

		err := send.sendTo(pkt.Data, src, pkt.Destination)
		if err != nil {
			log.Printf("encountered error sending udp packet toward tun, err: %s", err)
		}
	}
}

// readDatagrams drains datagrams arriving via the tunnel and delivers them to the dispatcher's
// side of the channel. Delivery failures are logged and the loop keeps draining so the stack's
// socket never backs up behind a dead dispatcher.
func readDatagrams(recv datagramRecvHalf, conn *TunDatagram) {
	for {
		dg, ok := recv.recvFrom()
		if !ok {
			return
		}

		err := conn.deliver(Packet{Data: dg.data, Source: dg.src, Destination: dg.dst})
		if err != nil {
			log.Printf("failed delivering udp packet to dispatcher, err: %s", err)
		}
	}
}
