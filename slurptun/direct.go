package slurptun

import (
	"io"
	"log"
	"net"
	"sync"
	"time"
)

// DirectDispatcher relays every dispatched session straight to its destination over the host
// network -- no rules, no upstream proxies. It is the default dispatcher so the binary works as
// a standalone tun-to-direct proxy out of the box.
type DirectDispatcher struct {
	dialTimeout time.Duration
}

func NewDirectDispatcher() *DirectDispatcher {
	return &DirectDispatcher{
		dialTimeout: DialTimeout,
	}
}

// DispatchStream dials the session destination and relays bytes both ways until either side
// closes.
func (d *DirectDispatcher) DispatchStream(sess Session, stream net.Conn) {
	go func() {
		upstream, err := net.DialTimeout(
			sess.Network.String(), sess.Destination.String(), d.dialTimeout,
		)
		if err != nil {
			log.Printf("encountered error dialing %s, err: %s", sess, err)

			_ = stream.Close()

			return
		}

		relay(stream, upstream)
	}()
}

// relay copies both directions, closing both conns once either direction ends.
func relay(a, b net.Conn) {
	var wg sync.WaitGroup

	wg.Add(2) //nolint:gomnd

	halve := func(dst, src net.Conn) {
		defer wg.Done()

		_, _ = io.Copy(dst, src)

		// unblock the opposite copy
		_ = dst.Close()
		_ = src.Close()
	}

	go halve(a, b)
	go halve(b, a)

	wg.Wait()
}

// DispatchDatagram drains the datagram channel, dialing one upstream udp socket per
// (source, destination) pair and relaying replies back.
func (d *DirectDispatcher) DispatchDatagram(_ Session, conn DatagramConn) {
	go func() {
		flows := map[string]net.Conn{}

		defer func() {
			for _, upstream := range flows {
				_ = upstream.Close()
			}

			_ = conn.Close()
		}()

		for {
			pkt, ok := conn.ReadPacket()
			if !ok {
				return
			}

			key := pkt.Source.String() + "|" + pkt.Destination.String()

			upstream, exists := flows[key]
			if !exists {
				var err error

				upstream, err = net.DialTimeout(
					NetworkUDP.String(), pkt.Destination.String(), d.dialTimeout,
				)
				if err != nil {
					log.Printf(
						"encountered error dialing udp %s, err: %s", pkt.Destination, err,
					)

					continue
				}

				flows[key] = upstream

				go relayReplies(upstream, pkt.Destination, pkt.Source, conn)
			}

			_, err := upstream.Write(pkt.Data)
			if err != nil {
				log.Printf("encountered error writing udp packet to %s, err: %s", pkt.Destination, err)
			}
		}
	}()
}

// relayReplies reads replies from one upstream udp socket and writes them back through the
// tunnel with the origin as the packet source.
func relayReplies(upstream net.Conn, origin, client Endpoint, conn DatagramConn) {
	for {
		data := make(Bytes, DefaultMTU)

		readN, err := upstream.Read(data)
		if err != nil {
			return
		}

		err = conn.WritePacket(Packet{Data: data[:readN], Source: origin, Destination: client})
		if err != nil {
			return
		}
	}
}
