package slurptun

import (
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// recordingSendHalf records every datagram pushed toward the tunnel.
type recordingSendHalf struct {
	mu   sync.Mutex
	sent []udpDatagram
}

func (s *recordingSendHalf) sendTo(data Bytes, src, dst Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, udpDatagram{data: data, src: src, dst: dst})

	return nil
}

func (s *recordingSendHalf) all() []udpDatagram {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]udpDatagram(nil), s.sent...)
}

// queuedRecvHalf replays a fixed set of datagrams then reports closed.
type queuedRecvHalf struct {
	queue []udpDatagram
}

func (r *queuedRecvHalf) recvFrom() (udpDatagram, bool) {
	if len(r.queue) == 0 {
		return udpDatagram{}, false
	}

	dg := r.queue[0]
	r.queue = r.queue[1:]

	return dg, true
}

func TestWriteDatagramsConcreteSource(t *testing.T) {
	conn := newTunDatagram(DatagramChannelDepth)
	send := &recordingSendHalf{}

	pkt := Packet{
		Data:        Bytes("hello"),
		Source:      IPEndpoint(net.ParseIP("1.1.1.1"), 53),
		Destination: IPEndpoint(net.ParseIP("198.18.0.1"), 40000),
	}

	assert.NoError(t, conn.WritePacket(pkt))
	assert.NoError(t, conn.Close())

	writeDatagrams(conn, send, DisabledResolver{})

	sent := send.all()

	assert.Len(t, sent, 1)
	assert.Equal(t, Bytes("hello"), sent[0].data)
	assert.Equal(t, pkt.Source, sent[0].src)
	assert.Equal(t, pkt.Destination, sent[0].dst)
}

func TestWriteDatagramsHostnameSource(t *testing.T) {
	pool := NewFakeIPPool(netip.MustParsePrefix("198.18.0.0/16"))

	fake, err := pool.Allocate("example.com")
	assert.NoError(t, err)

	conn := newTunDatagram(DatagramChannelDepth)
	send := &recordingSendHalf{}

	pkt := Packet{
		Data:        Bytes("hello"),
		Source:      HostEndpoint("example.com", 53),
		Destination: IPEndpoint(net.ParseIP("198.18.0.1"), 40000),
	}

	assert.NoError(t, conn.WritePacket(pkt))
	assert.NoError(t, conn.Close())

	writeDatagrams(conn, send, pool)

	sent := send.all()

	assert.Len(t, sent, 1)
	assert.False(t, sent[0].src.IsHostname())
	assert.True(t, sent[0].src.IP.Equal(fake))
	assert.Equal(t, uint16(53), sent[0].src.Port)
}

func TestWriteDatagramsDropsUnmappedHostname(t *testing.T) {
	pool := NewFakeIPPool(netip.MustParsePrefix("198.18.0.0/16"))

	conn := newTunDatagram(DatagramChannelDepth)
	send := &recordingSendHalf{}

	pkt := Packet{
		Data:        Bytes("hello"),
		Source:      HostEndpoint("never-allocated.example.com", 53),
		Destination: IPEndpoint(net.ParseIP("198.18.0.1"), 40000),
	}

	assert.NoError(t, conn.WritePacket(pkt))
	assert.NoError(t, conn.Close())

	writeDatagrams(conn, send, pool)

	assert.Empty(t, send.all())
}

func TestReadDatagramsWrapsEndpoints(t *testing.T) {
	conn := newTunDatagram(DatagramChannelDepth)

	src := IPEndpoint(net.ParseIP("198.18.0.1"), 40000)
	dst := IPEndpoint(net.ParseIP("198.18.0.5"), 53)

	recv := &queuedRecvHalf{
		queue: []udpDatagram{
			{data: Bytes("one"), src: src, dst: dst},
			{data: Bytes("two"), src: src, dst: dst},
		},
	}

	readDatagrams(recv, conn)

	pkt, ok := conn.ReadPacket()

	assert.True(t, ok)
	assert.Equal(t, Bytes("one"), pkt.Data)
	assert.Equal(t, src, pkt.Source)
	assert.Equal(t, dst, pkt.Destination)

	pkt, ok = conn.ReadPacket()

	assert.True(t, ok)
	assert.Equal(t, Bytes("two"), pkt.Data)
}

func TestTunDatagramClosed(t *testing.T) {
	conn := newTunDatagram(DatagramChannelDepth)

	assert.NoError(t, conn.Close())
	// closing twice is fine
	assert.NoError(t, conn.Close())

	err := conn.WritePacket(Packet{})
	assert.ErrorIs(t, err, ErrClosed)

	_, ok := conn.ReadPacket()
	assert.False(t, ok)

	_, ok = conn.outbound()
	assert.False(t, ok)

	err = conn.deliver(Packet{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTunDatagramDrainsAfterClose(t *testing.T) {
	// packets queued before Close must still reach the tunnel side, every run, regardless of
	// how the scheduler orders the ready channels
	for range 100 {
		conn := newTunDatagram(DatagramChannelDepth)

		assert.NoError(t, conn.WritePacket(Packet{Data: Bytes("one")}))
		assert.NoError(t, conn.WritePacket(Packet{Data: Bytes("two")}))
		assert.NoError(t, conn.Close())

		pkt, ok := conn.outbound()

		assert.True(t, ok)
		assert.Equal(t, Bytes("one"), pkt.Data)

		pkt, ok = conn.outbound()

		assert.True(t, ok)
		assert.Equal(t, Bytes("two"), pkt.Data)

		_, ok = conn.outbound()

		assert.False(t, ok)
	}
}

func TestTunDatagramBackpressure(t *testing.T) {
	conn := newTunDatagram(DatagramChannelDepth)

	for range DatagramChannelDepth {
		assert.NoError(t, conn.WritePacket(Packet{Data: Bytes("x")}))
	}

	// the channel is full now, so the next write suspends until the tunnel side drains one
	unblocked := make(chan struct{})

	go func() {
		_ = conn.WritePacket(Packet{Data: Bytes("overflow")})

		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("write should have suspended on a full channel")
	case <-time.After(50 * time.Millisecond):
	}

	_, ok := conn.outbound()
	assert.True(t, ok)

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("write should have resumed after a drain")
	}
}
