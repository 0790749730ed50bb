package slurptun

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFakeIPPoolRoundTrip(t *testing.T) {
	pool := NewFakeIPPool(netip.MustParsePrefix("198.18.0.0/16"))

	ip, err := pool.Allocate("example.com")

	assert.NoError(t, err)
	assert.True(t, pool.IsFakeIP(ip))

	host, found := pool.ReverseLookup(ip)

	assert.True(t, found)
	assert.Equal(t, "example.com", host)

	back, found := pool.LookupFakeIP("example.com")

	assert.True(t, found)
	assert.True(t, back.Equal(ip))
}

func TestFakeIPPoolAllocateIsStable(t *testing.T) {
	pool := NewFakeIPPool(netip.MustParsePrefix("198.18.0.0/16"))

	first, err := pool.Allocate("example.com")
	assert.NoError(t, err)

	second, err := pool.Allocate("example.com")
	assert.NoError(t, err)

	assert.True(t, first.Equal(second))
}

func TestFakeIPPoolSkipsInterfaceAddress(t *testing.T) {
	pool := NewFakeIPPool(netip.MustParsePrefix("198.18.0.0/16"))

	ip, err := pool.Allocate("example.com")

	assert.NoError(t, err)
	// .0 is the network, .1 is the tun interface
	assert.True(t, ip.Equal(net.IP{198, 18, 0, 2}))
}

func TestFakeIPPoolExhausted(t *testing.T) {
	// /30 leaves exactly two allocatable addresses after the network and interface addresses
	pool := NewFakeIPPool(netip.MustParsePrefix("10.0.0.0/30"))

	_, err := pool.Allocate("a.example.com")
	assert.NoError(t, err)

	_, err = pool.Allocate("b.example.com")
	assert.NoError(t, err)

	_, err = pool.Allocate("c.example.com")
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestFakeIPPoolIsFakeIPOutsideRange(t *testing.T) {
	pool := NewFakeIPPool(netip.MustParsePrefix("198.18.0.0/16"))

	assert.False(t, pool.IsFakeIP(net.ParseIP("1.1.1.1")))
	assert.False(t, pool.IsFakeIP(nil))
}

func TestDisabledResolver(t *testing.T) {
	r := DisabledResolver{}

	assert.False(t, r.FakeIPEnabled())
	assert.False(t, r.IsFakeIP(net.ParseIP("198.18.0.5")))

	_, found := r.ReverseLookup(net.ParseIP("198.18.0.5"))
	assert.False(t, found)

	_, found = r.LookupFakeIP("example.com")
	assert.False(t, found)
}
