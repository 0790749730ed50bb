package slurptun

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
)

// FakeIPPool is a minimal synthetic address table -- it hands out addresses from a prefix one at
// a time and remembers the hostname behind each. It implements Resolver so it can stand in for a
// full dns layer when slurptun runs standalone.
type FakeIPPool struct {
	mu sync.Mutex

	prefix netip.Prefix
	next   netip.Addr

	byHost map[string]netip.Addr
	byAddr map[netip.Addr]string
}

// DefaultNetworkPrefix returns the default tun network as a parsed prefix -- handy for callers
// standing up a FakeIPPool that matches an unconfigured tun.
func DefaultNetworkPrefix() netip.Prefix {
	return netip.MustParsePrefix(DefaultNetwork)
}

// NewFakeIPPool returns a pool allocating from the given prefix. The first host address is
// skipped since it belongs to the tun interface itself.
func NewFakeIPPool(prefix netip.Prefix) *FakeIPPool {
	prefix = prefix.Masked()

	return &FakeIPPool{
		prefix: prefix,
		next:   prefix.Addr().Next().Next(),
		byHost: map[string]netip.Addr{},
		byAddr: map[netip.Addr]string{},
	}
}

// Allocate returns the synthetic address for host, allocating a fresh one on first sight.
func (p *FakeIPPool) Allocate(host string) (net.IP, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	addr, exists := p.byHost[host]
	if exists {
		return addr.AsSlice(), nil
	}

	addr = p.next
	if !p.prefix.Contains(addr) {
		return nil, fmt.Errorf(
			"%w: synthetic address pool %s has no free addresses", ErrExhausted, p.prefix,
		)
	}

	p.next = addr.Next()

	p.byHost[host] = addr
	p.byAddr[addr] = host

	return addr.AsSlice(), nil
}

// FakeIPEnabled always reports true -- a pool only exists to translate.
func (p *FakeIPPool) FakeIPEnabled() bool {
	return true
}

// IsFakeIP reports whether ip falls inside the pool's prefix.
func (p *FakeIPPool) IsFakeIP(ip net.IP) bool {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return false
	}

	return p.prefix.Contains(addr.Unmap())
}

// ReverseLookup returns the hostname a synthetic address was allocated for, if any.
func (p *FakeIPPool) ReverseLookup(ip net.IP) (host string, found bool) {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return "", false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	host, found = p.byAddr[addr.Unmap()]

	return host, found
}

// LookupFakeIP returns the synthetic address already allocated for host, if any.
func (p *FakeIPPool) LookupFakeIP(host string) (ip net.IP, found bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	addr, found := p.byHost[host]
	if !found {
		return nil, false
	}

	return addr.AsSlice(), true
}

// DisabledResolver is a Resolver with synthetic address translation switched off entirely --
// sessions and packets pass through with their concrete addresses untouched.
type DisabledResolver struct{}

func (DisabledResolver) FakeIPEnabled() bool { return false }

func (DisabledResolver) IsFakeIP(net.IP) bool { return false }

func (DisabledResolver) ReverseLookup(net.IP) (string, bool) { return "", false }

func (DisabledResolver) LookupFakeIP(string) (net.IP, bool) { return nil, false }
