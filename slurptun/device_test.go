package slurptun

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDeviceIDFd(t *testing.T) {
	id, err := parseDeviceID("fd://7")

	assert.NoError(t, err)
	assert.Equal(t, DeviceSchemeFd, id.scheme)
	assert.Equal(t, 7, id.fd)
}

func TestParseDeviceIDDev(t *testing.T) {
	id, err := parseDeviceID("dev://utun9")

	assert.NoError(t, err)
	assert.Equal(t, DeviceSchemeDev, id.scheme)
	assert.Equal(t, "utun9", id.name)
}

func TestParseDeviceIDMissingHost(t *testing.T) {
	_, err := parseDeviceID("dev://")

	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseDeviceIDBadScheme(t *testing.T) {
	_, err := parseDeviceID("tap://utun9")

	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseDeviceIDBadFd(t *testing.T) {
	_, err := parseDeviceID("fd://notanumber")

	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFirstHostAddressDefaultNetwork(t *testing.T) {
	prefix, host, err := firstHostAddress("")

	assert.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("198.18.0.0/16"), prefix)
	assert.Equal(t, netip.MustParseAddr("198.18.0.1"), host)
}

func TestFirstHostAddressCustomNetwork(t *testing.T) {
	prefix, host, err := firstHostAddress("10.99.4.0/24")

	assert.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("10.99.4.0/24"), prefix)
	assert.Equal(t, netip.MustParseAddr("10.99.4.1"), host)
}

func TestFirstHostAddressMasksNetwork(t *testing.T) {
	// a non-network address in the config still yields the network's first host
	prefix, host, err := firstHostAddress("10.99.4.77/24")

	assert.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("10.99.4.0/24"), prefix)
	assert.Equal(t, netip.MustParseAddr("10.99.4.1"), host)
}

func TestFirstHostAddressV6(t *testing.T) {
	prefix, host, err := firstHostAddress("fdfe:dcba:9876::/64")

	assert.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("fdfe:dcba:9876::/64"), prefix)
	assert.Equal(t, netip.MustParseAddr("fdfe:dcba:9876::1"), host)
}

func TestFirstHostAddressNoUsableHosts(t *testing.T) {
	for _, network := range []string{
		"10.0.0.0/31",
		"10.0.0.0/32",
		"fdfe::/127",
		"fdfe::/128",
	} {
		_, _, err := firstHostAddress(network)

		assert.ErrorIs(t, err, ErrInvalidConfig, "network %s", network)
	}
}

func TestFirstHostAddressUnparseable(t *testing.T) {
	_, _, err := firstHostAddress("not-a-network")

	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLastAddress(t *testing.T) {
	assert.Equal(
		t,
		netip.MustParseAddr("10.0.0.255"),
		lastAddress(netip.MustParsePrefix("10.0.0.0/24")),
	)
	assert.Equal(
		t,
		netip.MustParseAddr("198.18.255.255"),
		lastAddress(netip.MustParsePrefix("198.18.0.0/16")),
	)
	assert.Equal(
		t,
		netip.MustParseAddr("10.0.0.131"),
		lastAddress(netip.MustParsePrefix("10.0.0.128/30")),
	)
}
