package slurptun

import (
	"fmt"
	"io"
	"log"
	"net/netip"
	"net/url"
	"os"
	"strconv"

	"github.com/songgao/water"
	"github.com/vishvananda/netlink"
)

// Device is an opened tun device. Read and Write operate on whole ip frames and are independent
// of each other -- one goroutine may own the read half while another owns the write half.
type Device interface {
	io.ReadWriteCloser
	Name() string
}

// deviceID is a parsed device identifier -- exactly one of the two schemes.
type deviceID struct {
	scheme string
	fd     int
	name   string
}

func parseDeviceID(device string) (deviceID, error) {
	u, err := url.Parse(device)
	if err != nil {
		return deviceID{}, fmt.Errorf("%w: tun device %q: %s", ErrInvalidConfig, device, err)
	}

	if u.Host == "" {
		return deviceID{}, fmt.Errorf(
			"%w: tun device %q has no host part", ErrInvalidConfig, device,
		)
	}

	switch u.Scheme {
	case DeviceSchemeFd:
		fd, err := strconv.ParseUint(u.Host, 10, 31)
		if err != nil {
			return deviceID{}, fmt.Errorf("%w: tun fd %q: %s", ErrInvalidConfig, u.Host, err)
		}

		return deviceID{scheme: DeviceSchemeFd, fd: int(fd)}, nil
	case DeviceSchemeDev:
		return deviceID{scheme: DeviceSchemeDev, name: u.Host}, nil
	default:
		return deviceID{}, fmt.Errorf("%w: invalid device id: %q", ErrInvalidConfig, device)
	}
}

// firstHostAddress returns the masked network and its first usable host address. Usable hosts
// exclude the network address and, for v4, the broadcast address -- so /31, /32, /127 and /128
// networks fail here rather than silently picking something.
func firstHostAddress(network string) (netip.Prefix, netip.Addr, error) {
	if network == "" {
		network = DefaultNetwork
	}

	prefix, err := netip.ParsePrefix(network)
	if err != nil {
		return netip.Prefix{}, netip.Addr{}, fmt.Errorf(
			"%w: tun network %q: %s", ErrInvalidConfig, network, err,
		)
	}

	prefix = prefix.Masked()

	host := prefix.Addr().Next()

	if !prefix.Contains(host) || (host.Is4() && host == lastAddress(prefix)) {
		return netip.Prefix{}, netip.Addr{}, fmt.Errorf(
			"%w: tun network %q doesn't contain any usable host address", ErrInvalidConfig, network,
		)
	}

	return prefix, host, nil
}

// lastAddress returns the highest address in the prefix -- for v4 that is the broadcast address.
func lastAddress(prefix netip.Prefix) netip.Addr {
	raw := prefix.Addr().AsSlice()

	hostBits := len(raw)*8 - prefix.Bits()

	for idx := len(raw) - 1; idx >= 0 && hostBits > 0; idx-- {
		bits := hostBits
		if bits > 8 {
			bits = 8
		}

		raw[idx] |= byte(0xff >> (8 - bits)) //nolint:gomnd

		hostBits -= bits
	}

	addr, _ := netip.AddrFromSlice(raw)

	return addr
}

// fdDevice wraps a pre-opened tun descriptor handed to us via the fd:// scheme.
type fdDevice struct {
	*os.File
	id string
}

func (d *fdDevice) Name() string {
	return d.id
}

// openDevice parses the device identifier and network from the config, opens (or adopts) the tun
// interface, assigns the first host address in the network and brings the interface up. This is
// the only place slurptun touches os interface state. The returned address is the one assigned.
// Devices adopted via the fd:// scheme are assumed pre-configured by whoever opened them --
// address, netmask and up state are left alone, only the derived address is reported back for
// logging.
func openDevice(cfg TunConfig) (Device, netip.Prefix, netip.Addr, error) {
	id, err := parseDeviceID(cfg.Device)
	if err != nil {
		return nil, netip.Prefix{}, netip.Addr{}, err
	}

	prefix, host, err := firstHostAddress(cfg.Network)
	if err != nil {
		return nil, netip.Prefix{}, netip.Addr{}, err
	}

	if id.scheme == DeviceSchemeFd {
		// whoever opened the descriptor for us (android, some supervisor) already configured
		// addressing on it, so we just adopt it as-is
		log.Printf("adopting pre-opened tun descriptor %d", id.fd)

		return &fdDevice{
			File: os.NewFile(uintptr(id.fd), cfg.Device),
			id:   cfg.Device,
		}, prefix, host, nil
	}

	iface, err := water.New(water.Config{
		DeviceType: water.TUN,
		PlatformSpecificParams: water.PlatformSpecificParams{
			Name: id.name,
		},
	})
	if err != nil {
		return nil, netip.Prefix{}, netip.Addr{}, fmt.Errorf(
			"%w: failed creating tun device %q: %s", ErrDevice, id.name, err,
		)
	}

	err = configureLink(iface.Name(), prefix, host)
	if err != nil {
		closeErr := iface.Close()
		if closeErr != nil {
			log.Printf(
				"encountered error %q configuring tun device %q, and subsequent error %q"+
					" attempting to close the device",
				err, iface.Name(), closeErr,
			)
		}

		return nil, netip.Prefix{}, netip.Addr{}, err
	}

	return iface, prefix, host, nil
}

// configureLink assigns the address/netmask to the named interface and brings it up.
func configureLink(name string, prefix netip.Prefix, host netip.Addr) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("%w: failed finding link %q: %s", ErrDevice, name, err)
	}

	addr, err := netlink.ParseAddr(fmt.Sprintf("%s/%d", host, prefix.Bits()))
	if err != nil {
		return fmt.Errorf("%w: failed parsing address for link %q: %s", ErrDevice, name, err)
	}

	err = netlink.AddrAdd(link, addr)
	if err != nil {
		return fmt.Errorf("%w: failed assigning address to link %q: %s", ErrDevice, name, err)
	}

	err = netlink.LinkSetMTU(link, DefaultMTU)
	if err != nil {
		return fmt.Errorf("%w: failed setting mtu on link %q: %s", ErrDevice, name, err)
	}

	err = netlink.LinkSetUp(link)
	if err != nil {
		return fmt.Errorf("%w: failed bringing link %q up: %s", ErrDevice, name, err)
	}

	return nil
}
