package slurptun

import "time"

const (
	// Version is the version of slurptun, set w/ build flags in ci; only useful/relevant for cli.
	Version = "0.0.0"
)

const (
	// DeviceSchemeFd is the device identifier scheme for a pre-opened tun file descriptor, as in
	// "fd://7".
	DeviceSchemeFd = "fd"

	// DeviceSchemeDev is the device identifier scheme for a tun device we create by name, as in
	// "dev://utun9".
	DeviceSchemeDev = "dev"

	// DefaultNetwork is the network assigned to the tun interface when the config does not set
	// one -- the first host address in it becomes the interface address.
	DefaultNetwork = "198.18.0.0/16"

	// DefaultMTU is the mtu used for the tun interface and the netstack link endpoint.
	DefaultMTU = 1500

	// TCPBacklog is the netstack's max in-flight (un-accepted) inbound tcp connections -- a
	// policy constant, not derived from config.
	TCPBacklog = 512

	// UDPBacklog is the netstack's buffered inbound udp datagram count -- also a policy constant.
	UDPBacklog = 256

	// DatagramChannelDepth is the capacity of the bounded channels carrying datagrams between the
	// udp adapter and the dispatcher. When the consumer falls behind the producer suspends on the
	// channel send rather than dropping or buffering unboundedly.
	DatagramChannelDepth = 32

	// DialTimeout is how long the direct dispatcher waits for upstream dials.
	DialTimeout = time.Minute
)
