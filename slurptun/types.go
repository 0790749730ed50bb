package slurptun

// Config holds the yaml configuration used for slurptun.
type Config struct {
	// Tun is the tun inbound configuration -- the only section slurptun itself consumes.
	Tun TunConfig `yaml:"tun"`
}

// TunConfig holds the tun device configuration. It is consumed exactly once when the tunnel is
// built and is immutable afterward -- changing it means rebuilding the whole tunnel.
type TunConfig struct {
	// Enable controls whether the tunnel runs at all. When false the manager treats the tun
	// section as a valid no-op, not an error.
	Enable bool `yaml:"enable"`
	// Device is the device identifier -- either "fd://<n>" for a pre-opened descriptor or
	// "dev://<name>" for a device slurptun should create. Any other scheme is a config error.
	Device string `yaml:"device"`
	// Network is the network to assign to the interface in cidr notation; defaults to
	// DefaultNetwork when empty. The interface gets the first host address and the network's
	// mask.
	Network string `yaml:"network"`
}

// Bytes is a slice of bytes.
type Bytes []byte
