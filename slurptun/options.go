package slurptun

// Option defines an option for the slurptun Manager.
type Option func(m *manager) error

// WithConfigFile provides a config filepath to the manager.
func WithConfigFile(s string) Option {
	return func(m *manager) error {
		m.configPath = s

		return nil
	}
}

// WithLiveReload instructs the manager to watch the config file for changes and "live reload" the
// tun worker.
func WithLiveReload(b bool) Option {
	return func(m *manager) error {
		m.liveReload = b

		return nil
	}
}

// WithDispatcher provides the dispatcher sessions are handed to -- defaults to the direct
// dispatcher when unset.
func WithDispatcher(d Dispatcher) Option {
	return func(m *manager) error {
		m.dispatcher = d

		return nil
	}
}

// WithResolver provides the synthetic (fake-ip) address resolver -- defaults to translation
// disabled when unset.
func WithResolver(r Resolver) Option {
	return func(m *manager) error {
		m.resolver = r

		return nil
	}
}
