package lock

import "time"

type Config struct {
	// Timeout bounds how long Acquire waits before giving up with ErrLockTimeout.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// PollInterval is how often lease-based backends retry a contended lease.
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	// LeaseTTL is the lifetime of a lease row; holders renew it at half the TTL.
	LeaseTTL time.Duration `yaml:"lease_ttl" env:"LEASE_TTL"`
}

func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		PollInterval: 50 * time.Millisecond,
		LeaseTTL:     15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = def.LeaseTTL
	}
	return c
}
