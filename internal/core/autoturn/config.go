package autoturn

import "time"

type Config struct {
	// Pace is the pause between an AI turn starting and the AI acting, so
	// clients can follow along.
	Pace time.Duration `yaml:"pace" env:"PACE"`
	// MinIterations is the floor of a run's iteration bound. The bound is
	// max(2 × turn order length, MinIterations).
	MinIterations int `yaml:"min_iterations" env:"MIN_ITERATIONS"`
	// NarrationTimeout bounds every narration request.
	NarrationTimeout time.Duration `yaml:"narration_timeout" env:"NARRATION_TIMEOUT"`
}

func DefaultConfig() Config {
	return Config{
		Pace:             2 * time.Second,
		MinIterations:    20,
		NarrationTimeout: 5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Pace < 0 {
		c.Pace = 0
	}
	if c.MinIterations <= 0 {
		c.MinIterations = def.MinIterations
	}
	if c.NarrationTimeout <= 0 {
		c.NarrationTimeout = def.NarrationTimeout
	}
	return c
}
