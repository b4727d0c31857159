// Package config loads process configuration: defaults, then an optional
// YAML file, then TABLETOP_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/tabletop/internal/core/autoturn"
	"github.com/zeusync/tabletop/internal/core/lock"
	"github.com/zeusync/tabletop/internal/core/turn"
	"github.com/zeusync/tabletop/internal/server"
)

const EnvPrefix = "TABLETOP_"

var ErrInvalidConfig = errors.New("invalid config")

type Driver string

const (
	DriverMemory Driver = "memory"
	DriverSQLite Driver = "sqlite"
)

type NarratorKind string

const (
	NarratorEcho NarratorKind = "echo"
	NarratorNoop NarratorKind = "noop"
)

type Storage struct {
	Driver Driver `yaml:"driver" env:"DRIVER"`
	// Path is the SQLite database file; ignored by the memory driver.
	Path string `yaml:"path" env:"PATH"`
	// LockShards sizes the in-process lock table.
	LockShards int `yaml:"lock_shards" env:"LOCK_SHARDS"`
}

type Narration struct {
	Narrator NarratorKind  `yaml:"narrator" env:"NARRATOR"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type Rules struct {
	// Catalog is an optional YAML item/spell catalog replacing the builtin one.
	Catalog         string `yaml:"catalog" env:"CATALOG"`
	InterruptRadius int    `yaml:"interrupt_radius" env:"INTERRUPT_RADIUS"`
	// Seed fixes the dice; zero draws a random seed.
	Seed int64 `yaml:"seed" env:"SEED"`
}

type Scenario struct {
	// Builtin names an embedded fixture; Path wins when both are set.
	Builtin   string `yaml:"builtin" env:"BUILTIN"`
	Path      string `yaml:"path" env:"PATH"`
	SessionID string `yaml:"session_id" env:"SESSION_ID"`
}

type Log struct {
	Level string `yaml:"level" env:"LEVEL"`
}

type Config struct {
	Server    server.Config   `yaml:"server" envPrefix:"SERVER_"`
	Storage   Storage         `yaml:"storage" envPrefix:"STORAGE_"`
	Lock      lock.Config     `yaml:"lock" envPrefix:"LOCK_"`
	Turn      turn.Config     `yaml:"turn" envPrefix:"TURN_"`
	AutoTurn  autoturn.Config `yaml:"autoturn" envPrefix:"AUTOTURN_"`
	Narration Narration       `yaml:"narration" envPrefix:"NARRATION_"`
	Rules     Rules           `yaml:"rules" envPrefix:"RULES_"`
	Scenario  Scenario        `yaml:"scenario" envPrefix:"SCENARIO_"`
	Log       Log             `yaml:"log" envPrefix:"LOG_"`
}

func Default() Config {
	return Config{
		Server: server.DefaultConfig(),
		Storage: Storage{
			Driver:     DriverMemory,
			Path:       "tabletop.db",
			LockShards: 32,
		},
		Lock:     lock.DefaultConfig(),
		Turn:     turn.DefaultConfig(),
		AutoTurn: autoturn.DefaultConfig(),
		Narration: Narration{
			Narrator: NarratorEcho,
			Timeout:  5 * time.Second,
		},
		Rules: Rules{InterruptRadius: 10},
		Scenario: Scenario{
			Builtin:   "goblin_cave",
			SessionID: "demo",
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path (skipped when empty) over the defaults, applies the
// environment and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays TABLETOP_* variables onto cfg. Unset variables keep
// their current value.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	positive("server.shutdown_timeout", c.Server.ShutdownTimeout)
	positive("server.write_wait", c.Server.WriteWait)
	positive("lock.timeout", c.Lock.Timeout)
	positive("lock.poll_interval", c.Lock.PollInterval)
	positive("lock.lease_ttl", c.Lock.LeaseTTL)
	positive("autoturn.narration_timeout", c.AutoTurn.NarrationTimeout)
	positive("narration.timeout", c.Narration.Timeout)
	if c.AutoTurn.Pace < 0 {
		errs = append(errs, fmt.Errorf("autoturn.pace must not be negative, got %s", c.AutoTurn.Pace))
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required by the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	switch c.Narration.Narrator {
	case NarratorEcho, NarratorNoop:
	default:
		errs = append(errs, fmt.Errorf("unknown narration.narrator %q", c.Narration.Narrator))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Scenario.SessionID == "" && (c.Scenario.Builtin != "" || c.Scenario.Path != "") {
		errs = append(errs, errors.New("scenario.session_id is required to seed a scenario"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
