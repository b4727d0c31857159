package server

import "time"

type Config struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// SendBuffer is the per-connection queue of outgoing messages. A client
	// that lets it fill up is disconnected.
	SendBuffer int `yaml:"send_buffer" env:"SEND_BUFFER"`
	// WriteWait bounds a single websocket write.
	WriteWait time.Duration `yaml:"write_wait" env:"WRITE_WAIT"`
	// ReadLimit caps the size of an incoming message in bytes.
	ReadLimit int64 `yaml:"read_limit" env:"READ_LIMIT"`
}

func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
		SendBuffer:      64,
		WriteWait:       10 * time.Second,
		ReadLimit:       64 << 10,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = def.SendBuffer
	}
	if c.WriteWait <= 0 {
		c.WriteWait = def.WriteWait
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = def.ReadLimit
	}
	return c
}
