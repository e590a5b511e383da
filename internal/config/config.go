// Package config holds the server's tunable constants and their
// environment-variable overrides.
package config

import "github.com/kelseyhightower/envconfig"

// Config holds the server's tunable constants. Default returns the built-in
// values; FromEnv starts from them and applies GOSIMPLEHTTP_* env vars.
type Config struct {
	// SocketBufferSize is the SO_RCVBUF/SO_SNDBUF hint set on TCP sockets,
	// and the chunk size the body reader recv()s at a time.
	SocketBufferSize int `envconfig:"SOCKET_BUFFER_SIZE" default:"8192"`
	// Backlog is the listen() backlog.
	Backlog int `envconfig:"BACKLOG" default:"128"`
	// MaxEventsPerLoop bounds how many ready descriptors one epoll_wait
	// call returns at a time.
	MaxEventsPerLoop int `envconfig:"MAX_EVENTS_PER_LOOP" default:"12"`
	// MaxHeaderSize is the header-block size cap; exceeding it fails the
	// connection with a 400.
	MaxHeaderSize int `envconfig:"MAX_HEADER_SIZE" default:"8192"`
}

// Default returns the built-in tunables, unmodified by environment.
func Default() *Config {
	return &Config{
		SocketBufferSize: 8192,
		Backlog:          128,
		MaxEventsPerLoop: 12,
		MaxHeaderSize:    8192,
	}
}

// FromEnv starts from Default and applies GOSIMPLEHTTP_* overrides.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := envconfig.Process("gosimplehttp", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
