// Package config loads the server configuration from an nginx-style file or,
// for .yaml/.yml files, from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/apoxy-dev/webserver/pkg/log"
)

var (
	ConfigFile      string
	Verbose         bool
	AlsoLogToStderr bool
	JSONLogs        bool
	LogFile         string
)

const (
	DefaultWorkers        = 16
	DefaultQueueSize      = 64
	DefaultReadTimeout    = 10 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
	DefaultShutdownGrace  = 5 * time.Second
	DefaultMaxHeaderBytes = 64 << 10
	DefaultMaxBodyBytes   = 10 << 20
)

type Config struct {
	// Servers run side by side, each on its own port.
	Servers []Server `yaml:"servers"`
}

type Server struct {
	// TCP port to listen on. 0 picks a free port.
	Port int `yaml:"port"`
	// Number of connections served concurrently.
	Workers int `yaml:"workers,omitempty"`
	// Accepted connections that may wait for a worker. Unset means
	// DefaultQueueSize; 0 hands connections straight to idle workers.
	QueueSize *int `yaml:"queue_size,omitempty"`
	// Deadline for receiving the whole request.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty"`
	// Deadline for sending the whole response.
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
	// How long in-flight connections may finish after shutdown starts.
	ShutdownGrace time.Duration `yaml:"shutdown_grace,omitempty"`
	// Bound on the request line plus headers.
	MaxHeaderBytes int `yaml:"max_header_bytes,omitempty"`
	// Bound on the request body.
	MaxBodyBytes int64 `yaml:"max_body_bytes,omitempty"`
	// Routes in declaration order.
	Routes []Route `yaml:"routes"`
}

type Route struct {
	// URI prefix, e.g. "/static".
	Prefix string `yaml:"prefix"`
	// Registry tag of the handler, e.g. "StaticHandler".
	Handler string `yaml:"handler"`
	// Handler specific settings.
	Params map[string]string `yaml:"params,omitempty"`
}

// Load reads and validates ConfigFile.
func Load() (*Config, error) {
	if ConfigFile == "" {
		return nil, errors.New("no config file given")
	}
	data, err := os.ReadFile(ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	cfg, err := Parse(ConfigFile, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ConfigFile, err)
	}
	log.Debugf("config file parsed: %s (%d servers)", ConfigFile, len(cfg.Servers))
	return cfg, nil
}

// Parse decodes data with the format implied by name's extension, fills in
// defaults and validates the result.
func Parse(name string, data []byte) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		cfg = new(Config)
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
	default:
		if cfg, err = ParseNginx(data); err != nil {
			return nil, err
		}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults fills every unset server field.
func (c *Config) SetDefaults() {
	for i := range c.Servers {
		s := &c.Servers[i]
		if s.Workers == 0 {
			s.Workers = DefaultWorkers
		}
		if s.QueueSize == nil {
			q := DefaultQueueSize
			s.QueueSize = &q
		}
		if s.ReadTimeout == 0 {
			s.ReadTimeout = DefaultReadTimeout
		}
		if s.WriteTimeout == 0 {
			s.WriteTimeout = DefaultWriteTimeout
		}
		if s.ShutdownGrace == 0 {
			s.ShutdownGrace = DefaultShutdownGrace
		}
		if s.MaxHeaderBytes == 0 {
			s.MaxHeaderBytes = DefaultMaxHeaderBytes
		}
		if s.MaxBodyBytes == 0 {
			s.MaxBodyBytes = DefaultMaxBodyBytes
		}
	}
}

// Validate checks ports, sizing and routes.
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return errors.New("no server configured")
	}
	ports := make(map[int]bool)
	for i, s := range c.Servers {
		if s.Port < 0 || s.Port > 65535 {
			return fmt.Errorf("server %d: invalid port %d", i, s.Port)
		}
		if s.Port != 0 {
			if ports[s.Port] {
				return fmt.Errorf("server %d: port %d used by another server", i, s.Port)
			}
			ports[s.Port] = true
		}
		if s.Workers < 1 {
			return fmt.Errorf("server %d: workers must be at least 1", i)
		}
		if s.QueueSize != nil && *s.QueueSize < 0 {
			return fmt.Errorf("server %d: queue_size must not be negative", i)
		}
		if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.ShutdownGrace < 0 {
			return fmt.Errorf("server %d: timeouts must not be negative", i)
		}
		if s.MaxHeaderBytes < 0 || s.MaxBodyBytes < 0 {
			return fmt.Errorf("server %d: size limits must not be negative", i)
		}
		for _, r := range s.Routes {
			if r.Handler == "" {
				return fmt.Errorf("server %d: location %q has no handler", i, r.Prefix)
			}
			if r.Prefix != "" && r.Prefix[0] != '/' {
				return fmt.Errorf("server %d: location %q must start with /", i, r.Prefix)
			}
		}
	}
	return nil
}
