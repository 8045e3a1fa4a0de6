package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/siotlab/bdsc/internal/platform"
)

var validLogLevels = map[string]bool{
	"":      true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks every field and returns all problems at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Version != CurrentVersion {
		add("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("log_level: unknown level %q", c.LogLevel)
	}
	if _, _, err := c.IdentityOverride(); err != nil {
		errs = append(errs, err)
	}

	if c.Server.Hostname == "" {
		add("server.hostname: must not be empty")
	}
	if c.Server.Port == 0 {
		add("server.port: must not be zero")
	}
	if addr, err := c.FallbackAddr(); err != nil {
		errs = append(errs, err)
	} else if addr.IsUnspecified() {
		add("server.fallback: %s is not a usable address", addr)
	}
	if c.Server.LookupTimeout <= 0 {
		add("server.lookup_timeout: must be positive")
	}

	if c.Transport.ConnectTimeout <= 0 {
		add("transport.connect_timeout: must be positive")
	}
	if c.Transport.ReadTimeout <= 0 {
		add("transport.read_timeout: must be positive")
	}
	if c.Transport.WriteTimeout <= 0 {
		add("transport.write_timeout: must be positive")
	}
	if c.Transport.ReplyLength <= 0 || c.Transport.ReplyLength > 1024 {
		add("transport.reply_length: %d out of range 1-1024", c.Transport.ReplyLength)
	}

	if _, err := c.DHCPMode(); err != nil {
		add("network.dhcp: %v", err)
	}
	if c.Network.UpTimeout <= 0 {
		add("network.up_timeout: must be positive")
	}

	if len(c.Sources) == 0 {
		add("sources: at least one source is required")
	}
	names := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		prefix := fmt.Sprintf("sources[%d]", i)
		if s.Name == "" {
			add("%s.name: must not be empty", prefix)
		} else if names[s.Name] {
			add("%s.name: duplicate source %q", prefix, s.Name)
		}
		names[s.Name] = true

		if s.Pin == "" {
			add("%s.pin: must not be empty", prefix)
		}
		if _, err := platform.ParseEdge(s.Edge); err != nil {
			add("%s.edge: %v", prefix, err)
		}
		switch s.Action {
		case ActionToggle, ActionInquiry:
		default:
			add("%s.action: unknown action %q (want %s or %s)", prefix, s.Action, ActionToggle, ActionInquiry)
		}
	}

	return errors.Join(errs...)
}
