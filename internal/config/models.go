package config

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/siotlab/bdsc/internal/platform"
	"github.com/siotlab/bdsc/internal/protocol"
)

// CurrentVersion is the config file format version
const CurrentVersion = 1

// Action names accepted in a source definition
const (
	ActionToggle  = "toggle"
	ActionInquiry = "inquiry"
)

// Config is the whole client configuration file. All values are fixed at
// startup; nothing is reconfigured while the client runs.
type Config struct {
	Version   int             `yaml:"version"`
	LogLevel  string          `yaml:"log_level,omitempty"` // debug, info, warn, error; empty is silent
	Identity  string          `yaml:"identity,omitempty"`  // Overrides the interface MAC (e.g., "AA:BB:CC:DD:EE:FF")
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Network   NetworkConfig   `yaml:"network"`
	GPIO      GPIOConfig      `yaml:"gpio,omitempty"`
	Sources   []Source        `yaml:"sources"`
	Monitor   MonitorConfig   `yaml:"monitor,omitempty"`
}

// ServerConfig describes where the server is and how to find it.
type ServerConfig struct {
	Hostname      string        `yaml:"hostname"`               // Name resolved once at startup
	Port          uint16        `yaml:"port"`                   // Server TCP port
	Fallback      string        `yaml:"fallback"`               // IPv4 address used when resolution fails
	LookupTimeout time.Duration `yaml:"lookup_timeout"`         // Bound on the whole resolution
	MDNSService   string        `yaml:"mdns_service,omitempty"` // mDNS service browsed after DNS; empty disables mDNS
}

// TransportConfig bounds every exchange.
type TransportConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ReplyLength    int           `yaml:"reply_length"` // Bytes expected per reply
}

// NetworkConfig controls interface bring-up.
type NetworkConfig struct {
	Interface string `yaml:"interface,omitempty"` // Empty selects the first active interface
	DHCP      string `yaml:"dhcp"`                // client or disabled
	Hostname  string `yaml:"hostname,omitempty"`  // Device host name set at startup; empty skips

	// UpTimeout bounds the wait for the interface to come up (and hold a
	// lease in DHCP client mode). Expiry is a fatal startup error.
	UpTimeout time.Duration `yaml:"up_timeout"`
}

// GPIOConfig maps board pin names to sysfs GPIO lines.
type GPIOConfig struct {
	Root string         `yaml:"root,omitempty"`
	Pins map[string]int `yaml:"pins,omitempty"`
}

// Source is one button and what pressing it does.
type Source struct {
	Name     string `yaml:"name"`
	Pin      string `yaml:"pin"`
	Edge     string `yaml:"edge,omitempty"`
	Action   string `yaml:"action"`         // toggle or inquiry
	Register uint8  `yaml:"register"`       // Register the action targets
	Off      uint16 `yaml:"off,omitempty"`  // Toggle: value sent on the first press
	On       uint16 `yaml:"on,omitempty"`   // Toggle: value sent on the second press
}

// MonitorConfig controls the WebSocket echo monitor.
type MonitorConfig struct {
	Listen string `yaml:"listen,omitempty"` // e.g. "127.0.0.1:7070"; empty disables
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			Hostname:      "iotserver2",
			Port:          6999,
			Fallback:      "198.51.100.3",
			LookupTimeout: 5 * time.Second,
			MDNSService:   "_bdsc._tcp",
		},
		Transport: TransportConfig{
			ConnectTimeout: 2 * time.Second,
			ReadTimeout:    500 * time.Millisecond,
			WriteTimeout:   2 * time.Second,
			ReplyLength:    protocol.ReplyLength,
		},
		Network: NetworkConfig{
			DHCP:      "client",
			Hostname:  "WICED001",
			UpTimeout: 30 * time.Second,
		},
		GPIO: GPIOConfig{
			Pins: map[string]int{"MB0": 16, "MB1": 17},
		},
		Sources: []Source{
			{Name: "update", Pin: "MB1", Edge: "rising", Action: ActionToggle, Register: 0x10, Off: 0, On: 1},
			{Name: "inquiry", Pin: "MB0", Edge: "rising", Action: ActionInquiry, Register: 0x10},
		},
	}
}

// FallbackAddr returns the parsed fallback address
func (c *Config) FallbackAddr() (netip.Addr, error) {
	addr, err := netip.ParseAddr(c.Server.Fallback)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("server.fallback: %w", err)
	}
	return addr, nil
}

// IdentityOverride returns the configured identity, if any
func (c *Config) IdentityOverride() (protocol.Identity, bool, error) {
	if c.Identity == "" {
		return protocol.Identity{}, false, nil
	}
	id, err := protocol.ParseIdentity(c.Identity)
	if err != nil {
		return protocol.Identity{}, false, fmt.Errorf("identity: %w", err)
	}
	return id, true, nil
}

// DHCPMode returns the parsed network.dhcp value
func (c *Config) DHCPMode() (platform.DHCPMode, error) {
	return platform.ParseDHCPMode(c.Network.DHCP)
}

// Source returns the source with the given name
func (c *Config) Source(name string) (Source, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}
