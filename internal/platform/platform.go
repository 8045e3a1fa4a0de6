// Package platform provides the device collaborators the client calls
// into at startup: subsystem init, network bring-up, hostname, hardware
// address and button edge subscription.
//
// Host talks to the real machine (Linux sysfs GPIO for buttons).
// Simulated keeps everything in memory and delivers edges on Press, which
// drives the headless simulator and the terminal panel.
package platform

import (
	"errors"
	"fmt"
	"strings"
)

// Edge selects which button transition triggers a handler
type Edge int

const (
	EdgeRising Edge = iota
	EdgeFalling
	EdgeBoth
)

// String returns the sysfs name of the edge
func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return fmt.Sprintf("Edge(%d)", int(e))
	}
}

// ParseEdge parses "rising", "falling" or "both"
func ParseEdge(s string) (Edge, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rising", "":
		return EdgeRising, nil
	case "falling":
		return EdgeFalling, nil
	case "both":
		return EdgeBoth, nil
	default:
		return 0, fmt.Errorf("unknown edge %q (want rising, falling or both)", s)
	}
}

// DHCPMode tells NetworkUp whether to wait for a leased address
type DHCPMode int

const (
	// DHCPClient waits until the interface has an IPv4 address
	DHCPClient DHCPMode = iota
	// DHCPDisabled only requires the interface to be up
	DHCPDisabled
)

// String returns a human-readable mode name
func (m DHCPMode) String() string {
	switch m {
	case DHCPClient:
		return "client"
	case DHCPDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("DHCPMode(%d)", int(m))
	}
}

// ParseDHCPMode parses "client" or "disabled"
func ParseDHCPMode(s string) (DHCPMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client", "":
		return DHCPClient, nil
	case "disabled", "none", "static":
		return DHCPDisabled, nil
	default:
		return 0, fmt.Errorf("unknown dhcp mode %q (want client or disabled)", s)
	}
}

var (
	// ErrNotSupported is returned for operations the running OS lacks
	ErrNotSupported = errors.New("not supported on this platform")

	// ErrUnknownPin is returned when a pin has no mapping
	ErrUnknownPin = errors.New("unknown pin")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("platform closed")

	// ErrNoInterface is returned when a named network interface does not exist
	ErrNoInterface = errors.New("no such network interface")
)
