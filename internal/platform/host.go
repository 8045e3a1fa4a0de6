package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/siotlab/bdsc/internal/logging"
	"github.com/siotlab/bdsc/internal/protocol"
)

const (
	// DefaultGPIORoot is the sysfs GPIO class directory
	DefaultGPIORoot = "/sys/class/gpio"

	// networkPollInterval is how often NetworkUp re-checks the interface
	networkPollInterval = 250 * time.Millisecond
)

// HostOptions configures a Host.
type HostOptions struct {
	// GPIORoot overrides DefaultGPIORoot.
	GPIORoot string

	// Pins maps board pin names (e.g., "MB1") to GPIO line numbers.
	// Numeric pin names are used as line numbers directly.
	Pins map[string]int
}

// Host is the platform of the machine the client runs on.
type Host struct {
	opts HostOptions

	mu      sync.Mutex
	lines   []*edgeLine
	closed  bool
	stop    chan struct{}
	watches sync.WaitGroup
}

// NewHost creates a host platform
func NewHost(opts HostOptions) *Host {
	if opts.GPIORoot == "" {
		opts.GPIORoot = DefaultGPIORoot
	}
	return &Host{
		opts: opts,
		stop: make(chan struct{}),
	}
}

// Init checks that the GPIO subsystem is reachable.
func (h *Host) Init() error {
	return checkGPIO(h.opts.GPIORoot)
}

// NetworkUp waits until iface is up and, in DHCP client mode, holds an
// IPv4 address. An empty iface selects the first non-loopback interface
// that is up. A named interface that does not exist fails at once with
// ErrNoInterface; otherwise the wait is bounded only by ctx.
func (h *Host) NetworkUp(ctx context.Context, iface string, mode DHCPMode) error {
	ticker := time.NewTicker(networkPollInterval)
	defer ticker.Stop()

	for {
		ifi, err := findInterface(iface)
		if errors.Is(err, ErrNoInterface) {
			return fmt.Errorf("network bring-up: %w", err)
		}
		if err == nil && ready(ifi, mode) {
			logging.Info("Network interface ready",
				zap.String("interface", ifi.Name),
				zap.Stringer("dhcp", mode),
			)
			return nil
		}

		select {
		case <-ctx.Done():
			if err == nil {
				err = fmt.Errorf("interface %s not ready", ifi.Name)
			}
			return fmt.Errorf("network bring-up: %w (%v)", err, ctx.Err())
		case <-ticker.C:
		}
	}
}

// SetHostname sets the system host name
func (h *Host) SetHostname(name string) error {
	return setHostname(name)
}

// HardwareAddr returns the MAC address of iface (or of the first
// non-loopback interface when iface is empty).
func (h *Host) HardwareAddr(iface string) (protocol.Identity, error) {
	ifi, err := findInterface(iface)
	if err != nil {
		return protocol.Identity{}, err
	}
	return protocol.IdentityFromHardwareAddr(ifi.HardwareAddr)
}

// SubscribeEdge exports the GPIO line behind pin as an input and calls
// handler from a watcher goroutine on every matching edge.
func (h *Host) SubscribeEdge(pin string, edge Edge, handler func()) error {
	line, err := h.lineFor(pin)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}

	el, err := openEdgeLine(h.opts.GPIORoot, line, edge)
	if err != nil {
		return fmt.Errorf("subscribe %s (gpio%d): %w", pin, line, err)
	}
	h.lines = append(h.lines, el)

	h.watches.Add(1)
	go func() {
		defer h.watches.Done()
		el.watch(h.stop, handler)
	}()

	logging.Debug("Edge subscribed",
		zap.String("pin", pin),
		zap.Int("gpio", line),
		zap.Stringer("edge", edge),
	)
	return nil
}

// Close stops all watchers and releases the GPIO lines
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.stop)
	lines := h.lines
	h.lines = nil
	h.mu.Unlock()

	h.watches.Wait()

	var firstErr error
	for _, el := range lines {
		if err := el.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *Host) lineFor(pin string) (int, error) {
	if n, ok := h.opts.Pins[pin]; ok {
		return n, nil
	}
	if n, err := strconv.Atoi(pin); err == nil && n >= 0 {
		return n, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownPin, pin)
}

func findInterface(name string) (*net.Interface, error) {
	if name != "" {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s (%v)", ErrNoInterface, name, err)
		}
		return ifi, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	for i := range ifaces {
		ifi := &ifaces[i]
		if ifi.Flags&net.FlagLoopback != 0 || ifi.Flags&net.FlagUp == 0 || len(ifi.HardwareAddr) == 0 {
			continue
		}
		return ifi, nil
	}
	return nil, fmt.Errorf("no active network interface")
}

func ready(ifi *net.Interface, mode DHCPMode) bool {
	if ifi.Flags&net.FlagUp == 0 {
		return false
	}
	if mode == DHCPDisabled {
		return true
	}

	addrs, err := ifi.Addrs()
	if err != nil {
		return false
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok && ipn.IP.To4() != nil && !ipn.IP.IsLinkLocalUnicast() {
			return true
		}
	}
	return false
}
