package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/siotlab/bdsc/internal/protocol"
)

// DefaultSimulatedIdentity is a locally administered address used when
// none is configured.
var DefaultSimulatedIdentity = protocol.Identity{0x02, 0x42, 0x44, 0x53, 0x43, 0x01}

// Simulated is an in-memory platform. Press delivers an edge to whatever
// handlers subscribed to the pin, on the caller's goroutine.
type Simulated struct {
	mu       sync.Mutex
	identity protocol.Identity
	hostname string
	handlers map[string][]func()
	inited   bool
	closed   bool

	// InitErr and NetworkErr make Init and NetworkUp fail when set.
	InitErr    error
	NetworkErr error
}

// NewSimulated creates a simulated platform reporting id as its hardware
// address. A zero id uses DefaultSimulatedIdentity.
func NewSimulated(id protocol.Identity) *Simulated {
	if id.IsZero() {
		id = DefaultSimulatedIdentity
	}
	return &Simulated{
		identity: id,
		handlers: make(map[string][]func()),
	}
}

// Init marks the platform initialized
func (s *Simulated) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InitErr != nil {
		return s.InitErr
	}
	s.inited = true
	return nil
}

// NetworkUp succeeds immediately unless NetworkErr is set
func (s *Simulated) NetworkUp(ctx context.Context, iface string, mode DHCPMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.NetworkErr
}

// SetHostname records name
func (s *Simulated) SetHostname(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostname = name
	return nil
}

// Hostname returns the last name passed to SetHostname
func (s *Simulated) Hostname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostname
}

// HardwareAddr returns the simulated identity for any interface
func (s *Simulated) HardwareAddr(iface string) (protocol.Identity, error) {
	return s.identity, nil
}

// SubscribeEdge registers handler for pin. The edge kind is accepted but
// every Press counts as one edge.
func (s *Simulated) SubscribeEdge(pin string, edge Edge, handler func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.handlers[pin] = append(s.handlers[pin], handler)
	return nil
}

// Press delivers one edge on pin.
func (s *Simulated) Press(pin string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	handlers := append([]func(){}, s.handlers[pin]...)
	s.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPin, pin)
	}
	for _, h := range handlers {
		h()
	}
	return nil
}

// Pins returns the subscribed pins in sorted order
func (s *Simulated) Pins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	pins := make([]string, 0, len(s.handlers))
	for p := range s.handlers {
		pins = append(pins, p)
	}
	sort.Strings(pins)
	return pins
}

// Close drops all subscriptions
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.handlers = make(map[string][]func())
	return nil
}
