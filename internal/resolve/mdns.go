package resolve

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/siotlab/bdsc/internal/logging"
)

const (
	// ServiceType is the mDNS service type reference servers advertise
	ServiceType = "_bdsc._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultBrowseTimeout bounds one mDNS browse
	DefaultBrowseTimeout = 2 * time.Second
)

// Server is one advertised server found on the local network
type Server struct {
	// Instance is the advertised instance name (e.g., "iotserver2")
	Instance string

	// Hostname is the mDNS host name (e.g., "iotserver2.local.")
	Hostname string

	// Addr is the preferred address, IPv4 when available
	Addr netip.Addr

	// Port is the advertised TCP port
	Port uint16

	// Metadata contains the TXT record key/value pairs
	Metadata map[string]string

	// DiscoveredAt is when the advertisement was seen
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the server
func (s *Server) String() string {
	return fmt.Sprintf("%s (%s) at %s", s.Instance, s.Hostname, netip.AddrPortFrom(s.Addr, s.Port))
}

// Matches reports whether the advertisement belongs to host
func (s *Server) Matches(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if strings.EqualFold(s.Instance, host) {
		return true
	}
	name := strings.TrimSuffix(strings.ToLower(s.Hostname), ".")
	return name == host || strings.TrimSuffix(name, ".local") == strings.TrimSuffix(host, ".local")
}

// MDNS resolves host names from service advertisements on the local
// network segment.
type MDNS struct {
	// Service is the service type to browse; empty means ServiceType.
	Service string

	// Timeout bounds one browse; zero means DefaultBrowseTimeout.
	Timeout time.Duration
}

// Name identifies the resolver
func (m MDNS) Name() string {
	return "mdns"
}

// Resolve browses until an advertisement for host appears or the browse
// times out.
func (m MDNS) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	found, err := m.browse(ctx, func(s *Server) bool { return s.Matches(host) })
	if err != nil {
		return netip.Addr{}, err
	}
	if len(found) == 0 {
		return netip.Addr{}, fmt.Errorf("%w: no %s advertisement for %s", ErrNoAddress, m.service(), host)
	}
	return found[0].Addr, nil
}

// Browse lists every advertised server seen within the browse timeout.
func (m MDNS) Browse(ctx context.Context) ([]*Server, error) {
	return m.browse(ctx, nil)
}

func (m MDNS) service() string {
	if m.Service != "" {
		return m.Service
	}
	return ServiceType
}

// browse collects servers until the timeout. If stop is set, browsing ends
// at the first server it accepts and only that server is returned.
func (m MDNS) browse(ctx context.Context, stop func(*Server) bool) ([]*Server, error) {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu      sync.Mutex
		servers []*Server
	)

	go func() {
		for entry := range entries {
			server := parseServiceEntry(entry)
			if server == nil {
				continue
			}
			mu.Lock()
			if stop != nil {
				if stop(server) && len(servers) == 0 {
					servers = append(servers, server)
					cancel()
				}
			} else {
				servers = append(servers, server)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, m.service(), ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	logging.Debug("mDNS browse finished",
		zap.String("service", m.service()),
		zap.Int("found", len(servers)),
	)
	return append([]*Server(nil), servers...), nil
}

// parseServiceEntry converts a zeroconf entry to a Server. Entries
// without an address are skipped.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Server {
	if entry == nil {
		return nil
	}

	addr := firstAddr(entry.AddrIPv4)
	if !addr.IsValid() {
		addr = firstAddr(entry.AddrIPv6)
	}
	if !Usable(addr) {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	port := entry.Port
	if port <= 0 || port > 65535 {
		port = DefaultPort
	}

	return &Server{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		Addr:         addr,
		Port:         uint16(port),
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

func firstAddr(ips []net.IP) netip.Addr {
	for _, ip := range ips {
		if a, ok := netip.AddrFromSlice(ip); ok {
			return a.Unmap()
		}
	}
	return netip.Addr{}
}

// Advertisement is a registered mDNS service. Shutdown withdraws it.
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers instance as ServiceType on port with the given TXT
// records on all multicast interfaces.
func Advertise(instance string, port int, txt []string) (*Advertisement, error) {
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	logging.Info("mDNS service registered",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the advertisement
func (a *Advertisement) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}
