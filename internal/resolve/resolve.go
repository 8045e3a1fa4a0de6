package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/siotlab/bdsc/internal/logging"
)

const (
	// DefaultHostname is the server name looked up at startup
	DefaultHostname = "iotserver2"

	// DefaultPort is the server TCP port
	DefaultPort = 6999

	// DefaultTimeout bounds the whole resolution
	DefaultTimeout = 5 * time.Second

	// SourceFallback marks an Endpoint built from the static fallback
	SourceFallback = "fallback"
)

// DefaultFallback is used when no resolver produced a usable address
var DefaultFallback = netip.MustParseAddr("198.51.100.3")

// ErrNoAddress is returned by resolvers that found no usable address.
var ErrNoAddress = errors.New("no usable address")

// Resolver maps a host name to one address.
type Resolver interface {
	Resolve(ctx context.Context, host string) (netip.Addr, error)
}

// named is implemented by resolvers that can identify themselves in the
// Endpoint source.
type named interface {
	Name() string
}

// Endpoint is the resolved server address. It is immutable after startup.
type Endpoint struct {
	Host     string
	Addr     netip.Addr
	Port     uint16
	Fallback bool

	// Source names the resolver that produced Addr, or "fallback".
	Source string

	// Err is the resolution failure that caused a fallback, if any.
	Err error
}

// AddrPort returns the dialable server address
func (e Endpoint) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(e.Addr, e.Port)
}

// String returns a human-readable description
func (e Endpoint) String() string {
	if e.Fallback {
		return fmt.Sprintf("%s (fallback for %s)", e.AddrPort(), e.Host)
	}
	return fmt.Sprintf("%s (%s via %s)", e.AddrPort(), e.Host, e.Source)
}

// Usable reports whether addr can be dialed. The zero Addr and the
// unspecified addresses count as a null answer.
func Usable(addr netip.Addr) bool {
	return addr.IsValid() && !addr.IsUnspecified()
}

// Options controls Lookup.
type Options struct {
	Host     string
	Port     uint16
	Fallback netip.Addr
	Timeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = DefaultHostname
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if !o.Fallback.IsValid() {
		o.Fallback = DefaultFallback
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Lookup resolves opts.Host with r within opts.Timeout. When r fails or
// answers with a null address the fallback is returned with Fallback set.
func Lookup(ctx context.Context, r Resolver, opts Options) Endpoint {
	opts = opts.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ep := Endpoint{Host: opts.Host, Port: opts.Port}

	var (
		addr   netip.Addr
		source string
		err    error
	)
	if r == nil {
		err = errors.New("no resolver configured")
	} else if c, ok := r.(Chain); ok {
		addr, source, err = c.resolve(ctx, opts.Host)
	} else {
		addr, err = r.Resolve(ctx, opts.Host)
		source = nameOf(r)
	}

	if err == nil && !Usable(addr) {
		err = fmt.Errorf("%w: %s resolved to %s", ErrNoAddress, opts.Host, addr)
	}

	if err != nil {
		logging.Warn("Hostname lookup failed, using fallback",
			zap.String("host", opts.Host),
			zap.Stringer("fallback", opts.Fallback),
			zap.Error(err),
		)
		ep.Addr = opts.Fallback
		ep.Fallback = true
		ep.Source = SourceFallback
		ep.Err = err
		return ep
	}

	ep.Addr = addr.Unmap()
	ep.Source = source
	logging.Info("Hostname resolved",
		zap.String("host", opts.Host),
		zap.Stringer("addr", ep.Addr),
		zap.String("source", source),
	)
	return ep
}

func nameOf(r Resolver) string {
	if n, ok := r.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", r)
}

// Chain tries each resolver in order until one returns a usable address.
type Chain []Resolver

// Resolve returns the first usable address
func (c Chain) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	addr, _, err := c.resolve(ctx, host)
	return addr, err
}

// Name identifies the chain
func (c Chain) Name() string {
	return "chain"
}

func (c Chain) resolve(ctx context.Context, host string) (netip.Addr, string, error) {
	var errs []error
	for _, r := range c {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		addr, err := r.Resolve(ctx, host)
		if err == nil && Usable(addr) {
			return addr, nameOf(r), nil
		}
		if err == nil {
			err = fmt.Errorf("%w: %s answered %s", ErrNoAddress, nameOf(r), addr)
		}
		logging.Debug("Resolver failed", zap.String("resolver", nameOf(r)), zap.Error(err))
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return netip.Addr{}, "", ErrNoAddress
	}
	return netip.Addr{}, "", errors.Join(errs...)
}

// DNS resolves through the system resolver, IPv4 only.
type DNS struct {
	// Resolver overrides net.DefaultResolver.
	Resolver *net.Resolver
}

// Resolve returns the first IPv4 address of host
func (d DNS) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	r := d.Resolver
	if r == nil {
		r = net.DefaultResolver
	}

	addrs, err := r.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("dns lookup of %s: %w", host, err)
	}
	for _, a := range addrs {
		if Usable(a.Unmap()) {
			return a.Unmap(), nil
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: dns returned no address for %s", ErrNoAddress, host)
}

// Name identifies the resolver
func (DNS) Name() string {
	return "dns"
}

// Static always answers with Addr. It is useful for a pinned server
// address and in tests.
type Static struct {
	Addr netip.Addr
}

// Resolve returns the pinned address
func (s Static) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	return s.Addr, nil
}

// Name identifies the resolver
func (Static) Name() string {
	return "static"
}
