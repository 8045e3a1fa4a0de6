// Package client runs the startup sequence and owns the long-lived state
// every worker shares: the device identity and the server endpoint.
//
// Start performs, strictly in order: platform init, network bring-up,
// host name, identity capture, endpoint resolution (with static
// fallback), then creates one wake signal and one worker per source and
// subscribes the edge handlers. Run then blocks running the workers.
// Identity and endpoint never change after Start.
package client

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/siotlab/bdsc/internal/config"
	"github.com/siotlab/bdsc/internal/dispatch"
	"github.com/siotlab/bdsc/internal/exchange"
	"github.com/siotlab/bdsc/internal/logging"
	"github.com/siotlab/bdsc/internal/platform"
	"github.com/siotlab/bdsc/internal/protocol"
	"github.com/siotlab/bdsc/internal/report"
	"github.com/siotlab/bdsc/internal/resolve"
	"github.com/siotlab/bdsc/internal/transport"
	"github.com/siotlab/bdsc/internal/wake"
)

// Platform is the device the client runs on.
type Platform interface {
	Init() error
	NetworkUp(ctx context.Context, iface string, mode platform.DHCPMode) error
	SetHostname(name string) error
	HardwareAddr(iface string) (protocol.Identity, error)
	SubscribeEdge(pin string, edge platform.Edge, handler func()) error
	Close() error
}

// Option customizes a Client
type Option func(*Client)

// WithResolver replaces the resolver built from the config
func WithResolver(r resolve.Resolver) Option {
	return func(c *Client) { c.resolver = r }
}

// WithReporter sets where user-visible events go
func WithReporter(r report.Reporter) Option {
	return func(c *Client) { c.reporter = r }
}

// WithDialer replaces the TCP dialer used by every session
func WithDialer(d transport.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithResultHook is called with every worker exchange result
func WithResultHook(fn func(exchange.Result)) Option {
	return func(c *Client) { c.onResult = fn }
}

// Client is the orchestrator.
type Client struct {
	cfg      *config.Config
	platform Platform
	resolver resolve.Resolver
	reporter report.Reporter
	dialer   transport.Dialer
	onResult func(exchange.Result)

	identity   protocol.Identity
	endpoint   resolve.Endpoint
	exchanger  *exchange.Client
	dispatcher *dispatch.Dispatcher
	prepared   bool
	started    bool
}

// New creates a client for cfg on p. The config is validated here so that
// Start only fails on collaborator errors.
func New(cfg *config.Config, p Platform, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{
		cfg:      cfg,
		platform: p,
		reporter: report.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.resolver == nil {
		c.resolver = DefaultResolver(cfg)
	}
	return c, nil
}

// DefaultResolver builds the resolver chain described by cfg: DNS, then
// mDNS when a service is configured.
func DefaultResolver(cfg *config.Config) resolve.Resolver {
	chain := resolve.Chain{resolve.DNS{}}
	if cfg.Server.MDNSService != "" {
		chain = append(chain, resolve.MDNS{Service: cfg.Server.MDNSService})
	}
	return chain
}

// Start brings the device up and wires the workers. Any collaborator
// failure other than name resolution aborts startup with a *StartupError.
func (c *Client) Start(ctx context.Context) error {
	if c.started {
		return nil
	}
	if c.platform == nil {
		return c.fail("platform", fmt.Errorf("no platform"))
	}

	if err := c.platform.Init(); err != nil {
		return c.fail("platform init", err)
	}

	mode, err := c.cfg.DHCPMode()
	if err != nil {
		return c.fail("network", err)
	}
	upCtx, cancel := context.WithTimeout(ctx, c.cfg.Network.UpTimeout)
	err = c.platform.NetworkUp(upCtx, c.cfg.Network.Interface, mode)
	cancel()
	if err != nil {
		return c.fail("network", err)
	}

	if name := c.cfg.Network.Hostname; name != "" {
		if err := c.platform.SetHostname(name); err != nil {
			report.Warnf(c.reporter, "", "Could not set hostname %s: %v", name, err)
		} else {
			logging.Debug("Hostname set", zap.String("hostname", name))
		}
	}

	if err := c.Prepare(ctx); err != nil {
		return err
	}

	workers := make([]*dispatch.Worker, 0, len(c.cfg.Sources))
	for _, src := range c.cfg.Sources {
		sig := wake.New(src.Name)
		w := dispatch.NewWorker(src.Name, sig, newAction(src), c.exchanger)
		w.OnResult = c.onResult
		workers = append(workers, w)
	}

	d, err := dispatch.New(workers...)
	if err != nil {
		return c.fail("workers", err)
	}

	for i, src := range c.cfg.Sources {
		edge, err := platform.ParseEdge(src.Edge)
		if err != nil {
			return c.fail("edge handlers", err)
		}
		if err := c.platform.SubscribeEdge(src.Pin, edge, dispatch.Handler(workers[i].Signal())); err != nil {
			return c.fail("edge handlers", err)
		}
	}

	c.dispatcher = d
	c.started = true
	report.Infof(c.reporter, "", "Activated %d button workers", len(workers))
	return nil
}

// Prepare captures the identity and resolves the endpoint. Start calls it;
// one-shot commands call it alone to exchange without the GPIO setup.
func (c *Client) Prepare(ctx context.Context) error {
	if c.prepared {
		return nil
	}

	id, err := c.captureIdentity()
	if err != nil {
		return c.fail("identity", err)
	}
	c.identity = id
	report.Infof(c.reporter, "", "MAC address = %s", id)

	fallback, err := c.cfg.FallbackAddr()
	if err != nil {
		return c.fail("endpoint", err)
	}
	c.endpoint = resolve.Lookup(ctx, c.resolver, resolve.Options{
		Host:     c.cfg.Server.Hostname,
		Port:     c.cfg.Server.Port,
		Fallback: fallback,
		Timeout:  c.cfg.Server.LookupTimeout,
	})
	if c.endpoint.Fallback {
		report.Warnf(c.reporter, "", "Unable to find %s, using fallback %s", c.endpoint.Host, c.endpoint.Addr)
	} else {
		report.Infof(c.reporter, "", "Server %s is at %s", c.endpoint.Host, c.endpoint.Addr)
	}

	opts := transport.Options{
		ConnectTimeout: c.cfg.Transport.ConnectTimeout,
		WriteTimeout:   c.cfg.Transport.WriteTimeout,
		Dialer:         c.dialer,
	}
	c.exchanger = exchange.New(exchange.Config{
		Identity:    c.identity,
		Endpoint:    c.endpoint.AddrPort(),
		Session:     opts,
		ReplyLength: c.cfg.Transport.ReplyLength,
		ReadTimeout: c.cfg.Transport.ReadTimeout,
	}, c.reporter)

	c.prepared = true
	return nil
}

// Run runs the workers until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	if !c.started {
		return ErrNotStarted
	}
	logging.Info("Dispatcher running", zap.Int("workers", len(c.dispatcher.Workers())))
	return c.dispatcher.Run(ctx)
}

// Send performs one exchange outside any worker.
func (c *Client) Send(ctx context.Context, cmd protocol.Command) (exchange.Result, error) {
	if !c.prepared {
		return exchange.Result{}, ErrNotStarted
	}
	return c.exchanger.Exchange(ctx, "send", cmd), nil
}

// Identity returns the captured identity
func (c *Client) Identity() protocol.Identity {
	return c.identity
}

// Endpoint returns the resolved endpoint
func (c *Client) Endpoint() resolve.Endpoint {
	return c.endpoint
}

// Sources returns the configured sources
func (c *Client) Sources() []config.Source {
	return c.cfg.Sources
}

// Close releases the platform
func (c *Client) Close() error {
	if c.platform == nil {
		return nil
	}
	return c.platform.Close()
}

func (c *Client) captureIdentity() (protocol.Identity, error) {
	id, ok, err := c.cfg.IdentityOverride()
	if err != nil {
		return protocol.Identity{}, err
	}
	if ok {
		return id, nil
	}

	if c.platform == nil {
		return protocol.Identity{}, fmt.Errorf("no platform to read the hardware address from")
	}
	id, err = c.platform.HardwareAddr(c.cfg.Network.Interface)
	if err != nil {
		return protocol.Identity{}, err
	}
	if id.IsZero() {
		return protocol.Identity{}, fmt.Errorf("hardware address is all zeros")
	}
	return id, nil
}

// fail reports a fatal startup error before returning it.
func (c *Client) fail(step string, err error) error {
	serr := &StartupError{Step: step, Err: err}
	report.Failf(c.reporter, "", "Startup failed at %s: %v", step, err)
	logging.Error("Startup failed", zap.String("step", step), zap.Error(err))
	return serr
}

func newAction(src config.Source) dispatch.Action {
	switch src.Action {
	case config.ActionToggle:
		return dispatch.NewToggle(src.Register, src.Off, src.On)
	default:
		return dispatch.NewInquiry(src.Register)
	}
}
