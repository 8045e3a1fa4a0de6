package resolve

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"
)

type fakeResolver struct {
	name  string
	addr  netip.Addr
	err   error
	delay time.Duration
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return netip.Addr{}, ctx.Err()
		}
	}
	return f.addr, f.err
}

func (f *fakeResolver) Name() string {
	return f.name
}

func TestLookup(t *testing.T) {
	fallback := netip.MustParseAddr("198.51.100.3")

	tests := []struct {
		name         string
		resolver     Resolver
		wantAddr     string
		wantFallback bool
		wantSource   string
	}{
		{
			name:       "resolved address",
			resolver:   &fakeResolver{name: "dns", addr: netip.MustParseAddr("10.0.0.7")},
			wantAddr:   "10.0.0.7",
			wantSource: "dns",
		},
		{
			name:       "mapped address is unmapped",
			resolver:   &fakeResolver{name: "dns", addr: netip.MustParseAddr("::ffff:10.0.0.7")},
			wantAddr:   "10.0.0.7",
			wantSource: "dns",
		},
		{
			name:         "null address uses fallback",
			resolver:     &fakeResolver{name: "dns", addr: netip.IPv4Unspecified()},
			wantAddr:     "198.51.100.3",
			wantFallback: true,
			wantSource:   SourceFallback,
		},
		{
			name:         "zero address uses fallback",
			resolver:     &fakeResolver{name: "dns"},
			wantAddr:     "198.51.100.3",
			wantFallback: true,
			wantSource:   SourceFallback,
		},
		{
			name:         "lookup error uses fallback",
			resolver:     &fakeResolver{name: "dns", err: errors.New("no such host")},
			wantAddr:     "198.51.100.3",
			wantFallback: true,
			wantSource:   SourceFallback,
		},
		{
			name:         "timeout uses fallback",
			resolver:     &fakeResolver{name: "dns", addr: netip.MustParseAddr("10.0.0.7"), delay: time.Second},
			wantAddr:     "198.51.100.3",
			wantFallback: true,
			wantSource:   SourceFallback,
		},
		{
			name: "chain falls through to second resolver",
			resolver: Chain{
				&fakeResolver{name: "dns", err: errors.New("no such host")},
				&fakeResolver{name: "mdns", addr: netip.MustParseAddr("192.168.1.20")},
			},
			wantAddr:   "192.168.1.20",
			wantSource: "mdns",
		},
		{
			name:         "no resolver uses fallback",
			resolver:     nil,
			wantAddr:     "198.51.100.3",
			wantFallback: true,
			wantSource:   SourceFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := Lookup(context.Background(), tt.resolver, Options{
				Host:     "iotserver2",
				Port:     6999,
				Fallback: fallback,
				Timeout:  50 * time.Millisecond,
			})

			if ep.Addr.String() != tt.wantAddr {
				t.Errorf("Addr = %s, want %s", ep.Addr, tt.wantAddr)
			}
			if ep.Fallback != tt.wantFallback {
				t.Errorf("Fallback = %v, want %v", ep.Fallback, tt.wantFallback)
			}
			if ep.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", ep.Source, tt.wantSource)
			}
			if tt.wantFallback && ep.Err == nil {
				t.Error("fallback endpoint should carry the lookup error")
			}
			if ep.Port != 6999 {
				t.Errorf("Port = %d, want 6999", ep.Port)
			}
		})
	}
}

func TestLookup_Defaults(t *testing.T) {
	ep := Lookup(context.Background(), Static{}, Options{})

	if ep.Host != DefaultHostname {
		t.Errorf("Host = %q, want %q", ep.Host, DefaultHostname)
	}
	if ep.AddrPort() != netip.AddrPortFrom(DefaultFallback, DefaultPort) {
		t.Errorf("AddrPort = %s", ep.AddrPort())
	}
}

func TestChain_StopsAtFirstUsable(t *testing.T) {
	first := &fakeResolver{name: "dns", addr: netip.MustParseAddr("10.0.0.1")}
	second := &fakeResolver{name: "mdns", addr: netip.MustParseAddr("10.0.0.2")}

	addr, err := Chain{first, second}.Resolve(context.Background(), "iotserver2")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if addr.String() != "10.0.0.1" {
		t.Errorf("addr = %s", addr)
	}
	if second.calls != 0 {
		t.Errorf("second resolver called %d times", second.calls)
	}
}

func TestChain_AllFail(t *testing.T) {
	_, err := Chain{
		&fakeResolver{name: "dns", err: errors.New("boom")},
		&fakeResolver{name: "mdns", addr: netip.IPv4Unspecified()},
	}.Resolve(context.Background(), "iotserver2")

	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrNoAddress) {
		t.Errorf("error should include ErrNoAddress, got %v", err)
	}
}

func TestEndpoint_String(t *testing.T) {
	ep := Endpoint{Host: "iotserver2", Addr: netip.MustParseAddr("10.0.0.7"), Port: 6999, Source: "dns"}
	if got := ep.String(); got != "10.0.0.7:6999 (iotserver2 via dns)" {
		t.Errorf("String() = %q", got)
	}

	ep = Endpoint{Host: "iotserver2", Addr: DefaultFallback, Port: 6999, Fallback: true}
	if got := ep.String(); got != "198.51.100.3:6999 (fallback for iotserver2)" {
		t.Errorf("String() = %q", got)
	}
}

func TestUsable(t *testing.T) {
	tests := []struct {
		addr netip.Addr
		want bool
	}{
		{netip.Addr{}, false},
		{netip.IPv4Unspecified(), false},
		{netip.IPv6Unspecified(), false},
		{netip.MustParseAddr("127.0.0.1"), true},
	}
	for _, tt := range tests {
		if got := Usable(tt.addr); got != tt.want {
			t.Errorf("Usable(%v) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
