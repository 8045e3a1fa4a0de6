package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/siotlab/bdsc/internal/logging"
)

const (
	// DefaultConnectTimeout bounds the TCP handshake
	DefaultConnectTimeout = 2 * time.Second

	// DefaultReadTimeout bounds the wait for a complete reply
	DefaultReadTimeout = 500 * time.Millisecond

	// DefaultWriteTimeout bounds a write+flush of one frame
	DefaultWriteTimeout = 2 * time.Second

	// writeBufferSize comfortably holds one frame
	writeBufferSize = 64
)

// State is the lifecycle state of a Session
type State int

const (
	StateUnopened State = iota
	StateConnecting
	StateOpen
	StateClosed
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ReadOutcome describes how a reply read ended
type ReadOutcome int

const (
	// ReadComplete means all requested bytes arrived
	ReadComplete ReadOutcome = iota
	// ReadPartial means some bytes arrived before the deadline or EOF
	ReadPartial
	// ReadTimeout means nothing arrived before the deadline
	ReadTimeout
	// ReadClosed means the server closed the connection without sending anything
	ReadClosed
)

// String returns a human-readable outcome name
func (o ReadOutcome) String() string {
	switch o {
	case ReadComplete:
		return "complete"
	case ReadPartial:
		return "partial"
	case ReadTimeout:
		return "timeout"
	case ReadClosed:
		return "closed"
	default:
		return fmt.Sprintf("ReadOutcome(%d)", int(o))
	}
}

// ReadResult is what ReadReply observed. Data holds the N bytes that
// arrived; it is only a valid reply when Outcome is ReadComplete.
type ReadResult struct {
	Data    []byte
	N       int
	Outcome ReadOutcome
}

// Dialer opens the underlying connection. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options configures a Session. Zero values fall back to the defaults.
type Options struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration

	// Dialer replaces the default dialer, which binds an ephemeral local
	// TCP port.
	Dialer Dialer
}

func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout > 0 {
		return o.ConnectTimeout
	}
	return DefaultConnectTimeout
}

func (o Options) writeTimeout() time.Duration {
	if o.WriteTimeout > 0 {
		return o.WriteTimeout
	}
	return DefaultWriteTimeout
}

func (o Options) dialer() Dialer {
	if o.Dialer != nil {
		return o.Dialer
	}
	return &net.Dialer{LocalAddr: &net.TCPAddr{Port: 0}}
}

// Session is one connect, exchange, close cycle with the server. A Session
// is owned by a single goroutine and is never reopened.
type Session struct {
	endpoint netip.AddrPort
	opts     Options

	state State
	conn  net.Conn
	w     *bufio.Writer

	closeOnce sync.Once
	closeErr  error
}

// NewSession creates an unopened session for the given endpoint.
func NewSession(endpoint netip.AddrPort, opts Options) *Session {
	return &Session{
		endpoint: endpoint,
		opts:     opts,
		state:    StateUnopened,
	}
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return s.state
}

// Endpoint returns the server address of the session
func (s *Session) Endpoint() netip.AddrPort {
	return s.endpoint
}

// LocalAddr returns the ephemeral local address, or nil when not open
func (s *Session) LocalAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Open connects to the server. If the handshake does not finish within the
// connect timeout, or the server refuses, the session moves straight to
// Closed and a connect-class *SessionError is returned.
func (s *Session) Open(ctx context.Context) error {
	addr := s.endpoint.String()
	if s.state != StateUnopened {
		return &SessionError{
			Type:     ErrTypeClosed,
			Message:  fmt.Sprintf("cannot open session in state %s", s.state),
			Endpoint: addr,
		}
	}

	s.state = StateConnecting

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.connectTimeout())
	defer cancel()

	conn, err := s.opts.dialer().DialContext(dialCtx, "tcp", addr)
	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		s.state = StateClosed
		return classifyDialError(err, addr)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		// Frames are far below one segment; send them without waiting.
		_ = tcpConn.SetNoDelay(true)
	}

	s.conn = conn
	s.w = bufio.NewWriterSize(conn, writeBufferSize)
	s.state = StateOpen

	logging.Debug("Session opened",
		zap.String("remote_addr", addr),
		zap.Stringer("local_addr", conn.LocalAddr()),
	)
	return nil
}

// WriteAndFlush buffers p and forces it onto the wire immediately.
func (s *Session) WriteAndFlush(p []byte) error {
	if s.state != StateOpen {
		return s.notOpen("write")
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.opts.writeTimeout())); err != nil {
		return &SessionError{Type: ErrTypeWrite, Message: "failed to set write deadline", Endpoint: s.endpoint.String(), Err: err}
	}
	defer func() { _ = s.conn.SetWriteDeadline(time.Time{}) }()

	if _, err := s.w.Write(p); err != nil {
		return &SessionError{Type: ErrTypeWrite, Message: "failed to buffer frame", Endpoint: s.endpoint.String(), Err: err}
	}
	if err := s.w.Flush(); err != nil {
		return &SessionError{Type: ErrTypeWrite, Message: "failed to flush frame", Endpoint: s.endpoint.String(), Err: err}
	}
	return nil
}

// ReadReply blocks until maxLen bytes arrived or timeout elapsed. The read
// buffer is one byte longer than maxLen and that byte is never written.
// Any outcome other than ReadComplete is returned together with a
// *SessionError; the partial bytes are for diagnostics only.
func (s *Session) ReadReply(maxLen int, timeout time.Duration) (ReadResult, error) {
	if s.state != StateOpen {
		return ReadResult{Outcome: ReadClosed}, s.notOpen("read")
	}
	if maxLen <= 0 {
		return ReadResult{}, fmt.Errorf("invalid reply length %d", maxLen)
	}
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	buf := make([]byte, maxLen+1)
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return ReadResult{Outcome: ReadClosed}, &SessionError{
			Type: ErrTypeMalformedReply, Message: "failed to set read deadline", Endpoint: s.endpoint.String(), Err: err,
		}
	}
	defer func() { _ = s.conn.SetReadDeadline(time.Time{}) }()

	n, err := io.ReadFull(s.conn, buf[:maxLen])
	result := ReadResult{Data: buf[:n], N: n}

	if err == nil {
		result.Outcome = ReadComplete
		return result, nil
	}

	switch {
	case os.IsTimeout(err) && n == 0:
		result.Outcome = ReadTimeout
		return result, &SessionError{
			Type:     ErrTypeReadTimeout,
			Message:  fmt.Sprintf("no reply within %s", timeout),
			Endpoint: s.endpoint.String(),
			Err:      err,
		}
	case errors.Is(err, io.EOF) && n == 0:
		result.Outcome = ReadClosed
		return result, &SessionError{
			Type:     ErrTypeMalformedReply,
			Message:  "server closed the connection without replying",
			Endpoint: s.endpoint.String(),
			Err:      err,
		}
	default:
		result.Outcome = ReadPartial
		return result, &SessionError{
			Type:      ErrTypeMalformedReply,
			Message:   fmt.Sprintf("received %d of %d bytes", n, maxLen),
			Endpoint:  s.endpoint.String(),
			BytesRead: n,
			Err:       err,
		}
	}
}

// Close releases the connection and the write buffer. It is safe to call
// in any state and more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.state = StateClosed
		if s.conn == nil {
			return
		}
		s.closeErr = s.conn.Close()
		s.conn = nil
		s.w = nil
		logging.Debug("Session closed", zap.String("remote_addr", s.endpoint.String()))
	})
	return s.closeErr
}

func (s *Session) notOpen(op string) error {
	return &SessionError{
		Type:     ErrTypeClosed,
		Message:  fmt.Sprintf("cannot %s in state %s", op, s.state),
		Endpoint: s.endpoint.String(),
	}
}
