package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/siotlab/bdsc/internal/logging"
	"github.com/siotlab/bdsc/internal/protocol"
	"github.com/siotlab/bdsc/internal/report"
	"github.com/siotlab/bdsc/internal/resolve"
)

const (
	// DefaultIdleTimeout closes connections that send nothing
	DefaultIdleTimeout = 10 * time.Second

	// shutdownGrace bounds how long Shutdown waits for handlers
	shutdownGrace = 10 * time.Second

	// maxLine caps an inbound line; frames are far shorter
	maxLine = 256
)

// Config holds the server configuration
type Config struct {
	Host string
	Port int

	// ReplyDelay is waited before every reply, to exercise client timeouts.
	ReplyDelay time.Duration

	// IdleTimeout closes a connection that sends no complete line in time.
	IdleTimeout time.Duration

	// Advertise registers the server over mDNS as Instance.
	Advertise bool
	Instance  string

	// Reporter receives one event per handled command. Nil discards.
	Reporter report.Reporter
}

// Server is the reference register server. It speaks the client's line
// protocol: one command per line, one fixed-length reply per command.
type Server struct {
	config      *Config
	store       *Store
	listener    net.Listener
	advert      *resolve.Advertisement
	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]net.Conn
	closing     bool
}

// New creates a new Server instance
func New(config *Config) *Server {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	if config.Reporter == nil {
		config.Reporter = report.Discard
	}
	return &Server{
		config:      config,
		store:       NewStore(),
		activeConns: make(map[string]net.Conn),
	}
}

// Store returns the register store
func (s *Server) Store() *Store {
	return s.store
}

// Listen binds the listening socket and, if configured, advertises it.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener

	logging.Info("Server listening for connections",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("reply_delay", s.config.ReplyDelay),
	)

	if s.config.Advertise {
		port := listener.Addr().(*net.TCPAddr).Port
		advert, err := resolve.Advertise(s.config.Instance, port, []string{"proto=bdsc", "version=1"})
		if err != nil {
			// The server is still reachable by address.
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			s.advert = advert
		}
	}
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens and serves until ctx is cancelled, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve()
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping server...")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	if s.listener == nil {
		return fmt.Errorf("server not listening")
	}
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection answers every line of one connection
func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.activeConns[remoteAddr] = conn
	s.mu.Unlock()

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.activeConns, remoteAddr)
		s.mu.Unlock()
		logging.LogConnection(remoteAddr, "connection_closed")
	}()

	logging.LogConnection(remoteAddr, "connection_accepted")

	reader := bufio.NewReaderSize(conn, maxLine)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
		line, err := reader.ReadSlice(protocol.Terminator)
		if err != nil {
			if !errors.Is(err, os.ErrDeadlineExceeded) && !errors.Is(err, net.ErrClosed) && len(line) > 0 {
				logging.LogRawBytes("Incomplete line", line)
			}
			return
		}

		reply := s.handleLine(remoteAddr, line)

		if s.config.ReplyDelay > 0 {
			time.Sleep(s.config.ReplyDelay)
		}
		if _, err := conn.Write(reply); err != nil {
			logging.Warn("Failed to send reply",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			return
		}
	}
}

// handleLine applies one command and renders its reply.
func (s *Server) handleLine(remoteAddr string, line []byte) []byte {
	id, cmd, err := protocol.ParseCommand(line)
	if err != nil {
		logging.Warn("Rejected command",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		logging.LogRawBytes("Rejected line", line)
		report.Failf(s.config.Reporter, remoteAddr, "Rejected: %v", err)
		return protocol.EncodeReply(protocol.StatusError, id, cmd.Register, 0)
	}

	var (
		status protocol.ReplyStatus
		value  uint16
	)
	switch cmd.Op {
	case protocol.OpWrite:
		status = protocol.StatusAck
		value = s.store.Write(id, cmd.Register, cmd.Value)
	default:
		status = protocol.StatusValue
		value = s.store.Read(id, cmd.Register)
	}

	logging.Debug("Command handled",
		zap.String("remote_addr", remoteAddr),
		zap.Stringer("identity", id),
		zap.Stringer("command", cmd),
		zap.Uint16("value", value),
	)
	report.Successf(s.config.Reporter, id.String(), "%s -> %c %04X", cmd, byte(status), value)

	return protocol.EncodeReply(status, id, cmd.Register, value)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.advert.Shutdown()

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}

	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	case <-time.After(shutdownGrace):
		logging.Warn("Shutdown timeout after 10 seconds, forcing close")
	}

	logging.Sync()
	return nil
}

// GetActiveConnections returns the number of active connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
