// Package exchange performs one request/response cycle with the server:
// encode the command, open a fresh session, send the frame, wait a bounded
// time for the reply and close the session again.
//
// Every outcome is reported and returned in a Result. Nothing is retried
// and no error escapes as a panic or a propagated failure; the caller
// decides what to do next.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siotlab/bdsc/internal/logging"
	"github.com/siotlab/bdsc/internal/protocol"
	"github.com/siotlab/bdsc/internal/report"
	"github.com/siotlab/bdsc/internal/transport"
)

// Outcome summarizes how an exchange ended
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeInvalidCommand
	OutcomeConnectFailed
	OutcomeWriteFailed
	OutcomeNoReply
	OutcomeMalformedReply
	OutcomeCancelled
)

// String returns a human-readable outcome name
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeInvalidCommand:
		return "invalid_command"
	case OutcomeConnectFailed:
		return "connect_failed"
	case OutcomeWriteFailed:
		return "write_failed"
	case OutcomeNoReply:
		return "no_reply"
	case OutcomeMalformedReply:
		return "malformed_reply"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result describes one finished exchange.
type Result struct {
	ID      string
	Source  string
	Command protocol.Command
	Frame   string
	Reply   protocol.Reply
	Outcome Outcome
	Err     error
	Elapsed time.Duration
}

// OK reports whether a complete reply was received
func (r Result) OK() bool {
	return r.Outcome == OutcomeOK
}

// Exchanger runs exchanges. Workers call it from their own goroutine; it
// holds no per-exchange state and may be shared.
type Exchanger interface {
	Exchange(ctx context.Context, source string, cmd protocol.Command) Result
}

// Config holds what every exchange needs. It is read-only once built.
type Config struct {
	Identity protocol.Identity
	Endpoint netip.AddrPort

	// Session configures the connect and write bounds and the dialer.
	Session transport.Options

	// ReplyLength is the number of reply bytes to wait for.
	ReplyLength int

	// ReadTimeout bounds the wait for the reply.
	ReadTimeout time.Duration
}

// Client is the TCP Exchanger.
type Client struct {
	cfg      Config
	reporter report.Reporter
}

// New creates an exchanger. A nil reporter discards events.
func New(cfg Config, reporter report.Reporter) *Client {
	if cfg.ReplyLength <= 0 {
		cfg.ReplyLength = protocol.ReplyLength
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = transport.DefaultReadTimeout
	}
	if reporter == nil {
		reporter = report.Discard
	}
	return &Client{cfg: cfg, reporter: reporter}
}

// Config returns the exchanger configuration
func (c *Client) Config() Config {
	return c.cfg
}

// Exchange runs one full cycle for cmd. An invalid command fails before
// any connection is attempted.
func (c *Client) Exchange(ctx context.Context, source string, cmd protocol.Command) Result {
	start := time.Now()
	res := Result{
		ID:      uuid.NewString(),
		Source:  source,
		Command: cmd,
	}

	finish := func(outcome Outcome, err error) Result {
		res.Outcome = outcome
		res.Err = err
		res.Elapsed = time.Since(start)
		logging.LogExchange(res.ID, source, res.Frame, outcome.String(), res.Elapsed, err)
		return res
	}

	frame, err := protocol.Encode(c.cfg.Identity, cmd)
	if err != nil {
		c.emit(res, report.LevelFailure, fmt.Sprintf("Invalid command: %v", err))
		return finish(OutcomeInvalidCommand, err)
	}
	res.Frame = frame.Line()
	c.emit(res, report.LevelInfo, "Prepared Message = "+res.Frame)

	session := transport.NewSession(c.cfg.Endpoint, c.cfg.Session)
	defer func() { _ = session.Close() }()

	if err := session.Open(ctx); err != nil {
		if ctx.Err() != nil {
			c.emit(res, report.LevelWarning, "Cancelled")
			return finish(OutcomeCancelled, err)
		}
		c.emit(res, report.LevelFailure, "Failed connection! "+transport.ShortMessage(err))
		return finish(OutcomeConnectFailed, err)
	}
	c.emit(res, report.LevelInfo, "Successful connection!")

	if err := session.WriteAndFlush(frame.Bytes()); err != nil {
		c.emit(res, report.LevelFailure, transport.ShortMessage(err))
		return finish(OutcomeWriteFailed, err)
	}

	read, err := session.ReadReply(c.cfg.ReplyLength, c.cfg.ReadTimeout)
	if err != nil {
		if read.N > 0 {
			logging.LogRawBytes("Discarded partial reply", read.Data)
		}
		c.emit(res, report.LevelFailure, transport.ShortMessage(err))
		if transport.IsReadTimeout(err) {
			return finish(OutcomeNoReply, err)
		}
		return finish(OutcomeMalformedReply, err)
	}

	reply, err := protocol.DecodeReply(read.Data, c.cfg.ReplyLength)
	if err != nil {
		c.emit(res, report.LevelFailure, "Malformed response")
		return finish(OutcomeMalformedReply, err)
	}
	res.Reply = reply
	c.emit(res, report.LevelSuccess, "Server Response = "+reply.Text())

	return finish(OutcomeOK, nil)
}

func (c *Client) emit(res Result, level report.Level, text string) {
	e := report.NewEvent(level, res.Source, text)
	e.ExchangeID = res.ID
	c.reporter.Report(e)
}

// IsInvalidCommand reports whether a result failed before any I/O
func IsInvalidCommand(err error) bool {
	return errors.Is(err, protocol.ErrInvalidCommand)
}

// Fields returns zap fields describing r for structured logs
func (r Result) Fields() []zap.Field {
	return []zap.Field{
		zap.String("exchange_id", r.ID),
		zap.String("source", r.Source),
		zap.Stringer("command", r.Command),
		zap.Stringer("outcome", r.Outcome),
		zap.Duration("elapsed", r.Elapsed),
	}
}
