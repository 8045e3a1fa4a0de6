package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
)

// ErrorType represents the category of a session failure
type ErrorType int

const (
	// ErrTypeConnect indicates the connection could not be established
	ErrTypeConnect ErrorType = iota
	// ErrTypeConnectTimeout indicates the handshake did not complete in time
	ErrTypeConnectTimeout
	// ErrTypeConnectionRefused indicates the server refused the connection
	ErrTypeConnectionRefused
	// ErrTypeWrite indicates the frame could not be transmitted
	ErrTypeWrite
	// ErrTypeReadTimeout indicates no reply byte arrived before the deadline
	ErrTypeReadTimeout
	// ErrTypeMalformedReply indicates a reply shorter than expected
	ErrTypeMalformedReply
	// ErrTypeClosed indicates the session was used outside the Open state
	ErrTypeClosed
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeConnect:
		return "Connect Error"
	case ErrTypeConnectTimeout:
		return "Connect Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeWrite:
		return "Write Error"
	case ErrTypeReadTimeout:
		return "Read Timeout"
	case ErrTypeMalformedReply:
		return "Malformed Reply"
	case ErrTypeClosed:
		return "Session Closed"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// SessionError is returned by every failing Session operation.
type SessionError struct {
	Type      ErrorType // Category of error
	Message   string    // Human-readable error message
	Endpoint  string    // Server address the session targets
	BytesRead int       // Bytes received before a read gave up
	Err       error     // Underlying error (if any)
}

// Error implements the error interface
func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *SessionError) Unwrap() error {
	return e.Err
}

// classifyDialError maps a dial failure onto the connect error types.
func classifyDialError(err error, endpoint string) *SessionError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return &SessionError{
			Type:     ErrTypeConnectTimeout,
			Message:  "server did not complete the handshake in time",
			Endpoint: endpoint,
			Err:      err,
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &SessionError{
			Type:     ErrTypeConnectionRefused,
			Message:  "server refused connection",
			Endpoint: endpoint,
			Err:      err,
		}
	}

	return &SessionError{
		Type:     ErrTypeConnect,
		Message:  "failed to connect",
		Endpoint: endpoint,
		Err:      err,
	}
}

func typeOf(err error) (ErrorType, bool) {
	var sErr *SessionError
	if errors.As(err, &sErr) {
		return sErr.Type, true
	}
	return 0, false
}

// IsConnectError checks if an error happened while opening the session
// (including timeout and refusal)
func IsConnectError(err error) bool {
	t, ok := typeOf(err)
	return ok && (t == ErrTypeConnect || t == ErrTypeConnectTimeout || t == ErrTypeConnectionRefused)
}

// IsWriteError checks if an error is a write error
func IsWriteError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeWrite
}

// IsReadTimeout checks if no reply arrived before the deadline
func IsReadTimeout(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeReadTimeout
}

// IsMalformedReply checks if a reply arrived incomplete
func IsMalformedReply(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeMalformedReply
}

// ShortMessage returns a concise, user-friendly error message
func ShortMessage(err error) string {
	var sErr *SessionError
	if !errors.As(err, &sErr) {
		return err.Error()
	}

	switch sErr.Type {
	case ErrTypeConnectTimeout:
		return "Failed connection (timeout)"
	case ErrTypeConnectionRefused:
		return "Failed connection (refused)"
	case ErrTypeConnect:
		return "Failed connection"
	case ErrTypeWrite:
		return "Failed to send frame"
	case ErrTypeReadTimeout:
		return "No response (timeout)"
	case ErrTypeMalformedReply:
		return fmt.Sprintf("Malformed response (%d bytes)", sErr.BytesRead)
	case ErrTypeClosed:
		return "Session closed"
	default:
		return sErr.Message
	}
}

// TroubleshootingHints returns suggestions for resolving a session failure
func TroubleshootingHints(err error) []string {
	var sErr *SessionError
	if !errors.As(err, &sErr) {
		return nil
	}

	switch sErr.Type {
	case ErrTypeConnectTimeout:
		return []string{
			"Check the server address and that it is reachable",
			"Increase transport.connect_timeout if the network is slow",
		}
	case ErrTypeConnectionRefused:
		return []string{
			"Verify bdsc-server is running on " + sErr.Endpoint,
			"Check server.port in the configuration",
		}
	case ErrTypeConnect:
		return []string{"Check network connectivity and firewall settings"}
	case ErrTypeWrite:
		return []string{"The server closed the connection early; check its logs"}
	case ErrTypeReadTimeout:
		return []string{
			"The server accepted the frame but did not answer in time",
			"Increase transport.read_timeout or reduce the server reply delay",
		}
	case ErrTypeMalformedReply:
		return []string{"The server replied with fewer bytes than transport.reply_length"}
	default:
		return nil
	}
}
