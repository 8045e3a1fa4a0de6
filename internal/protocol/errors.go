package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCommand is returned for commands whose operation is neither
	// write nor read. Encoding fails before any I/O happens.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrFrameOverflow is returned when a rendered frame does not fit in
	// MaxFrameLen bytes.
	ErrFrameOverflow = errors.New("frame exceeds maximum length")

	// ErrMalformedReply is returned when fewer bytes than the expected reply
	// length arrived.
	ErrMalformedReply = errors.New("malformed reply")
)

// CommandError describes a command that cannot be put on the wire.
type CommandError struct {
	Op     Op
	Reason string
}

func (e *CommandError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid command: %s", e.Reason)
	}
	return fmt.Sprintf("invalid command: unknown operation %s", e.Op)
}

// Is makes errors.Is(err, ErrInvalidCommand) hold for every CommandError.
func (e *CommandError) Is(target error) bool {
	return target == ErrInvalidCommand
}

// ParseError describes an inbound line that does not follow the frame
// grammar. Only the reference server parses commands.
type ParseError struct {
	Field string
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to parse frame field %q in %q: %v", e.Field, e.Input, e.Err)
	}
	return fmt.Sprintf("failed to parse frame field %q in %q", e.Field, e.Input)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
