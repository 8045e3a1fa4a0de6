package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// Marker is the fixed tag carried in every frame after the operation
	Marker = "BDSC"

	// MaxFrameLen is the capacity of an outbound frame. A write frame is
	// exactly this long including the newline terminator.
	MaxFrameLen = 28

	// ReadFrameLen is the length of a read frame including the newline
	ReadFrameLen = 23

	// Separator delimits the frame sections
	Separator = '-'

	// Terminator ends every outbound frame
	Terminator = '\n'
)

// Frame is the wire form of one command. It is a bounded container: the
// content never exceeds MaxFrameLen bytes.
type Frame struct {
	buf [MaxFrameLen]byte
	n   int
}

// Bytes returns the frame content. The slice aliases the frame.
func (f *Frame) Bytes() []byte {
	return f.buf[:f.n]
}

// Len returns the number of bytes in the frame
func (f *Frame) Len() int {
	return f.n
}

// String returns the frame as text, including the trailing newline
func (f *Frame) String() string {
	return string(f.buf[:f.n])
}

// Line returns the frame text without its newline terminator, for echoing.
func (f *Frame) Line() string {
	if f.n > 0 && f.buf[f.n-1] == Terminator {
		return string(f.buf[:f.n-1])
	}
	return f.String()
}

// set copies b into the frame after checking that it fits.
func (f *Frame) set(b []byte) error {
	if len(b) > MaxFrameLen {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFrameOverflow, len(b), MaxFrameLen)
	}
	f.n = copy(f.buf[:], b)
	return nil
}

// Encode renders cmd as an outbound frame for the given identity.
//
// Write frames have the form
//
//	W-BDSC-<12 hex identity>-<2 hex register>-<4 hex value>\n
//
// and read frames omit the value section:
//
//	R-BDSC-<12 hex identity>-<2 hex register>\n
//
// All hex digits are uppercase and zero padded. Any other operation fails
// with ErrInvalidCommand.
func Encode(id Identity, cmd Command) (Frame, error) {
	var f Frame
	var line []byte

	switch cmd.Op {
	case OpWrite:
		line = fmt.Appendf(make([]byte, 0, MaxFrameLen), "%c-%s-%s-%02X-%04X\n",
			byte(cmd.Op), Marker, id.Hex(), cmd.Register, cmd.Value)
	case OpRead:
		line = fmt.Appendf(make([]byte, 0, MaxFrameLen), "%c-%s-%s-%02X\n",
			byte(cmd.Op), Marker, id.Hex(), cmd.Register)
	default:
		return f, &CommandError{Op: cmd.Op}
	}

	if err := f.set(line); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// ParseCommand is the inverse of Encode. The trailing newline is optional.
func ParseCommand(line []byte) (Identity, Command, error) {
	var id Identity
	var cmd Command

	input := string(line)
	text := input
	if n := len(text); n > 0 && text[n-1] == Terminator {
		text = text[:n-1]
	}
	if n := len(text); n > 0 && text[n-1] == '\r' {
		text = text[:n-1]
	}

	parts := strings.Split(text, string(Separator))
	if len(parts) < 4 {
		return id, cmd, &ParseError{Field: "sections", Input: input,
			Err: fmt.Errorf("got %d sections, want 4 or 5", len(parts))}
	}

	if len(parts[0]) != 1 {
		return id, cmd, &ParseError{Field: "op", Input: input}
	}
	cmd.Op = Op(parts[0][0])
	if !cmd.Op.Valid() {
		return id, cmd, &ParseError{Field: "op", Input: input, Err: &CommandError{Op: cmd.Op}}
	}

	if parts[1] != Marker {
		return id, cmd, &ParseError{Field: "marker", Input: input}
	}

	if len(parts[2]) != IdentityLen*2 {
		return id, cmd, &ParseError{Field: "identity", Input: input}
	}
	parsed, err := ParseIdentity(parts[2])
	if err != nil {
		return id, cmd, &ParseError{Field: "identity", Input: input, Err: err}
	}
	id = parsed

	reg, err := parseHexField(parts[3], 2)
	if err != nil {
		return id, cmd, &ParseError{Field: "register", Input: input, Err: err}
	}
	cmd.Register = byte(reg)

	switch cmd.Op {
	case OpWrite:
		if len(parts) != 5 {
			return id, cmd, &ParseError{Field: "value", Input: input,
				Err: fmt.Errorf("write frame has %d sections, want 5", len(parts))}
		}
		val, err := parseHexField(parts[4], 4)
		if err != nil {
			return id, cmd, &ParseError{Field: "value", Input: input, Err: err}
		}
		cmd.Value = uint16(val)
	case OpRead:
		if len(parts) != 4 {
			return id, cmd, &ParseError{Field: "value", Input: input,
				Err: fmt.Errorf("read frame has %d sections, want 4", len(parts))}
		}
	}

	return id, cmd, nil
}

// parseHexField parses exactly width hex digits.
func parseHexField(s string, width int) (uint64, error) {
	if len(s) != width {
		return 0, fmt.Errorf("got %d hex digits, want %d", len(s), width)
	}
	return strconv.ParseUint(s, 16, width*4)
}
