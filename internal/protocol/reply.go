package protocol

import (
	"bytes"
	"fmt"
	"strings"
)

// ReplyLength is the default number of bytes a server reply occupies. The
// client reads exactly this many bytes; the buffer holds one more byte that
// always stays zero.
const ReplyLength = 27

// ReplyStatus is the first character of a reference-server reply.
type ReplyStatus byte

const (
	// StatusAck acknowledges a write and echoes the stored value
	StatusAck ReplyStatus = 'A'
	// StatusValue answers a read with the current register value
	StatusValue ReplyStatus = 'V'
	// StatusError rejects a command the server could not apply
	StatusError ReplyStatus = 'E'
)

// String returns a human-readable status name
func (s ReplyStatus) String() string {
	switch s {
	case StatusAck:
		return "ack"
	case StatusValue:
		return "value"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(s))
	}
}

// Reply is the raw content of a complete server reply. The client treats
// it as opaque text.
type Reply struct {
	Data []byte
}

// Text returns the reply with NUL padding and trailing whitespace removed.
func (r Reply) Text() string {
	data := r.Data
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return strings.TrimRight(string(data), "\r\n ")
}

// DecodeReply accepts buf only when it holds the full expected length.
// Nothing else about the content is checked.
func DecodeReply(buf []byte, expected int) (Reply, error) {
	if expected <= 0 {
		return Reply{}, fmt.Errorf("%w: expected length %d", ErrMalformedReply, expected)
	}
	if len(buf) < expected {
		return Reply{}, fmt.Errorf("%w: got %d of %d bytes", ErrMalformedReply, len(buf), expected)
	}
	data := make([]byte, expected)
	copy(data, buf)
	return Reply{Data: data}, nil
}

// ReplyFields is the decoded form of a reference-server reply.
type ReplyFields struct {
	Status   ReplyStatus
	Identity Identity
	Register byte
	Value    uint16
}

// EncodeReply renders a reference-server reply:
//
//	<status>-BDSC-<12 hex identity>-<2 hex register>-<4 hex value>
//
// The result is exactly ReplyLength bytes with no terminator.
func EncodeReply(status ReplyStatus, id Identity, register byte, value uint16) []byte {
	return fmt.Appendf(make([]byte, 0, ReplyLength), "%c-%s-%s-%02X-%04X",
		byte(status), Marker, id.Hex(), register, value)
}

// ParseReply decodes a reply produced by EncodeReply. Servers are free to
// answer in other formats, so ok=false is not an error for the exchange.
func ParseReply(r Reply) (fields ReplyFields, ok bool) {
	parts := strings.Split(r.Text(), string(Separator))
	if len(parts) != 5 || len(parts[0]) != 1 || parts[1] != Marker {
		return fields, false
	}

	status := ReplyStatus(parts[0][0])
	switch status {
	case StatusAck, StatusValue, StatusError:
	default:
		return fields, false
	}

	if len(parts[2]) != IdentityLen*2 {
		return fields, false
	}
	id, err := ParseIdentity(parts[2])
	if err != nil {
		return fields, false
	}
	reg, err := parseHexField(parts[3], 2)
	if err != nil {
		return fields, false
	}
	val, err := parseHexField(parts[4], 4)
	if err != nil {
		return fields, false
	}

	return ReplyFields{
		Status:   status,
		Identity: id,
		Register: byte(reg),
		Value:    uint16(val),
	}, true
}
