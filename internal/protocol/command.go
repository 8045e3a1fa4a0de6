package protocol

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"
)

// Op is the operation kind of a command. Its value is the letter that opens
// the wire frame.
type Op byte

const (
	// OpWrite sets a register on the server side
	OpWrite Op = 'W'
	// OpRead asks the server for the current value of a register
	OpRead Op = 'R'
)

// Valid reports whether op is one of the operations the wire format knows.
func (op Op) Valid() bool {
	return op == OpWrite || op == OpRead
}

// String returns a human-readable operation name
func (op Op) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(op))
	}
}

// ParseOp accepts "write"/"w" and "read"/"r" in any case.
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(s) {
	case "write", "w":
		return OpWrite, nil
	case "read", "r":
		return OpRead, nil
	default:
		return 0, &CommandError{Op: Op(0), Reason: fmt.Sprintf("unknown operation %q", s)}
	}
}

// Command is one request to the server. Value is only sent for writes.
type Command struct {
	Op       Op
	Register byte
	Value    uint16
}

// Write builds a write command for the given register.
func Write(register byte, value uint16) Command {
	return Command{Op: OpWrite, Register: register, Value: value}
}

// Read builds a read command for the given register.
func Read(register byte) Command {
	return Command{Op: OpRead, Register: register}
}

// String returns a debug representation of the command
func (c Command) String() string {
	if c.Op == OpWrite {
		return fmt.Sprintf("Command{op=%s, reg=0x%02X, value=0x%04X}", c.Op, c.Register, c.Value)
	}
	return fmt.Sprintf("Command{op=%s, reg=0x%02X}", c.Op, c.Register)
}

// IdentityLen is the length of a hardware address in bytes
const IdentityLen = 6

// Identity is the 6-byte hardware address that identifies this client in
// every frame.
type Identity [IdentityLen]byte

// IdentityFromHardwareAddr converts an interface address. Only 48-bit
// addresses are accepted.
func IdentityFromHardwareAddr(addr net.HardwareAddr) (Identity, error) {
	var id Identity
	if len(addr) != IdentityLen {
		return id, fmt.Errorf("hardware address %q has %d bytes, want %d", addr.String(), len(addr), IdentityLen)
	}
	copy(id[:], addr)
	return id, nil
}

// ParseIdentity parses a MAC in any form net.ParseMAC accepts, or a bare run
// of 12 hex digits as it appears inside a frame.
func ParseIdentity(s string) (Identity, error) {
	if len(s) == IdentityLen*2 && !strings.ContainsAny(s, ":-.") {
		var id Identity
		parsed, err := hex.DecodeString(s)
		if err != nil {
			return id, fmt.Errorf("invalid identity %q: %w", s, err)
		}
		copy(id[:], parsed)
		return id, nil
	}

	addr, err := net.ParseMAC(s)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid identity %q: %w", s, err)
	}
	return IdentityFromHardwareAddr(addr)
}

// Hex renders the identity as 12 uppercase hex digits with no separators.
func (id Identity) Hex() string {
	return fmt.Sprintf("%02X%02X%02X%02X%02X%02X", id[0], id[1], id[2], id[3], id[4], id[5])
}

// String renders the identity in colon-separated form
func (id Identity) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", id[0], id[1], id[2], id[3], id[4], id[5])
}

// IsZero reports whether the identity was never set.
func (id Identity) IsZero() bool {
	return id == Identity{}
}
