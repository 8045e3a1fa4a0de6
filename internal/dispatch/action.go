package dispatch

import (
	"fmt"

	"github.com/siotlab/bdsc/internal/protocol"
)

// Action decides which command a worker sends on its next wake. An Action
// belongs to exactly one worker and is never shared.
type Action interface {
	Next() protocol.Command
	Name() string
}

// Toggle alternates writes of Off and On to one register, starting with
// Off. The state lives only in the worker and is not read back from the
// server.
type Toggle struct {
	Register byte
	Off      uint16
	On       uint16

	on bool
}

// NewToggle creates a toggle that sends off first.
func NewToggle(register byte, off, on uint16) *Toggle {
	return &Toggle{Register: register, Off: off, On: on}
}

// Next returns the write for the current state and flips it
func (t *Toggle) Next() protocol.Command {
	value := t.Off
	if t.on {
		value = t.On
	}
	t.on = !t.on
	return protocol.Write(t.Register, value)
}

// Name identifies the action in logs
func (t *Toggle) Name() string {
	return fmt.Sprintf("toggle(0x%02X)", t.Register)
}

// Inquiry reads one register every time.
type Inquiry struct {
	Register byte
}

// NewInquiry creates an inquiry for register.
func NewInquiry(register byte) *Inquiry {
	return &Inquiry{Register: register}
}

// Next returns a read of the register
func (q *Inquiry) Next() protocol.Command {
	return protocol.Read(q.Register)
}

// Name identifies the action in logs
func (q *Inquiry) Name() string {
	return fmt.Sprintf("inquiry(0x%02X)", q.Register)
}

// Fixed sends the same command every time. Invalid commands are passed
// through so the exchanger can reject them.
type Fixed struct {
	Command protocol.Command
}

// Next returns the fixed command
func (f Fixed) Next() protocol.Command {
	return f.Command
}

// Name identifies the action in logs
func (f Fixed) Name() string {
	return "fixed(" + f.Command.String() + ")"
}
