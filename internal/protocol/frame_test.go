package protocol

import (
	"errors"
	"strings"
	"testing"
)

var testIdentity = Identity{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		cmd  Command
		want string
	}{
		{
			name: "write register 0x10 value 1",
			id:   testIdentity,
			cmd:  Write(0x10, 1),
			want: "W-BDSC-AABBCCDDEEFF-10-0001\n",
		},
		{
			name: "read register 0x10",
			id:   testIdentity,
			cmd:  Read(0x10),
			want: "R-BDSC-AABBCCDDEEFF-10\n",
		},
		{
			name: "write pads register and value",
			id:   Identity{0x00, 0x01, 0x02, 0x0a, 0x0b, 0x0c},
			cmd:  Write(0x05, 0x0a),
			want: "W-BDSC-0001020A0B0C-05-000A\n",
		},
		{
			name: "write maximum register and value",
			id:   testIdentity,
			cmd:  Write(0xFF, 0xFFFF),
			want: "W-BDSC-AABBCCDDEEFF-FF-FFFF\n",
		},
		{
			name: "write zero value",
			id:   testIdentity,
			cmd:  Write(0x10, 0),
			want: "W-BDSC-AABBCCDDEEFF-10-0000\n",
		},
		{
			name: "read ignores value field",
			id:   testIdentity,
			cmd:  Command{Op: OpRead, Register: 0x01, Value: 0x1234},
			want: "R-BDSC-AABBCCDDEEFF-01\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.id, tt.cmd)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if got := frame.String(); got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
			if frame.Len() > MaxFrameLen {
				t.Errorf("frame length %d exceeds MaxFrameLen %d", frame.Len(), MaxFrameLen)
			}
		})
	}
}

func TestEncode_AllWriteFramesMatchGrammar(t *testing.T) {
	values := []uint16{0, 1, 0x0F, 0x10, 0xFF, 0x100, 0xABCD, 0xFFFF}

	for reg := 0; reg <= 0xFF; reg++ {
		for _, val := range values {
			frame, err := Encode(testIdentity, Write(byte(reg), val))
			if err != nil {
				t.Fatalf("Encode(write 0x%02X 0x%04X) error = %v", reg, val, err)
			}
			if frame.Len() != MaxFrameLen {
				t.Fatalf("write frame length = %d, want %d", frame.Len(), MaxFrameLen)
			}

			id, cmd, err := ParseCommand(frame.Bytes())
			if err != nil {
				t.Fatalf("ParseCommand(%q) error = %v", frame.String(), err)
			}
			if id != testIdentity || cmd.Op != OpWrite || cmd.Register != byte(reg) || cmd.Value != val {
				t.Fatalf("ParseCommand(%q) = %v %v", frame.String(), id, cmd)
			}
		}
	}
}

func TestEncode_ReadHasOneFewerSection(t *testing.T) {
	for reg := 0; reg <= 0xFF; reg++ {
		w, err := Encode(testIdentity, Write(byte(reg), 1))
		if err != nil {
			t.Fatalf("Encode(write) error = %v", err)
		}
		r, err := Encode(testIdentity, Read(byte(reg)))
		if err != nil {
			t.Fatalf("Encode(read) error = %v", err)
		}

		wSections := strings.Count(w.Line(), "-") + 1
		rSections := strings.Count(r.Line(), "-") + 1
		if rSections != wSections-1 {
			t.Fatalf("read frame %q has %d sections, write has %d", r.Line(), rSections, wSections)
		}
		if r.Len() != ReadFrameLen {
			t.Fatalf("read frame length = %d, want %d", r.Len(), ReadFrameLen)
		}
	}
}

func TestEncode_InvalidCommand(t *testing.T) {
	for _, op := range []Op{0, 'X', 'w', 'r', 0xFF} {
		frame, err := Encode(testIdentity, Command{Op: op, Register: 0x10, Value: 1})
		if err == nil {
			t.Fatalf("Encode(op=%v) should fail", op)
		}
		if !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("Encode(op=%v) error = %v, want ErrInvalidCommand", op, err)
		}
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) || cmdErr.Op != op {
			t.Errorf("Encode(op=%v) error should be *CommandError carrying the op", op)
		}
		if frame.Len() != 0 {
			t.Errorf("Encode(op=%v) produced %d bytes, want none", op, frame.Len())
		}
	}
}

func TestFrame_Line(t *testing.T) {
	frame, err := Encode(testIdentity, Read(0x10))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if got := frame.Line(); got != "R-BDSC-AABBCCDDEEFF-10" {
		t.Errorf("Line() = %q", got)
	}

	var empty Frame
	if empty.Line() != "" || len(empty.Bytes()) != 0 {
		t.Error("zero Frame should be empty")
	}
}

func TestFrame_SetOverflow(t *testing.T) {
	var f Frame
	err := f.set(make([]byte, MaxFrameLen+1))
	if !errors.Is(err, ErrFrameOverflow) {
		t.Errorf("set() error = %v, want ErrFrameOverflow", err)
	}
	if f.Len() != 0 {
		t.Errorf("frame should stay empty after overflow, got %d bytes", f.Len())
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantErr   bool
		wantField string
		wantCmd   Command
	}{
		{name: "write", line: "W-BDSC-AABBCCDDEEFF-10-0001\n", wantCmd: Write(0x10, 1)},
		{name: "read", line: "R-BDSC-AABBCCDDEEFF-10\n", wantCmd: Read(0x10)},
		{name: "crlf terminated", line: "R-BDSC-AABBCCDDEEFF-10\r\n", wantCmd: Read(0x10)},
		{name: "no terminator", line: "W-BDSC-AABBCCDDEEFF-7F-00FF", wantCmd: Write(0x7F, 0xFF)},
		{name: "lowercase hex", line: "W-BDSC-aabbccddeeff-1a-beef\n", wantCmd: Write(0x1A, 0xBEEF)},
		{name: "unknown op", line: "X-BDSC-AABBCCDDEEFF-10\n", wantErr: true, wantField: "op"},
		{name: "wrong marker", line: "W-ABCD-AABBCCDDEEFF-10-0001\n", wantErr: true, wantField: "marker"},
		{name: "short identity", line: "R-BDSC-AABBCCDDEE-10\n", wantErr: true, wantField: "identity"},
		{name: "bad register", line: "R-BDSC-AABBCCDDEEFF-1G\n", wantErr: true, wantField: "register"},
		{name: "write without value", line: "W-BDSC-AABBCCDDEEFF-10\n", wantErr: true, wantField: "value"},
		{name: "read with value", line: "R-BDSC-AABBCCDDEEFF-10-0001\n", wantErr: true, wantField: "value"},
		{name: "short value", line: "W-BDSC-AABBCCDDEEFF-10-01\n", wantErr: true, wantField: "value"},
		{name: "garbage", line: "hello\n", wantErr: true, wantField: "sections"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, cmd, err := ParseCommand([]byte(tt.line))
			if tt.wantErr {
				var perr *ParseError
				if !errors.As(err, &perr) {
					t.Fatalf("ParseCommand() error = %v, want *ParseError", err)
				}
				if perr.Field != tt.wantField {
					t.Errorf("ParseError.Field = %q, want %q", perr.Field, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommand() error = %v", err)
			}
			if id != testIdentity {
				t.Errorf("identity = %v, want %v", id, testIdentity)
			}
			if cmd != tt.wantCmd {
				t.Errorf("command = %v, want %v", cmd, tt.wantCmd)
			}
		})
	}
}
