package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/siotlab/bdsc/internal/protocol"
	"github.com/siotlab/bdsc/internal/report"
)

var testIdentity = protocol.Identity{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}

func startTestServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0

	s := New(cfg)
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	go func() { _ = s.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func exchangeLine(t *testing.T, conn net.Conn, line string) string {
	t.Helper()
	if _, err := conn.Write([]byte(line)); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, protocol.ReplyLength)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	return string(buf)
}

func TestServer_WriteThenRead(t *testing.T) {
	s := startTestServer(t, &Config{})

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	tests := []struct {
		send string
		want string
	}{
		{"R-BDSC-AABBCCDDEEFF-10\n", "V-BDSC-AABBCCDDEEFF-10-0000"},
		{"W-BDSC-AABBCCDDEEFF-10-0001\n", "A-BDSC-AABBCCDDEEFF-10-0001"},
		{"R-BDSC-AABBCCDDEEFF-10\n", "V-BDSC-AABBCCDDEEFF-10-0001"},
		{"X-BDSC-AABBCCDDEEFF-10\n", "E-BDSC-000000000000-00-0000"},
	}

	for _, tt := range tests {
		if got := exchangeLine(t, conn, tt.send); got != tt.want {
			t.Errorf("reply to %q = %q, want %q", tt.send, got, tt.want)
		}
	}

	if s.Store().Read(testIdentity, 0x10) != 1 {
		t.Error("store should hold the written value")
	}
}

func TestServer_PipelinedFrames(t *testing.T) {
	s := startTestServer(t, &Config{})

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("W-BDSC-AABBCCDDEEFF-30-0007\nR-BDSC-AABBCCDDEEFF-30\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)
	for _, want := range []string{"A-BDSC-AABBCCDDEEFF-30-0007", "V-BDSC-AABBCCDDEEFF-30-0007"} {
		buf := make([]byte, protocol.ReplyLength)
		if _, err := io.ReadFull(r, buf); err != nil {
			t.Fatalf("read reply: %v", err)
		}
		if got := string(buf); got != want {
			t.Errorf("reply = %q, want %q", got, want)
		}
	}
}

func TestServer_StatePersistsAcrossConnections(t *testing.T) {
	s := startTestServer(t, &Config{})

	for i, want := range []string{"A-BDSC-AABBCCDDEEFF-20-00FF", "V-BDSC-AABBCCDDEEFF-20-00FF"} {
		conn, err := net.Dial("tcp", s.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		line := "W-BDSC-AABBCCDDEEFF-20-00FF\n"
		if i == 1 {
			line = "R-BDSC-AABBCCDDEEFF-20\n"
		}
		if got := exchangeLine(t, conn, line); got != want {
			t.Errorf("reply = %q, want %q", got, want)
		}
		_ = conn.Close()
	}
}

func TestServer_ReplyDelay(t *testing.T) {
	s := startTestServer(t, &Config{ReplyDelay: 150 * time.Millisecond})

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	start := time.Now()
	exchangeLine(t, conn, "R-BDSC-AABBCCDDEEFF-10\n")
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("reply after %v, want at least 150ms", elapsed)
	}
}

func TestServer_ReportsCommands(t *testing.T) {
	events := report.NewChannel(4)
	s := startTestServer(t, &Config{Reporter: events})

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	exchangeLine(t, conn, "W-BDSC-AABBCCDDEEFF-10-0001\n")

	select {
	case e := <-events.Events():
		if e.Source != "AA:BB:CC:DD:EE:FF" || e.Level != report.LevelSuccess {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event reported")
	}
}

func TestServer_ShutdownClosesConnections(t *testing.T) {
	s := New(&Config{Host: "127.0.0.1", Port: 0})
	if err := s.Listen(); err != nil {
		t.Fatal(err)
	}
	go func() { _ = s.Serve() }()

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for s.GetActiveConnections() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.GetActiveConnections() != 1 {
		t.Fatalf("active connections = %d, want 1", s.GetActiveConnections())
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := bufio.NewReader(conn).ReadByte(); err == nil {
		t.Error("connection should be closed after Shutdown")
	}
}

func TestStore(t *testing.T) {
	st := NewStore()
	other := protocol.Identity{1, 2, 3, 4, 5, 6}

	st.Write(testIdentity, 0x10, 7)
	if st.Read(testIdentity, 0x10) != 7 {
		t.Error("Read after Write")
	}
	if st.Read(other, 0x10) != 0 {
		t.Error("registers must be per identity")
	}
	if st.Clients() != 1 {
		t.Errorf("Clients() = %d", st.Clients())
	}
}
