package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/siotlab/bdsc/internal/report"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + EventsPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want %d", h.Clients(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub := New(4)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	waitClients(t, hub, 2)

	report.Successf(hub, "update", "Server Response = %s", "A-BDSC-AABBCCDDEEFF-10-0001")

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readEvent(t, conn)
		if msg["source"] != "update" {
			t.Errorf("source = %v", msg["source"])
		}
		if msg["level"] != "success" {
			t.Errorf("level = %v", msg["level"])
		}
		if msg["text"] != "Server Response = A-BDSC-AABBCCDDEEFF-10-0001" {
			t.Errorf("text = %v", msg["text"])
		}
	}
}

func TestHub_ReplaysBacklog(t *testing.T) {
	hub := New(2)
	for i := 0; i < 3; i++ {
		report.Infof(hub, "", "event %d", i)
	}

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	conn := dial(t, srv)

	for _, want := range []string{"event 1", "event 2"} {
		if got := readEvent(t, conn)["text"]; got != want {
			t.Errorf("text = %v, want %s", got, want)
		}
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub := New(0)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, hub, 1)

	_ = conn.Close()
	waitClients(t, hub, 0)

	// Broadcasting with nobody connected is fine.
	report.Infof(hub, "", "nobody listening")
}

func TestHub_StartAndShutdown(t *testing.T) {
	hub := New(0)
	if err := hub.Start("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	if hub.Addr() == nil {
		t.Fatal("Addr() = nil after Start")
	}

	url := "ws://" + hub.Addr().String() + EventsPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitClients(t, hub, 1)

	if err := hub.Shutdown(t.Context()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if hub.Clients() != 0 {
		t.Errorf("Clients() = %d after Shutdown", hub.Clients())
	}
}
