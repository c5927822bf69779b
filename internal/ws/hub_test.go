package ws

import (
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestHub() *Hub {
	return NewHub(log.New(io.Discard, "", 0))
}

// dialTestClient connects a real websocket client to a handler backed by
// hub and waits for the registration to land.
func dialTestClient(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(NewHandler(hub, log.New(io.Discard, "", 0)))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for !hub.HasClients() {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}
	return conn
}

// TestHubBroadcast verifies a broadcast reaches a connected client.
func TestHubBroadcast(t *testing.T) {
	hub := newTestHub()
	conn := dialTestClient(t, hub)

	hub.BroadcastJSON(NewCountMessage(1, time.Now(), 4))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading broadcast: %v", err)
	}
	var msg CountMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decoding broadcast: %v", err)
	}
	if msg.Type != "count" || msg.Count != 4 {
		t.Errorf("unexpected message: %+v", msg)
	}
}

// TestHubUnregisterOnDisconnect verifies a closed client leaves the hub
// once the read pump notices.
func TestHubUnregisterOnDisconnect(t *testing.T) {
	hub := newTestHub()
	conn := dialTestClient(t, hub)

	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1", hub.ClientCount())
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.HasClients() {
		if time.Now().After(deadline) {
			t.Fatal("client never unregistered after close")
		}
		time.Sleep(time.Millisecond)
	}
}

// TestBroadcastJSONWithoutClients verifies broadcasting into an empty hub
// is a harmless no-op.
func TestBroadcastJSONWithoutClients(t *testing.T) {
	hub := newTestHub()
	hub.BroadcastJSON(NewCountMessage(1, time.Now(), 0))
	if hub.HasClients() {
		t.Error("hub should stay empty")
	}
}
