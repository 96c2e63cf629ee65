package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"
)

type receivedFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

var socketClock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func dialSocket(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, err := websocket.Dial(url, "", "http://localhost:5173")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	if err := websocket.JSON.Send(conn, map[string]any{"event": event, "data": data}); err != nil {
		t.Fatalf("send %s: %v", event, err)
	}
}

func receive(t *testing.T, conn *websocket.Conn) receivedFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f receivedFrame
	if err := websocket.JSON.Receive(conn, &f); err != nil {
		t.Fatalf("receive: %v", err)
	}
	return f
}

func waitMembers(t *testing.T, hub *Hub, sessionID string, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.Members(sessionID) != n {
		if time.Now().After(deadline) {
			t.Fatalf("members of %s = %d, want %d", sessionID, hub.Members(sessionID), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSocketConversation(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, testConfig())
	srv := httptest.NewServer(app.Echo())
	defer srv.Close()

	sender := dialSocket(t, srv)
	watcher := dialSocket(t, srv)
	send(t, sender, EventJoinSession, "s1")
	send(t, watcher, EventJoinSession, "s1")
	waitMembers(t, app.Hub, "s1", 2)

	send(t, sender, EventSendMessage, map[string]string{"sessionId": "s1", "message": "what happened?"})
	for _, conn := range []*websocket.Conn{sender, watcher} {
		if f := receive(t, conn); f.Event != EventBotTyping || string(f.Data) != "true" {
			t.Fatalf("first frame = %s %s", f.Event, f.Data)
		}
		if f := receive(t, conn); f.Event != EventBotTyping || string(f.Data) != "false" {
			t.Fatalf("second frame = %s %s", f.Event, f.Data)
		}
		f := receive(t, conn)
		if f.Event != EventBotResponse {
			t.Fatalf("third frame = %s", f.Event)
		}
		var resp botResponse
		if err := json.Unmarshal(f.Data, &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Message != "Here is the news." || resp.Sources == nil {
			t.Fatalf("response = %+v", resp)
		}
		if resp.Timestamp != socketClock.UnixMilli() {
			t.Fatalf("timestamp = %d, want unix millis %d", resp.Timestamp, socketClock.UnixMilli())
		}
		var raw map[string]any
		_ = json.Unmarshal(f.Data, &raw)
		if _, ok := raw["timestamp"].(float64); !ok {
			t.Fatalf("timestamp is not a number: %s", f.Data)
		}
	}
}

func TestSocketErrorGoesToSenderOnly(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, testConfig())
	srv := httptest.NewServer(app.Echo())
	defer srv.Close()

	sender := dialSocket(t, srv)
	watcher := dialSocket(t, srv)
	send(t, sender, EventJoinSession, "s2")
	send(t, watcher, EventJoinSession, "s2")
	waitMembers(t, app.Hub, "s2", 2)

	send(t, sender, EventSendMessage, map[string]string{"sessionId": "s2", "message": "fail"})
	for _, want := range []string{"true", "false"} {
		if f := receive(t, sender); f.Event != EventBotTyping || string(f.Data) != want {
			t.Fatalf("sender frame = %s %s", f.Event, f.Data)
		}
		if f := receive(t, watcher); f.Event != EventBotTyping || string(f.Data) != want {
			t.Fatalf("watcher frame = %s %s", f.Event, f.Data)
		}
	}
	f := receive(t, sender)
	if f.Event != EventError || !strings.Contains(string(f.Data), "Processing failed") {
		t.Fatalf("sender error frame = %s %s", f.Event, f.Data)
	}

	// The watcher's next frame is the clear notification, not an error.
	send(t, sender, EventClearSession, "s2")
	if f := receive(t, watcher); f.Event != EventSessionClear {
		t.Fatalf("watcher frame = %s %s", f.Event, f.Data)
	}
}

func TestSocketLeavesRoomsOnDisconnect(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, testConfig())
	srv := httptest.NewServer(app.Echo())
	defer srv.Close()

	conn := dialSocket(t, srv)
	send(t, conn, EventJoinSession, "s3")
	waitMembers(t, app.Hub, "s3", 1)
	_ = conn.Close()
	waitMembers(t, app.Hub, "s3", 0)
}

func TestSocketRejectsForeignOrigin(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, testConfig())
	srv := httptest.NewServer(app.Echo())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if conn, err := websocket.Dial(url, "", "http://evil.example"); err == nil {
		_ = conn.Close()
		t.Fatalf("expected handshake rejection")
	}
}
