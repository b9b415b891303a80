package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, s *testStack, userID string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil skips frames until one of type expect arrives.
func readUntil(t *testing.T, conn *websocket.Conn, expect string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", expect, err)
		}
		if msg.Type == expect {
			return msg.Payload
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func TestWebSocketJoinAndReceiveEvents(t *testing.T) {
	s := newTestStack(t)
	id := s.readySession(t)

	conn := dialWS(t, s, "u1")
	send(t, conn, "coop.join", map[string]string{"sessionId": id})
	var joined sessionRef
	if err := json.Unmarshal(readUntil(t, conn, "coop.joined"), &joined); err != nil || joined.SessionID != id {
		t.Fatalf("expected joined %s, got %+v (%v)", id, joined, err)
	}

	send(t, conn, "coop.snapshot", map[string]string{"sessionId": id})
	var snapshot struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(readUntil(t, conn, "coop:snapshot"), &snapshot); err != nil || snapshot.ID != id || snapshot.Status != "ready" {
		t.Fatalf("unexpected snapshot %+v (%v)", snapshot, err)
	}

	resp := s.do(t, http.MethodDelete, "/coop/sessions/"+id, "u2", nil)
	if resp.status != http.StatusOK {
		t.Fatalf("cancel: status %d", resp.status)
	}
	var cancelled struct {
		SessionID   string `json:"sessionId"`
		CancelledBy string `json:"cancelledBy"`
	}
	if err := json.Unmarshal(readUntil(t, conn, "coop:session_cancelled"), &cancelled); err != nil || cancelled.CancelledBy != "u2" {
		t.Fatalf("unexpected cancel payload %+v (%v)", cancelled, err)
	}
}

func TestWebSocketRejectsOutsiders(t *testing.T) {
	s := newTestStack(t)
	id := s.readySession(t)

	conn := dialWS(t, s, "u3")
	send(t, conn, "coop.join", map[string]string{"sessionId": id})
	var body errorBody
	if err := json.Unmarshal(readUntil(t, conn, "error"), &body); err != nil || body.Code != "NOT_PARTICIPANT" {
		t.Fatalf("expected NOT_PARTICIPANT, got %+v (%v)", body, err)
	}
	if s.hub.RoomSize(id) != 0 {
		t.Fatalf("outsider must not join the room")
	}
}

func TestWebSocketPingAndUnknownType(t *testing.T) {
	s := newTestStack(t)
	conn := dialWS(t, s, "u1")

	send(t, conn, "ping", nil)
	readUntil(t, conn, "pong")

	send(t, conn, "answer", map[string]string{})
	var body errorBody
	if err := json.Unmarshal(readUntil(t, conn, "error"), &body); err != nil || body.Code != "UNSUPPORTED_MESSAGE" {
		t.Fatalf("expected UNSUPPORTED_MESSAGE, got %+v (%v)", body, err)
	}
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	s := newTestStack(t)
	u := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}
