package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialStream(t *testing.T, base string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(base, "http") + "/stream?fps=60"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(StreamMessage) bool) StreamMessage {
	t.Helper()
	for i := 0; i < 500; i++ {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var m StreamMessage
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(m) {
			return m
		}
	}
	t.Fatal("expected message never arrived")
	return StreamMessage{}
}

func errorCode(code string) func(StreamMessage) bool {
	return func(m StreamMessage) bool {
		return m.Type == StreamError && m.Error != nil && m.Error.Code == code
	}
}

func TestStreamPushesViews(t *testing.T) {
	srv := newTestServer(t, stubBackend{})
	conn := dialStream(t, createSession(t, srv))

	first := readUntil(t, conn, func(m StreamMessage) bool { return m.Type == StreamView })
	if first.View == nil || len(first.View.Nodes) != 4 {
		t.Fatalf("first view = %+v", first.View)
	}

	if err := conn.WriteJSON(StreamCommand{Op: "trace", ID: "C"}); err != nil {
		t.Fatal(err)
	}
	traced := readUntil(t, conn, func(m StreamMessage) bool {
		return m.View != nil && m.View.Trace != nil && m.View.Trace.NodeID == "C"
	})
	if len(traced.View.Trace.Nodes) == 0 {
		t.Error("trace has no highlighted nodes")
	}

	if err := conn.WriteJSON(StreamCommand{Op: "clear"}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, func(m StreamMessage) bool { return m.View != nil && m.View.Trace == nil })
}

func TestStreamCommandErrors(t *testing.T) {
	srv := newTestServer(t, stubBackend{})
	conn := dialStream(t, createSession(t, srv))

	tests := []struct {
		name string
		msg  string
		code string
	}{
		{"malformed", `{"op":`, "INVALID_FORMAT"},
		{"unknown op", `{"op":"dance"}`, "INVALID_INPUT"},
		{"era without anchor", `{"op":"era","era":40}`, "ERA_NOT_FOUND"},
		{"bad zoom", `{"op":"zoom","zoom":0}`, "INVALID_INPUT"},
		{"bad size", `{"op":"resize","width":0,"height":10}`, "INVALID_INPUT"},
		{"unknown node", `{"op":"trace","id":"nobody"}`, "NODE_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.msg)); err != nil {
				t.Fatal(err)
			}
			readUntil(t, conn, errorCode(tt.code))
		})
	}
}

func TestStreamRejectsBadRate(t *testing.T) {
	srv := newTestServer(t, stubBackend{})
	base := createSession(t, srv)

	var body ErrorResponse
	resp := do(t, http.MethodGet, base+"/stream?fps=0", &body)
	if resp.StatusCode != http.StatusBadRequest || body.Code != "INVALID_INPUT" {
		t.Errorf("status = %d, code = %q", resp.StatusCode, body.Code)
	}
}
