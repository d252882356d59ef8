package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recordingHandler struct {
	conn *Conn

	mu          sync.Mutex
	transcripts []string
	manual      []string
	controls    []string
	audioBytes  int
	closed      bool
}

func (h *recordingHandler) OnTranscript(text string, final bool) {
	h.mu.Lock()
	h.transcripts = append(h.transcripts, text)
	h.mu.Unlock()
	h.conn.Send(ServerMessage{Type: ServerState, State: "listening"})
}

func (h *recordingHandler) OnManual(text string) {
	h.mu.Lock()
	h.manual = append(h.manual, text)
	h.mu.Unlock()
}

func (h *recordingHandler) OnControl(action string) {
	h.mu.Lock()
	h.controls = append(h.controls, action)
	h.mu.Unlock()
}

func (h *recordingHandler) OnAudio(p []byte) {
	h.mu.Lock()
	h.audioBytes += len(p)
	h.mu.Unlock()
}

func (h *recordingHandler) OnClose() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

func dialTestServer(t *testing.T) (*websocket.Conn, *recordingHandler) {
	t.Helper()
	handler := &recordingHandler{}
	srv := NewServer(func(conn *Conn, r *http.Request) (Handler, error) {
		handler.conn = conn
		return handler, nil
	}, nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws, handler
}

func TestDispatchesClientFrames(t *testing.T) {
	ws, handler := dialTestServer(t)

	frames := []ClientMessage{
		{Type: ClientTranscript, Text: "I have five years of experience", Final: true},
		{Type: ClientManual, Text: "typed answer"},
		{Type: ClientControl, Action: ActionStart},
	}
	for _, f := range frames {
		if err := ws.WriteJSON(f); err != nil {
			t.Fatal(err)
		}
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, make([]byte, 320)); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		handler.mu.Lock()
		done := len(handler.transcripts) == 1 && len(handler.manual) == 1 &&
			len(handler.controls) == 1 && handler.audioBytes == 320
		handler.mu.Unlock()
		if done {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("frames not dispatched: %+v", handler)
}

func TestServerMessageRoundTrip(t *testing.T) {
	ws, _ := dialTestServer(t)

	if err := ws.WriteJSON(ClientMessage{Type: ClientTranscript, Text: "hello", Final: true}); err != nil {
		t.Fatal(err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != ServerState || msg.State != "listening" {
		t.Fatalf("message = %+v", msg)
	}
}

func TestCloseNotifiesHandler(t *testing.T) {
	ws, handler := dialTestServer(t)
	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		handler.mu.Lock()
		closed := handler.closed
		handler.mu.Unlock()
		if closed {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("handler never notified of close")
}
