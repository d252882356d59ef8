package engine

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxhire/voxhire/pkg/transport"
)

func mockConfig() Config {
	return Config{
		Vendors: VendorsConfig{
			STT:  VendorConfig{Provider: "mock"},
			TTS:  VendorConfig{Provider: "mock"},
			Turn: VendorConfig{Provider: "mock"},
		},
		Interview: InterviewConfig{
			MinWords:            3,
			MinChars:            12,
			DuplicateWindowMS:   10000,
			RateLimitCooldownMS: 30000,
			FailureCooldownMS:   2000,
			SilenceWindowMS:     50,
			ResumeGraceMS:       10,
		},
		Persistence: PersistenceConfig{Driver: "memory", FlushIntervalMS: 50},
	}
}

func dialRoom(t *testing.T) *websocket.Conn {
	t.Helper()
	e, err := New(mockConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })

	ts := httptest.NewServer(e.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "?role=backend+engineer&seniority=senior"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

// collect reads server frames until the predicate is satisfied or the
// deadline passes.
func collect(t *testing.T, ws *websocket.Conn, done func(msgs []transport.ServerMessage) bool) []transport.ServerMessage {
	t.Helper()
	var msgs []transport.ServerMessage
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ws.SetReadDeadline(time.Now().Add(time.Second))
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			continue
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var msg transport.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		msgs = append(msgs, msg)
		if done(msgs) {
			return msgs
		}
	}
	t.Fatalf("expected frames never arrived, got %+v", msgs)
	return nil
}

func hasState(msgs []transport.ServerMessage, state string) bool {
	for _, m := range msgs {
		if m.Type == transport.ServerState && m.State == state {
			return true
		}
	}
	return false
}

func TestOpeningTurnFlowsToListening(t *testing.T) {
	ws := dialRoom(t)

	if err := ws.WriteJSON(transport.ClientMessage{Type: transport.ClientControl, Action: transport.ActionStart}); err != nil {
		t.Fatal(err)
	}

	msgs := collect(t, ws, func(msgs []transport.ServerMessage) bool {
		return hasState(msgs, "listening")
	})
	for _, want := range []string{"thinking", "speaking", "listening"} {
		if !hasState(msgs, want) {
			t.Fatalf("missing state %q in %+v", want, msgs)
		}
	}

	var captioned bool
	for _, m := range msgs {
		if m.Type == transport.ServerCaption && m.Text != "" && m.DurationMs > 0 {
			captioned = true
		}
	}
	if !captioned {
		t.Fatalf("no caption received: %+v", msgs)
	}
}

func TestTranscriptDrivesFullTurn(t *testing.T) {
	ws := dialRoom(t)

	ws.WriteJSON(transport.ClientMessage{Type: transport.ClientControl, Action: transport.ActionStart})
	collect(t, ws, func(msgs []transport.ServerMessage) bool {
		return hasState(msgs, "listening")
	})

	ws.WriteJSON(transport.ClientMessage{
		Type:  transport.ClientTranscript,
		Text:  "I spent four years building payment systems",
		Final: true,
	})

	msgs := collect(t, ws, func(msgs []transport.ServerMessage) bool {
		for _, m := range msgs {
			if m.Type == transport.ServerEvaluation && m.Evaluation != nil {
				return true
			}
		}
		return false
	})
	var found bool
	for _, m := range msgs {
		if m.Type == transport.ServerEvaluation && m.Evaluation.TotalScore > 0 {
			found = true
		}
	}
	if !found {
		t.Fatalf("no scored evaluation in %+v", msgs)
	}
}

func TestShortAnswerSilentlyIgnored(t *testing.T) {
	ws := dialRoom(t)

	ws.WriteJSON(transport.ClientMessage{Type: transport.ClientControl, Action: transport.ActionStart})
	collect(t, ws, func(msgs []transport.ServerMessage) bool {
		return hasState(msgs, "listening")
	})

	ws.WriteJSON(transport.ClientMessage{Type: transport.ClientManual, Text: "yes"})

	// Read in a goroutine: a read-deadline timeout permanently fails a
	// gorilla/websocket connection, and silence here is the expected outcome.
	frames := make(chan transport.ServerMessage, 64)
	go func() {
		defer close(frames)
		for {
			messageType, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			var msg transport.ServerMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Error(err)
				return
			}
			frames <- msg
		}
	}()

	// The denial must not surface: no error frame, no thinking transition.
	silence := time.After(400 * time.Millisecond)
quiet:
	for {
		select {
		case msg := <-frames:
			if msg.Type == transport.ServerError {
				t.Fatalf("denial surfaced as error frame: %+v", msg)
			}
			if msg.Type == transport.ServerState && msg.State == "thinking" {
				t.Fatal("short answer reached the backend")
			}
		case <-silence:
			break quiet
		}
	}

	// A real answer afterward still drives a full turn.
	ws.WriteJSON(transport.ClientMessage{Type: transport.ClientManual, Text: "I led the migration to event sourcing"})
	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-frames:
			if !ok {
				t.Fatal("connection closed before evaluation arrived")
			}
			if msg.Type == transport.ServerEvaluation && msg.Evaluation != nil {
				return
			}
		case <-deadline:
			t.Fatal("expected evaluation never arrived")
		}
	}
}

func TestInterimTranscriptForwardedAsCaption(t *testing.T) {
	ws := dialRoom(t)

	ws.WriteJSON(transport.ClientMessage{
		Type: transport.ClientTranscript,
		Text: "I was about to say",
	})

	collect(t, ws, func(msgs []transport.ServerMessage) bool {
		for _, m := range msgs {
			if m.Type == transport.ServerCaption && m.Interim && m.Text == "I was about to say" {
				return true
			}
		}
		return false
	})
}

func TestEndControlClosesSession(t *testing.T) {
	ws := dialRoom(t)

	ws.WriteJSON(transport.ClientMessage{Type: transport.ClientControl, Action: transport.ActionEnd})
	collect(t, ws, func(msgs []transport.ServerMessage) bool {
		for _, m := range msgs {
			if m.Type == transport.ServerEnded {
				return true
			}
		}
		return false
	})
}
