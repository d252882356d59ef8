// Package elevenlabs synthesizes recruiter speech over the ElevenLabs
// streaming websocket API.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxhire/voxhire/pkg/logging"
	"github.com/voxhire/voxhire/pkg/resilience"
	"github.com/voxhire/voxhire/pkg/speak"
)

type Config struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string
	RoomID       string
}

// Chunk is one piece of synthesized audio for the room transport to relay.
type Chunk struct {
	Data  []byte
	Final bool
}

// Synthesizer speaks one unit at a time: the text is sent with a flush, and
// Speak returns when the service reports the utterance finished.
type Synthesizer struct {
	cfg    Config
	conn   *websocket.Conn
	audio  chan Chunk
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	writeMu sync.Mutex

	mu   sync.Mutex
	done chan struct{}
}

func New(cfg Config) *Synthesizer {
	return &Synthesizer{
		cfg:    cfg,
		audio:  make(chan Chunk, 256),
		logger: logging.NewComponentLogger(slog.Default(), "elevenlabs"),
	}
}

func (s *Synthesizer) Name() string { return "elevenlabs" }

// Start opens the streaming websocket. HTTP 429 on dial becomes a rate
// limit error.
func (s *Synthesizer) Start(ctx context.Context) error {
	if s.cfg.APIKey == "" || s.cfg.VoiceID == "" {
		return errors.New("missing elevenlabs config")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.logger.Debug("connecting to elevenlabs",
		slog.String("room_id", s.cfg.RoomID),
		slog.String("output_format", s.cfg.OutputFormat))

	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment}
	conn, resp, err := dialer.Dial(s.buildURL(), http.Header{
		"xi-api-key": []string{s.cfg.APIKey},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return &resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}
		}
		return err
	}
	s.conn = conn
	s.logger.Info("connected to elevenlabs", slog.String("room_id", s.cfg.RoomID))

	_ = s.send(map[string]any{
		"text": " ",
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.8,
		},
		"generation_config": map[string]any{
			"chunk_length_schedule": []int{120, 160, 250, 290},
		},
	})
	go s.readLoop()
	go s.keepalive()
	return nil
}

// Speak sends one unit and blocks until its audio finished streaming.
func (s *Synthesizer) Speak(ctx context.Context, unit speak.Unit) error {
	if s.conn == nil {
		return errors.New("not connected")
	}
	text := strings.TrimSpace(unit.Text)
	if text == "" {
		return nil
	}
	if !strings.HasSuffix(text, " ") {
		text += " "
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.done = done
	s.mu.Unlock()

	if err := s.send(map[string]any{"text": text}); err != nil {
		return err
	}
	if err := s.send(map[string]any{"text": " ", "flush": true}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.drainAudio()
		return ctx.Err()
	case <-s.ctx.Done():
		return errors.New("elevenlabs connection closed")
	}
}

// Audio delivers synthesized chunks for the room transport.
func (s *Synthesizer) Audio() <-chan Chunk { return s.audio }

func (s *Synthesizer) Close() error {
	s.logger.Info("closing elevenlabs connection", slog.String("room_id", s.cfg.RoomID))
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		return s.conn.Close()
	}
	return nil
}

func (s *Synthesizer) buildURL() string {
	base := "wss://api.elevenlabs.io/v1/text-to-speech/" + s.cfg.VoiceID + "/stream-input"
	q := url.Values{}
	if s.cfg.ModelID != "" {
		q.Set("model_id", s.cfg.ModelID)
	}
	if s.cfg.OutputFormat != "" {
		q.Set("output_format", s.cfg.OutputFormat)
	}
	q.Set("optimize_streaming_latency", "4")
	return base + "?" + q.Encode()
}

func (s *Synthesizer) keepalive() {
	// Empty text every 15s keeps the socket from hitting the 20s idle cut.
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			_ = s.send(map[string]any{"text": " "})
		}
	}
}

func (s *Synthesizer) readLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
			_, data, err := s.conn.ReadMessage()
			if err != nil {
				if s.ctx.Err() == nil {
					s.logger.Error("elevenlabs read loop error",
						slog.String("room_id", s.cfg.RoomID),
						slog.String("error", err.Error()))
				}
				s.signalDone()
				return
			}
			s.handleMessage(data)
		}
	}
}

func (s *Synthesizer) handleMessage(data []byte) {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("elevenlabs raw message", "data", string(data))
		return
	}

	if final, _ := msg["isFinal"].(bool); final {
		select {
		case s.audio <- Chunk{Final: true}:
		default:
		}
		s.signalDone()
		return
	}

	audio, ok := msg["audio"].(string)
	if !ok {
		if a, ok := msg["audio_base_64"].(string); ok {
			audio = a
		} else {
			if _, isAlign := msg["alignment"]; !isAlign {
				s.logger.Debug("elevenlabs message", "payload", msg)
			}
			return
		}
	}
	raw, err := base64.StdEncoding.DecodeString(audio)
	if err != nil {
		s.logger.Error("elevenlabs audio decode error", "error", err)
		return
	}

	select {
	case s.audio <- Chunk{Data: raw}:
	default:
		s.logger.Warn("elevenlabs audio buffer full",
			slog.String("room_id", s.cfg.RoomID))
	}
}

func (s *Synthesizer) signalDone() {
	s.mu.Lock()
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.mu.Unlock()
}

// drainAudio drops buffered chunks after a cancel so stale audio is not
// played over the next unit.
func (s *Synthesizer) drainAudio() {
	for {
		select {
		case <-s.audio:
		default:
			return
		}
	}
}

func (s *Synthesizer) send(payload map[string]any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

var _ speak.Synthesizer = (*Synthesizer)(nil)
