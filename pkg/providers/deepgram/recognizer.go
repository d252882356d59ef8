// Package deepgram streams candidate audio to Deepgram and surfaces
// transcription results as recognition events.
package deepgram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/voxhire/voxhire/pkg/logging"
	"github.com/voxhire/voxhire/pkg/speech"
)

type Config struct {
	APIKey         string
	Model          string
	Language       string
	SampleRate     int
	Encoding       string
	Interim        bool
	UtteranceEndMS int
	RoomID         string
}

// Recognizer is a live Deepgram transcription stream. Audio written through
// WriteAudio is piped to the websocket; results arrive on Events.
type Recognizer struct {
	cfg Config

	dgClient   *client.WSCallback
	out        chan speech.Event
	errs       chan error
	ctx        context.Context
	cancel     context.CancelFunc
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	metaLogged bool
	logger     *slog.Logger
}

func New(cfg Config) *Recognizer {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Recognizer{
		cfg:    cfg,
		out:    make(chan speech.Event, 256),
		errs:   make(chan error, 8),
		logger: logging.NewComponentLogger(slog.Default(), "deepgram"),
	}
}

func (r *Recognizer) Name() string { return "deepgram" }

func (r *Recognizer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.pipeReader, r.pipeWriter = io.Pipe()

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          r.cfg.Model,
		Language:       r.cfg.Language,
		Encoding:       r.cfg.Encoding,
		SampleRate:     r.cfg.SampleRate,
		InterimResults: r.cfg.Interim,
		SmartFormat:    true,
	}
	if r.cfg.UtteranceEndMS > 0 {
		transcriptOptions.UtteranceEndMs = fmt.Sprintf("%d", r.cfg.UtteranceEndMS)
	}

	r.logger.Info("initializing deepgram connection",
		slog.String("room_id", r.cfg.RoomID),
		slog.String("model", r.cfg.Model),
		slog.Int("sample_rate", r.cfg.SampleRate))

	cb := &callback{parent: r}
	dgClient, err := client.NewWSUsingCallback(r.ctx, r.cfg.APIKey, clientOptions, transcriptOptions, cb)
	if err != nil {
		r.logger.Error("deepgram client create failed",
			slog.String("error", err.Error()),
			slog.String("room_id", r.cfg.RoomID))
		return err
	}
	r.dgClient = dgClient

	if connected := r.dgClient.Connect(); !connected {
		return fmt.Errorf("deepgram connection failed")
	}
	r.logger.Info("deepgram connected", slog.String("room_id", r.cfg.RoomID))

	go func() {
		if err := r.dgClient.Stream(r.pipeReader); err != nil && r.ctx.Err() == nil {
			r.logger.Error("deepgram stream error",
				slog.String("error", err.Error()),
				slog.String("room_id", r.cfg.RoomID))
			select {
			case r.errs <- err:
			default:
			}
		}
	}()
	return nil
}

func (r *Recognizer) Stop() error {
	r.logger.Info("closing deepgram connection", slog.String("room_id", r.cfg.RoomID))
	if r.cancel != nil {
		r.cancel()
	}
	if r.pipeWriter != nil {
		_ = r.pipeWriter.Close()
	}
	if r.dgClient != nil {
		r.dgClient.Stop()
	}
	return nil
}

// WriteAudio forwards raw audio to the live transcription socket.
func (r *Recognizer) WriteAudio(p []byte) error {
	if r.pipeWriter == nil {
		return fmt.Errorf("not started")
	}
	_, err := r.pipeWriter.Write(p)
	if err != nil {
		r.logger.Error("failed to send audio to deepgram",
			slog.String("error", err.Error()),
			slog.String("room_id", r.cfg.RoomID))
	}
	return err
}

func (r *Recognizer) Events() <-chan speech.Event { return r.out }
func (r *Recognizer) Errs() <-chan error          { return r.errs }

type callback struct {
	parent *Recognizer
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("deepgram connection opened",
		slog.String("room_id", c.parent.cfg.RoomID))
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	transcript := mr.Channel.Alternatives[0].Transcript
	if transcript == "" {
		return nil
	}
	isFinal := mr.IsFinal || mr.SpeechFinal

	c.parent.logger.Debug("transcript received",
		slog.String("room_id", c.parent.cfg.RoomID),
		slog.Bool("is_final", isFinal))

	ev := speech.Event{Text: transcript, Final: isFinal, At: time.Now()}
	select {
	case c.parent.out <- ev:
	default:
		c.parent.logger.Warn("recognition channel full",
			slog.String("room_id", c.parent.cfg.RoomID))
	}
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	if !c.parent.metaLogged {
		c.parent.metaLogged = true
		c.parent.logger.Info("deepgram metadata received",
			slog.String("room_id", c.parent.cfg.RoomID),
			slog.String("request_id", md.RequestID))
	}
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	c.parent.logger.Debug("speech started",
		slog.String("room_id", c.parent.cfg.RoomID))
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	c.parent.logger.Debug("utterance end",
		slog.String("room_id", c.parent.cfg.RoomID))
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram connection closed",
		slog.String("room_id", c.parent.cfg.RoomID))
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("deepgram error",
		slog.String("room_id", c.parent.cfg.RoomID),
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))

	err := classify(er.ErrCode, er.ErrMsg)
	select {
	case c.parent.errs <- err:
	default:
	}
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram unhandled event",
		slog.String("room_id", c.parent.cfg.RoomID),
		slog.String("data", string(byData)))
	return nil
}

// classify maps provider error codes onto the recognizer sentinels so the
// capture layer can treat routine conditions as restarts.
func classify(code, msg string) error {
	lower := strings.ToLower(code + " " + msg)
	switch {
	case strings.Contains(lower, "no-speech"), strings.Contains(lower, "no speech"):
		return speech.ErrNoSpeech
	case strings.Contains(lower, "abort"):
		return speech.ErrAborted
	}
	return fmt.Errorf("deepgram: %s: %s", code, msg)
}

var _ speech.Stream = (*Recognizer)(nil)
var _ speech.AudioSink = (*Recognizer)(nil)
