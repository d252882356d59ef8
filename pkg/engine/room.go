package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxhire/voxhire/pkg/clock"
	"github.com/voxhire/voxhire/pkg/metrics"
	"github.com/voxhire/voxhire/pkg/orchestrator"
	"github.com/voxhire/voxhire/pkg/persist"
	"github.com/voxhire/voxhire/pkg/providers/elevenlabs"
	"github.com/voxhire/voxhire/pkg/session"
	"github.com/voxhire/voxhire/pkg/speak"
	"github.com/voxhire/voxhire/pkg/speech"
	"github.com/voxhire/voxhire/pkg/transport"
	"github.com/voxhire/voxhire/pkg/utterance"
)

// room wires one websocket connection to a full interview pipeline:
// recognizer, capture gate, aggregator, orchestrator, synthesizer and
// persistence.
type room struct {
	engine *Engine
	conn   *transport.Conn
	logger *slog.Logger

	sess       *session.Session
	fsm        *session.FSM
	capture    *speech.Capture
	aggregator *utterance.Aggregator
	manual     *speech.ManualInput
	orch       *orchestrator.Orchestrator
	recognizer speech.Stream
	audioSink  speech.AudioSink
	synth      speak.Synthesizer

	ctx    context.Context
	cancel context.CancelFunc
}

func newRoom(e *Engine, conn *transport.Conn, params session.Params, clk clock.Clock) (*room, error) {
	sess := session.New(params, nil)
	logger := e.logger.With("session_id", sess.ID())

	recognizer, err := NewRecognizer(e.cfg.Vendors.STT, sess.ID())
	if err != nil {
		return nil, err
	}
	synth, err := NewSynthesizer(e.cfg.Vendors.TTS, sess.ID())
	if err != nil {
		return nil, err
	}
	generator, err := NewGenerator(e.cfg.Vendors.Turn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &room{
		engine:     e,
		conn:       conn,
		logger:     logger,
		sess:       sess,
		fsm:        session.NewFSM(),
		manual:     speech.NewManualInput(nil),
		recognizer: recognizer,
		synth:      synth,
		ctx:        ctx,
		cancel:     cancel,
	}
	if sink, ok := recognizer.(speech.AudioSink); ok {
		r.audioSink = sink
	}

	grace := time.Duration(e.cfg.Interview.ResumeGraceMS) * time.Millisecond
	r.capture = speech.NewCapture(clk, grace, r.onRecognized, logger)
	r.aggregator = utterance.New(
		utterance.Config{SilenceWindow: time.Duration(e.cfg.Interview.SilenceWindowMS) * time.Millisecond},
		clk,
		func() bool { return r.fsm.State() == session.RecruiterSpeaking },
		r.onUtterance,
		logger,
	)
	r.orch = orchestrator.New(e.interviewConfig(), orchestrator.Deps{
		Session:   sess,
		FSM:       r.fsm,
		Generator: generator,
		Synth:     synth,
		Capture:   r.capture,
		Observer:  e.observer,
		Logger:    logger,
		OnCaption: r.onCaption,
		OnError:   r.onTurnError,
	})

	r.fsm.Subscribe(r.onStateChange)

	if s, ok := recognizer.(starter); ok {
		if err := s.Start(ctx); err != nil {
			cancel()
			return nil, err
		}
	}
	if s, ok := synth.(starter); ok {
		if err := s.Start(ctx); err != nil {
			_ = recognizer.Stop()
			cancel()
			return nil, err
		}
	}

	go r.pumpRecognizer()
	go r.pumpManual()
	if el, ok := synth.(*elevenlabs.Synthesizer); ok {
		go r.pumpSynthAudio(el)
	}
	return r, nil
}

// onStateChange relays recruiter state to the client and snapshots the
// session at turn boundaries. Runs inside the FSM lock; it must only fan
// out.
func (r *room) onStateChange(from, to session.RecruiterState) {
	r.conn.Send(transport.ServerMessage{
		Type:      transport.ServerState,
		State:     string(to),
		ElapsedMs: r.sess.Elapsed().Milliseconds(),
	})
	if to != session.RecruiterListening && to != session.RecruiterIdle {
		return
	}
	if ev := r.sess.Evaluation(); ev != nil {
		r.conn.Send(transport.ServerMessage{Type: transport.ServerEvaluation, Evaluation: ev})
	}
	r.engine.writer.Offer(persist.Take(r.sess, nil))
	if to == session.RecruiterIdle && r.sess.Ended() {
		r.conn.Send(transport.ServerMessage{Type: transport.ServerEnded})
	}
}

func (r *room) onRecognized(ev speech.Event) {
	if !ev.Final {
		// Live caption while the candidate is still talking. Matters on
		// the audio path, where the browser has no local transcript.
		r.conn.Send(transport.ServerMessage{
			Type:    transport.ServerCaption,
			Text:    ev.Text,
			Interim: true,
		})
		return
	}
	r.aggregator.AddFinal(ev.Text)
}

func (r *room) onUtterance(text string) {
	r.engine.observer.Record(metrics.Event{
		Name:  metrics.EventUtteranceCommit,
		Value: float64(len(text)),
	})
	if te := r.orch.Submit(text); te != nil {
		// Admission denials stay silent; the candidate just keeps talking.
		// Only the cooldown is worth showing, it carries a retry hint.
		if te.Code == orchestrator.DenyCooldown {
			r.sendTurnError(te)
			return
		}
		r.logger.Debug("utterance not admitted", "code", te.Code)
	}
}

func (r *room) onCaption(sub session.Subtitle) {
	r.conn.Send(transport.ServerMessage{
		Type:       transport.ServerCaption,
		Text:       sub.Text,
		DurationMs: sub.Duration.Milliseconds(),
	})
}

func (r *room) onTurnError(te *orchestrator.TurnError) {
	r.sendTurnError(te)
}

func (r *room) sendTurnError(te *orchestrator.TurnError) {
	r.conn.Send(transport.ServerMessage{
		Type:      transport.ServerError,
		Code:      te.Code,
		Message:   te.Message,
		Hint:      te.Hint,
		RetryInMs: te.RetryIn.Milliseconds(),
	})
}

func (r *room) pumpRecognizer() {
	events := r.recognizer.Events()
	errs := r.recognizer.Errs()
	for {
		select {
		case <-r.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.capture.Deliver(ev)
		case err, ok := <-errs:
			if !ok {
				return
			}
			if fatal := r.capture.FilterError(err); fatal != nil {
				r.logger.Error("recognizer failed", "err", fatal)
				r.conn.Send(transport.ServerMessage{
					Type:    transport.ServerError,
					Code:    "recognizer",
					Message: "speech recognition unavailable",
					Hint:    "use text input to continue",
				})
			}
		}
	}
}

func (r *room) pumpManual() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case ev := <-r.manual.Events():
			r.aggregator.AddFinal(ev.Text)
			r.aggregator.CommitNow()
		}
	}
}

func (r *room) pumpSynthAudio(el *elevenlabs.Synthesizer) {
	for {
		select {
		case <-r.ctx.Done():
			return
		case chunk := <-el.Audio():
			if len(chunk.Data) > 0 {
				r.conn.SendAudio(chunk.Data)
			}
		}
	}
}

func (r *room) OnTranscript(text string, final bool) {
	r.capture.Deliver(speech.Event{Text: text, Final: final, At: time.Now()})
}

func (r *room) OnManual(text string) {
	if !r.manual.Submit(text) {
		r.logger.Debug("manual submission dropped")
	}
}

func (r *room) OnControl(action string) {
	switch action {
	case transport.ActionStart:
		if te := r.orch.Init(); te != nil {
			r.sendTurnError(te)
		}
	case transport.ActionInterrupt:
		r.orch.Interrupt()
	case transport.ActionEnd:
		r.endSession()
	default:
		r.logger.Warn("unknown control action", "action", action)
	}
}

func (r *room) OnAudio(p []byte) {
	if r.audioSink == nil {
		return
	}
	if err := r.audioSink.WriteAudio(p); err != nil {
		r.logger.Debug("audio forward failed", "err", err)
	}
}

func (r *room) OnClose() {
	r.logger.Info("room closed", "elapsed", r.sess.Elapsed())
	r.teardown()
}

func (r *room) endSession() {
	r.orch.Queue().Cancel()
	r.sess.End()
	r.aggregator.Reset()
	r.engine.writer.Offer(persist.Take(r.sess, nil))
	r.conn.Send(transport.ServerMessage{Type: transport.ServerEnded})
}

func (r *room) teardown() {
	r.cancel()
	r.sess.End()
	r.orch.Queue().Close()
	if err := r.recognizer.Stop(); err != nil {
		r.logger.Debug("recognizer stop", "err", err)
	}
	if err := r.synth.Close(); err != nil {
		r.logger.Debug("synthesizer close", "err", err)
	}
	r.engine.writer.Offer(persist.Take(r.sess, nil))
}

var _ transport.Handler = (*room)(nil)
