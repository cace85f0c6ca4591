package local

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/lokutor-ai/vtuber-orchestrator/pkg/providers/stt"
)

// Recognizer is a self-contained, on-device Recognizer: it accumulates raw
// PCM16 mono chunks handed to it by the caller's mic-capture loop (in
// cmd/agent, a capture-only gen2brain/malgo device callback), runs RMS
// voice-activity detection with correlation-based echo suppression, and
// hands the finished utterance to a wrapped BatchTranscriber once silence
// has been confirmed.
type Recognizer struct {
	mu sync.Mutex

	transcriber stt.BatchTranscriber
	lang        string

	vad  *rmsVAD
	echo *echoSuppressor

	buf      bytes.Buffer
	speaking bool

	onTranscribed func(speaker, text string)

	transcribeTimeout time.Duration
}

// Option configures a Recognizer at construction time.
type Option func(*Recognizer)

// WithThreshold overrides the default RMS speech-start threshold (0.02).
func WithThreshold(threshold float64) Option {
	return func(r *Recognizer) { r.vad.threshold = threshold }
}

// WithSilenceLimit overrides the default silence-to-endpoint duration (700ms).
func WithSilenceLimit(d time.Duration) Option {
	return func(r *Recognizer) { r.vad.silenceLimit = d }
}

// WithTranscribeTimeout bounds how long a single buffered utterance may take
// to transcribe before the call is abandoned (default 15s).
func WithTranscribeTimeout(d time.Duration) Option {
	return func(r *Recognizer) { r.transcribeTimeout = d }
}

// NewRecognizer wraps transcriber (one of the stt package's batch clients)
// with on-device endpointing. lang is passed through to every Transcribe call.
func NewRecognizer(transcriber stt.BatchTranscriber, lang string, opts ...Option) *Recognizer {
	r := &Recognizer{
		transcriber:       transcriber,
		lang:              lang,
		vad:               newRMSVAD(0.02, 700*time.Millisecond),
		echo:              newEchoSuppressor(),
		transcribeTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnTranscribed registers the callback invoked once an utterance has been
// endpointed and transcribed. Satisfies orchestrator.Recognizer.
func (r *Recognizer) OnTranscribed(fn func(speaker, text string)) {
	r.mu.Lock()
	r.onTranscribed = fn
	r.mu.Unlock()
}

// Name satisfies orchestrator.Recognizer, identifying the wrapped transcriber.
func (r *Recognizer) Name() string {
	return "local-vad/" + r.transcriber.Name()
}

// NotifyPlayback feeds audio the sink just sent to speakers, so Write can
// distinguish the assistant's own voice leaking into the mic from real
// user speech. cmd/agent registers it with the sink's OnPlaybackAudio, so it
// receives every chunk the sink plays.
func (r *Recognizer) NotifyPlayback(chunk []byte) {
	r.echo.recordPlayedAudio(chunk)
}

// Write feeds one chunk of mic-captured PCM16 mono audio through VAD and
// echo suppression, buffering speech and firing the transcribed callback
// once a complete utterance has been endpointed.
func (r *Recognizer) Write(chunk []byte) error {
	r.mu.Lock()

	if r.echo.isEcho(chunk) {
		r.mu.Unlock()
		return nil
	}

	event := r.vad.process(chunk)
	if event == nil {
		r.mu.Unlock()
		return nil
	}

	switch event.Type {
	case speechStart:
		r.speaking = true
		r.buf.Reset()
		r.buf.Write(chunk)
		r.mu.Unlock()
		return nil

	case speechEnd:
		r.speaking = false
		utterance := append([]byte(nil), r.buf.Bytes()...)
		r.buf.Reset()
		r.echo.clearEchoBuffer()
		transcriber := r.transcriber
		lang := r.lang
		callback := r.onTranscribed
		timeout := r.transcribeTimeout
		r.mu.Unlock()

		if len(utterance) == 0 || callback == nil {
			return nil
		}
		go r.transcribe(transcriber, lang, timeout, utterance, callback)
		return nil

	default: // silence
		if r.speaking {
			r.buf.Write(chunk)
		}
		r.mu.Unlock()
		return nil
	}
}

func (r *Recognizer) transcribe(transcriber stt.BatchTranscriber, lang string, timeout time.Duration, utterance []byte, callback func(string, string)) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	text, err := transcriber.Transcribe(ctx, utterance, lang)
	if err != nil || text == "" {
		return
	}
	callback("user", text)
}
