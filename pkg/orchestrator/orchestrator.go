package orchestrator

import (
	"context"
	"fmt"
	"strings"
)

// Orchestrator is the top-level wiring of every component in §2: it owns
// the mailbox, chat window, shared state, arbiter, pipeline and background
// workers, and exposes the control surface (start/stop, device changes).
type Orchestrator struct {
	cfg    Config
	logger Logger
	clock  Clock

	mailbox    *Mailbox
	chatWindow *ChatWindow
	state      *SharedState
	arbiter    *Arbiter
	pipeline   *Pipeline
	workers    *Workers

	recognizer Recognizer
	sink       AudioSink
	avatar     AvatarController

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs an Orchestrator. llm, tts and sink are always required.
// recognizer is required when cfg.STTEnabled; chatSource is required when
// cfg.ChatEnabled. Missing required services is a ConfigError.
func New(cfg Config, logger Logger, recognizer Recognizer, chatSource ChatSource, llm LLMProvider, tts Synthesizer, sink AudioSink, avatar AvatarController, longTerm LongTermMemoryStore, coreMemory CoreMemoryStore) (*Orchestrator, error) {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if llm == nil || tts == nil || sink == nil {
		return nil, ErrNilProvider
	}
	if cfg.STTEnabled && recognizer == nil {
		return nil, fmt.Errorf("%w: recognizer", ErrConfigMissingService)
	}
	if cfg.ChatEnabled && chatSource == nil {
		return nil, fmt.Errorf("%w: chat source", ErrConfigMissingService)
	}

	clock := RealClock{}
	mailbox := NewMailbox(cfg.MailboxCapacity)
	chatWindow := NewChatWindow(cfg.ChatMaxRecent)
	state := NewSharedState()

	arbiter := NewArbiter(mailbox, chatWindow, state, clock, logger, nil)
	pipeline := NewPipeline(arbiter, state, chatWindow, llm, tts, sink, longTerm, coreMemory, cfg, logger)
	arbiter.SetPipeline(pipeline)

	workers := NewWorkers(cfg, logger, clock, arbiter, chatWindow, pipeline, chatSource, llm, longTerm, coreMemory)

	o := &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		clock:      clock,
		mailbox:    mailbox,
		chatWindow: chatWindow,
		state:      state,
		arbiter:    arbiter,
		pipeline:   pipeline,
		workers:    workers,
		recognizer: recognizer,
		sink:       sink,
		avatar:     avatar,
	}

	if sink != nil && avatar != nil {
		sink.OnChunkLoudness(func(loudness float64) {
			if err := avatar.SetMouthOpen(loudness); err != nil {
				logger.Warn("avatar controller failed", "error", err)
			}
		})
	}

	if recognizer != nil {
		recognizer.OnTranscribed(func(speaker, text string) {
			if strings.TrimSpace(text) == "" {
				return
			}
			o.arbiter.Post(InputEvent{
				Source:     SourceSpeech,
				Speaker:    speaker,
				Text:       text,
				ReceivedAt: o.clock.Now(),
			})
		})
	}

	return o, nil
}

// Start launches the arbiter, pipeline and background workers and returns
// immediately; Stop, or cancelling ctx, tears them down.
func (o *Orchestrator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})

	go o.arbiter.Run(runCtx)
	go o.pipeline.Run(runCtx)
	go func() {
		if err := o.workers.Run(runCtx); err != nil {
			o.logger.Error("background workers exited with error", "error", err)
		}
		close(o.done)
	}()
}

// Stop cancels every running loop and waits for the background workers to
// return.
func (o *Orchestrator) Stop() {
	if o.cancel == nil {
		return
	}
	o.cancel()
	if o.done != nil {
		<-o.done
	}
	_ = o.sink.Stop()
}

// ChangeInputDevices routes a device-selection request through to the
// recognizer. Safe to call at any time; it may briefly stall the pipeline if
// the recognizer implementation blocks while switching devices.
func (o *Orchestrator) ChangeInputDevices(devices map[string]string) error {
	type deviceChanger interface {
		ChangeInputDevices(map[string]string) error
	}
	if dc, ok := o.recognizer.(deviceChanger); ok {
		return dc.ChangeInputDevices(devices)
	}
	return nil
}

// ChangeOutputDevice routes a device-selection request through to the sink.
func (o *Orchestrator) ChangeOutputDevice(id string) error {
	type deviceChanger interface {
		ChangeOutputDevice(string) error
	}
	if dc, ok := o.sink.(deviceChanger); ok {
		return dc.ChangeOutputDevice(id)
	}
	return nil
}

// Snapshot returns the current read-only dashboard view (component I).
func (o *Orchestrator) Snapshot() Snapshot {
	token, state := o.state.Current()
	snap := Snapshot{
		CurrentToken:  token,
		SpeakingState: state,
		ChatWindow:    o.chatWindow.Snapshot(),
		IdleFor:       o.arbiter.IdleSince(o.clock.Now()),
	}
	if lt := o.pipeline.longTerm; lt != nil {
		snap.LongTermMemory = lt.All()
	}
	if cm := o.pipeline.coreMemory; cm != nil {
		snap.CoreMemoryCount = len(cm.All())
	}
	return snap
}

// Arbiter exposes the arbiter for producers constructed outside New (tests,
// alternate wiring).
func (o *Orchestrator) Arbiter() *Arbiter { return o.arbiter }

// ChatWindow exposes the rolling chat window, e.g. for a chat producer that
// lives outside the background workers.
func (o *Orchestrator) ChatWindow() *ChatWindow { return o.chatWindow }
