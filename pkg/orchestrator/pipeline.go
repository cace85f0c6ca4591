package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const apologyText = "Sorry, I couldn't come up with a response just now."

// Pipeline is the Response Pipeline (§4.2): a single worker that consumes
// accepted events from the Arbiter, drives them through prompt assembly,
// language-model generation and speech synthesis, and streams the result to
// the audio sink, honoring token-keyed cancellation at every hand-off.
type Pipeline struct {
	arbiter    *Arbiter
	state      *SharedState
	chatWindow *ChatWindow
	llm        LLMProvider
	tts        Synthesizer
	sink       AudioSink
	longTerm   LongTermMemoryStore
	coreMemory CoreMemoryStore
	cfg        Config
	logger     Logger

	mu            sync.Mutex
	cancelCurrent context.CancelFunc

	historyMu sync.Mutex
	history   []HistoryEntry
}

// NewPipeline wires a Pipeline over its collaborators. longTerm/coreMemory
// may be nil: the long-term memory section then renders as "(none)" and the
// core-memory section is omitted from the prompt.
func NewPipeline(arbiter *Arbiter, state *SharedState, chatWindow *ChatWindow, llm LLMProvider, tts Synthesizer, sink AudioSink, longTerm LongTermMemoryStore, coreMemory CoreMemoryStore, cfg Config, logger Logger) *Pipeline {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &Pipeline{
		arbiter:    arbiter,
		state:      state,
		chatWindow: chatWindow,
		llm:        llm,
		tts:        tts,
		sink:       sink,
		longTerm:   longTerm,
		coreMemory: coreMemory,
		cfg:        cfg,
		logger:     logger,
	}
}

// Cancel implements PipelineController: it requests cancellation of whatever
// is currently in flight. It never blocks on network calls — it flips the
// per-response context and asks the sink to stop; the running goroutine
// notices at its next chunk/phase boundary.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	cancel := p.cancelCurrent
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := p.tts.Abort(); err != nil {
		p.logger.Warn("tts abort failed during cancellation", "error", err)
	}
	if err := p.sink.Stop(); err != nil {
		p.logger.Warn("sink stop failed during cancellation", "error", err)
	}
}

// Run is the pipeline's own goroutine; it exits when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case acc := <-p.arbiter.Accepted():
			p.process(ctx, acc)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, acc Accepted) {
	respCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancelCurrent = cancel
	p.mu.Unlock()
	defer func() {
		cancel()
		p.mu.Lock()
		p.cancelCurrent = nil
		p.mu.Unlock()
	}()

	// Step 1: bind token, publish Synthesizing.
	p.state.Bind(acc.Token)

	// Step 2: consume any pending InterruptionRecord.
	if rec, ok := p.arbiter.TakePendingInterruption(); ok {
		p.appendHistory(RoleSystem, fmt.Sprintf("previous response interrupted by %s with '%s'", rec.BySpeaker, rec.ByText))
	}

	// Step 3: assemble prompt from the chat-window watermark split.
	previous, recent := p.chatWindow.Split()
	prompt, taskPrompt := BuildPrompt(p.cfg, acc.Event, previous, recent, p.historySnapshot(), p.longTermFacts(), p.coreMemorySummary(), time.Now())

	// Step 4: request generation. A failure substitutes a fixed apology and
	// the pipeline proceeds exactly as on success.
	llmCtx, cancelLLM := context.WithTimeout(respCtx, p.cfg.LLMTimeout)
	text, err := p.llm.Generate(llmCtx, prompt)
	cancelLLM()
	if err != nil {
		p.logger.Error("llm generation failed", "error", err, "token", acc.Token.Tag)
		text = apologyText
	}

	// Step 5: discard stale work if preempted while generating.
	if !p.state.Matches(acc.Token) {
		return
	}

	p.appendHistory(RoleUser, taskPrompt)
	p.appendHistory(RoleModel, text)

	// Steps 6-7: synthesize and stream to the sink, honoring cancellation.
	p.synthesizeAndPlay(respCtx, acc.Token, text)

	// Step 8: completion — clear token, publish Idle, update last interaction.
	if p.state.Matches(acc.Token) {
		p.state.Clear()
	}
	p.arbiter.MarkInteraction(time.Now())
}

func (p *Pipeline) synthesizeAndPlay(ctx context.Context, token ResponseToken, text string) {
	chunks := make(chan []byte, 8)
	sinkErrCh := make(chan error, 1)
	go func() {
		sinkErrCh <- p.sink.PlayStream(ctx, chunks)
	}()

	firstChunk := true
	err := p.tts.StreamSynthesize(ctx, text, func(chunk []byte) error {
		if !p.state.Matches(token) {
			return ErrContextCancelled
		}
		if firstChunk {
			p.state.SetPlaying()
			firstChunk = false
		}
		select {
		case chunks <- chunk:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	close(chunks)

	if err != nil && ctx.Err() == nil && err != ErrContextCancelled {
		p.logger.Error("tts stream error", "error", err, "token", token.Tag)
	}

	if sinkErr := <-sinkErrCh; sinkErr != nil && ctx.Err() == nil {
		p.logger.Error("sink playback error", "error", sinkErr, "token", token.Tag)
	}

	if !p.state.Matches(token) {
		if err := p.sink.Stop(); err != nil {
			p.logger.Warn("sink stop failed after mismatch", "error", err)
		}
	}
}

func (p *Pipeline) appendHistory(role Role, text string) {
	p.historyMu.Lock()
	defer p.historyMu.Unlock()

	p.history = append(p.history, HistoryEntry{Role: role, Text: text})
	if max := p.cfg.LLMMaxHistory; max > 0 && len(p.history) > max {
		p.history = p.history[len(p.history)-max:]
	}
}

func (p *Pipeline) historySnapshot() []HistoryEntry {
	p.historyMu.Lock()
	defer p.historyMu.Unlock()
	return append([]HistoryEntry(nil), p.history...)
}

func (p *Pipeline) longTermFacts() []string {
	if p.longTerm == nil {
		return nil
	}
	return p.longTerm.All()
}

func (p *Pipeline) coreMemorySummary() string {
	if p.coreMemory == nil {
		return ""
	}
	return p.coreMemory.Summary()
}

// HistorySnapshot exposes conversation history for the dashboard snapshot.
func (p *Pipeline) HistorySnapshot() []HistoryEntry {
	return p.historySnapshot()
}
