package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// saveCoreMemoryTool mirrors the function-calling schema the distiller asks
// the language model to invoke for every important fact it finds.
var saveCoreMemoryTool = ToolSchema{
	Name:        "save_core_memory",
	Description: "Save an important core memory that should be remembered for a very long time",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"memory_text": map[string]any{
				"type":        "string",
				"description": "A concise summary of the important memory to save",
			},
			"importance_level": map[string]any{
				"type":        "string",
				"enum":        []string{"critical", "high", "medium"},
				"description": "The importance level of this memory",
			},
			"category": map[string]any{
				"type":        "string",
				"description": "Category of the memory (e.g. user_preference, personal_info, important_event, relationship, context)",
			},
		},
		"required": []string{"memory_text", "importance_level", "category"},
	},
}

// Workers runs the four cooperatively scheduled background loops (§4.4):
// chat polling, idle-timer firing, periodic session summarization, and
// periodic core-memory distillation.
type Workers struct {
	cfg    Config
	logger Logger
	clock  Clock

	rngMu sync.Mutex
	rng   *rand.Rand

	arbiter    *Arbiter
	chatWindow *ChatWindow
	pipeline   *Pipeline

	chatSource ChatSource
	llm        LLMProvider
	longTerm   LongTermMemoryStore
	coreMemory CoreMemoryStore

	lastChatPoll []ChatLine
}

// NewWorkers wires the background workers over their collaborators. Any of
// chatSource/llm/longTerm/coreMemory may be nil when the corresponding
// cfg.*Enabled flag is false; that worker then never runs.
func NewWorkers(cfg Config, logger Logger, clock Clock, arbiter *Arbiter, chatWindow *ChatWindow, pipeline *Pipeline, chatSource ChatSource, llm LLMProvider, longTerm LongTermMemoryStore, coreMemory CoreMemoryStore) *Workers {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Workers{
		cfg:        cfg,
		logger:     logger,
		clock:      clock,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		arbiter:    arbiter,
		chatWindow: chatWindow,
		pipeline:   pipeline,
		chatSource: chatSource,
		llm:        llm,
		longTerm:   longTerm,
		coreMemory: coreMemory,
	}
}

// Run launches every enabled worker under an errgroup bound to ctx, and
// blocks until all of them have returned; each returns once ctx is
// cancelled. With no worker enabled it returns at once.
func (w *Workers) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if w.cfg.ChatEnabled && w.chatSource != nil {
		g.Go(func() error { w.supervise(ctx, "chat-poller", w.chatPollOnce, w.cfg.ChatPollInterval); return nil })
	}
	if w.cfg.IdleEnabled {
		g.Go(func() error { w.supervise(ctx, "idle-timer", w.idleTick, 5*time.Second); return nil })
	}
	if w.cfg.LLMEnableMemorySummarize && w.llm != nil && w.longTerm != nil {
		g.Go(func() error {
			w.supervise(ctx, "session-summarizer", w.summarizeOnce, w.cfg.LLMMemorySummarizeInterval)
			return nil
		})
	}
	if w.cfg.LLMEnableCoreMemoryProcess && w.llm != nil && w.longTerm != nil && w.coreMemory != nil {
		g.Go(func() error {
			w.supervise(ctx, "core-memory-distiller", w.distillOnce, w.cfg.LLMCoreMemoryInterval)
			return nil
		})
	}

	return g.Wait()
}

// supervise runs fn every interval until ctx is cancelled, recovering from
// panics with a log-and-sleep(10s)-then-retry policy (§7 recovery boundary)
// so one bad cycle never kills the worker.
func (w *Workers) supervise(ctx context.Context, name string, fn func(ctx context.Context), interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runOnce := func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("worker panic, retrying", "worker", name, "panic", r)
				time.Sleep(10 * time.Second)
			}
		}()
		fn(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// chatPollOnce fetches up to cfg.ChatMaxRecent lines, diffs them against the
// previous poll by {user, message} equality, appends every new line to the
// rolling chat window, and independently rolls the Bernoulli trial for each
// new line to decide whether it also becomes an InputEvent.
func (w *Workers) chatPollOnce(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, w.cfg.ChatTimeout)
	defer cancel()

	lines, err := w.chatSource.FetchLatest(pollCtx, w.cfg.ChatMaxRecent)
	if err != nil {
		w.logger.Warn("chat poll failed", "error", err)
		return
	}

	chronological := make([]ChatLine, len(lines))
	for i, l := range lines {
		chronological[len(lines)-1-i] = l
	}

	seen := make(map[ChatLine]bool, len(w.lastChatPoll))
	for _, l := range w.lastChatPoll {
		seen[l] = true
	}

	for _, l := range chronological {
		if seen[l] {
			continue
		}
		w.chatWindow.Append(l)
		if w.randFloat64() < w.cfg.ChatResponseChance {
			w.arbiter.Post(InputEvent{
				Source:     SourceChat,
				Speaker:    l.User,
				Text:       l.Message,
				ReceivedAt: w.clock.Now(),
			})
		}
	}

	w.lastChatPoll = chronological
}

// idleTick evaluates the idle timer every cycle (§4.4): if playback is
// active, reset and continue; otherwise compare idle time against a fresh
// per-cycle uniform threshold and post one Idle event if exceeded and the
// mailbox is empty.
func (w *Workers) idleTick(ctx context.Context) {
	now := w.clock.Now()

	if _, state := w.arbiterState(); state != Idle {
		w.arbiter.MarkInteraction(now)
		return
	}

	idleFor := w.arbiter.IdleSince(now)
	threshold := w.cfg.IdleMinInterval + time.Duration(w.randFloat64()*float64(w.cfg.IdleMaxInterval-w.cfg.IdleMinInterval))

	if idleFor < threshold {
		return
	}
	if !w.arbiter.MailboxEmpty() {
		return
	}

	w.arbiter.Post(InputEvent{Source: SourceIdle, ReceivedAt: now})
}

func (w *Workers) arbiterState() (ResponseToken, SpeakingState) {
	return w.arbiter.state.Current()
}

// randFloat64 draws from the shared *rand.Rand under a mutex: the
// chat-poller and idle-timer goroutines both call into it concurrently, and
// a *rand.Rand built via rand.New is not safe for concurrent use on its own.
func (w *Workers) randFloat64() float64 {
	w.rngMu.Lock()
	defer w.rngMu.Unlock()
	return w.rng.Float64()
}

// summarizeOnce asks the language model for a one-sentence factual summary
// of the current conversation history and inserts it into long-term memory
// via the idempotent add.
func (w *Workers) summarizeOnce(ctx context.Context) {
	history := w.pipeline.HistorySnapshot()
	if len(history) == 0 {
		return
	}

	var b strings.Builder
	for _, h := range history {
		fmt.Fprintf(&b, "%s: %s\n", h.Role, h.Text)
	}

	summary, err := w.llm.Summarize(ctx, b.String())
	if err != nil {
		w.logger.Warn("session summarization failed", "error", err)
		return
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return
	}
	if err := w.longTerm.Add(summary); err != nil {
		w.logger.Warn("failed to persist long-term memory", "error", err)
	}
}

// distillOnce asks the language model to categorize the most important
// long-term facts via tool-calling, dispatching each save_core_memory call
// to the core-memory store.
func (w *Workers) distillOnce(ctx context.Context) {
	facts := w.longTerm.All()
	if len(facts) == 0 {
		return
	}

	var b strings.Builder
	b.WriteString("Identify the most important facts below worth remembering long-term, and call save_core_memory for each:\n\n")
	for _, f := range facts {
		fmt.Fprintf(&b, "- %s\n", f)
	}

	calls, err := w.llm.GenerateWithTools(ctx, b.String(), []ToolSchema{saveCoreMemoryTool})
	if err != nil {
		w.logger.Warn("core memory distillation failed", "error", err)
		return
	}

	for _, call := range calls {
		if call.Name != saveCoreMemoryTool.Name {
			continue
		}
		w.handleSaveCoreMemory(call.Args)
	}
}

func (w *Workers) handleSaveCoreMemory(args map[string]any) {
	text, _ := args["memory_text"].(string)
	importance, _ := args["importance_level"].(string)
	category, _ := args["category"].(string)
	if text == "" {
		return
	}
	if importance == "" {
		importance = string(ImportanceMedium)
	}

	entry := CoreMemoryEntry{
		Text:       text,
		Importance: Importance(importance),
		Category:   category,
		CreatedAt:  w.clock.Now(),
	}
	if err := w.coreMemory.Add(entry); err != nil {
		w.logger.Warn("failed to persist core memory", "error", err)
	}
}
