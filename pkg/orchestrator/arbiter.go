package orchestrator

import (
	"context"
	"sync"
	"time"
)

// PipelineController is the narrow surface the arbiter needs on the
// Response Pipeline: a non-blocking request to cancel whatever is currently
// in flight. The pipeline itself performs the flag-flip / sink-stop /
// TTS-intake drain (§4.2); the arbiter never waits on it.
type PipelineController interface {
	Cancel()
}

// Accepted is one event the arbiter has decided to hand to the pipeline,
// already carrying its freshly assigned token.
type Accepted struct {
	Event InputEvent
	Token ResponseToken
}

// Arbiter is the Input Arbiter & Barge-In Controller (§4.1): it owns the
// decision mailbox and decides acceptance, deferral, or preemption for every
// dequeued event, merging the speech, chat and idle producers into at most
// one accepted event at a time.
type Arbiter struct {
	mailbox    *Mailbox
	chatWindow *ChatWindow
	state      *SharedState
	clock      Clock
	logger     Logger

	pipeline PipelineController
	accepted chan Accepted

	mu               sync.Mutex
	lastInteraction  time.Time
	pendingInterrupt *InterruptionRecord
}

// NewArbiter wires an Arbiter over the given mailbox/chat window/shared
// state, handing accepted events to pipeline's Cancel on preemption.
func NewArbiter(mailbox *Mailbox, chatWindow *ChatWindow, state *SharedState, clock Clock, logger Logger, pipeline PipelineController) *Arbiter {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &Arbiter{
		mailbox:         mailbox,
		chatWindow:      chatWindow,
		state:           state,
		clock:           clock,
		logger:          logger,
		pipeline:        pipeline,
		accepted:        make(chan Accepted, 1),
		lastInteraction: clock.Now(),
	}
}

// SetPipeline wires the pipeline controller after construction, to break the
// arbiter/pipeline initialization cycle (the pipeline itself needs a
// reference back to the arbiter).
func (a *Arbiter) SetPipeline(p PipelineController) {
	a.pipeline = p
}

// Accepted exposes the hand-off channel the Response Pipeline reads from.
func (a *Arbiter) Accepted() <-chan Accepted {
	return a.accepted
}

// MarkInteraction records "now" as the most recent interaction — called by
// the arbiter on every accepted non-idle event, and by the pipeline when
// playback ends naturally (§4.1's idle-time definition).
func (a *Arbiter) MarkInteraction(now time.Time) {
	a.mu.Lock()
	a.lastInteraction = now
	a.mu.Unlock()
}

// IdleSince returns how long it has been since the last interaction.
func (a *Arbiter) IdleSince(now time.Time) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return now.Sub(a.lastInteraction)
}

// TakePendingInterruption returns and clears the InterruptionRecord produced
// by the most recent preemption, consumed exactly once by the next pipeline
// run (§4.2 step 2).
func (a *Arbiter) TakePendingInterruption() (InterruptionRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pendingInterrupt == nil {
		return InterruptionRecord{}, false
	}
	rec := *a.pendingInterrupt
	a.pendingInterrupt = nil
	return rec, true
}

// MailboxEmpty reports whether the decision mailbox currently holds no
// events, used by the idle timer (rule 6: "idle event, pipeline idle,
// mailbox empty").
func (a *Arbiter) MailboxEmpty() bool {
	return !a.mailbox.Backlog()
}

// Post is the producer-facing entry point: all three producers submit
// candidate InputEvents here. Chat lines still land in the rolling window
// via the chat producer regardless of whether Post's event is ever accepted.
func (a *Arbiter) Post(ev InputEvent) {
	if !a.mailbox.Post(ev) {
		a.logger.Warn("mailbox full, dropping event", "source", ev.Source)
	}
}

// Run is the arbiter's own goroutine: dequeue, coalesce, decide, hand off.
// It exits when ctx is cancelled.
func (a *Arbiter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case first := <-a.mailbox.C():
			batch := append([]InputEvent{first}, a.mailbox.DrainAll()...)
			winner, ok := Coalesce(batch)
			if !ok {
				continue
			}
			a.decide(winner)
		}
	}
}

func (a *Arbiter) decide(ev InputEvent) {
	_, state := a.state.Current()

	switch ev.Source {
	case SourceSpeech:
		if state == Idle {
			a.accept(ev)
			return
		}
		a.preempt(ev)

	case SourceChat:
		if state == Idle {
			a.accept(ev)
			return
		}
		a.logger.Debug("dropping chat event, pipeline active", "speaker", ev.Speaker)

	case SourceIdle:
		if state != Idle || a.mailbox.Backlog() {
			return
		}
		a.accept(ev)
	}
}

// accept assigns a fresh token and hands the event to the pipeline.
func (a *Arbiter) accept(ev InputEvent) {
	tok := NewToken()
	a.MarkInteraction(a.clock.Now())

	select {
	case a.accepted <- Accepted{Event: ev, Token: tok}:
	default:
		// The pipeline hasn't drained the previous hand-off yet. This only
		// happens transiently right at the Idle->Assigned edge; replace it
		// so the newest accepted event always wins.
		select {
		case <-a.accepted:
		default:
		}
		a.accepted <- Accepted{Event: ev, Token: tok}
	}
}

// preempt implements arbiter rule 2: mark is_interruption, cancel the
// current response, record the InterruptionRecord (after clearing the
// current token, per invariant 3), then accept the new event with a fresh
// token. A failed sink cancellation is tolerated — the new token is issued
// regardless and §4.2 discards late chunks by mismatch.
func (a *Arbiter) preempt(ev InputEvent) {
	oldToken, _ := a.state.Current()
	ev.IsInterruption = true

	if a.pipeline != nil {
		a.pipeline.Cancel()
	}
	a.state.Clear()

	a.mu.Lock()
	a.pendingInterrupt = &InterruptionRecord{
		InterruptedToken: oldToken,
		BySpeaker:        ev.Speaker,
		ByText:           ev.Text,
		At:               a.clock.Now(),
	}
	a.mu.Unlock()

	a.accept(ev)
}
