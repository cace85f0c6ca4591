package orchestrator

import "sort"

// Mailbox is the arbiter's decision mailbox: a bounded FIFO of InputEvents
// (cap ~64) fed by the speech, chat and idle producers and drained by the
// single arbiter goroutine.
type Mailbox struct {
	ch chan InputEvent
}

// NewMailbox creates a mailbox with the given capacity.
func NewMailbox(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = 64
	}
	return &Mailbox{ch: make(chan InputEvent, capacity)}
}

// Post enqueues ev without blocking; if the mailbox is full the event is
// dropped (callers should log this — producers never block on a full
// mailbox).
func (m *Mailbox) Post(ev InputEvent) (posted bool) {
	select {
	case m.ch <- ev:
		return true
	default:
		return false
	}
}

// C exposes the receive side for a single blocking dequeue.
func (m *Mailbox) C() <-chan InputEvent {
	return m.ch
}

// Backlog reports whether any events are currently buffered, used by arbiter
// rule 5 ("idle event, ... any mailbox backlog non-empty → drop").
func (m *Mailbox) Backlog() bool {
	return len(m.ch) > 0
}

// DrainAll non-blockingly removes every currently buffered event, in FIFO
// arrival order. Used for coalescing once the pipeline goes idle.
func (m *Mailbox) DrainAll() []InputEvent {
	var out []InputEvent
	for {
		select {
		case ev := <-m.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Coalesce implements the §4.1 coalescing rule: sort by ReceivedAt
// descending and take the first entry that is either an interruption or a
// Speech event; if none, the most recent Chat event; if none, the most
// recent Idle event. Returns false if events is empty.
func Coalesce(events []InputEvent) (InputEvent, bool) {
	if len(events) == 0 {
		return InputEvent{}, false
	}

	sorted := append([]InputEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ReceivedAt.After(sorted[j].ReceivedAt)
	})

	for _, ev := range sorted {
		if ev.IsInterruption || ev.Source == SourceSpeech {
			return ev, true
		}
	}
	for _, ev := range sorted {
		if ev.Source == SourceChat {
			return ev, true
		}
	}
	for _, ev := range sorted {
		if ev.Source == SourceIdle {
			return ev, true
		}
	}
	return InputEvent{}, false
}
