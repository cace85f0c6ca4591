package orchestrator

import (
	"testing"
	"time"
)

func TestMailboxPostAndDrain(t *testing.T) {
	m := NewMailbox(4)
	if !m.Post(InputEvent{Source: SourceChat}) {
		t.Fatal("expected post to succeed on empty mailbox")
	}
	if !m.Backlog() {
		t.Fatal("expected backlog after a post")
	}

	drained := m.DrainAll()
	if len(drained) != 1 {
		t.Fatalf("expected 1 drained event, got %d", len(drained))
	}
	if m.Backlog() {
		t.Fatal("expected empty backlog after drain")
	}
}

func TestMailboxPostDropsWhenFull(t *testing.T) {
	m := NewMailbox(1)
	if !m.Post(InputEvent{Source: SourceChat}) {
		t.Fatal("first post should succeed")
	}
	if m.Post(InputEvent{Source: SourceChat}) {
		t.Fatal("second post should be dropped on a full mailbox, not block")
	}
}

func TestMailboxDefaultCapacity(t *testing.T) {
	m := NewMailbox(0)
	for i := 0; i < 64; i++ {
		if !m.Post(InputEvent{Source: SourceIdle}) {
			t.Fatalf("post %d should have succeeded under default capacity 64", i)
		}
	}
	if m.Post(InputEvent{Source: SourceIdle}) {
		t.Fatal("65th post should overflow the default capacity")
	}
}

func TestCoalesceEmpty(t *testing.T) {
	if _, ok := Coalesce(nil); ok {
		t.Fatal("expected Coalesce(nil) to report no event")
	}
}

func TestCoalescePrefersInterruptionOverNewerChat(t *testing.T) {
	now := time.Now()
	events := []InputEvent{
		{Source: SourceChat, ReceivedAt: now.Add(time.Second)},
		{Source: SourceSpeech, IsInterruption: true, ReceivedAt: now, Speaker: "viewer"},
	}

	got, ok := Coalesce(events)
	if !ok {
		t.Fatal("expected a winner")
	}
	if !got.IsInterruption || got.Speaker != "viewer" {
		t.Fatalf("expected the interruption to win despite being older, got %+v", got)
	}
}

func TestCoalescePrefersNewestSpeechOverOlderSpeech(t *testing.T) {
	now := time.Now()
	events := []InputEvent{
		{Source: SourceSpeech, ReceivedAt: now, Text: "older"},
		{Source: SourceSpeech, ReceivedAt: now.Add(time.Second), Text: "newer"},
	}

	got, ok := Coalesce(events)
	if !ok || got.Text != "newer" {
		t.Fatalf("expected newest speech event to win, got %+v", got)
	}
}

func TestCoalesceFallsBackToChatThenIdle(t *testing.T) {
	now := time.Now()
	chatOnly := []InputEvent{
		{Source: SourceChat, ReceivedAt: now, Text: "older chat"},
		{Source: SourceChat, ReceivedAt: now.Add(time.Second), Text: "newer chat"},
	}
	got, ok := Coalesce(chatOnly)
	if !ok || got.Text != "newer chat" {
		t.Fatalf("expected newest chat event to win, got %+v", got)
	}

	idleOnly := []InputEvent{{Source: SourceIdle, ReceivedAt: now}}
	got, ok = Coalesce(idleOnly)
	if !ok || got.Source != SourceIdle {
		t.Fatalf("expected the idle event to win when nothing else is present, got %+v", got)
	}
}
