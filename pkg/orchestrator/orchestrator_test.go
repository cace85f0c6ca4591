package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeRecognizer struct {
	onTranscribed func(speaker, text string)
}

func (f *fakeRecognizer) OnTranscribed(fn func(speaker, text string)) { f.onTranscribed = fn }
func (f *fakeRecognizer) Name() string                                { return "fake-recognizer" }

type fakeAvatar struct {
	mu     sync.Mutex
	values []float64
}

func (f *fakeAvatar) SetMouthOpen(value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = append(f.values, value)
	return nil
}

func testProviders() (Recognizer, ChatSource, LLMProvider, Synthesizer, AudioSink) {
	return &fakeRecognizer{}, &fakeChatSource{}, &fakeLLM{response: "hi"}, &fakeTTS{}, &fakeSink{}
}

func TestNewRejectsNilCoreProviders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.STTEnabled = false
	cfg.ChatEnabled = false

	if _, err := New(cfg, nil, nil, nil, nil, nil, nil, nil, nil, nil); err != ErrNilProvider {
		t.Fatalf("expected ErrNilProvider, got %v", err)
	}
}

func TestNewRequiresRecognizerWhenSTTEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.STTEnabled = true
	cfg.ChatEnabled = false

	_, _, llm, tts, sink := testProviders()
	_, err := New(cfg, nil, nil, nil, llm, tts, sink, nil, nil, nil)
	if err == nil {
		t.Fatal("expected an error when STT is enabled but no recognizer is supplied")
	}
}

func TestNewRequiresChatSourceWhenChatEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.STTEnabled = false
	cfg.ChatEnabled = true

	_, _, llm, tts, sink := testProviders()
	_, err := New(cfg, nil, nil, nil, llm, tts, sink, nil, nil, nil)
	if err == nil {
		t.Fatal("expected an error when chat is enabled but no chat source is supplied")
	}
}

func TestNewWiresRecognizerTranscriptsIntoArbiter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChatEnabled = false

	recognizer, _, llm, tts, sink := testProviders()
	orch, err := New(cfg, nil, recognizer, nil, llm, tts, sink, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fr := recognizer.(*fakeRecognizer)
	fr.onTranscribed("viewer", "hello there")
	// Run one arbiter decision step, as Arbiter.Run does for each dequeue.
	if ev, ok := Coalesce(orch.mailbox.DrainAll()); ok {
		orch.arbiter.decide(ev)
	}

	select {
	case acc := <-orch.Arbiter().Accepted():
		if acc.Event.Text != "hello there" || acc.Event.Source != SourceSpeech {
			t.Fatalf("unexpected accepted event: %+v", acc.Event)
		}
	default:
		t.Fatal("expected the transcript to reach the arbiter as a speech event")
	}
}

func TestNewIgnoresBlankTranscripts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChatEnabled = false

	recognizer, _, llm, tts, sink := testProviders()
	orch, err := New(cfg, nil, recognizer, nil, llm, tts, sink, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recognizer.(*fakeRecognizer).onTranscribed("viewer", "   ")
	// Run one arbiter decision step, as Arbiter.Run does for each dequeue.
	if ev, ok := Coalesce(orch.mailbox.DrainAll()); ok {
		orch.arbiter.decide(ev)
	}

	select {
	case acc := <-orch.Arbiter().Accepted():
		t.Fatalf("expected a blank transcript to be dropped, got %+v", acc)
	default:
	}
}

func TestNewWiresSinkLoudnessIntoAvatar(t *testing.T) {
	cfg := DefaultConfig()
	cfg.STTEnabled = false
	cfg.ChatEnabled = false

	_, _, llm, tts, sink := testProviders()
	fs := sink.(*fakeSink)
	avatar := &fakeAvatar{}

	_, err := New(cfg, nil, nil, nil, llm, tts, sink, avatar, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.loudnessFn == nil {
		t.Fatal("expected New to register a loudness callback on the sink when an avatar is present")
	}

	fs.loudnessFn(0.75)
	avatar.mu.Lock()
	defer avatar.mu.Unlock()
	if len(avatar.values) != 1 || avatar.values[0] != 0.75 {
		t.Fatalf("expected the avatar to receive the loudness value, got %+v", avatar.values)
	}
}

func TestOrchestratorStartStopAndSnapshot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.STTEnabled = false
	cfg.ChatEnabled = false
	cfg.IdleEnabled = false
	cfg.LLMEnableMemorySummarize = false
	cfg.LLMEnableCoreMemoryProcess = false

	_, _, llm, tts, sink := testProviders()
	orch, err := New(cfg, nil, nil, nil, llm, tts, sink, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := orch.Snapshot()
	if snap.SpeakingState != Idle {
		t.Fatalf("expected Idle before Start, got %v", snap.SpeakingState)
	}

	ctx, cancel := context.WithCancel(context.Background())
	orch.Start(ctx)
	defer cancel()

	orch.Arbiter().Post(InputEvent{Source: SourceChat, Speaker: "v", Text: "hi", ReceivedAt: time.Now()})

	deadline := time.After(2 * time.Second)
	for {
		history := orch.pipeline.HistorySnapshot()
		if len(history) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected the running pipeline to have processed the posted event")
		case <-time.After(10 * time.Millisecond):
		}
	}

	orch.Stop()
}

func TestOrchestratorChangeDevicesNoOpWithoutSupport(t *testing.T) {
	cfg := DefaultConfig()
	cfg.STTEnabled = false
	cfg.ChatEnabled = false

	_, _, llm, tts, sink := testProviders()
	orch, err := New(cfg, nil, nil, nil, llm, tts, sink, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := orch.ChangeInputDevices(map[string]string{"mic": "default"}); err != nil {
		t.Fatalf("expected a no-op nil error, got %v", err)
	}
	if err := orch.ChangeOutputDevice("default"); err != nil {
		t.Fatalf("expected a no-op nil error, got %v", err)
	}
}
