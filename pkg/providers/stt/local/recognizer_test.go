package local

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeTranscriber struct {
	mu     sync.Mutex
	text   string
	calls  int
	gotPCM []byte
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPCM []byte, lang string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotPCM = audioPCM
	return f.text, nil
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRecognizerEndpointsAndTranscribes(t *testing.T) {
	ft := &fakeTranscriber{text: "hello there"}
	r := NewRecognizer(ft, "en", WithThreshold(0.02), WithSilenceLimit(30*time.Millisecond))

	var got string
	done := make(chan struct{})
	r.OnTranscribed(func(speaker, text string) {
		got = text
		close(done)
	})

	for i := 0; i < r.vad.minConfirmed; i++ {
		if err := r.Write(loudChunk(320)); err != nil {
			t.Fatalf("unexpected write error: %v", err)
		}
	}

	r.Write(quietChunk(320))
	time.Sleep(40 * time.Millisecond)
	r.Write(quietChunk(320))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transcription callback")
	}

	if got != "hello there" {
		t.Fatalf("expected 'hello there', got %q", got)
	}
	if ft.callCount() != 1 {
		t.Fatalf("expected exactly one transcribe call, got %d", ft.callCount())
	}
}

func TestRecognizerSkipsEmptyUtterance(t *testing.T) {
	ft := &fakeTranscriber{text: "should not be called"}
	r := NewRecognizer(ft, "en", WithSilenceLimit(10*time.Millisecond))

	called := false
	r.OnTranscribed(func(speaker, text string) { called = true })

	// speech never confirmed (below minConfirmed), so no buffered utterance exists
	r.Write(loudChunk(320))
	r.Write(quietChunk(320))
	time.Sleep(20 * time.Millisecond)
	r.Write(quietChunk(320))

	time.Sleep(50 * time.Millisecond)
	if called {
		t.Fatal("expected no transcription callback for an utterance that never started")
	}
}

func TestRecognizerName(t *testing.T) {
	ft := &fakeTranscriber{}
	r := NewRecognizer(ft, "en")
	if r.Name() != "local-vad/fake" {
		t.Fatalf("expected 'local-vad/fake', got %q", r.Name())
	}
}

func TestRecognizerNotifyPlaybackFeedsEchoSuppressor(t *testing.T) {
	ft := &fakeTranscriber{}
	r := NewRecognizer(ft, "en")

	played := generateSine(440, 200, 44100, 0.8)
	r.NotifyPlayback(played)

	if r.echo.playedAudioBuf.Len() == 0 {
		t.Fatal("expected NotifyPlayback to populate the echo suppressor buffer")
	}
}
