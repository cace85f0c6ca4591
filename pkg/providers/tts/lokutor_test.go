package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func TestLokutorTTS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		var req map[string]interface{}
		err = wsjson.Read(r.Context(), conn, &req)
		if err != nil {
			return
		}

		conn.Write(r.Context(), websocket.MessageBinary, []byte{1, 2, 3})
		conn.Write(r.Context(), websocket.MessageBinary, []byte{4, 5, 6})
		conn.Write(r.Context(), websocket.MessageText, []byte("EOS"))
	}))
	defer server.Close()

	tts := &LokutorTTS{
		apiKey: "test-key",
		host:   strings.TrimPrefix(server.URL, "http://"),
		scheme: "ws",
		voice:  "F1",
		lang:   "en",
	}

	var audio []byte
	err := tts.StreamSynthesize(context.Background(), "hello", func(chunk []byte) error {
		audio = append(audio, chunk...)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(audio) != 6 {
		t.Errorf("expected 6 bytes, got %d", len(audio))
	}

	if tts.Name() != "lokutor" {
		t.Errorf("expected lokutor, got %s", tts.Name())
	}

	tts.Abort()
}

func TestLokutorTTSAbortClosesConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")
		var req map[string]interface{}
		if err := wsjson.Read(r.Context(), conn, &req); err != nil {
			return
		}
		// never send EOS — simulate a stuck stream that Abort must interrupt
		<-r.Context().Done()
	}))
	defer server.Close()

	tts := &LokutorTTS{
		apiKey: "test-key",
		host:   strings.TrimPrefix(server.URL, "http://"),
		scheme: "ws",
		voice:  "F1",
		lang:   "en",
	}

	done := make(chan error, 1)
	go func() {
		done <- tts.StreamSynthesize(context.Background(), "hello", func(chunk []byte) error {
			return nil
		})
	}()

	// give the client a moment to connect and send the request
	<-time.After(100 * time.Millisecond)
	if err := tts.Abort(); err != nil {
		t.Fatalf("unexpected error aborting: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected StreamSynthesize to return an error after Abort")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for aborted stream to unblock")
	}
}
