package tts

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// LokutorTTS streams speech synthesis over the Lokutor websocket API. Voice
// and language are fixed at construction: the Synthesizer contract carries
// only text, so per-utterance voice/language switching goes through
// constructing a new client (or, in practice, one client per persona).
type LokutorTTS struct {
	apiKey string
	host   string
	scheme string
	voice  string
	lang   string

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewLokutorTTS(apiKey, voice, lang string) *LokutorTTS {
	return &LokutorTTS{
		apiKey: apiKey,
		host:   "api.lokutor.com",
		scheme: "wss",
		voice:  voice,
		lang:   lang,
	}
}

func (t *LokutorTTS) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lokutor: %w", err)
	}

	t.conn = conn
	return conn, nil
}

// StreamSynthesize satisfies orchestrator.Synthesizer. The first chunk
// delivered to onChunk carries no separate header frame — Lokutor's
// websocket protocol sends raw PCM binary frames directly, so callers that
// need a self-describing header (e.g. the malgo sink) wrap this with
// pkg/audio's WAV framing.
//
// The connection itself is only ever touched under t.mu; the write and the
// read loop below run against a conn pulled out from under the lock, so
// Abort can close the conn (and release a blocked conn.Read) without
// waiting on a stream that may run for seconds.
func (t *LokutorTTS) StreamSynthesize(ctx context.Context, text string, onChunk func([]byte) error) error {
	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	req := map[string]interface{}{
		"text":    text,
		"voice":   t.voice,
		"lang":    t.lang,
		"speed":   1.05,
		"steps":   5,
		"version": "versa-1.0",
	}

	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.dropConn(conn, websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("failed to send synthesis request: %w", err)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.dropConn(conn, websocket.StatusAbnormalClosure, "failed to read")
			return fmt.Errorf("failed to read from lokutor: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onChunk(payload); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return fmt.Errorf("lokutor error: %s", msg)
			}
		}
	}
}

// dropConn clears t.conn if it still points at conn and closes conn. conn
// may already have been closed by a concurrent Abort, so the close error is
// ignored; the caller is already returning its own, more specific error.
func (t *LokutorTTS) dropConn(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	conn.Close(code, reason)
}

// Abort closes the live connection mid-stream, forcing StreamSynthesize's
// blocking conn.Read to return an error. It only ever holds t.mu long enough
// to grab and clear the conn pointer, never while blocked on network I/O, so
// it can't deadlock against an in-flight StreamSynthesize call. A fresh
// connection is dialed on the next StreamSynthesize call.
func (t *LokutorTTS) Abort() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "aborted")
}

func (t *LokutorTTS) Name() string {
	return "lokutor"
}
