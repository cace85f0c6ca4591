// Package avatar implements orchestrator.AvatarController as a small JSON
// websocket client, grounded on original_source/live2d_controller.py's
// set_mouth_open call: that Python class drives a VTube Studio Live2D
// parameter over an async request/response API, reconnecting lazily and
// clamping the mouth-open value to [0,1]. This client talks instead to a
// simple websocket endpoint that accepts {"mouth_open": <float>} frames,
// so any downstream renderer (VTube Studio bridge, browser overlay, custom
// puppet) can subscribe without this package knowing its wire protocol.
package avatar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// WebsocketAvatar sends mouth-open updates to a websocket endpoint as JSON.
type WebsocketAvatar struct {
	url     string
	timeout time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

// New connects lazily; url should be a ws:// or wss:// endpoint.
func New(url string) *WebsocketAvatar {
	return &WebsocketAvatar{url: url, timeout: 5 * time.Second}
}

func (a *WebsocketAvatar) getConn(ctx context.Context) (*websocket.Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn != nil {
		return a.conn, nil
	}

	conn, _, err := websocket.Dial(ctx, a.url, nil)
	if err != nil {
		return nil, fmt.Errorf("avatar: dial %s: %w", a.url, err)
	}
	a.conn = conn
	return conn, nil
}

type mouthOpenMessage struct {
	MouthOpen float64 `json:"mouth_open"`
}

// SetMouthOpen satisfies orchestrator.AvatarController. value is clamped to
// [0,1] before sending, matching the original's max(0.0, min(1.0, value)).
func (a *WebsocketAvatar) SetMouthOpen(value float64) error {
	if value < 0 {
		value = 0
	} else if value > 1 {
		value = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	conn, err := a.getConn(ctx)
	if err != nil {
		return err
	}

	if err := wsjson.Write(ctx, conn, mouthOpenMessage{MouthOpen: value}); err != nil {
		a.mu.Lock()
		a.conn = nil
		a.mu.Unlock()
		conn.Close(websocket.StatusAbnormalClosure, "failed to write mouth_open")
		return fmt.Errorf("avatar: send mouth_open: %w", err)
	}
	return nil
}

// Close releases the underlying connection, if any.
func (a *WebsocketAvatar) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close(websocket.StatusNormalClosure, "")
	a.conn = nil
	return err
}
