package orchestrator

import (
	"sync"
	"time"
)

// SharedState is the dedicated lock guarding the current ResponseToken and
// SpeakingState (§5): atomic word-sized reads for the dashboard and
// pipeline, writes only by the pipeline and, for cancellation, the arbiter.
type SharedState struct {
	mu    sync.Mutex
	token ResponseToken
	state SpeakingState
}

// NewSharedState returns a SharedState starting Idle with no current token.
func NewSharedState() *SharedState {
	return &SharedState{}
}

// Bind sets the current token and publishes Synthesizing (§4.2 step 1).
func (s *SharedState) Bind(tok ResponseToken) {
	s.mu.Lock()
	s.token = tok
	s.state = Synthesizing
	s.mu.Unlock()
}

// SetPlaying publishes Playing without changing the bound token (§4.2 step 6).
func (s *SharedState) SetPlaying() {
	s.mu.Lock()
	s.state = Playing
	s.mu.Unlock()
}

// Clear atomically clears the current token and publishes Idle — used both
// on natural completion (§4.2 step 8) and by the arbiter on preemption,
// satisfying invariant 2.
func (s *SharedState) Clear() {
	s.mu.Lock()
	s.token = ResponseToken{}
	s.state = Idle
	s.mu.Unlock()
}

// Current returns the current token and SpeakingState.
func (s *SharedState) Current() (ResponseToken, SpeakingState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.state
}

// Matches reports whether tok is still the current token — the token-keyed
// cancellation check performed at every forwarding boundary.
func (s *SharedState) Matches(tok ResponseToken) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token == tok
}

// Snapshot is the read-only view exposed to an external dashboard (component I).
type Snapshot struct {
	CurrentToken    ResponseToken
	SpeakingState   SpeakingState
	ChatWindow      []ChatLine
	LongTermMemory  []string
	CoreMemoryCount int
	IdleFor         time.Duration
}
