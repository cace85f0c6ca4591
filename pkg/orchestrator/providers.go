package orchestrator

import "context"

// Recognizer is the speech-to-text collaborator. OnTranscribed registers the
// callback the recognizer invokes once per completed utterance; it must be
// safe to call concurrently from any context (the recognizer may run its own
// capture goroutine).
type Recognizer interface {
	OnTranscribed(fn func(speaker, text string))
	Name() string
}

// ChatSource is a poll-based live-chat collaborator. FetchLatest returns up
// to limit chat lines, newest-first; the chat poller reverses them on intake
// so they're appended to the window oldest-first.
type ChatSource interface {
	FetchLatest(ctx context.Context, limit int) ([]ChatLine, error)
	Name() string
}

// ToolCall is one function-call the language model asked the caller to
// dispatch, used by the core-memory distiller.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolSchema declares one callable tool for GenerateWithTools.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// LLMProvider is the language-model collaborator: single request/response
// generation, single-turn summarization, and tool-calling generation for
// memory distillation.
type LLMProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Summarize(ctx context.Context, text string) (string, error)
	GenerateWithTools(ctx context.Context, prompt string, tools []ToolSchema) ([]ToolCall, error)
	Name() string
}

// Synthesizer is the text-to-speech collaborator. StreamSynthesize's first
// chunk must carry a self-describing audio header (sample rate, channels,
// sample width, format); subsequent chunks are raw PCM in that format.
// Abort cancels any in-flight synthesis server-side — the pipeline calls it
// on barge-in in addition to cancelling its own context, since a stale
// synthesis call may otherwise keep producing chunks nobody reads.
type Synthesizer interface {
	StreamSynthesize(ctx context.Context, text string, onChunk func([]byte) error) error
	Abort() error
	Name() string
}

// AudioSink plays a stream of audio chunks (the first of which is a header),
// reports whether it is currently playing, can be preemptively stopped (safe
// to call when already idle), and reports per-chunk loudness.
type AudioSink interface {
	PlayStream(ctx context.Context, chunks <-chan []byte) error
	Stop() error
	IsPlaying() bool
	OnChunkLoudness(fn func(float64))
}

// AvatarController receives normalized mouth-open values in [0,1], driven by
// the sink's loudness callback.
type AvatarController interface {
	SetMouthOpen(value float64) error
}

// LongTermMemoryStore is the rolling deduplicated fact store (§3).
type LongTermMemoryStore interface {
	Add(fact string) error
	All() []string
	IsEmpty() bool
}

// CoreMemoryStore is the categorized important-fact store (§3), appended to
// by the core-memory distiller's tool-call handler.
type CoreMemoryStore interface {
	Add(entry CoreMemoryEntry) error
	All() []CoreMemoryEntry
	Summary() string
}
