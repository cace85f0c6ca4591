package orchestrator

import "errors"

var (
	// ErrEmptyTranscription is returned when the recognizer produced no text.
	ErrEmptyTranscription = errors.New("transcription returned empty text")

	// ErrLLMFailed wraps a language-model generation failure (TransientExternal).
	ErrLLMFailed = errors.New("language model generation failed")

	// ErrTTSFailed wraps a synthesis failure (TransientExternal).
	ErrTTSFailed = errors.New("text-to-speech synthesis failed")

	// ErrChatFetchFailed wraps a chat-source poll failure (TransientExternal).
	ErrChatFetchFailed = errors.New("chat source fetch failed")

	// ErrNilProvider is returned by New when a required collaborator is nil.
	ErrNilProvider = errors.New("required provider is nil")

	// ErrContextCancelled marks an operation abandoned due to token mismatch
	// or context cancellation rather than a genuine failure.
	ErrContextCancelled = errors.New("operation cancelled by context")

	// ErrConfigMissingService is a ConfigError: a required external service
	// (e.g. an LLM key) was not configured. New refuses to build the
	// orchestrator and returns it.
	ErrConfigMissingService = errors.New("required external service not configured")

	// ErrInternalInvariant marks an InternalInvariantViolation, e.g. the sink
	// reporting playback with no token bound. The recovery policy is to force
	// a sink stop, clear the token, and publish Idle.
	ErrInternalInvariant = errors.New("internal invariant violated")
)
