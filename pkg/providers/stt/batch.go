package stt

import "context"

// BatchTranscriber transcribes a complete utterance already buffered in
// memory. GroqSTT, OpenAISTT, DeepgramSTT and AssemblyAISTT all satisfy
// this, so the local package's endpointing Recognizer can wrap any of them.
type BatchTranscriber interface {
	Transcribe(ctx context.Context, audioPCM []byte, lang string) (string, error)
	Name() string
}
