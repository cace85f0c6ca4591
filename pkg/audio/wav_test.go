package audio

import (
	"bytes"
	"testing"
)

func TestNewWavBuffer(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	sampleRate := 44100
	wav := NewWavBuffer(pcm, sampleRate)

	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Errorf("Expected RIFF prefix")
	}

	if !bytes.Contains(wav, []byte("WAVE")) {
		t.Errorf("Expected WAVE format identifier")
	}

	expectedLen := 44 + len(pcm)
	if len(wav) != expectedLen {
		t.Errorf("Expected length %d, got %d", expectedLen, len(wav))
	}
}

func TestParseWavHeaderRoundTrip(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	wav := NewWavBuffer(pcm, 22050)

	h, err := ParseWavHeader(wav)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.SampleRate != 22050 {
		t.Errorf("expected sample rate 22050, got %d", h.SampleRate)
	}
	if h.Channels != 1 {
		t.Errorf("expected 1 channel, got %d", h.Channels)
	}
	if h.BitsPerSample != 16 {
		t.Errorf("expected 16 bits per sample, got %d", h.BitsPerSample)
	}
	if !bytes.Equal(wav[h.DataOffset:], pcm) {
		t.Errorf("expected data offset to point at raw PCM, got %v", wav[h.DataOffset:])
	}
}

func TestParseWavHeaderRejectsNonRIFF(t *testing.T) {
	if _, err := ParseWavHeader([]byte("not a wav file")); err == nil {
		t.Error("expected error for non-RIFF input")
	}
}
