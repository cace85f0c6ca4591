// Package sink implements orchestrator.AudioSink on top of gen2brain/malgo,
// replacing the teacher's ad hoc playback buffer in cmd/agent/main.go with a
// reusable component. Grounded on original_source/audio_player.py's
// play_stream/stop/on_volume_update shape: the first chunk on the channel is
// a self-describing WAV header (matching pyaudio's wave.open parse step),
// every subsequent chunk is raw PCM written straight into the device's
// playback ring buffer, and per-chunk RMS loudness drives the avatar mouth.
package sink

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/lokutor-ai/vtuber-orchestrator/pkg/audio"
)

// MalgoSink plays a header-prefixed PCM16 stream through a malgo playback
// device. One MalgoSink owns one device; Close releases it.
type MalgoSink struct {
	mctx *malgo.AllocatedContext

	mu          sync.Mutex
	device      *malgo.Device
	playing     bool
	playbackBuf []byte
	loudnessFn  func(float64)
	playbackFn  func([]byte)
	sampleRate  int
	channels    int
}

// New allocates a malgo audio context. Callers must call Close when done.
func New() (*MalgoSink, error) {
	s := &MalgoSink{sampleRate: 44100, channels: 1}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("sink: init malgo context: %w", err)
	}
	s.mctx = mctx
	return s, nil
}

// OnChunkLoudness satisfies orchestrator.AudioSink: fn is invoked with a
// normalized [0,1]-ish RMS loudness value after every chunk is written to
// the device, and once more with 0.0 when playback finishes.
func (s *MalgoSink) OnChunkLoudness(fn func(float64)) {
	s.mu.Lock()
	s.loudnessFn = fn
	s.mu.Unlock()
}

// OnPlaybackAudio registers a callback that receives the raw PCM bytes
// written to the device, independent of OnChunkLoudness's scalar summary.
// cmd/agent wires this to a local recognizer's NotifyPlayback so its echo
// suppressor has a reference signal.
func (s *MalgoSink) OnPlaybackAudio(fn func([]byte)) {
	s.mu.Lock()
	s.playbackFn = fn
	s.mu.Unlock()
}

// IsPlaying satisfies orchestrator.AudioSink.
func (s *MalgoSink) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Stop safely halts playback and clears any buffered audio. Safe to call
// when already idle.
func (s *MalgoSink) Stop() error {
	s.mu.Lock()
	s.playing = false
	s.playbackBuf = nil
	device := s.device
	fn := s.loudnessFn
	s.mu.Unlock()

	if fn != nil {
		fn(0.0)
	}
	if device != nil {
		device.Stop()
	}
	return nil
}

// PlayStream satisfies orchestrator.AudioSink: it reads chunks until the
// channel closes or ctx is cancelled, parsing the first chunk as a WAV
// header to configure the device and treating every subsequent chunk as
// raw PCM in that format.
func (s *MalgoSink) PlayStream(ctx context.Context, chunks <-chan []byte) error {
	var first []byte
	select {
	case <-ctx.Done():
		return ctx.Err()
	case c, ok := <-chunks:
		if !ok {
			return nil
		}
		first = c
	}

	header, err := audio.ParseWavHeader(first)
	if err != nil {
		return fmt.Errorf("sink: parse header chunk: %w", err)
	}

	if err := s.ensureDevice(header); err != nil {
		return err
	}

	s.mu.Lock()
	s.playing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.playing = false
		s.mu.Unlock()
		if fn := s.loudnessFn; fn != nil {
			fn(0.0)
		}
	}()

	s.write(first[header.DataOffset:])

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			s.write(chunk)
		}
	}
}

func (s *MalgoSink) write(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	s.mu.Lock()
	s.playbackBuf = append(s.playbackBuf, chunk...)
	playbackFn := s.playbackFn
	loudnessFn := s.loudnessFn
	s.mu.Unlock()

	if playbackFn != nil {
		playbackFn(chunk)
	}
	if loudnessFn != nil {
		loudnessFn(rmsLoudness(chunk))
	}
}

func rmsLoudness(chunk []byte) float64 {
	if len(chunk) < 2 {
		return 0
	}
	var sum float64
	n := 0
	for i := 0; i < len(chunk)-1; i += 2 {
		sample := int16(chunk[i]) | (int16(chunk[i+1]) << 8)
		f := float64(sample) / 32768.0
		sum += f * f
		n++
	}
	if n == 0 {
		return 0
	}
	// scaled up from raw RMS (~0.0-0.1 range for normal speech) so it maps
	// usefully onto a [0,1] mouth-open value
	return math.Min(1.0, math.Sqrt(sum/float64(n))*10)
}

func (s *MalgoSink) ensureDevice(header audio.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		return nil
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(header.Channels)
	deviceConfig.SampleRate = uint32(header.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		s.mu.Lock()
		n := copy(pOutput, s.playbackBuf)
		s.playbackBuf = s.playbackBuf[n:]
		s.mu.Unlock()

		for i := n; i < len(pOutput); i++ {
			pOutput[i] = 0
		}
	}

	device, err := malgo.InitDevice(s.mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		return fmt.Errorf("sink: init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		return fmt.Errorf("sink: start playback device: %w", err)
	}

	s.device = device
	s.sampleRate = header.SampleRate
	s.channels = header.Channels
	return nil
}

// ChangeOutputDevice is an optional capability Orchestrator.ChangeOutputDevice
// probes for via type assertion. MalgoSink doesn't support hot device
// switching — the device is opened once in ensureDevice, from the header of
// the first stream it plays — so this is a no-op that satisfies the
// capability interface without claiming to do anything with id.
func (s *MalgoSink) ChangeOutputDevice(id string) error {
	return nil
}

// Close releases the underlying malgo context and any open device.
func (s *MalgoSink) Close() error {
	s.mu.Lock()
	device := s.device
	s.device = nil
	s.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	if s.mctx != nil {
		s.mctx.Uninit()
	}
	return nil
}
