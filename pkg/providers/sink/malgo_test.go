package sink

import "testing"

func TestRMSLoudnessSilence(t *testing.T) {
	if l := rmsLoudness(make([]byte, 320)); l != 0 {
		t.Errorf("expected 0 loudness for silence, got %v", l)
	}
}

func TestRMSLoudnessClampsToOne(t *testing.T) {
	loud := make([]byte, 320)
	for i := 0; i < len(loud)-1; i += 2 {
		loud[i] = 0xff
		loud[i+1] = 0x7f
	}
	if l := rmsLoudness(loud); l > 1.0 || l <= 0 {
		t.Errorf("expected loudness in (0,1], got %v", l)
	}
}

func TestRMSLoudnessTooShort(t *testing.T) {
	if l := rmsLoudness([]byte{0x01}); l != 0 {
		t.Errorf("expected 0 for sub-frame input, got %v", l)
	}
}

func TestRMSLoudnessMonotonic(t *testing.T) {
	quiet := make([]byte, 320)
	for i := 0; i < len(quiet)-1; i += 2 {
		quiet[i] = 0x00
		quiet[i+1] = 0x01
	}
	loud := make([]byte, 320)
	for i := 0; i < len(loud)-1; i += 2 {
		loud[i] = 0x00
		loud[i+1] = 0x08
	}
	if !(rmsLoudness(quiet) < rmsLoudness(loud)) {
		t.Errorf("expected louder samples to produce a higher loudness value")
	}
}
