package orchestrator

import "testing"

func TestSpeakingStateString(t *testing.T) {
	cases := map[SpeakingState]string{
		Idle:          "idle",
		Synthesizing:  "synthesizing",
		Playing:       "playing",
		SpeakingState(99): "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("SpeakingState(%d).String() = %q, want %q", state, got, want)
		}
	}
}
