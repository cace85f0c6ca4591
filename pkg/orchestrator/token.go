package orchestrator

import (
	"sync/atomic"

	"github.com/google/uuid"
)

var tokenSeq int64

// ResponseToken is the opaque identity of one response from acceptance
// through playback completion. Seq is authoritative for ordering; Tag is an
// 8-character string for log correlation.
type ResponseToken struct {
	Tag string
	Seq int64
}

// Zero reports whether t is the unset token (pipeline idle).
func (t ResponseToken) Zero() bool {
	return t.Seq == 0 && t.Tag == ""
}

// NewToken issues a fresh token with a strictly increasing sequence number,
// matching invariant I6.
func NewToken() ResponseToken {
	return ResponseToken{
		Tag: uuid.NewString()[:8],
		Seq: atomic.AddInt64(&tokenSeq, 1),
	}
}
