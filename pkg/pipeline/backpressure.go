package pipeline

import (
	"sync/atomic"

	"github.com/lokutor-ai/lokutor-stream/pkg/metrics"
)

// BackpressureState is one of the two states the controller toggles
// between as queued TTS audio grows or shrinks relative to buffer_limit_ms.
type BackpressureState int32

const (
	BackpressureNormal BackpressureState = iota
	BackpressureDegraded
)

func (s BackpressureState) String() string {
	if s == BackpressureDegraded {
		return "degraded"
	}
	return "normal"
}

// degradedMinWordsBump is how many additional tokens commit_min_words
// requires once Degraded — longer segments mean fewer, larger TTS calls,
// which is what actually relieves a synthesis backlog.
const degradedMinWordsBump = 2

// Backpressure is the two-state machine from spec §4.6: it watches queued
// TTS audio milliseconds against buffer_limit_ms and, when the session
// falls behind, raises the commit tracker's commit_min_words and signals
// the TTS stage to coalesce consecutive segments instead of speaking each
// one individually.
type Backpressure struct {
	bufferLimitMS int64
	normalMinWords int
	state          int32 // atomic BackpressureState
	queuedMS       int64 // atomic

	tracker  *CommitTracker
	onChange func(BackpressureState)
}

func NewBackpressure(cfg Config, tracker *CommitTracker, onChange func(BackpressureState)) *Backpressure {
	return &Backpressure{
		bufferLimitMS:  int64(cfg.BufferLimitMS),
		normalMinWords: cfg.CommitMinWords,
		tracker:        tracker,
		onChange:       onChange,
	}
}

// State returns the controller's current state.
func (b *Backpressure) State() BackpressureState {
	return BackpressureState(atomic.LoadInt32(&b.state))
}

// QueuedMS returns the last reported queued-audio milliseconds.
func (b *Backpressure) QueuedMS() int64 {
	return atomic.LoadInt64(&b.queuedMS)
}

// ShouldCoalesce reports whether the TTS stage should batch consecutive
// segments into one synthesis call rather than dispatching each alone.
func (b *Backpressure) ShouldCoalesce() bool {
	return b.State() == BackpressureDegraded
}

// SetQueuedMS reports the TTS stage's current queued-audio depth. The
// controller has hysteresis: it degrades as soon as ms reaches
// buffer_limit_ms, but only recovers once ms drops below half of it, so a
// queue oscillating just under the limit doesn't flap min_words back and
// forth every tick.
func (b *Backpressure) SetQueuedMS(ms int64) {
	atomic.StoreInt64(&b.queuedMS, ms)
	metrics.TTSQueueMS.Set(float64(ms))

	recoverMS := b.bufferLimitMS / 2
	cur := BackpressureState(atomic.LoadInt32(&b.state))
	next := cur
	switch cur {
	case BackpressureNormal:
		if ms >= b.bufferLimitMS {
			next = BackpressureDegraded
		}
	case BackpressureDegraded:
		if ms < recoverMS {
			next = BackpressureNormal
		}
	}

	prev := BackpressureState(atomic.SwapInt32(&b.state, int32(next)))
	if prev == next {
		return
	}

	if next == BackpressureDegraded {
		metrics.BackpressureDegraded.Inc()
	} else {
		metrics.BackpressureDegraded.Dec()
	}

	if b.tracker != nil {
		if next == BackpressureDegraded {
			b.tracker.SetMinWords(b.normalMinWords + degradedMinWordsBump)
		} else {
			b.tracker.SetMinWords(b.normalMinWords)
		}
	}
	if b.onChange != nil {
		b.onChange(next)
	}
}
