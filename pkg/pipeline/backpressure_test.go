package pipeline

import (
	"testing"
	"time"
)

func TestBackpressureTransitionsAndRaisesMinWords(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferLimitMS = 3000
	cfg.CommitMinWords = 1

	tracker := NewCommitTracker(cfg.CommitStabilityK, time.Duration(cfg.CommitTimeoutSecs*float64(time.Second)), cfg.CommitMinWords, time.Unix(0, 0))

	var transitions []BackpressureState
	bp := NewBackpressure(cfg, tracker, func(s BackpressureState) {
		transitions = append(transitions, s)
	})

	if bp.State() != BackpressureNormal {
		t.Fatalf("expected initial state Normal")
	}

	bp.SetQueuedMS(1000)
	if bp.State() != BackpressureNormal {
		t.Fatalf("expected Normal below buffer_limit_ms")
	}
	if len(transitions) != 0 {
		t.Fatalf("expected no transition yet, got %v", transitions)
	}

	bp.SetQueuedMS(3500)
	if bp.State() != BackpressureDegraded {
		t.Fatalf("expected Degraded once queued ms crosses buffer_limit_ms")
	}
	if len(transitions) != 1 || transitions[0] != BackpressureDegraded {
		t.Fatalf("expected exactly one transition to Degraded, got %v", transitions)
	}
	if tracker.MinWords() <= cfg.CommitMinWords {
		t.Fatalf("expected commit_min_words to be raised in Degraded state, got %d", tracker.MinWords())
	}
	if !bp.ShouldCoalesce() {
		t.Fatalf("expected TTS coalescing to be enabled in Degraded state")
	}

	bp.SetQueuedMS(500)
	if bp.State() != BackpressureNormal {
		t.Fatalf("expected Normal once queue drains below half of buffer_limit_ms")
	}
	if tracker.MinWords() != cfg.CommitMinWords {
		t.Fatalf("expected commit_min_words restored, got %d", tracker.MinWords())
	}
	if len(transitions) != 2 || transitions[1] != BackpressureNormal {
		t.Fatalf("expected a second transition back to Normal, got %v", transitions)
	}
}

func TestBackpressureRepeatedSameStateNoExtraTransition(t *testing.T) {
	cfg := DefaultConfig()
	tracker := NewCommitTracker(cfg.CommitStabilityK, time.Second, cfg.CommitMinWords, time.Unix(0, 0))

	count := 0
	bp := NewBackpressure(cfg, tracker, func(s BackpressureState) { count++ })

	bp.SetQueuedMS(100)
	bp.SetQueuedMS(200)
	bp.SetQueuedMS(50)
	if count != 0 {
		t.Fatalf("expected no transitions while staying Normal, got %d", count)
	}
}
