package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeTTSProvider struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeTTSProvider) SynthesizeStreaming(ctx context.Context, text string, voice Voice, sampleRate int, onChunk func([]byte) error) error {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	return onChunk([]byte{1, 2, 3, 4})
}

func TestTTSStagePreservesOrderWithoutCoalescing(t *testing.T) {
	cfg := DefaultConfig()
	provider := &fakeTTSProvider{}
	pool := NewPool(4)

	var endOrder []int64
	var mu sync.Mutex
	stage := NewTTSStage(provider, pool, cfg, VoiceF1, nil, nil,
		func(TTSAudioChunkData) {},
		func(e TTSEndData) {
			mu.Lock()
			endOrder = append(endOrder, e.SegmentID)
			mu.Unlock()
		})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stage.Run(ctx)

	for i := int64(1); i <= 3; i++ {
		stage.Submit(&Segment{ID: i, TranslatedText: "hello there"})
	}
	stage.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(endOrder) != 3 {
		t.Fatalf("expected 3 end events, got %d", len(endOrder))
	}
	for i, id := range endOrder {
		if id != int64(i+1) {
			t.Fatalf("expected strict commit order, got %v", endOrder)
		}
	}
	if len(provider.calls) != 3 {
		t.Fatalf("expected 3 separate synthesis calls without coalescing, got %d", len(provider.calls))
	}
}

func TestTTSStageCoalescesWhenDegraded(t *testing.T) {
	cfg := DefaultConfig()
	tracker := NewCommitTracker(cfg.CommitStabilityK, time.Second, cfg.CommitMinWords, time.Unix(0, 0))
	bp := NewBackpressure(cfg, tracker, nil)
	bp.SetQueuedMS(int64(cfg.BufferLimitMS) + 1000) // force Degraded

	provider := &fakeTTSProvider{}
	pool := NewPool(4)

	var chunkSegIDs []int64
	stage := NewTTSStage(provider, pool, cfg, VoiceF1, bp, nil,
		func(c TTSAudioChunkData) {
			chunkSegIDs = append(chunkSegIDs, c.SegmentID)
		},
		func(TTSEndData) {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Queue all three before Run starts draining, so the coalescing path
	// sees them already pending. Degraded is forced after the Submits, since
	// each Submit reports the stage's own small queue estimate to bp.
	stage.Submit(&Segment{ID: 1, TranslatedText: "hola"})
	stage.Submit(&Segment{ID: 2, TranslatedText: "como"})
	stage.Submit(&Segment{ID: 3, TranslatedText: "estas"})
	bp.SetQueuedMS(int64(cfg.BufferLimitMS) + 1000) // force Degraded

	go stage.Run(ctx)
	stage.Stop()

	if len(provider.calls) != 1 {
		t.Fatalf("expected exactly 1 coalesced synthesis call, got %d: %v", len(provider.calls), provider.calls)
	}
	if provider.calls[0] != "hola como estas" {
		t.Fatalf("expected coalesced text %q, got %q", "hola como estas", provider.calls[0])
	}
}
