package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeASRProvider struct {
	mu       sync.Mutex
	text     string
	delay    time.Duration
	calls    int32
	lastSamp int
}

func (f *fakeASRProvider) Transcribe(ctx context.Context, samples []float32, sampleRate int, lang Language) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.lastSamp = len(samples)
	text := f.text
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return text, nil
}

func TestASRWorkerHallucinationFiltered(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnergyGateRMS = 0
	buf := NewRingBuffer(cfg.BufferSeconds, cfg.SampleRateIn)
	buf.Append(pcm16FromInt16(make([]int16, cfg.SampleRateIn)...))

	provider := &fakeASRProvider{text: "thanks for watching"}
	var got []Hypothesis
	w := NewASRWorker(cfg, buf, provider, LanguageEn, nil, func(h Hypothesis) {
		got = append(got, h)
	})

	w.tick(context.Background())
	if len(got) != 0 {
		t.Fatalf("expected hallucination to be filtered, got %v", got)
	}
}

func TestASRWorkerRepetitionFiltered(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnergyGateRMS = 0
	buf := NewRingBuffer(cfg.BufferSeconds, cfg.SampleRateIn)
	buf.Append(pcm16FromInt16(make([]int16, cfg.SampleRateIn)...))

	provider := &fakeASRProvider{text: "no no no no no no"}
	var got []Hypothesis
	w := NewASRWorker(cfg, buf, provider, LanguageEn, nil, func(h Hypothesis) {
		got = append(got, h)
	})

	w.tick(context.Background())
	if len(got) != 0 {
		t.Fatalf("expected repetitive hypothesis to be filtered, got %v", got)
	}
}

func TestASRWorkerEnergyGateSkipsSilence(t *testing.T) {
	cfg := DefaultConfig()
	buf := NewRingBuffer(cfg.BufferSeconds, cfg.SampleRateIn)
	buf.Append(pcm16FromInt16(make([]int16, cfg.SampleRateIn)...)) // silence

	provider := &fakeASRProvider{text: "hola"}
	var got []Hypothesis
	w := NewASRWorker(cfg, buf, provider, LanguageEn, nil, func(h Hypothesis) {
		got = append(got, h)
	})

	w.tick(context.Background())
	if len(got) != 0 {
		t.Fatalf("expected silent window to be skipped by the energy gate, got %v", got)
	}
	if atomic.LoadInt32(&provider.calls) != 0 {
		t.Fatalf("expected provider not to be called on a silent window")
	}
}

func TestASRWorkerBelowMinAudioSkipsTranscribe(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnergyGateRMS = 0
	buf := NewRingBuffer(cfg.BufferSeconds, cfg.SampleRateIn)
	buf.Append(pcm16FromInt16(1, 2, 3)) // far below MinAudioSeconds

	provider := &fakeASRProvider{text: "hola"}
	w := NewASRWorker(cfg, buf, provider, LanguageEn, nil, func(h Hypothesis) {
		t.Fatalf("should not receive a hypothesis below min audio duration")
	})

	w.tick(context.Background())
	if atomic.LoadInt32(&provider.calls) != 0 {
		t.Fatalf("expected provider not to be called below min audio duration")
	}
}

// TestASRWorkerNeverQueuesBacklog covers the single-slot semantics: while a
// decode is in flight, further ticks must not launch a second concurrent
// decode (spec §4.3).
func TestASRWorkerNeverQueuesBacklog(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnergyGateRMS = 0
	buf := NewRingBuffer(cfg.BufferSeconds, cfg.SampleRateIn)
	tone := make([]int16, cfg.SampleRateIn)
	for i := range tone {
		tone[i] = 10000
	}
	buf.Append(pcm16FromInt16(tone...))

	provider := &fakeASRProvider{text: "hola", delay: 100 * time.Millisecond}
	w := NewASRWorker(cfg, buf, provider, LanguageEn, nil, func(h Hypothesis) {})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.tick(context.Background())
		}()
	}
	wg.Wait()

	if calls := atomic.LoadInt32(&provider.calls); calls != 1 {
		t.Fatalf("expected exactly 1 concurrent decode to proceed, got %d", calls)
	}
}
