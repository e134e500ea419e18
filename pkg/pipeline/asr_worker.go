package pipeline

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lokutor-ai/lokutor-stream/pkg/audio"
	"github.com/lokutor-ai/lokutor-stream/pkg/metrics"
)

// ASRWorker periodically re-transcribes the growing audio window and
// delivers each full-window hypothesis to onHypothesis. It never queues a
// backlog: if the previous decode is still in flight when the next tick
// fires, that tick is simply skipped (spec §4.3).
//
// Grounded on the polling goroutine in the RoastedBrotato audio-translator
// example (ticker driving buf.ReadLast + ASR call + stability check), with
// the teacher's energy-gate (vad.go's RMS threshold) and hallucination/
// repetition filters layered on top — the example has neither.
type ASRWorker struct {
	cfg      Config
	buf      *RingBuffer
	provider ASRProvider
	lang     Language
	logger   Logger

	onHypothesis func(Hypothesis)

	busy         int32 // atomic: 1 while a decode is in flight
	lastDecodeMS int64 // atomic: duration of the most recent Transcribe call
	stopOnce     sync.Once
	stopCh       chan struct{}
	doneCh       chan struct{}
}

func NewASRWorker(cfg Config, buf *RingBuffer, provider ASRProvider, lang Language, logger Logger, onHypothesis func(Hypothesis)) *ASRWorker {
	if logger == nil {
		logger = NoOpLogger{}
	}
	return &ASRWorker{
		cfg:          cfg,
		buf:          buf,
		provider:     provider,
		lang:         lang,
		logger:       logger,
		onHypothesis: onHypothesis,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Run drives the re-decode ticker until ctx is cancelled or Stop is called.
// Intended to be run in its own goroutine.
func (w *ASRWorker) Run(ctx context.Context) {
	defer close(w.doneCh)

	interval := time.Duration(w.cfg.ASRIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

// Stop signals Run to exit and waits for it to return.
func (w *ASRWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

// LastDecodeMillis returns the wall-clock duration of the most recently
// completed Transcribe call, used by Stats to report ASR latency.
func (w *ASRWorker) LastDecodeMillis() int64 {
	return atomic.LoadInt64(&w.lastDecodeMS)
}

func (w *ASRWorker) tick(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&w.busy, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&w.busy, 0)

	window := w.buf.Tail(w.cfg.WindowSeconds, w.cfg.SampleRateIn)
	minSamples := int(w.cfg.MinAudioSeconds * float64(w.cfg.SampleRateIn))
	if len(window) < minSamples {
		return
	}

	if w.cfg.EnergyGateRMS > 0 && audio.RMS(window) < w.cfg.EnergyGateRMS {
		return
	}

	tctx := ctx
	if w.cfg.ASRTimeoutSecs > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, time.Duration(w.cfg.ASRTimeoutSecs*float64(time.Second)))
		defer cancel()
	}

	decodeStart := time.Now()
	text, err := w.provider.Transcribe(tctx, window, w.cfg.SampleRateIn, w.lang)
	decodeDur := time.Since(decodeStart)
	atomic.StoreInt64(&w.lastDecodeMS, decodeDur.Milliseconds())
	metrics.ASRRequestDuration.Observe(decodeDur.Seconds())
	if err != nil {
		metrics.ASRRequestsTotal.WithLabelValues("error").Inc()
		w.logger.Warn("asr transcribe failed", "error", err)
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		metrics.ASRRequestsTotal.WithLabelValues("filtered").Inc()
		return
	}
	if isHallucination(text, w.cfg.HallucinationDenylist) {
		metrics.ASRRequestsTotal.WithLabelValues("filtered").Inc()
		w.logger.Debug("asr hallucination filtered", "text", text)
		return
	}
	if isExcessivelyRepetitive(text, w.cfg.MaxRepeatedNgramRatio) {
		metrics.ASRRequestsTotal.WithLabelValues("filtered").Inc()
		w.logger.Debug("asr repetition filtered", "text", text)
		return
	}

	metrics.ASRRequestsTotal.WithLabelValues("ok").Inc()
	w.onHypothesis(Hypothesis{Text: text, EmittedAt: time.Now().UnixMilli()})
}

// isHallucination reports whether text matches a known silence/noise
// artifact. Comparison is case-insensitive substring containment, which is
// how the denylist entries are authored (short stock phrases).
func isHallucination(text string, denylist []string) bool {
	lower := strings.ToLower(text)
	for _, d := range denylist {
		if d == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(d)) {
			return true
		}
	}
	return false
}

// isExcessivelyRepetitive flags hypotheses dominated by one repeated word,
// a common decoder failure mode on noisy or near-silent audio. ratio <= 0
// disables the check.
func isExcessivelyRepetitive(text string, ratio float64) bool {
	if ratio <= 0 {
		return false
	}
	words := strings.Fields(strings.ToLower(text))
	if len(words) < 4 {
		return false
	}
	counts := make(map[string]int, len(words))
	best := 0
	for _, w := range words {
		counts[w]++
		if counts[w] > best {
			best = counts[w]
		}
	}
	return float64(best)/float64(len(words)) >= ratio
}
