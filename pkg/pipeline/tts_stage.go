package pipeline

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lokutor-ai/lokutor-stream/pkg/metrics"
)

// msPerWord is the assumed average synthesized speaking rate, used only to
// estimate queued-audio backlog for segments that haven't been synthesized
// yet (their real audio duration isn't known until SynthesizeStreaming
// actually runs).
const msPerWord = 180

// TTSStage synthesizes committed, translated segments to audio strictly in
// commit order, and reports its queue depth to the Backpressure controller.
// When the controller is Degraded, consecutive queued segments are
// coalesced into a single synthesis call (spec §4.6) instead of one TTS
// call per segment.
type TTSStage struct {
	provider TTSProvider
	pool     *Pool
	cfg      Config
	voice    Voice
	bp       *Backpressure
	logger   Logger

	onChunk func(TTSAudioChunkData)
	onEnd   func(TTSEndData)

	segCh    chan *Segment
	doneCh   chan struct{}
	stopOnce sync.Once

	queuedMS int64 // atomic: estimated backlog of not-yet-synthesized audio
}

func NewTTSStage(provider TTSProvider, pool *Pool, cfg Config, voice Voice, bp *Backpressure, logger Logger, onChunk func(TTSAudioChunkData), onEnd func(TTSEndData)) *TTSStage {
	if logger == nil {
		logger = NoOpLogger{}
	}
	return &TTSStage{
		provider: provider,
		pool:     pool,
		cfg:      cfg,
		voice:    voice,
		bp:       bp,
		logger:   logger,
		onChunk:  onChunk,
		onEnd:    onEnd,
		segCh:    make(chan *Segment, 256),
		doneCh:   make(chan struct{}),
	}
}

// Submit queues seg for synthesis, in order. Must be called from a single
// goroutine per session (the Session's own dispatch loop).
func (s *TTSStage) Submit(seg *Segment) {
	atomic.AddInt64(&s.queuedMS, estimateSpeakingMS(seg.TranslatedText))
	s.reportQueue()
	s.segCh <- seg
}

// Run drains segCh until ctx is cancelled or Stop is called. Intended to be
// run in its own goroutine, one per session.
func (s *TTSStage) Run(ctx context.Context) {
	defer close(s.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case seg, ok := <-s.segCh:
			if !ok {
				return
			}
			batch := []*Segment{seg}
			if s.bp != nil && s.bp.ShouldCoalesce() {
				batch = s.drainPending(batch)
			}
			s.synthesizeBatch(ctx, batch)
		}
	}
}

// drainPending non-blockingly pulls any segments already queued behind the
// first, for coalescing into one synthesis call.
func (s *TTSStage) drainPending(batch []*Segment) []*Segment {
	for {
		select {
		case next, ok := <-s.segCh:
			if !ok {
				return batch
			}
			batch = append(batch, next)
		default:
			return batch
		}
	}
}

func (s *TTSStage) Stop() {
	s.stopOnce.Do(func() { close(s.segCh) })
	<-s.doneCh
}

func (s *TTSStage) synthesizeBatch(ctx context.Context, batch []*Segment) {
	var released int64
	for _, seg := range batch {
		released += estimateSpeakingMS(seg.TranslatedText)
	}
	defer func() {
		atomic.AddInt64(&s.queuedMS, -released)
		s.reportQueue()
	}()

	texts := make([]string, 0, len(batch))
	for _, seg := range batch {
		if t := strings.TrimSpace(seg.TranslatedText); t != "" {
			texts = append(texts, t)
		}
	}
	text := strings.Join(texts, " ")
	last := batch[len(batch)-1]

	if text == "" {
		for _, seg := range batch {
			s.onEnd(TTSEndData{SegmentID: seg.ID})
		}
		return
	}

	tctx := ctx
	if s.cfg.TTSTimeoutSecs > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TTSTimeoutSecs*float64(time.Second)))
		defer cancel()
	}

	ttsStart := time.Now()
	firstChunk := true
	err := s.pool.Do(tctx, false, func(ctx context.Context) error {
		return s.provider.SynthesizeStreaming(ctx, text, s.voice, s.cfg.SampleRateOut, func(pcm16 []byte) error {
			if firstChunk {
				last.TTSFirstChunk = time.Now().UnixMilli()
				metrics.TTSRequestDuration.Observe(time.Since(ttsStart).Seconds())
				firstChunk = false
			}
			s.onChunk(TTSAudioChunkData{Audio: pcm16, SegmentID: last.ID, SampleRate: s.cfg.SampleRateOut})
			return nil
		})
	})
	if err != nil {
		s.logger.Warn("tts synthesis failed", "segment_id", last.ID, "error", err)
	}
	last.TTSDoneAt = time.Now().UnixMilli()

	for _, seg := range batch {
		s.onEnd(TTSEndData{SegmentID: seg.ID})
	}
}

func (s *TTSStage) reportQueue() {
	if s.bp != nil {
		s.bp.SetQueuedMS(atomic.LoadInt64(&s.queuedMS))
	}
}

func estimateSpeakingMS(text string) int64 {
	words := CountWords(text)
	if words == 0 {
		return 0
	}
	return int64(words) * msPerWord
}
