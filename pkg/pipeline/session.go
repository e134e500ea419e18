package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lokutor-ai/lokutor-stream/pkg/metrics"
)

// Session is a single duplex speech-translation stream: it owns the audio
// ring buffer, the ASR worker, the commit tracker, the translation and TTS
// stages, and the backpressure controller, and emits outbound Events as
// the pipeline makes progress.
//
// Generalizes the teacher's ManagedStream: a buffered Events channel
// drained by the transport layer, an idempotent Close via sync.Once, and a
// non-blocking emit that drops events rather than blocking the pipeline if
// the consumer falls behind.
type Session struct {
	ID string

	cfg    Config
	logger Logger

	ctx    context.Context
	cancel context.CancelFunc

	buf     *RingBuffer
	tracker *CommitTracker
	asr     *ASRWorker
	mt      *TranslationStage
	tts     *TTSStage
	bp      *Backpressure
	stats   *Stats

	dispatchCh chan *Segment
	dispatchWG errgroup.Group // joins runDispatch on shutdown
	events     chan Event
	closeOnce  sync.Once

	mu            sync.Mutex
	closed        bool
	lastInboundAt time.Time
	lastHyp       Hypothesis

	segMu    sync.Mutex
	segments map[int64]*Segment
}

// NewSession wires up one session's pipeline. Providers may be nil only in
// tests that don't exercise the corresponding stage.
func NewSession(ctx context.Context, cfg Config, sessCfg SessionConfig, asrProvider ASRProvider, mtProvider MTProvider, ttsProvider TTSProvider, pool *Pool, logger Logger) *Session {
	if logger == nil {
		logger = NoOpLogger{}
	}
	if sessCfg.WindowSeconds > 0 {
		cfg.WindowSeconds = sessCfg.WindowSeconds
	}
	if sessCfg.ASRIntervalMS > 0 {
		cfg.ASRIntervalMS = sessCfg.ASRIntervalMS
	}
	if sessCfg.CommitStabilityK > 0 {
		cfg.CommitStabilityK = sessCfg.CommitStabilityK
	}

	sctx, cancel := context.WithCancel(ctx)
	now := time.Now()

	s := &Session{
		ID:           uuid.NewString(),
		cfg:          cfg,
		logger:       logger,
		ctx:          sctx,
		cancel:       cancel,
		buf:          NewRingBuffer(cfg.BufferSeconds, cfg.SampleRateIn),
		stats:        NewStats(),
		events:     make(chan Event, 1024),
		dispatchCh: make(chan *Segment, 64),
		segments:   make(map[int64]*Segment),
	}

	s.tracker = NewCommitTracker(cfg.CommitStabilityK, time.Duration(cfg.CommitTimeoutSecs*float64(time.Second)), cfg.CommitMinWords, now)
	s.bp = NewBackpressure(cfg, s.tracker, func(state BackpressureState) {
		s.logger.Info("backpressure state changed", "session_id", s.ID, "state", state.String())
	})

	s.mt = NewTranslationStage(mtProvider, pool, cfg, sessCfg.SourceLang, sessCfg.TargetLang, logger, func(seg *Segment) {
		s.emit(Event{Type: EventTranslationCommitted, Data: TranslationCommittedData{
			Text:       seg.TranslatedText,
			SourceText: seg.SourceText,
			SegmentID:  seg.ID,
		}})
		s.tts.Submit(seg)
	}, func(seg *Segment, err error) {
		s.emit(Event{Type: EventError, Data: ErrorData{
			Message:   "translation failed: " + err.Error(),
			SegmentID: seg.ID,
		}})
	})

	s.tts = NewTTSStage(ttsProvider, pool, cfg, VoiceF1, s.bp, logger,
		func(c TTSAudioChunkData) {
			s.emit(Event{Type: EventTTSAudioChunk, Data: c})
		},
		func(e TTSEndData) {
			s.emit(Event{Type: EventTTSEnd, Data: e})

			s.segMu.Lock()
			seg := s.segments[e.SegmentID]
			delete(s.segments, e.SegmentID)
			s.segMu.Unlock()

			if seg != nil {
				snap := s.stats.Snapshot(seg, s.asr.LastDecodeMillis(), s.bp.QueuedMS())
				s.emit(Event{Type: EventStats, Data: snap})

				if seg.TTSFirstChunk > 0 && seg.CommitAt > 0 {
					metrics.EndToEndLatency.Observe(float64(seg.TTSFirstChunk-seg.CommitAt) / 1000)
				}
			}
		})

	s.asr = NewASRWorker(cfg, s.buf, asrProvider, sessCfg.SourceLang, logger, s.onHypothesis)

	metrics.SessionsTotal.Inc()
	metrics.SessionsActive.Inc()

	return s
}

// Start launches the session's background goroutines. Write may be called
// as soon as Start returns.
func (s *Session) Start() {
	go s.asr.Run(s.ctx)
	go s.tts.Run(s.ctx)
	s.dispatchWG.Go(func() error {
		s.runDispatch()
		return nil
	})
	go s.idleWatchdog()
	s.emit(Event{Type: EventReady})
}

// Write appends one chunk of inbound PCM16 audio to the session's ring
// buffer and resets the idle timeout.
func (s *Session) Write(pcm16 []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.lastInboundAt = time.Now()
	s.mu.Unlock()

	s.buf.Append(pcm16)
	return nil
}

// Events returns the channel of outbound pipeline events for this session.
// Closed once the session is fully shut down.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) onHypothesis(h Hypothesis) {
	s.mu.Lock()
	s.lastHyp = h
	s.mu.Unlock()

	s.emitPartial(h)

	seg, ok := s.tracker.Process(h, time.Now())
	if !ok {
		return
	}
	s.dispatchCommitted(seg)
}

func (s *Session) dispatchCommitted(seg *Segment) {
	s.stats.RecordCommit()
	metrics.CommitsTotal.WithLabelValues(seg.CommitReason).Inc()
	s.emit(Event{Type: EventCommittedTranscript, Data: CommittedTranscriptData{
		Text:      seg.SourceText,
		SegmentID: seg.ID,
	}})

	s.segMu.Lock()
	s.segments[seg.ID] = seg
	s.segMu.Unlock()

	select {
	case s.dispatchCh <- seg:
	case <-s.ctx.Done():
	}
}

func (s *Session) emitPartial(h Hypothesis) {
	committedTokens := CountWords(s.tracker.Committed())
	totalTokens := CountWords(h.Text)
	partial := rawDelta(h.Text, committedTokens, totalTokens)
	if partial == "" {
		return
	}
	s.emit(Event{Type: EventPartialTranscript, Data: PartialTranscriptData{Text: partial}})
}

func (s *Session) runDispatch() {
	for seg := range s.dispatchCh {
		s.mt.Submit(s.ctx, seg)
	}
}

func (s *Session) idleWatchdog() {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			s.mu.Lock()
			last := s.lastInboundAt
			s.mu.Unlock()
			if last.IsZero() {
				continue
			}
			if time.Since(last) >= time.Duration(s.cfg.IdleTimeoutSecs*float64(time.Second)) {
				s.emit(Event{Type: EventError, Data: ErrorData{Message: ErrSessionIdle.Error()}})
				s.Close()
				return
			}
		}
	}
}

// Close flushes any pending hypothesis (ignoring K, still respecting
// commit_min_words), stops the pipeline's goroutines, and closes Events.
// Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		metrics.SessionsActive.Dec()

		s.mu.Lock()
		s.closed = true
		pending := s.lastHyp
		s.mu.Unlock()

		s.asr.Stop()

		if pending.Text != "" {
			if seg, ok := s.tracker.ForceCommit(pending, time.Now()); ok {
				s.dispatchCommitted(seg)
			}
		}

		close(s.dispatchCh)
		// Wait for runDispatch to drain any remaining segments (including a
		// forced final one) through mt.Submit, which in turn calls
		// tts.Submit synchronously, so every segment has at least been
		// handed to the TTS stage before we stop it.
		s.dispatchWG.Wait()
		s.tts.Stop()

		s.cancel()
		close(s.events)
	})
}

func (s *Session) emit(e Event) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}
	select {
	case s.events <- e:
	case <-s.ctx.Done():
	default:
	}
}
