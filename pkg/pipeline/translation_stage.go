package pipeline

import (
	"context"
	"time"

	"github.com/lokutor-ai/lokutor-stream/pkg/metrics"
)

// TranslationStage dispatches each committed Segment to the MT provider.
// Segments are submitted one at a time, from the Session's own dispatch
// goroutine, so strict commit-order processing (spec §4.5) falls out of
// the caller's own sequencing rather than needing an internal queue here —
// concurrency with other sessions' MT calls still happens through the
// shared Pool.
type TranslationStage struct {
	provider MTProvider
	pool     *Pool
	cfg      Config
	source   Language
	target   Language
	logger   Logger

	onTranslated func(*Segment)
	onFailed     func(*Segment, error)
}

func NewTranslationStage(provider MTProvider, pool *Pool, cfg Config, source, target Language, logger Logger, onTranslated func(*Segment), onFailed func(*Segment, error)) *TranslationStage {
	if logger == nil {
		logger = NoOpLogger{}
	}
	return &TranslationStage{
		provider:     provider,
		pool:         pool,
		cfg:          cfg,
		source:       source,
		target:       target,
		logger:       logger,
		onTranslated: onTranslated,
		onFailed:     onFailed,
	}
}

// Submit translates seg and invokes onTranslated once done, synchronously
// with respect to the caller. On translation failure the segment never
// reaches onTranslated (and so never reaches TTS) — onFailed runs instead,
// so the caller can surface the error to the client rather than speaking
// mistranslated or untranslated audio.
func (s *TranslationStage) Submit(ctx context.Context, seg *Segment) {
	tctx := ctx
	if s.cfg.MTTimeoutSecs > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.MTTimeoutSecs*float64(time.Second)))
		defer cancel()
	}

	mtStart := time.Now()
	err := s.pool.Do(tctx, false, func(ctx context.Context) error {
		text, err := s.provider.Translate(ctx, seg.SourceText, s.source, s.target)
		if err != nil {
			return err
		}
		seg.TranslatedText = text
		return nil
	})
	metrics.MTRequestDuration.Observe(time.Since(mtStart).Seconds())
	seg.MTDoneAt = time.Now().UnixMilli()
	if err != nil {
		s.logger.Warn("translation failed, skipping tts for segment", "segment_id", seg.ID, "error", err)
		if s.onFailed != nil {
			s.onFailed(seg, err)
		}
		return
	}
	s.onTranslated(seg)
}
