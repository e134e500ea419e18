package pipeline

import "sync/atomic"

// Stats aggregates per-segment latency measurements and running counters
// behind the StatsData event emitted after each segment's TTS ends (spec
// §4.7).
type Stats struct {
	commitsTotal int64 // atomic
}

func NewStats() *Stats { return &Stats{} }

// RecordCommit increments the running commit counter and returns the new
// total.
func (s *Stats) RecordCommit() int64 {
	return atomic.AddInt64(&s.commitsTotal, 1)
}

func (s *Stats) CommitsTotal() int64 {
	return atomic.LoadInt64(&s.commitsTotal)
}

// Snapshot builds the StatsData for a segment given its own recorded
// timestamps plus out-of-band measurements (the most recent ASR decode
// duration, and the backpressure controller's current queue depth).
//
// MT and TTS durations measure stage-to-stage handoff time; E2E measures
// commit-to-first-audio, the latency a listener actually experiences.
func (s *Stats) Snapshot(seg *Segment, lastASRDecodeMS, ttsQueueMS int64) StatsData {
	var mtMillis, ttsMillis, e2eMillis int64
	if seg.MTDoneAt > 0 && seg.CommitAt > 0 {
		mtMillis = seg.MTDoneAt - seg.CommitAt
	}
	if seg.TTSFirstChunk > 0 && seg.MTDoneAt > 0 {
		ttsMillis = seg.TTSFirstChunk - seg.MTDoneAt
	}
	if seg.TTSFirstChunk > 0 && seg.CommitAt > 0 {
		e2eMillis = seg.TTSFirstChunk - seg.CommitAt
	}
	return StatsData{
		SegmentID:    seg.ID,
		ASRMillis:    lastASRDecodeMS,
		MTMillis:     mtMillis,
		TTSMillis:    ttsMillis,
		E2EMillis:    e2eMillis,
		CommitsTotal: s.CommitsTotal(),
		TTSQueueMS:   ttsQueueMS,
	}
}
