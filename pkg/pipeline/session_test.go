package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errMTUnavailable = errors.New("mt provider unavailable")

// scriptedASR replays a fixed sequence of hypotheses, one per Transcribe
// call, holding the last one once exhausted.
type scriptedASR struct {
	mu     sync.Mutex
	script []string
	idx    int
}

func (s *scriptedASR) Transcribe(ctx context.Context, samples []float32, sampleRate int, lang Language) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= len(s.script) {
		return s.script[len(s.script)-1], nil
	}
	text := s.script[s.idx]
	s.idx++
	return text, nil
}

type echoMT struct{}

func (echoMT) Translate(ctx context.Context, text string, source, target Language) (string, error) {
	return "[" + string(target) + "] " + text, nil
}

type failingMT struct{}

func (failingMT) Translate(ctx context.Context, text string, source, target Language) (string, error) {
	return "", errMTUnavailable
}

type collectingTTS struct {
	mu    sync.Mutex
	texts []string
}

func (c *collectingTTS) SynthesizeStreaming(ctx context.Context, text string, voice Voice, sampleRate int, onChunk func([]byte) error) error {
	c.mu.Lock()
	c.texts = append(c.texts, text)
	c.mu.Unlock()
	return onChunk([]byte{0, 0, 0, 0})
}

func collectEvents(t *testing.T, sess *Session, timeout time.Duration) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-sess.Events():
			if !ok {
				return events
			}
			events = append(events, e)
		case <-deadline:
			return events
		}
	}
}

// TestSessionCommitsTranslatesAndSynthesizes drives a full session through
// a scripted ASR sequence that stabilizes quickly, and checks that a
// committed transcript, its translation, and synthesized audio all appear
// on the Events channel.
func TestSessionCommitsTranslatesAndSynthesizes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ASRIntervalMS = 20
	cfg.CommitStabilityK = 3
	cfg.CommitTimeoutSecs = 100 // keep the timeout path out of this test
	cfg.EnergyGateRMS = 0
	cfg.MinAudioSeconds = 0

	asrProvider := &scriptedASR{script: []string{"hola", "hola como", "hola como estas", "hola como estas", "hola como estas"}}
	tts := &collectingTTS{}
	pool := NewPool(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := NewSession(ctx, cfg, SessionConfig{SourceLang: LanguageEs, TargetLang: LanguageEn}, asrProvider, echoMT{}, tts, pool, nil)
	sess.Start()
	defer sess.Close()

	// Feed a little silence so the ring buffer clears the min-audio gate.
	if err := sess.Write(pcm16FromInt16(make([]int16, 1000)...)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	events := collectEvents(t, sess, 500*time.Millisecond)

	var sawCommitted, sawTranslated, sawAudio bool
	for _, e := range events {
		switch e.Type {
		case EventCommittedTranscript:
			sawCommitted = true
		case EventTranslationCommitted:
			sawTranslated = true
			data := e.Data.(TranslationCommittedData)
			if data.Text == "" {
				t.Errorf("expected non-empty translated text")
			}
		case EventTTSAudioChunk:
			sawAudio = true
		}
	}

	if !sawCommitted {
		t.Errorf("expected at least one committed transcript event")
	}
	if !sawTranslated {
		t.Errorf("expected at least one translation event")
	}
	if !sawAudio {
		t.Errorf("expected at least one synthesized audio chunk")
	}
}

// TestSessionCloseForceCommitsPendingText covers the graceful-stop seed
// scenario: a short pending hypothesis that never reached K-stability is
// still force-committed when the session is closed.
func TestSessionCloseForceCommitsPendingText(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ASRIntervalMS = 20
	cfg.CommitStabilityK = 5 // high enough that stability never fires in this test
	cfg.CommitTimeoutSecs = 100
	cfg.CommitMinWords = 1
	cfg.EnergyGateRMS = 0
	cfg.MinAudioSeconds = 0

	asrProvider := &scriptedASR{script: []string{"hola"}}
	tts := &collectingTTS{}
	pool := NewPool(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := NewSession(ctx, cfg, SessionConfig{SourceLang: LanguageEs, TargetLang: LanguageEn}, asrProvider, echoMT{}, tts, pool, nil)
	sess.Start()

	if err := sess.Write(pcm16FromInt16(make([]int16, 1000)...)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	time.Sleep(80 * time.Millisecond) // allow at least one ASR tick

	sess.Close()

	events := collectEvents(t, sess, 500*time.Millisecond)

	var sawCommitted bool
	for _, e := range events {
		if e.Type == EventCommittedTranscript {
			sawCommitted = true
		}
	}
	if !sawCommitted {
		t.Fatalf("expected Close to force-commit the pending hypothesis")
	}
	if sess.tracker.Committed() == "" {
		t.Fatalf("expected non-empty committed text after Close")
	}
}

// TestSessionMTFailureEmitsErrorAndSkipsTTS covers the MT-adapter-failure
// path: the segment must never reach TTS, and an error event tagged with
// its segment_id must reach the client instead of a silent server-side log.
func TestSessionMTFailureEmitsErrorAndSkipsTTS(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ASRIntervalMS = 20
	cfg.CommitStabilityK = 3
	cfg.CommitTimeoutSecs = 100
	cfg.EnergyGateRMS = 0
	cfg.MinAudioSeconds = 0

	asrProvider := &scriptedASR{script: []string{"hola", "hola como", "hola como estas", "hola como estas", "hola como estas"}}
	tts := &collectingTTS{}
	pool := NewPool(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := NewSession(ctx, cfg, SessionConfig{SourceLang: LanguageEs, TargetLang: LanguageEn}, asrProvider, failingMT{}, tts, pool, nil)
	sess.Start()
	defer sess.Close()

	if err := sess.Write(pcm16FromInt16(make([]int16, 1000)...)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	events := collectEvents(t, sess, 500*time.Millisecond)

	var sawError bool
	for _, e := range events {
		switch e.Type {
		case EventError:
			data, ok := e.Data.(ErrorData)
			if ok && data.SegmentID != 0 {
				sawError = true
			}
		case EventTranslationCommitted, EventTTSAudioChunk:
			t.Errorf("expected no %v event on MT failure", e.Type)
		}
	}

	if !sawError {
		t.Fatalf("expected a segment-scoped error event on MT failure")
	}
	tts.mu.Lock()
	n := len(tts.texts)
	tts.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected TTS to be skipped on MT failure, got %d calls", n)
	}
}

// TestSessionWriteAfterCloseErrors checks Write rejects audio once closed.
func TestSessionWriteAfterCloseErrors(t *testing.T) {
	cfg := DefaultConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := NewSession(ctx, cfg, SessionConfig{SourceLang: LanguageEs, TargetLang: LanguageEn}, &scriptedASR{script: []string{""}}, echoMT{}, &collectingTTS{}, NewPool(2), nil)
	sess.Start()
	sess.Close()

	if err := sess.Write(pcm16FromInt16(1, 2, 3)); err != ErrSessionClosed {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}
