package pipeline

import "errors"

var (
	// ErrEmptyTranscription describes an ASR call that yielded only
	// whitespace. The ASR worker drops such results without returning it.
	ErrEmptyTranscription = errors.New("transcription returned empty text")

	// ErrTranscriptionFailed wraps a failed ASR adapter call.
	ErrTranscriptionFailed = errors.New("speech-to-text transcription failed")

	// ErrTranslationFailed wraps a failed MT adapter call.
	ErrTranslationFailed = errors.New("translation failed")

	// ErrSynthesisFailed wraps a failed TTS adapter call.
	ErrSynthesisFailed = errors.New("speech synthesis failed")

	// ErrNilProvider describes a required adapter that was not configured.
	// NewSession does not check its providers for nil and never returns it.
	ErrNilProvider = errors.New("required provider is nil")

	// ErrContextCancelled marks a unit of work abandoned due to context cancellation.
	ErrContextCancelled = errors.New("operation cancelled by context")

	// ErrProtocolViolation is session-fatal: malformed frame, audio before
	// config, sample-rate mismatch, or a repeated config frame.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrSessionIdle is session-fatal: no inbound frame within the idle timeout.
	ErrSessionIdle = errors.New("session idle timeout")

	// ErrSessionClosed is returned by operations attempted after Close.
	ErrSessionClosed = errors.New("session already closed")
)
