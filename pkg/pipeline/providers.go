package pipeline

import "context"

// ASRProvider transcribes a snapshot of the audio window. Implementations
// live in pkg/providers/asr and wrap a specific vendor API.
type ASRProvider interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int, lang Language) (string, error)
}

// MTProvider translates committed source text into the target language.
// Implementations live in pkg/providers/mt.
type MTProvider interface {
	Translate(ctx context.Context, text string, source, target Language) (string, error)
}

// TTSProvider synthesizes speech audio for translated text, streaming PCM16
// chunks to onChunk as they become available. There is no abort operation:
// an in-flight synthesis stops early only through cancellation of ctx, and
// the backpressure controller never cancels one.
type TTSProvider interface {
	SynthesizeStreaming(ctx context.Context, text string, voice Voice, sampleRate int, onChunk func([]byte) error) error
}
