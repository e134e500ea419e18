package pipeline

import (
	"testing"

	"github.com/lokutor-ai/lokutor-stream/pkg/audio"
)

func pcm16FromInt16(vals ...int16) []byte {
	out := make([]byte, len(vals)*2)
	for i, v := range vals {
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}

func TestRingBufferOverflowKeepsLastN(t *testing.T) {
	const sampleRate = 1000
	rb := NewRingBuffer(1, sampleRate) // capacity = 1000 samples

	// Write 2500 samples, each a distinct ramp value, well past capacity.
	total := 2500
	vals := make([]int16, total)
	for i := range vals {
		vals[i] = int16(i % 30000)
	}
	rb.Append(pcm16FromInt16(vals...))

	if got := rb.Len(); got != sampleRate {
		t.Fatalf("expected buffer len %d after overflow, got %d", sampleRate, got)
	}
	if got := rb.TotalWritten(); got != uint64(total) {
		t.Fatalf("expected total written %d, got %d", total, got)
	}

	tail := rb.Tail(1, sampleRate)
	if len(tail) != sampleRate {
		t.Fatalf("expected tail of %d samples, got %d", sampleRate, len(tail))
	}

	wantStart := total - sampleRate
	for i, f := range tail {
		wantInt := int16((wantStart + i) % 30000)
		gotInt := int16(f * 32768)
		if abs16(gotInt-wantInt) > 1 {
			t.Fatalf("tail[%d]: want ~%d got %d", i, wantInt, gotInt)
		}
	}
}

func abs16(x int16) int16 {
	if x < 0 {
		return -x
	}
	return x
}

func TestRingBufferTailClipsToAvailable(t *testing.T) {
	rb := NewRingBuffer(2, 100) // capacity 200 samples
	rb.Append(pcm16FromInt16(1, 2, 3))

	tail := rb.Tail(5, 100) // asking for more than written
	if len(tail) != 3 {
		t.Fatalf("expected tail clipped to 3 samples, got %d", len(tail))
	}
}

func TestRingBufferResetClears(t *testing.T) {
	rb := NewRingBuffer(1, 10)
	rb.Append(pcm16FromInt16(1, 2, 3, 4))
	rb.Reset()
	if rb.Len() != 0 {
		t.Fatalf("expected 0 length after reset, got %d", rb.Len())
	}
	if len(rb.Tail(1, 10)) != 0 {
		t.Fatalf("expected empty tail after reset")
	}
}

func TestRingBufferNormalizationMatchesAudioPackage(t *testing.T) {
	rb := NewRingBuffer(1, 10)
	rb.Append(pcm16FromInt16(16384, -16384))
	tail := rb.Tail(1, 10)

	expected := audio.Float32FromPCM16(pcm16FromInt16(16384, -16384))
	if len(tail) != len(expected) {
		t.Fatalf("length mismatch")
	}
	for i := range tail {
		if tail[i] != expected[i] {
			t.Errorf("sample %d: got %f want %f", i, tail[i], expected[i])
		}
	}
}
