package pipeline

import "sync"

// RingBuffer is an append-only circular store of recent audio samples,
// bounded by duration. Samples are kept as float32 normalized to [-1, 1],
// converted once on append from PCM16 — this avoids repeated conversion
// before every ASR call (spec §4.2).
//
// Generalizes the teacher's bytes.Buffer-based rolling window in
// ManagedStream.audioBuf (append, cap-then-trim-from-head) from raw PCM16
// bytes to normalized float32, and from an ad hoc fixed byte cap to a
// configurable sample-rate-aware capacity.
type RingBuffer struct {
	mu sync.Mutex

	data     []float32 // fixed-size backing store
	head     int       // index of the oldest sample
	size     int       // number of valid samples currently stored
	total    uint64    // monotone count of all samples ever appended
	capacity int
}

// NewRingBuffer creates a buffer holding up to bufferSeconds*sampleRate
// samples.
func NewRingBuffer(bufferSeconds float64, sampleRate int) *RingBuffer {
	capacity := int(bufferSeconds * float64(sampleRate))
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		data:     make([]float32, capacity),
		capacity: capacity,
	}
}

// Append decodes little-endian PCM16 samples, normalizes to [-1, 1], and
// writes them into the ring, evicting the oldest samples on overflow. Never
// fails.
func (r *RingBuffer) Append(pcm16 []byte) {
	n := len(pcm16) / 2
	if n == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < n; i++ {
		sample := int16(pcm16[2*i]) | int16(pcm16[2*i+1])<<8
		f := float32(sample) / 32768.0

		writeAt := (r.head + r.size) % r.capacity
		r.data[writeAt] = f
		if r.size < r.capacity {
			r.size++
		} else {
			// overwrote the oldest sample; advance head to match
			r.head = (r.head + 1) % r.capacity
		}
	}
	r.total += uint64(n)
}

// Tail returns a contiguous copy of the last min(seconds, available) worth
// of samples at the given sample rate. Safe for concurrent use with Append
// (snapshots under a short lock).
func (r *RingBuffer) Tail(seconds float64, sampleRate int) []float32 {
	want := int(seconds * float64(sampleRate))

	r.mu.Lock()
	defer r.mu.Unlock()

	if want > r.size {
		want = r.size
	}
	if want <= 0 {
		return nil
	}

	out := make([]float32, want)
	start := (r.head + r.size - want) % r.capacity
	for i := 0; i < want; i++ {
		out[i] = r.data[(start+i)%r.capacity]
	}
	return out
}

// Len reports the number of samples currently stored.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// TotalWritten reports the monotone count of samples ever appended,
// including ones since evicted.
func (r *RingBuffer) TotalWritten() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Reset clears the buffer. Used only on session end.
func (r *RingBuffer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.size = 0
}
