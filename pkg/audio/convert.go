package audio

import "math"

// PCM16FromFloat32 encodes normalized float32 samples ([-1, 1]) into
// little-endian PCM16 bytes, the inverse of the conversion RingBuffer.Append
// performs on the way in. Used by ASR adapters that need to re-encode the
// ring buffer's window before uploading it to an HTTP transcription API.
func PCM16FromFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		s := int16(f * 32767)
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// Float32FromPCM16 decodes little-endian PCM16 bytes into normalized float32
// samples in [-1, 1]. The mirror of PCM16FromFloat32.
func Float32FromPCM16(pcm16 []byte) []float32 {
	n := len(pcm16) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		sample := int16(pcm16[2*i]) | int16(pcm16[2*i+1])<<8
		out[i] = float32(sample) / 32768.0
	}
	return out
}

// RMS computes the root-mean-square energy of normalized float32 samples.
// Adapted from the teacher's RMSVAD.calculateRMS (pkg/orchestrator/vad.go),
// generalized to operate directly on the ring buffer's float32 window
// instead of re-decoding raw PCM16 bytes per tick.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
