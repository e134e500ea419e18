package audio

import "testing"

func TestPCM16Float32RoundTrip(t *testing.T) {
	for _, x := range []int16{0, 1, -1, 100, -100, 32767, -32767, -32768} {
		pcm := []byte{byte(x), byte(x >> 8)}
		samples := Float32FromPCM16(pcm)
		if len(samples) != 1 {
			t.Fatalf("expected 1 sample, got %d", len(samples))
		}
		got := int16(samples[0] * 32768)
		if abs32(int32(got)-int32(x)) > 1 {
			t.Errorf("round trip for %d: got %d", x, got)
		}
	}
}

func abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}

func TestRMSSilenceAndTone(t *testing.T) {
	silence := make([]float32, 1000)
	if rms := RMS(silence); rms != 0 {
		t.Errorf("expected 0 RMS for silence, got %f", rms)
	}

	tone := make([]float32, 1000)
	for i := range tone {
		tone[i] = 0.5
	}
	if rms := RMS(tone); rms < 0.49 || rms > 0.51 {
		t.Errorf("expected ~0.5 RMS for constant 0.5 samples, got %f", rms)
	}

	if rms := RMS(nil); rms != 0 {
		t.Errorf("expected 0 RMS for empty input, got %f", rms)
	}
}
