package audio

import "testing"

func TestResampleChunkedMatchesWhole(t *testing.T) {
	n := 640 // 40ms at 16kHz
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(i%100) / 100
	}

	whole, _ := Resample(samples, 16000, 8000, ResamplerState{})

	chunkSizes := []int{160, 160, 160, 160}
	var chunked []float32
	state := ResamplerState{}
	off := 0
	for _, size := range chunkSizes {
		end := min(off+size, len(samples))
		var out []float32
		out, state = Resample(samples[off:end], 16000, 8000, state)
		chunked = append(chunked, out...)
		off = end
	}

	if len(chunked) != len(whole) {
		t.Fatalf("chunked length %d != whole length %d", len(chunked), len(whole))
	}
	for i := range whole {
		if chunked[i] != whole[i] {
			t.Errorf("sample %d: chunked=%v whole=%v", i, chunked[i], whole[i])
		}
	}
}

func TestResampleUnevenChunks(t *testing.T) {
	n := 483
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(i)
	}

	whole, _ := Resample(samples, 16000, 8000, ResamplerState{})

	var chunked []float32
	state := ResamplerState{}
	off := 0
	sizes := []int{7, 200, 1, 275}
	for _, size := range sizes {
		end := min(off+size, len(samples))
		var out []float32
		out, state = Resample(samples[off:end], 16000, 8000, state)
		chunked = append(chunked, out...)
		off = end
	}

	if len(chunked) != len(whole) {
		t.Fatalf("chunked length %d != whole length %d", len(chunked), len(whole))
	}
	for i := range whole {
		if chunked[i] != whole[i] {
			t.Fatalf("sample %d: chunked=%v whole=%v", i, chunked[i], whole[i])
		}
	}
}

func TestResampleSameRatePassesThrough(t *testing.T) {
	samples := []float32{0.1, 0.2, 0.3}
	out, state := Resample(samples, 8000, 8000, ResamplerState{})
	if len(out) != len(samples) {
		t.Fatalf("expected passthrough, got len %d", len(out))
	}
	if state != (ResamplerState{}) {
		t.Errorf("expected zero-value state passthrough")
	}
}
