package audio

import "testing"

func TestPCM16UlawRoundTrip(t *testing.T) {
	samples := []int16{0, 1000, -1000, 16000, -16000, 32000, -32000, 1, -1}
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}

	ulaw := PCM16ToUlaw(pcm)
	back := UlawToPCM16(ulaw)

	if len(back) != len(pcm) {
		t.Fatalf("round trip length mismatch: got %d want %d", len(back), len(pcm))
	}

	for i, want := range samples {
		got := int16(uint16(back[i*2]) | uint16(back[i*2+1])<<8)
		idxWant := ulawTable[encodeUlawSample(want)]
		if got != idxWant {
			t.Errorf("sample %d: decode(encode(x)) = %d, want %d", i, got, idxWant)
		}
		// the codec is lossy; require the decoded value stays within one
		// quantization index of the original rather than exact equality.
		diff := int(got) - int(want)
		if diff < 0 {
			diff = -diff
		}
		if diff > 1100 {
			t.Errorf("sample %d: round trip %d too far from original %d", i, got, want)
		}
	}
}

func TestUlawTableCoversAllBytes(t *testing.T) {
	for i := range 256 {
		if ulawTable[i] != decodeUlawSample(byte(i)) {
			t.Fatalf("ulawTable[%d] inconsistent with decodeUlawSample", i)
		}
	}
}
