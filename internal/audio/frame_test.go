package audio

import (
	"encoding/binary"
	"testing"
)

func TestRMSSilence(t *testing.T) {
	pcm := make([]byte, 320)
	if got := RMS(pcm); got != 0 {
		t.Errorf("RMS(silence) = %d, want 0", got)
	}
}

func TestRMSConstantTone(t *testing.T) {
	n := 100
	pcm := make([]byte, n*2)
	for i := range n {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(1000)))
	}
	if got := RMS(pcm); got != 1000 {
		t.Errorf("RMS(constant 1000) = %d, want 1000", got)
	}
}

func TestPacketizeExactMultiple(t *testing.T) {
	data := make([]byte, FrameBytes*3)
	frames := Packetize(data)
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for _, f := range frames {
		if len(f) != FrameBytes {
			t.Errorf("frame length = %d, want %d", len(f), FrameBytes)
		}
	}
}

func TestPacketizePadsShortFrame(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = 0x01
	}
	frames := Packetize(data)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	f := frames[0]
	if len(f) != FrameBytes {
		t.Fatalf("frame length = %d, want %d", len(f), FrameBytes)
	}
	for i := 100; i < FrameBytes; i++ {
		if f[i] != ulawSilence {
			t.Errorf("padding byte %d = 0x%02x, want 0x%02x", i, f[i], ulawSilence)
		}
	}
}

func TestFadeInOut(t *testing.T) {
	samples := make([]float32, 160)
	for i := range samples {
		samples[i] = 1.0
	}
	FadeIn(samples, 160)
	if samples[0] != 0 {
		t.Errorf("fade-in first sample = %v, want 0", samples[0])
	}
	if samples[159] <= 0.9 {
		t.Errorf("fade-in last sample = %v, want close to 1", samples[159])
	}

	out := make([]float32, 160)
	for i := range out {
		out[i] = 1.0
	}
	FadeOut(out, 160)
	if out[159] != 0 {
		t.Errorf("fade-out last sample = %v, want 0", out[159])
	}
	if out[0] <= 0.9 {
		t.Errorf("fade-out first sample = %v, want close to 1", out[0])
	}
}
