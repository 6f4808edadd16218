package tts

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lattice-voice/voiceagent/internal/session"
)

func pcmTone(n int, amplitude int16) []byte {
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(amplitude))
	}
	return out
}

func TestSinkSendsFramesForQueuedSentence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pcmTone(3200, 1000))
	}))
	defer srv.Close()

	sess := session.New("call-1", nil, session.AgentConfig{VoiceID: "voice-a"}, nil)
	sess.TTSQueue <- "Hello there."
	close(sess.TTSQueue)

	var sent [][]byte
	send := func(frame []byte) error {
		cp := make([]byte, len(frame))
		copy(cp, frame)
		sent = append(sent, cp)
		return nil
	}

	sink := NewSink(NewClient(srv.URL, &http.Client{Timeout: 2 * time.Second}), "default-voice")
	sink.Run(context.Background(), sess, send)

	if len(sent) == 0 {
		t.Fatalf("expected at least one frame sent")
	}
	for _, f := range sent {
		if len(f) != 160 {
			t.Errorf("frame length = %d, want 160", len(f))
		}
	}
	if sess.AgentSpeaking.Load() {
		t.Errorf("expected AgentSpeaking cleared after drain")
	}
}

func TestSinkStopsOnInterrupt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pcmTone(32000, 1000))
	}))
	defer srv.Close()

	sess := session.New("call-2", nil, session.AgentConfig{}, nil)
	sess.TTSQueue <- "A long sentence that keeps streaming."
	sess.InterruptRequested.Store(true)

	send := func(frame []byte) error { return nil }

	sink := NewSink(NewClient(srv.URL, &http.Client{Timeout: 2 * time.Second}), "default-voice")
	done := make(chan struct{})
	go func() {
		sink.Run(context.Background(), sess, send)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("sink did not exit promptly on interrupt")
	}
	if sess.InterruptRequested.Load() {
		t.Errorf("expected InterruptRequested cleared after sink exits")
	}
}
