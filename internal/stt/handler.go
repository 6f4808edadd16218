package stt

import (
	"strings"
	"time"

	"github.com/lattice-voice/voiceagent/internal/session"
)

// SessionHandler applies STT events to a Media Session following the
// interim/final buffer-merge rules: an interim replaces the buffer unless a
// finalized piece is already held; a final concatenates only when the
// existing buffer lacks terminal punctuation and the new piece is
// substantial, otherwise it replaces.
type SessionHandler struct {
	sess *session.Session
}

// NewSessionHandler wraps a session so STT events mutate only its state,
// from the single STT reader goroutine.
func NewSessionHandler(sess *session.Session) *SessionHandler {
	return &SessionHandler{sess: sess}
}

func (h *SessionHandler) OnOpen() {}

func (h *SessionHandler) OnTranscript(text string, isFinal bool) {
	now := time.Now()

	if !isFinal {
		h.sess.LastInterimTime = now
		_, currentFinal := h.sess.STTBuffer()
		if !currentFinal {
			h.sess.SetSTTBuffer(text, false)
		}
		return
	}

	current, _ := h.sess.STTBuffer()
	if !endsWithTerminator(current) && len(text) > 3 {
		h.sess.SetSTTBuffer(strings.TrimSpace(current+" "+text), true)
	} else {
		h.sess.SetSTTBuffer(text, true)
	}
}

func (h *SessionHandler) OnSpeechStarted() {
	h.sess.UserSpeechDetected = true
	h.sess.SpeechStartTime = time.Now()
}

func (h *SessionHandler) OnUtteranceEnd() {
	h.sess.UserSpeechDetected = false
	h.sess.LastSpeechTime = time.Now()
}

func (h *SessionHandler) OnError(err error) {}

func (h *SessionHandler) OnClose() {}

func endsWithTerminator(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	last := s[len(s)-1]
	return last == '.' || last == '!' || last == '?'
}
