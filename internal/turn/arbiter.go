// Package turn implements the Turn Arbiter: it decides when a user
// utterance is complete enough to answer, and classifies commit intent and
// pending-action confirmations.
package turn

import (
	"strings"
	"time"
	"unicode"

	"github.com/lattice-voice/voiceagent/internal/metrics"
	"github.com/lattice-voice/voiceagent/internal/session"
)

// Intent classifies a committed turn.
type Intent string

const (
	IntentQuestion Intent = "QUESTION"
	IntentGoodbye  Intent = "GOODBYE"
)

var goodbyePhrases = []string{"bye", "goodbye", "end the call", "that's all", "talk later"}

// ClassifyIntent returns GOODBYE if text matches one of the fixed closing
// phrases, else QUESTION.
func ClassifyIntent(text string) Intent {
	lower := strings.ToLower(text)
	for _, phrase := range goodbyePhrases {
		if strings.Contains(lower, phrase) {
			return IntentGoodbye
		}
	}
	return IntentQuestion
}

// Confirmation classifies a reply to a pending tool action.
type Confirmation int

const (
	ConfirmYes Confirmation = iota
	ConfirmNo
	ConfirmAmbiguous
)

var yesPhrases = []string{"yes", "yeah", "yep", "sure", "confirm", "okay", "ok", "do it", "please do", "go ahead"}
var noPhrases = []string{"no", "nope", "nah", "cancel", "don't", "do not", "stop", "never mind"}

// ClassifyConfirmation classifies a reply to a pending_action as yes, no, or
// ambiguous, from fixed phrase lists. Phrases match whole words only.
func ClassifyConfirmation(text string) Confirmation {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	padded := " " + strings.Join(words, " ") + " "
	for _, phrase := range noPhrases {
		if strings.Contains(padded, " "+phrase+" ") {
			return ConfirmNo
		}
	}
	for _, phrase := range yesPhrases {
		if strings.Contains(padded, " "+phrase+" ") {
			return ConfirmYes
		}
	}
	return ConfirmAmbiguous
}

// IsShortUtterance reports whether text is short enough (<=5 words) to
// re-prompt on an ambiguous confirmation rather than discard the pending
// action and treat it as a new turn.
func IsShortUtterance(text string) bool {
	return len(strings.Fields(text)) <= 5
}

// Config tunes commit timing.
type Config struct {
	SilenceThreshold  time.Duration
	InterimSilence    time.Duration
	InterimQuietMS    time.Duration
	SpeechTimeout     time.Duration
	RecheckDelay      time.Duration
	InterimProcessing bool
	InterimMinLength  int
}

// DefaultConfig derives arbiter timing from the configured silence
// threshold in seconds.
func DefaultConfig(silenceThresholdSec float64, interimProcessing bool, interimMinLength int) Config {
	return Config{
		SilenceThreshold:  time.Duration(silenceThresholdSec * float64(time.Second)),
		InterimSilence:    50 * time.Millisecond,
		InterimQuietMS:    500 * time.Millisecond,
		SpeechTimeout:     2 * time.Second,
		RecheckDelay:      50 * time.Millisecond,
		InterimProcessing: interimProcessing,
		InterimMinLength:  interimMinLength,
	}
}

// Arbiter decides, per ingress frame, whether the current user utterance is
// complete enough to commit as a turn.
type Arbiter struct {
	cfg Config
}

// New creates an Arbiter with the given tuning.
func New(cfg Config) *Arbiter {
	return &Arbiter{cfg: cfg}
}

// RecheckDelay is how long a caller should sleep between the first
// ShouldCommit that returns true and the confirming recheck, to defeat late
// speech arriving just after the silence threshold was crossed.
func (a *Arbiter) RecheckDelay() time.Duration {
	return a.cfg.RecheckDelay
}

// ShouldCommit reports whether every commit condition holds at time now. It
// does not itself perform the defeat-late-speech recheck sleep; callers
// invoke it once, sleep RecheckDelay, and invoke it again before committing.
func (a *Arbiter) ShouldCommit(sess *session.Session, now time.Time) bool {
	if sess.AgentSpeaking.Load() {
		return false
	}
	if sess.IsResponding.Load() || sess.InterruptRequested.Load() {
		return false
	}

	timedOut := !sess.SpeechStartTime.IsZero() && now.Sub(sess.SpeechStartTime) >= a.cfg.SpeechTimeout
	if sess.UserSpeechDetected && !timedOut {
		return false
	}

	if now.Sub(sess.LastInterimTime) < a.cfg.InterimQuietMS {
		return false
	}

	buf, final := sess.STTBuffer()
	if len(strings.TrimSpace(buf)) < 3 {
		return false
	}
	if !final && !(a.cfg.InterimProcessing && len(buf) >= a.cfg.InterimMinLength) {
		return false
	}

	threshold := a.cfg.SilenceThreshold
	if !final {
		threshold = a.cfg.InterimSilence
	}
	return now.Sub(sess.LastSpeechTime) >= threshold
}

// Commit clears the transcript buffer, advances the call phase, and returns
// the committed text with its classified intent.
func (a *Arbiter) Commit(sess *session.Session) (string, Intent) {
	text, _ := sess.STTBuffer()
	text = strings.TrimSpace(text)
	sess.ClearSTTBuffer()
	sess.AdvancePhase()
	metrics.TurnsTotal.Inc()
	return text, ClassifyIntent(text)
}
