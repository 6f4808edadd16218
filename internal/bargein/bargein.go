// Package bargein implements the adaptive-baseline interrupt detector: it
// watches ingress energy while the agent is speaking and fires a barge-in
// interrupt when the caller starts talking over the agent.
package bargein

import (
	"log/slog"
	"sort"
	"time"

	"github.com/lattice-voice/voiceagent/internal/metrics"
	"github.com/lattice-voice/voiceagent/internal/session"
)

// Config tunes the detector. Defaults match the documented factory values.
type Config struct {
	BaselineFactor float64
	MinEnergy      float64
	MinSpeechMS    int
	DebounceMS     int
}

// DefaultConfig returns the detector's documented default tuning.
func DefaultConfig() Config {
	return Config{
		BaselineFactor: 2.0,
		MinEnergy:      600,
		MinSpeechMS:    120,
		DebounceMS:     300,
	}
}

const calibrationWindow = 20

// Detector evaluates ingress frames for barge-in while the agent is speaking
// and calibrates a noise-floor baseline while it is not.
type Detector struct {
	cfg Config
}

// New creates a Detector with the given tuning.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// ClearFunc sends a "clear" control frame on the media channel.
type ClearFunc func() error

// Evaluate processes one ingress frame's energy for sess at time now. It
// either calibrates the baseline (agent not speaking) or watches for barge-in
// (agent speaking), firing an interrupt through sendClear when confirmed.
// Returns true if an interrupt was fired by this call.
func (d *Detector) Evaluate(sess *session.Session, energy float64, now time.Time, sendClear ClearFunc) bool {
	metrics.BargeInEvaluations.Inc()

	if !sess.AgentSpeaking.Load() {
		d.calibrate(sess, energy)
		return false
	}

	if sess.InterruptRequested.Load() {
		return false
	}

	threshold := maxF(sess.BaselineEnergy*d.cfg.BaselineFactor, d.cfg.MinEnergy)

	if energy <= threshold {
		sess.ClearSpeechEnergy()
		sess.SpeechStartTime = time.Time{}
		return false
	}

	sess.PushSpeechEnergy(energy)
	if sess.SpeechEnergyCount() >= 2 && sess.SpeechStartTime.IsZero() {
		sess.SpeechStartTime = now
	}
	if sess.SpeechStartTime.IsZero() {
		return false
	}

	speechDur := now.Sub(sess.SpeechStartTime)
	sinceLastInterrupt := now.Sub(sess.LastInterruptTime)
	if speechDur < time.Duration(d.cfg.MinSpeechMS)*time.Millisecond {
		return false
	}
	if sess.LastInterruptTime.IsZero() {
		sinceLastInterrupt = time.Duration(d.cfg.DebounceMS) * time.Millisecond
	}
	if sinceLastInterrupt < time.Duration(d.cfg.DebounceMS)*time.Millisecond {
		return false
	}

	d.fire(sess, now, sendClear)
	return true
}

// calibrate folds a low-energy sample into the baseline estimator. Per the
// smoothing rule, the baseline only ever moves toward the new median by at
// most 30% of the distance, so it drifts slowly rather than snapping to a
// transient.
func (d *Detector) calibrate(sess *session.Session, energy float64) {
	if energy >= maxF(2*sess.BaselineEnergy, 600) {
		return
	}
	sess.AddBackgroundSample(energy)
	if sess.BackgroundSampleCount() < calibrationWindow {
		return
	}
	samples := sess.BackgroundSamples()
	recent := samples[len(samples)-calibrationWindow:]
	sess.BaselineEnergy = 0.7*sess.BaselineEnergy + 0.3*median(recent)
}

// fire runs the idempotent interrupt action: latch the cancellation state,
// flush the gateway's playout buffer (sent twice for reliability), drain the
// TTS queue, and reset turn state so the next utterance starts a new turn.
func (d *Detector) fire(sess *session.Session, now time.Time, sendClear ClearFunc) {
	sess.InterruptRequested.Store(true)
	sess.AgentSpeaking.Store(false)
	sess.IsResponding.Store(false)
	sess.LastInterruptTime = now

	if err := sendClear(); err != nil {
		slog.Warn("bargein: clear frame send failed", "call_id", sess.CallID, "error", err)
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		if err := sendClear(); err != nil {
			slog.Warn("bargein: repeat clear frame send failed", "call_id", sess.CallID, "error", err)
		}
	}()

	drainQueue(sess)

	sess.ClearSTTBuffer()
	sess.UserSpeechDetected = false
	sess.ClearSpeechEnergy()
	sess.SpeechStartTime = time.Time{}
	sess.LastSpeechTime = now

	metrics.InterruptsTotal.Inc()
}

func drainQueue(sess *session.Session) {
	for {
		select {
		case <-sess.TTSQueue:
		default:
			return
		}
	}
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
