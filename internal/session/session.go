// Package session holds the per-call Media Session: the concurrent state
// object shared by the STT reader, barge-in detector, turn arbiter, LLM
// streamer, and TTS sink for one live call.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lattice-voice/voiceagent/internal/audio"
)

// CallPhase tracks how far a call has progressed, advancing monotonically
// with turn count.
type CallPhase string

const (
	PhaseCallStart CallPhase = "CALL_START"
	PhaseDiscovery CallPhase = "DISCOVERY"
	PhaseActive    CallPhase = "ACTIVE"
)

const (
	maxHistoryTurns       = 10
	maxBackgroundSamples  = 30
	maxSpeechEnergySamples = 10
	ttsQueueCapacity      = 50
)

// AgentConfig is immutable for the call's lifetime once loaded.
type AgentConfig struct {
	AgentID             string
	SystemPrompt        string
	Greeting            string
	VoiceID             string
	Model               string
	SilenceThresholdSec float64
	InterruptEnabled    bool

	// Webhooks maps a generic tool name to its invocation URL, for
	// LLM-proposed tools beyond the built-in end_call/transfer_call.
	Webhooks map[string]string
}

// HistoryTurn is one committed (user, assistant) exchange.
type HistoryTurn struct {
	User      string
	Assistant string
	Timestamp time.Time
}

// PendingAction is a tool invocation proposed by the LLM and awaiting
// explicit yes/no confirmation.
type PendingAction struct {
	Tool       string
	Params     map[string]string
	ProposedAt time.Time
}

// Session is the Media Session: one instance per live call, keyed by call_id.
type Session struct {
	CallID string

	mu       sync.Mutex
	streamID string

	AgentConfig      AgentConfig
	DynamicVariables map[string]string

	history []HistoryTurn

	// STT state. sttBuffer is written only by the STT reader goroutine;
	// read+cleared only by the arbiter or the interrupt handler.
	sttMu      sync.Mutex
	sttBuffer  string
	sttIsFinal bool

	LastSpeechTime  time.Time
	LastInterimTime time.Time
	SilenceStart    time.Time

	UserSpeechDetected bool
	SpeechStartTime    time.Time

	AgentSpeaking       atomic.Bool
	InterruptRequested  atomic.Bool
	IsResponding        atomic.Bool
	LastInterruptTime   time.Time

	TTSQueue chan string

	energyMu          sync.Mutex
	BaselineEnergy    float64
	backgroundSamples []float64
	speechEnergy      []float64

	ResamplerState audio.ResamplerState

	pendingMu     sync.Mutex
	PendingAction *PendingAction

	CallPhase CallPhase
	TurnCount int

	intentMu   sync.Mutex
	lastIntent string

	reasonMu    sync.Mutex
	endedReason string

	// CommitPending guards the turn-arbiter's sleep-then-recheck: only one
	// outstanding recheck goroutine may be in flight at a time, so the read
	// loop doesn't spawn duplicates while the first is still sleeping.
	CommitPending atomic.Bool

	Conn *websocket.Conn

	// Cancel tears down every task spawned for this call.
	Cancel func()
}

// New constructs a Media Session in the CALL_START phase with an empty
// history and a bounded TTS queue.
func New(callID string, conn *websocket.Conn, cfg AgentConfig, vars map[string]string) *Session {
	return &Session{
		CallID:           callID,
		Conn:             conn,
		AgentConfig:      cfg,
		DynamicVariables: vars,
		CallPhase:        PhaseCallStart,
		TTSQueue:         make(chan string, ttsQueueCapacity),
		LastSpeechTime:   time.Now(),
	}
}

// StreamID returns the session's current stream id.
func (s *Session) StreamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamID
}

// SetStreamID records the gateway-assigned stream id. The session is
// unusable for media I/O until this is set.
func (s *Session) SetStreamID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamID = id
}

// AppendHistory adds a committed turn, evicting the oldest entry once the
// bound of 10 is exceeded.
func (s *Session) AppendHistory(user, assistant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, HistoryTurn{User: user, Assistant: assistant, Timestamp: time.Now()})
	if len(s.history) > maxHistoryTurns {
		s.history = s.history[len(s.history)-maxHistoryTurns:]
	}
}

// History returns a copy of the last <=10 turns, oldest first.
func (s *Session) History() []HistoryTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryTurn, len(s.history))
	copy(out, s.history)
	return out
}

// STTBuffer returns the current transcript buffer and whether the last
// event was final.
func (s *Session) STTBuffer() (string, bool) {
	s.sttMu.Lock()
	defer s.sttMu.Unlock()
	return s.sttBuffer, s.sttIsFinal
}

// SetSTTBuffer replaces the transcript buffer.
func (s *Session) SetSTTBuffer(text string, final bool) {
	s.sttMu.Lock()
	defer s.sttMu.Unlock()
	s.sttBuffer = text
	s.sttIsFinal = final
}

// ClearSTTBuffer resets the transcript buffer, used at turn commit and on
// interrupt.
func (s *Session) ClearSTTBuffer() {
	s.sttMu.Lock()
	defer s.sttMu.Unlock()
	s.sttBuffer = ""
	s.sttIsFinal = false
}

// AddBackgroundSample records a low-energy sample for baseline calibration,
// bounded to the most recent 30.
func (s *Session) AddBackgroundSample(energy float64) {
	s.energyMu.Lock()
	defer s.energyMu.Unlock()
	s.backgroundSamples = append(s.backgroundSamples, energy)
	if len(s.backgroundSamples) > maxBackgroundSamples {
		s.backgroundSamples = s.backgroundSamples[len(s.backgroundSamples)-maxBackgroundSamples:]
	}
}

// BackgroundSampleCount reports how many background samples are buffered.
func (s *Session) BackgroundSampleCount() int {
	s.energyMu.Lock()
	defer s.energyMu.Unlock()
	return len(s.backgroundSamples)
}

// BackgroundSamples returns a copy of the buffered background samples.
func (s *Session) BackgroundSamples() []float64 {
	s.energyMu.Lock()
	defer s.energyMu.Unlock()
	out := make([]float64, len(s.backgroundSamples))
	copy(out, s.backgroundSamples)
	return out
}

// PushSpeechEnergy appends to the speech-energy ring used for barge-in
// confirmation, bounded to the most recent 10.
func (s *Session) PushSpeechEnergy(energy float64) {
	s.energyMu.Lock()
	defer s.energyMu.Unlock()
	s.speechEnergy = append(s.speechEnergy, energy)
	if len(s.speechEnergy) > maxSpeechEnergySamples {
		s.speechEnergy = s.speechEnergy[len(s.speechEnergy)-maxSpeechEnergySamples:]
	}
}

// SpeechEnergyCount reports how many samples are in the speech-energy ring.
func (s *Session) SpeechEnergyCount() int {
	s.energyMu.Lock()
	defer s.energyMu.Unlock()
	return len(s.speechEnergy)
}

// ClearSpeechEnergy empties the speech-energy ring.
func (s *Session) ClearSpeechEnergy() {
	s.energyMu.Lock()
	defer s.energyMu.Unlock()
	s.speechEnergy = nil
}

// SetPendingAction latches a tool invocation awaiting confirmation.
func (s *Session) SetPendingAction(pa *PendingAction) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.PendingAction = pa
}

// SetLastIntent records the classified intent of the most recently
// committed turn, surfaced in the next prompt's call-context block.
func (s *Session) SetLastIntent(intent string) {
	s.intentMu.Lock()
	defer s.intentMu.Unlock()
	s.lastIntent = intent
}

// LastIntent returns the most recently classified intent, or "" if none.
func (s *Session) LastIntent() string {
	s.intentMu.Lock()
	defer s.intentMu.Unlock()
	return s.lastIntent
}

// SetEndedReason records why the call ended, e.g. "user_goodbye" when the
// caller's GOODBYE turn drove the hangup rather than a transport drop.
func (s *Session) SetEndedReason(reason string) {
	s.reasonMu.Lock()
	defer s.reasonMu.Unlock()
	s.endedReason = reason
}

// EndedReason returns the explicitly recorded end reason, or "" if the call
// ended without one (the caller should fall back to inferring it from how
// the read loop returned).
func (s *Session) EndedReason() string {
	s.reasonMu.Lock()
	defer s.reasonMu.Unlock()
	return s.endedReason
}

// TakePendingAction atomically reads and clears the pending action.
func (s *Session) TakePendingAction() *PendingAction {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	pa := s.PendingAction
	s.PendingAction = nil
	return pa
}

// AdvancePhase moves CALL_START -> DISCOVERY on the first turn and
// DISCOVERY -> ACTIVE once two or more turns have committed.
func (s *Session) AdvancePhase() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TurnCount++
	switch s.CallPhase {
	case PhaseCallStart:
		s.CallPhase = PhaseDiscovery
	case PhaseDiscovery:
		if s.TurnCount >= 2 {
			s.CallPhase = PhaseActive
		}
	}
}
