package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lattice-voice/voiceagent/internal/metrics"
)

// Manager is the Media Session Manager: the arena that owns every live
// session by call id. Tasks hold only a call id and look the session up
// through the manager, so teardown can delete the entry and cancel by
// token without leaving dangling references between session and tasks.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create registers a new session for call_id. It is an idempotent failure
// (returns an error, does not replace the existing session) if call_id is
// already registered.
func (m *Manager) Create(callID string, conn *websocket.Conn, cfg AgentConfig, vars map[string]string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[callID]; exists {
		return nil, fmt.Errorf("session manager: call %s already exists", callID)
	}

	sess := New(callID, conn, cfg, vars)
	m.sessions[callID] = sess
	metrics.CallsActive.Inc()
	metrics.CallsTotal.Inc()
	return sess, nil
}

// Get returns the session for call_id, if any.
func (m *Manager) Get(callID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[callID]
	return sess, ok
}

// Destroy drains the TTS queue, cancels the session's tasks, and removes it
// from the registry. It is safe to call more than once for the same call id.
func (m *Manager) Destroy(callID string) {
	m.mu.Lock()
	sess, ok := m.sessions[callID]
	if ok {
		delete(m.sessions, callID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	drainDeadline := time.Now().Add(2 * time.Second)
	for {
		select {
		case <-sess.TTSQueue:
		default:
			goto drained
		}
		if time.Now().After(drainDeadline) {
			break
		}
	}
drained:

	if sess.Cancel != nil {
		sess.Cancel()
	}
	if sess.Conn != nil {
		if err := sess.Conn.Close(); err != nil {
			slog.Warn("session close", "call_id", callID, "error", err)
		}
	}

	metrics.CallsActive.Dec()
}

// SendMedia refuses to send if an interrupt is active or if streamID no
// longer matches the session's current stream id, preventing stale audio
// from a superseded stream reaching the wire.
func (m *Manager) SendMedia(callID, streamID string, ulawFrame []byte, send func([]byte) error) error {
	sess, ok := m.Get(callID)
	if !ok {
		return fmt.Errorf("session manager: no session for call %s", callID)
	}
	if sess.InterruptRequested.Load() {
		return fmt.Errorf("session manager: interrupt active for call %s", callID)
	}
	if sess.StreamID() != streamID {
		return fmt.Errorf("session manager: stream id mismatch for call %s", callID)
	}
	return send(ulawFrame)
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
