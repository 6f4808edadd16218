package session

import "testing"

func TestManagerCreateIdempotentFailure(t *testing.T) {
	m := NewManager()
	if _, err := m.Create("call-1", nil, AgentConfig{}, nil); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := m.Create("call-1", nil, AgentConfig{}, nil); err == nil {
		t.Fatalf("expected error creating duplicate call id")
	}
}

func TestManagerGetDestroy(t *testing.T) {
	m := NewManager()
	sess, _ := m.Create("call-1", nil, AgentConfig{}, nil)
	sess.SetStreamID("stream-1")

	got, ok := m.Get("call-1")
	if !ok || got != sess {
		t.Fatalf("Get did not return the created session")
	}

	m.Destroy("call-1")
	if _, ok := m.Get("call-1"); ok {
		t.Fatalf("expected session removed after Destroy")
	}
	// destroying an already-destroyed call must not panic.
	m.Destroy("call-1")
}

func TestSendMediaRefusesOnStreamMismatch(t *testing.T) {
	m := NewManager()
	sess, _ := m.Create("call-1", nil, AgentConfig{}, nil)
	sess.SetStreamID("stream-1")

	err := m.SendMedia("call-1", "stream-2", []byte{1, 2, 3}, func([]byte) error { return nil })
	if err == nil {
		t.Fatalf("expected error on stream id mismatch")
	}
}

func TestSendMediaRefusesWhenInterrupted(t *testing.T) {
	m := NewManager()
	sess, _ := m.Create("call-1", nil, AgentConfig{}, nil)
	sess.SetStreamID("stream-1")
	sess.InterruptRequested.Store(true)

	err := m.SendMedia("call-1", "stream-1", []byte{1, 2, 3}, func([]byte) error { return nil })
	if err == nil {
		t.Fatalf("expected error while interrupt is active")
	}
}

func TestSendMediaSendsWhenValid(t *testing.T) {
	m := NewManager()
	sess, _ := m.Create("call-1", nil, AgentConfig{}, nil)
	sess.SetStreamID("stream-1")

	called := false
	err := m.SendMedia("call-1", "stream-1", []byte{1, 2, 3}, func([]byte) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("expected send callback to be invoked")
	}
}
