package session

import "testing"

func TestAppendHistoryBoundedToTen(t *testing.T) {
	sess := New("call-1", nil, AgentConfig{}, nil)
	for i := range 15 {
		sess.AppendHistory("user", "assistant")
		_ = i
	}
	if got := len(sess.History()); got != maxHistoryTurns {
		t.Fatalf("history length = %d, want %d", got, maxHistoryTurns)
	}
}

func TestAppendHistoryFIFOEviction(t *testing.T) {
	sess := New("call-1", nil, AgentConfig{}, nil)
	for i := range 12 {
		sess.AppendHistory("user", string(rune('a'+i)))
	}
	history := sess.History()
	if history[0].Assistant != "c" {
		t.Errorf("oldest retained turn = %q, want %q (entries 'a','b' evicted)", history[0].Assistant, "c")
	}
}

func TestBackgroundSamplesBounded(t *testing.T) {
	sess := New("call-1", nil, AgentConfig{}, nil)
	for i := range 40 {
		sess.AddBackgroundSample(float64(i))
	}
	if got := sess.BackgroundSampleCount(); got != maxBackgroundSamples {
		t.Fatalf("background sample count = %d, want %d", got, maxBackgroundSamples)
	}
}

func TestSTTBufferClearedAtomically(t *testing.T) {
	sess := New("call-1", nil, AgentConfig{}, nil)
	sess.SetSTTBuffer("hello there", true)
	text, final := sess.STTBuffer()
	if text != "hello there" || !final {
		t.Fatalf("got (%q, %v)", text, final)
	}
	sess.ClearSTTBuffer()
	text, final = sess.STTBuffer()
	if text != "" || final {
		t.Fatalf("expected cleared buffer, got (%q, %v)", text, final)
	}
}

func TestAdvancePhase(t *testing.T) {
	sess := New("call-1", nil, AgentConfig{}, nil)
	if sess.CallPhase != PhaseCallStart {
		t.Fatalf("initial phase = %v, want CALL_START", sess.CallPhase)
	}
	sess.AdvancePhase()
	if sess.CallPhase != PhaseDiscovery {
		t.Fatalf("phase after turn 1 = %v, want DISCOVERY", sess.CallPhase)
	}
	sess.AdvancePhase()
	if sess.CallPhase != PhaseActive {
		t.Fatalf("phase after turn 2 = %v, want ACTIVE", sess.CallPhase)
	}
}

func TestEndedReasonDefaultsEmpty(t *testing.T) {
	sess := New("call-1", nil, AgentConfig{}, nil)
	if got := sess.EndedReason(); got != "" {
		t.Fatalf("default ended reason = %q, want empty", got)
	}
	sess.SetEndedReason("user_goodbye")
	if got := sess.EndedReason(); got != "user_goodbye" {
		t.Fatalf("ended reason = %q, want user_goodbye", got)
	}
}

func TestPendingActionTakeClears(t *testing.T) {
	sess := New("call-1", nil, AgentConfig{}, nil)
	sess.SetPendingAction(&PendingAction{Tool: "transfer_call"})
	pa := sess.TakePendingAction()
	if pa == nil || pa.Tool != "transfer_call" {
		t.Fatalf("unexpected pending action: %+v", pa)
	}
	if sess.TakePendingAction() != nil {
		t.Fatalf("expected pending action cleared after take")
	}
}
