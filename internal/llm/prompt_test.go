package llm

import (
	"strings"
	"testing"
	"time"

	"github.com/lattice-voice/voiceagent/internal/session"
)

func TestComposePromptSectionOrder(t *testing.T) {
	sess := session.New("call-1", nil, session.AgentConfig{AgentID: "a1"}, map[string]string{"name": "Ana"})
	sess.AppendHistory("hi", "hello there")
	sess.SetLastIntent("QUESTION")

	prompt := ComposePrompt(sess, "You are a helpful agent.", "chunk one\nchunk two", "what services do you offer?", time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))

	order := []string{"You are a helpful agent.", "Call phase:", "Last intent: QUESTION", "Current date:", "name: Ana", "chunk one", "User: hi", "Assistant: hello there", "User: what services do you offer?"}
	lastIdx := -1
	for _, fragment := range order {
		idx := strings.Index(prompt, fragment)
		if idx < 0 {
			t.Fatalf("prompt missing fragment %q\nprompt:\n%s", fragment, prompt)
		}
		if idx < lastIdx {
			t.Errorf("fragment %q appeared out of order", fragment)
		}
		lastIdx = idx
	}
}

func TestComposePromptNoContextPhrase(t *testing.T) {
	sess := session.New("call-2", nil, session.AgentConfig{AgentID: "a1"}, nil)
	prompt := ComposePrompt(sess, "sys", "", "hello", time.Now())
	if !strings.Contains(prompt, "No specific context found.") {
		t.Errorf("expected fallback context phrase, got:\n%s", prompt)
	}
}

func TestApplyGreetingVariables(t *testing.T) {
	out := ApplyGreetingVariables("Hello {{name}}, this is Mila.", map[string]string{"name": "Ana"})
	if out != "Hello Ana, this is Mila." {
		t.Errorf("got %q", out)
	}
}
