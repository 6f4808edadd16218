package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/lattice-voice/voiceagent/internal/llm"
	"github.com/lattice-voice/voiceagent/internal/metrics"
	"github.com/lattice-voice/voiceagent/internal/retrieval"
	"github.com/lattice-voice/voiceagent/internal/session"
	"github.com/lattice-voice/voiceagent/internal/tools"
	"github.com/lattice-voice/voiceagent/internal/turn"
)

// llmEngine is the only backend wired into the router today; a future
// per-agent engine selection would thread this through AgentConfig instead.
const llmEngine = "ollama"

const fallbackUtterance = "I'm having trouble responding right now. Could you repeat that?"

// processTurn runs one committed turn end to end: pending-action
// confirmation handling, retrieval, prompt composition, streamed
// generation with sentence-level TTS enqueue, tool dispatch, and
// persistence. It is spawned as its own goroutine per commit and must not
// panic the call.
func (h *Handler) processTurn(ctx context.Context, sess *session.Session, text string, intent turn.Intent) {
	sess.IsResponding.Store(true)
	defer sess.IsResponding.Store(false)

	if pa := sess.TakePendingAction(); pa != nil {
		h.handlePendingConfirmation(ctx, sess, pa, text)
		return
	}

	if intent == turn.IntentGoodbye {
		closing := "Thanks for your time. Have a great day."
		h.enqueueSentences(sess, closing)
		sess.SetEndedReason("user_goodbye")
		go h.rt.Tools.Execute(ctx, sess.CallID, tools.Call{Kind: tools.KindEndCall})
		sess.AppendHistory(text, closing)
		sess.SetLastIntent(string(intent))
		h.appendTranscript(ctx, sess, text, closing)
		return
	}

	var chunks []retrieval.Chunk
	if h.rt.Retriever != nil {
		var err error
		chunks, err = h.rt.Retriever.Retrieve(ctx, sess.AgentConfig.AgentID, text)
		if err != nil {
			metrics.Errors.WithLabelValues("gateway", "retrieval").Inc()
			slog.Warn("gateway: retrieval failed, continuing without context", "call_id", sess.CallID, "error", err)
		}
	}
	retrievedContext := retrieval.FormatContext(chunks)

	systemPrompt := sess.AgentConfig.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = h.rt.Config.LLMSystemPrompt
	}
	prompt := llm.ComposePrompt(sess, systemPrompt, retrievedContext, text, time.Now())

	model := sess.AgentConfig.Model
	if model == "" {
		model = h.rt.Config.LLMModel
	}
	opts := llm.GenOptions{
		Temperature:   h.rt.Config.LLMTemperature,
		TopP:          h.rt.Config.LLMTopP,
		TopK:          h.rt.Config.LLMTopK,
		RepeatPenalty: h.rt.Config.LLMRepeatPenalty,
		NumPredict:    h.rt.Config.LLMNumPredict,
		Stop:          []string{"\nUser:", "\nAssistant:", "User:"},
	}

	var sb llm.SentenceBuffer
	interrupted := func() bool { return sess.InterruptRequested.Load() }
	onToken := func(token string) {
		if s := sb.Add(token); s != "" {
			enqueueWithTimeout(sess, s)
		}
	}

	raw, err := h.rt.LLM.Stream(ctx, prompt, model, llmEngine, opts, interrupted, onToken)
	if err != nil {
		metrics.Errors.WithLabelValues("gateway", "llm_stream").Inc()
		slog.Warn("gateway: llm stream failed", "call_id", sess.CallID, "error", err)
		h.enqueueSentences(sess, fallbackUtterance)
		sess.AppendHistory(text, fallbackUtterance)
		h.appendTranscript(ctx, sess, text, fallbackUtterance)
		return
	}

	if sess.InterruptRequested.Load() {
		return
	}

	if s := sb.Flush(); s != "" {
		enqueueWithTimeout(sess, s)
	}

	cleaned := raw
	if call, remaining, ok := llm.ParseToolCall(raw); ok {
		cleaned = remaining
		h.dispatchToolCall(ctx, sess, call)
	}
	cleaned = llm.StripMarkdown(cleaned)

	sess.AppendHistory(text, cleaned)
	sess.SetLastIntent(string(intent))
	h.appendTranscript(ctx, sess, text, cleaned)
}

func (h *Handler) appendTranscript(ctx context.Context, sess *session.Session, user, assistant string) {
	if h.rt.Store == nil {
		return
	}
	if err := h.rt.Store.AppendTurn(ctx, sess.CallID, user, assistant); err != nil {
		slog.Warn("gateway: append transcript failed", "call_id", sess.CallID, "error", err)
	}
}

func enqueueWithTimeout(sess *session.Session, sentence string) {
	select {
	case sess.TTSQueue <- sentence:
	case <-time.After(2 * time.Second):
		slog.Warn("gateway: tts queue put timed out, dropping sentence", "call_id", sess.CallID)
	}
}

// dispatchToolCall converts a parsed marker into a tagged tools.Call and
// either latches it for confirmation or executes it immediately.
func (h *Handler) dispatchToolCall(ctx context.Context, sess *session.Session, call llm.ToolCall) {
	toolCall := tools.Call{RequiresConfirmation: call.RequiresConfirmation, Params: call.Params}
	switch call.Name {
	case "end_call":
		toolCall.Kind = tools.KindEndCall
	case "transfer_call":
		toolCall.Kind = tools.KindTransferCall
		toolCall.Department = call.Params["department"]
	default:
		toolCall.Kind = tools.KindWebhook
		toolCall.WebhookName = call.Name
		toolCall.WebhookURL = sess.AgentConfig.Webhooks[call.Name]
	}

	if toolCall.RequiresConfirmation {
		toolCall.Status = tools.StatusAwaitingConfirmation
		sess.SetPendingAction(&session.PendingAction{
			Tool:       call.Name,
			Params:     call.Params,
			ProposedAt: time.Now(),
		})
		return
	}

	go func() {
		result := h.rt.Tools.Execute(ctx, sess.CallID, toolCall)
		if !result.Success {
			slog.Warn("gateway: tool execution failed", "call_id", sess.CallID, "tool", call.Name, "error", result.Error)
		}
	}()
}

// handlePendingConfirmation resolves a yes/no/ambiguous reply to a tool
// awaiting confirmation.
func (h *Handler) handlePendingConfirmation(ctx context.Context, sess *session.Session, pa *session.PendingAction, text string) {
	switch turn.ClassifyConfirmation(text) {
	case turn.ConfirmYes:
		toolCall := reconstructToolCall(sess, pa)
		result := h.rt.Tools.Execute(ctx, sess.CallID, toolCall)
		ack := "Done."
		if !result.Success {
			ack = "Sorry, I wasn't able to do that."
		}
		h.enqueueSentences(sess, ack)
		sess.AppendHistory(text, ack)
		h.appendTranscript(ctx, sess, text, ack)
	case turn.ConfirmNo:
		ack := "Okay, I won't do that."
		h.enqueueSentences(sess, ack)
		sess.AppendHistory(text, ack)
		h.appendTranscript(ctx, sess, text, ack)
	default:
		if turn.IsShortUtterance(text) {
			sess.SetPendingAction(pa)
			reprompt := "Sorry, should I go ahead?"
			h.enqueueSentences(sess, reprompt)
			return
		}
		go h.processTurn(ctx, sess, text, turn.ClassifyIntent(text))
	}
}

func reconstructToolCall(sess *session.Session, pa *session.PendingAction) tools.Call {
	switch pa.Tool {
	case "end_call":
		return tools.Call{Kind: tools.KindEndCall}
	case "transfer_call":
		return tools.Call{Kind: tools.KindTransferCall, Department: pa.Params["department"]}
	default:
		return tools.Call{
			Kind:        tools.KindWebhook,
			WebhookName: pa.Tool,
			Params:      pa.Params,
			WebhookURL:  sess.AgentConfig.Webhooks[pa.Tool],
		}
	}
}
