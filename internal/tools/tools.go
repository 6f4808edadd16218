// Package tools implements the Tool Executor: the tagged variant of tool
// invocations proposed by the LLM, their proposed->awaiting_confirmation->
// executing->completed|failed state machine, and their side effects against
// the telephony control plane and configured webhooks.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lattice-voice/voiceagent/internal/metrics"
	"github.com/lattice-voice/voiceagent/internal/session"
	"github.com/lattice-voice/voiceagent/internal/telephony"
)

// Status is a tool invocation's position in its state machine.
type Status string

const (
	StatusProposed             Status = "proposed"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusExecuting            Status = "executing"
	StatusCompleted            Status = "completed"
	StatusFailed               Status = "failed"
)

// Kind tags which variant of tool a Call represents.
type Kind int

const (
	KindEndCall Kind = iota
	KindTransferCall
	KindWebhook
)

// Call is the tagged-variant tool invocation: exactly one of its fields is
// meaningful, selected by Kind.
type Call struct {
	Kind                 Kind
	Department           string // KindTransferCall
	WebhookName          string // KindWebhook
	WebhookURL           string // KindWebhook
	Params               map[string]string
	RequiresConfirmation bool
	Status               Status
}

// WebhookConfig subscribes a URL to tool.called notifications.
type WebhookConfig struct {
	Name string
	URL  string
}

// Result is the outcome of an executed tool. The gateway logs a failed
// Result and, for a confirmed pending action, answers with a short apology;
// the Error text is not added to the conversation history, so the next
// turn's prompt does not include it.
type Result struct {
	Success bool
	Message string
	Error   string
}

// Executor carries the process-wide collaborators a tool's side effects
// require.
type Executor struct {
	manager           *session.Manager
	telephony         *telephony.Client
	departmentNumbers map[string]string
	webhookClient     *http.Client
	subscribers       []WebhookConfig

	// endCallGrace and transferGrace let tests shorten the spec's 1.5s/3s
	// waits; production callers should leave these at their zero value,
	// which NewExecutor fills in with the documented defaults.
	endCallGrace  time.Duration
	transferGrace time.Duration
}

// NewExecutor constructs a tool executor with the documented grace periods
// (1.5s before ending a call, 3s before transferring one).
func NewExecutor(manager *session.Manager, tel *telephony.Client, departmentNumbers map[string]string, subscribers []WebhookConfig) *Executor {
	return &Executor{
		manager:           manager,
		telephony:         tel,
		departmentNumbers: departmentNumbers,
		webhookClient:     &http.Client{Timeout: 10 * time.Second},
		subscribers:       subscribers,
		endCallGrace:      1500 * time.Millisecond,
		transferGrace:     3 * time.Second,
	}
}

// Execute dispatches call to the handler for its Kind and fires a
// tool.called notification to every subscriber regardless of outcome.
func (e *Executor) Execute(ctx context.Context, callID string, call Call) Result {
	var result Result

	switch call.Kind {
	case KindEndCall:
		result = e.executeEndCall(ctx, callID)
	case KindTransferCall:
		result = e.executeTransferCall(ctx, callID, call.Department)
	case KindWebhook:
		result = e.executeWebhook(ctx, callID, call)
	default:
		result = Result{Success: false, Error: "unknown tool kind"}
	}

	e.notifySubscribers(ctx, callID, call, result)
	return result
}

func (e *Executor) executeEndCall(ctx context.Context, callID string) Result {
	sess, ok := e.manager.Get(callID)
	if !ok {
		return Result{Success: false, Error: "session not found"}
	}

	time.Sleep(e.endCallGrace)

	if err := e.telephony.EndCall(ctx, sess.CallID); err != nil {
		metrics.Errors.WithLabelValues("tools", "end_call").Inc()
		return Result{Success: false, Error: err.Error()}
	}

	e.manager.Destroy(callID)
	return Result{Success: true, Message: "call ended"}
}

func (e *Executor) executeTransferCall(ctx context.Context, callID, department string) Result {
	sess, ok := e.manager.Get(callID)
	if !ok {
		return Result{Success: false, Error: "session not found"}
	}

	number, ok := e.departmentNumbers[department]
	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("unknown department %q", department)}
	}

	time.Sleep(e.transferGrace)

	sess.InterruptRequested.Store(true)
	for {
		select {
		case <-sess.TTSQueue:
		default:
			goto drained
		}
	}
drained:

	if err := e.telephony.TransferCall(ctx, sess.CallID, number); err != nil {
		metrics.Errors.WithLabelValues("tools", "transfer_call").Inc()
		sess.InterruptRequested.Store(false)
		return Result{Success: false, Error: err.Error()}
	}

	sess.InterruptRequested.Store(false)
	return Result{Success: true, Message: "transferred to " + department}
}

func (e *Executor) executeWebhook(ctx context.Context, callID string, call Call) Result {
	if call.WebhookURL == "" {
		return Result{Success: false, Error: "webhook tool has no URL configured"}
	}

	payload := webhookInvocation{
		ToolName:    call.WebhookName,
		Parameters:  call.Params,
		CallContext: callID,
		Timestamp:   time.Now().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", call.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.webhookClient.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("tools", "webhook").Inc()
		return Result{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.Errors.WithLabelValues("tools", "webhook_status").Inc()
		return Result{Success: false, Error: fmt.Sprintf("webhook status %d", resp.StatusCode)}
	}

	var decoded webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	return Result{Success: true, Message: decoded.Response}
}

func (e *Executor) notifySubscribers(ctx context.Context, callID string, call Call, result Result) {
	if len(e.subscribers) == 0 {
		return
	}

	event := toolCalledEvent{
		CallID:  callID,
		Tool:    toolName(call),
		Success: result.Success,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return
	}

	for _, sub := range e.subscribers {
		req, err := http.NewRequestWithContext(ctx, "POST", sub.URL, bytes.NewReader(body))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := e.webhookClient.Do(req)
		if err != nil {
			slog.Warn("tool executor: tool.called notification failed", "subscriber", sub.Name, "error", err)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

func toolName(call Call) string {
	switch call.Kind {
	case KindEndCall:
		return "end_call"
	case KindTransferCall:
		return "transfer_call"
	default:
		return call.WebhookName
	}
}

type webhookInvocation struct {
	ToolName    string            `json:"tool_name"`
	Parameters  map[string]string `json:"parameters"`
	CallContext string            `json:"call_context"`
	Timestamp   string            `json:"timestamp"`
}

type webhookResponse struct {
	Response string `json:"response"`
}

type toolCalledEvent struct {
	CallID  string `json:"call_id"`
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
}
