package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lattice-voice/voiceagent/internal/session"
	"github.com/lattice-voice/voiceagent/internal/telephony"
)

// newTestExecutor builds an Executor with the spec's grace periods shrunk to
// keep tests fast; production code always uses NewExecutor's defaults.
func newTestExecutor(mgr *session.Manager, tel *telephony.Client, departmentNumbers map[string]string, subscribers []WebhookConfig) *Executor {
	e := NewExecutor(mgr, tel, departmentNumbers, subscribers)
	e.endCallGrace = time.Millisecond
	e.transferGrace = time.Millisecond
	return e
}

func TestExecuteTransferCallResolvesDepartmentNumber(t *testing.T) {
	var gotQuery string
	telSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
	}))
	defer telSrv.Close()

	mgr := session.NewManager()
	sess, err := mgr.Create("call-1", nil, session.AgentConfig{}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sess.AgentSpeaking.Store(true)

	tel := telephony.NewClient("AC", "tok", telSrv.URL)
	exec := newTestExecutor(mgr, tel, map[string]string{"sales": "+15550001111"}, nil)

	result := exec.Execute(context.Background(), "call-1", Call{Kind: KindTransferCall, Department: "sales"})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if gotQuery == "" {
		t.Fatalf("expected telephony call to be made")
	}
	if sess.InterruptRequested.Load() {
		t.Errorf("expected InterruptRequested cleared after transfer completes")
	}
}

func TestExecuteTransferCallUnknownDepartment(t *testing.T) {
	mgr := session.NewManager()
	if _, err := mgr.Create("call-1", nil, session.AgentConfig{}, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	exec := newTestExecutor(mgr, telephony.NewClient("AC", "tok", "http://unused"), map[string]string{"sales": "+1"}, nil)
	result := exec.Execute(context.Background(), "call-1", Call{Kind: KindTransferCall, Department: "billing"})
	if result.Success {
		t.Fatalf("expected failure for unknown department")
	}
}

func TestExecuteWebhookUsesResponseField(t *testing.T) {
	var gotBody webhookInvocation
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(webhookResponse{Response: "order #12345 is shipped"})
	}))
	defer srv.Close()

	mgr := session.NewManager()
	exec := newTestExecutor(mgr, telephony.NewClient("AC", "tok", "http://unused"), nil, nil)

	result := exec.Execute(context.Background(), "call-1", Call{
		Kind:        KindWebhook,
		WebhookName: "check_order_status",
		WebhookURL:  srv.URL,
		Params:      map[string]string{"param1": "12345"},
	})

	if !result.Success || result.Message != "order #12345 is shipped" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if gotBody.ToolName != "check_order_status" || gotBody.Parameters["param1"] != "12345" {
		t.Errorf("unexpected webhook payload: %+v", gotBody)
	}
}

func TestExecuteNotifiesSubscribers(t *testing.T) {
	notified := make(chan toolCalledEvent, 1)
	subSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt toolCalledEvent
		json.NewDecoder(r.Body).Decode(&evt)
		notified <- evt
	}))
	defer subSrv.Close()

	toolSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(webhookResponse{Response: "ok"})
	}))
	defer toolSrv.Close()

	mgr := session.NewManager()
	exec := newTestExecutor(mgr, telephony.NewClient("AC", "tok", "http://unused"), nil, []WebhookConfig{{Name: "logger", URL: subSrv.URL}})

	exec.Execute(context.Background(), "call-1", Call{Kind: KindWebhook, WebhookName: "lookup", WebhookURL: toolSrv.URL})

	select {
	case evt := <-notified:
		if evt.Tool != "lookup" || !evt.Success {
			t.Errorf("unexpected event: %+v", evt)
		}
	default:
		t.Fatalf("expected a tool.called notification")
	}
}
