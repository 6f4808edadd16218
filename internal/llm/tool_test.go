package llm

import "testing"

func TestParseToolCallEndCall(t *testing.T) {
	raw := "Thanks for calling. [TOOL:end_call]"
	call, cleaned, ok := ParseToolCall(raw)
	if !ok {
		t.Fatalf("expected a tool call to be found")
	}
	if call.Name != "end_call" || call.RequiresConfirmation {
		t.Errorf("unexpected call: %+v", call)
	}
	if cleaned != "Thanks for calling. " {
		t.Errorf("cleaned = %q", cleaned)
	}
}

func TestParseToolCallTransferRequiresConfirmation(t *testing.T) {
	raw := "Let me transfer you. [CONFIRM_TOOL:transfer:sales]"
	call, cleaned, ok := ParseToolCall(raw)
	if !ok {
		t.Fatalf("expected a tool call to be found")
	}
	if call.Name != "transfer_call" || !call.RequiresConfirmation {
		t.Errorf("unexpected call: %+v", call)
	}
	if call.Params["department"] != "sales" {
		t.Errorf("department = %q", call.Params["department"])
	}
	if cleaned != "Let me transfer you. " {
		t.Errorf("cleaned = %q", cleaned)
	}
}

func TestParseToolCallGenericWebhook(t *testing.T) {
	raw := "One moment. [TOOL:check_order_status:12345]"
	call, _, ok := ParseToolCall(raw)
	if !ok {
		t.Fatalf("expected a tool call to be found")
	}
	if call.Name != "check_order_status" {
		t.Errorf("name = %q", call.Name)
	}
	if call.Params["param1"] != "12345" {
		t.Errorf("param1 = %q", call.Params["param1"])
	}
}

func TestParseToolCallNoMarker(t *testing.T) {
	raw := "Just a normal sentence."
	_, cleaned, ok := ParseToolCall(raw)
	if ok {
		t.Fatalf("expected no tool call")
	}
	if cleaned != raw {
		t.Errorf("cleaned should equal raw when no marker present")
	}
}

func TestParseToolCallRoundTrip(t *testing.T) {
	raw := "Sure, I can help. [TOOL:schedule_callback:tomorrow:3pm] Anything else?"
	call, cleaned, ok := ParseToolCall(raw)
	if !ok {
		t.Fatalf("expected a tool call to be found")
	}
	if call.Params["param1"] != "tomorrow" || call.Params["param2"] != "3pm" {
		t.Errorf("unexpected params: %+v", call.Params)
	}
	want := "Sure, I can help.  Anything else?"
	if cleaned != want {
		t.Errorf("cleaned = %q, want %q", cleaned, want)
	}
}
