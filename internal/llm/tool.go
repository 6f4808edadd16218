package llm

import "regexp"

var toolMarkerRe = regexp.MustCompile(`\[(CONFIRM_TOOL|TOOL):([^\]]+)\]`)

// ToolCall is a tool invocation parsed out of raw LLM output.
type ToolCall struct {
	Name                string
	Params              map[string]string
	RequiresConfirmation bool
}

// ParseToolCall scans raw for a [TOOL:...] or [CONFIRM_TOOL:...] marker and
// returns the parsed call plus the response with the marker text removed.
// If no marker is present, ok is false and cleaned equals raw.
func ParseToolCall(raw string) (call ToolCall, cleaned string, ok bool) {
	loc := toolMarkerRe.FindStringSubmatchIndex(raw)
	if loc == nil {
		return ToolCall{}, raw, false
	}

	kind := raw[loc[2]:loc[3]]
	body := raw[loc[4]:loc[5]]
	cleaned = raw[:loc[0]] + raw[loc[1]:]

	parts := splitMarkerBody(body)
	name := parts[0]
	args := parts[1:]

	confirmMarker := kind == "CONFIRM_TOOL"

	switch {
	case name == "end_call":
		call = ToolCall{Name: "end_call", RequiresConfirmation: false}
	case name == "transfer" && len(args) > 0:
		dept := args[0]
		call = ToolCall{
			Name:                 "transfer_call",
			Params:               map[string]string{"department": dept},
			RequiresConfirmation: confirmMarker,
		}
	default:
		params := map[string]string{}
		for i, a := range args {
			params[paramKey(i)] = a
		}
		call = ToolCall{Name: name, Params: params, RequiresConfirmation: false}
	}

	return call, cleaned, true
}

func splitMarkerBody(body string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(body); i++ {
		if body[i] == ':' {
			parts = append(parts, body[start:i])
			start = i + 1
		}
	}
	parts = append(parts, body[start:])
	return parts
}

func paramKey(i int) string {
	names := []string{"param1", "param2", "param3", "param4"}
	if i < len(names) {
		return names[i]
	}
	return "param"
}
