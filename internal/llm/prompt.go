package llm

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lattice-voice/voiceagent/internal/session"
)

var easternTZ = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ComposePrompt assembles the full single-shot prompt for one turn: system
// prompt, call-context block, current date, dynamic variables, retrieved
// context, recent history, and the current utterance, in that order.
func ComposePrompt(sess *session.Session, systemPrompt, retrievedContext, utterance string, now time.Time) string {
	var b strings.Builder

	b.WriteString(systemPrompt)
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Call phase: %s", sess.CallPhase))
	if intent := sess.LastIntent(); intent != "" {
		b.WriteString(fmt.Sprintf("\nLast intent: %s", intent))
	}
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Current date: %s\n\n", now.In(easternTZ).Format("Monday, January 2, 2006")))

	if vars := sess.DynamicVariables; len(vars) > 0 {
		b.WriteString("Variables:\n")
		keys := make([]string, 0, len(vars))
		for k := range vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("- %s: %s\n", k, vars[k]))
		}
		b.WriteString("\n")
	}

	if retrievedContext == "" {
		retrievedContext = "No specific context found."
	}
	b.WriteString(retrievedContext)
	b.WriteString("\n\n")

	for _, turn := range recentHistory(sess.History(), 6) {
		b.WriteString(fmt.Sprintf("User: %s\nAssistant: %s\n", turn.User, turn.Assistant))
	}

	b.WriteString(fmt.Sprintf("User: %s\nAssistant:", utterance))

	return b.String()
}

func recentHistory(history []session.HistoryTurn, max int) []session.HistoryTurn {
	if len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}

// ApplyGreetingVariables substitutes {{var}} placeholders in a greeting
// template with the session's dynamic variables.
func ApplyGreetingVariables(greeting string, vars map[string]string) string {
	out := greeting
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}
