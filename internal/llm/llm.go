// Package llm implements the LLM Streamer and Response Shaper: prompt
// composition, streaming generation, sentence segmentation, formatting
// strip-down, and inline tool-marker parsing.
package llm

import (
	"context"

	"github.com/lattice-voice/voiceagent/internal/routing"
)

// GenOptions holds sampling and stop-sequence configuration for a single
// generation request.
type GenOptions struct {
	Temperature   float64
	TopP          float64
	TopK          int
	RepeatPenalty float64
	NumPredict    int
	Stop          []string
}

// DefaultGenOptions returns the documented deterministic-leaning defaults.
func DefaultGenOptions() GenOptions {
	return GenOptions{
		Temperature:   0.2,
		TopP:          0.9,
		TopK:          40,
		RepeatPenalty: 1.2,
		NumPredict:    1200,
		Stop:          []string{"\nUser:", "\nAssistant:", "User:"},
	}
}

// TokenCallback is invoked for each streamed token.
type TokenCallback func(token string)

// InterruptFunc is polled between tokens; when it returns true the streamer
// abandons generation immediately.
type InterruptFunc func() bool

// Streamer issues a streaming generation request for a single composed prompt.
type Streamer interface {
	Stream(ctx context.Context, prompt, model string, opts GenOptions, interrupted InterruptFunc, onToken TokenCallback) (string, error)
}

// Router dispatches to a named LLM backend, falling back to a configured default.
type Router struct {
	*routing.Router[Streamer]
}

// NewRouter creates an LLM router.
func NewRouter(backends map[string]Streamer, fallback string) *Router {
	return &Router{Router: routing.NewRouter(backends, fallback)}
}

// Stream routes to the backend for engine and streams a generation.
func (r *Router) Stream(ctx context.Context, prompt, model, engine string, opts GenOptions, interrupted InterruptFunc, onToken TokenCallback) (string, error) {
	backend, err := r.Route(engine)
	if err != nil {
		return "", err
	}
	return backend.Stream(ctx, prompt, model, opts, interrupted, onToken)
}
