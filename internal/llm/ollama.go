package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lattice-voice/voiceagent/internal/metrics"
)

// OllamaStreamer streams generations from Ollama's /api/generate endpoint
// against a single composed prompt, per the LLM external interface.
type OllamaStreamer struct {
	url          string
	defaultModel string
	client       *http.Client
}

// NewOllamaStreamer creates an Ollama streaming client.
func NewOllamaStreamer(url, defaultModel string, httpClient *http.Client) *OllamaStreamer {
	return &OllamaStreamer{url: url, defaultModel: defaultModel, client: httpClient}
}

// Stream posts prompt to Ollama and forwards tokens to onToken, checking
// interrupted after every streamed chunk and abandoning generation the
// moment it reports true.
func (c *OllamaStreamer) Stream(ctx context.Context, prompt, model string, opts GenOptions, interrupted InterruptFunc, onToken TokenCallback) (string, error) {
	start := time.Now()
	useModel := model
	if useModel == "" {
		useModel = c.defaultModel
	}

	resp, err := c.postGenerateRequest(ctx, prompt, useModel, opts)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.Errors.WithLabelValues("llm", "status").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama status %d: %s", resp.StatusCode, body)
	}

	text := c.consumeStream(resp, interrupted, onToken)
	metrics.StageDuration.WithLabelValues("llm").Observe(time.Since(start).Seconds())
	return text, nil
}

func (c *OllamaStreamer) postGenerateRequest(ctx context.Context, prompt, model string, opts GenOptions) (*http.Response, error) {
	reqBody := ollamaGenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: true,
		Options: ollamaOptions{
			Temperature:   opts.Temperature,
			TopP:          opts.TopP,
			TopK:          opts.TopK,
			RepeatPenalty: opts.RepeatPenalty,
			NumPredict:    opts.NumPredict,
			Stop:          opts.Stop,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("llm", "http").Inc()
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	return resp, nil
}

func (c *OllamaStreamer) consumeStream(resp *http.Response, interrupted InterruptFunc, onToken TokenCallback) string {
	var text string
	scanner := bufio.NewScanner(resp.Body)

	for scanner.Scan() {
		if interrupted != nil && interrupted() {
			return text
		}

		var chunk ollamaGenerateChunk
		if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
			continue
		}
		if chunk.Done {
			return text
		}
		if chunk.Response == "" {
			continue
		}
		if onToken != nil {
			onToken(chunk.Response)
		}
		text += chunk.Response
	}

	return text
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"top_p"`
	TopK          int      `json:"top_k"`
	RepeatPenalty float64  `json:"repeat_penalty"`
	NumPredict    int      `json:"num_predict"`
	Stop          []string `json:"stop,omitempty"`
}

type ollamaGenerateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}
