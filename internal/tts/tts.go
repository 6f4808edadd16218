// Package tts implements the Streaming TTS Sink: per-sentence HTTP
// streaming synthesis, resample/fade/encode/frame conversion to 8 kHz
// mu-law, and transmission over the media channel with interrupt checks.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lattice-voice/voiceagent/internal/metrics"
)

const synthesisSampleRate = 16000

// Client streams linear-PCM audio from the external TTS service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a TTS client pointing at the external synthesis service.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, client: httpClient}
}

// synthesizeRequest is the POST body: {text}.
type synthesizeRequest struct {
	Text string `json:"text"`
}

// StreamSynthesis opens a streaming synthesis request for text using voice
// and returns the response body for incremental chunk reads. The caller
// must close the returned io.ReadCloser.
func (c *Client) StreamSynthesis(ctx context.Context, text, voice string) (io.ReadCloser, error) {
	start := time.Now()

	reqBody, err := json.Marshal(synthesizeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	q := url.Values{}
	q.Set("model", voice)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", fmt.Sprintf("%d", synthesisSampleRate))

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/synthesize?"+q.Encode(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("tts", "http").Inc()
		return nil, fmt.Errorf("tts request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		metrics.Errors.WithLabelValues("tts", "status").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts status %d: %s", resp.StatusCode, body)
	}

	metrics.StageDuration.WithLabelValues("tts_connect").Observe(time.Since(start).Seconds())
	return resp.Body, nil
}

// ResolveVoice picks the voice per call-override > agent config > default.
func ResolveVoice(callOverride, agentVoice, defaultVoice string) string {
	if callOverride != "" {
		return callOverride
	}
	if agentVoice != "" {
		return agentVoice
	}
	return defaultVoice
}
