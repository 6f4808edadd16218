// Package retrieval implements the Retriever: query embedding plus
// vector-store search against an agent-scoped or global knowledge-base
// collection.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/lattice-voice/voiceagent/internal/metrics"
)

// EmbeddingClient generates vector embeddings via Ollama's /api/embed.
type EmbeddingClient struct {
	url    string
	model  string
	client *http.Client
}

// NewEmbeddingClient creates an Ollama embedding client.
func NewEmbeddingClient(url, model string, httpClient *http.Client) *EmbeddingClient {
	return &EmbeddingClient{url: url, model: model, client: httpClient}
}

// Embed sends text to Ollama and returns a normalized embedding vector.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float64, error) {
	start := time.Now()

	body, err := json.Marshal(embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed status %d", resp.StatusCode)
	}

	var result embedResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())
	return Normalize(result.Embeddings[0]), nil
}

// Normalize scales vector to unit L2 norm. Ollama embeddings are not
// guaranteed pre-normalized; the retriever requires a normalized embedding.
func Normalize(vector []float64) []float64 {
	var sumSq float64
	for _, v := range vector {
		sumSq += v * v
	}
	if sumSq == 0 {
		return vector
	}
	norm := math.Sqrt(sumSq)
	out := make([]float64, len(vector))
	for i, v := range vector {
		out[i] = v / norm
	}
	return out
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}
