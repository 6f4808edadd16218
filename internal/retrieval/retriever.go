package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lattice-voice/voiceagent/internal/metrics"
)

const globalCollection = "docs"

// Chunk is one retrieved knowledge-base passage.
type Chunk struct {
	Text     string
	Distance float64
}

// Config configures a Retriever.
type Config struct {
	Embedder       *EmbeddingClient
	Qdrant         *QdrantClient
	TopK           int
	DistanceCutoff float64
}

// Retriever implements the Retriever component: encode a query, pick the
// agent-scoped collection if populated else the global one, and return the
// nearest chunks within the configured distance cutoff.
type Retriever struct {
	cfg Config
}

// New creates a Retriever.
func New(cfg Config) *Retriever {
	return &Retriever{cfg: cfg}
}

// Retrieve encodes query and searches the agent's knowledge base, returning
// up to the first 3 chunks by ascending distance within the cutoff.
func (r *Retriever) Retrieve(ctx context.Context, agentID, query string) ([]Chunk, error) {
	start := time.Now()
	defer func() { metrics.RAGDuration.Observe(time.Since(start).Seconds()) }()

	vector, err := r.cfg.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	collection, err := r.selectCollection(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("retrieval: select collection: %w", err)
	}

	candidates, err := r.cfg.Qdrant.Search(ctx, collection, vector, 2*r.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search: %w", err)
	}

	chunks := make([]Chunk, 0, len(candidates))
	for _, c := range candidates {
		if c.Score > r.cfg.DistanceCutoff {
			continue
		}
		text, _ := c.Payload["text"].(string)
		chunks = append(chunks, Chunk{Text: text, Distance: c.Score})
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Distance < chunks[j].Distance })

	if len(chunks) > 3 {
		chunks = chunks[:3]
	}
	return chunks, nil
}

func (r *Retriever) selectCollection(ctx context.Context, agentID string) (string, error) {
	scoped := "agent_" + agentID
	count, err := r.cfg.Qdrant.CollectionPointCount(ctx, scoped)
	if err != nil {
		return globalCollection, nil
	}
	if count > 0 {
		return scoped, nil
	}
	return globalCollection, nil
}

// FormatContext joins chunks for prompt inclusion, newline-separated. It
// returns "" when there are no chunks; ComposePrompt then supplies its
// no-context phrase.
func FormatContext(chunks []Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	out := chunks[0].Text
	for _, c := range chunks[1:] {
		out += "\n" + c.Text
	}
	return out
}
