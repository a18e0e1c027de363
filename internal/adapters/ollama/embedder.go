package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"reviewhub/internal/domain"
)

const (
	// DefaultModel produces 384-dimensional vectors.
	DefaultModel     = "all-minilm:l6-v2"
	DefaultDimension = 384
)

// Embedder generates embeddings via a local Ollama server. The model and
// dimension are fixed at construction; the dimension must match the vector
// collection's configuration.
type Embedder struct {
	client    *api.Client
	model     string
	dimension int
}

var _ domain.Embedder = (*Embedder)(nil)

// New creates an Ollama-backed embedder. Empty model or zero dimension
// fall back to the defaults. host overrides OLLAMA_HOST when set.
func New(host, model string, dimension int) (*Embedder, error) {
	if model == "" {
		model = DefaultModel
	}
	if dimension == 0 {
		dimension = DefaultDimension
	}

	var client *api.Client
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("parse ollama host: %w", err)
		}
		client = api.NewClient(u, http.DefaultClient)
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
	}

	return &Embedder{client: client, model: model, dimension: dimension}, nil
}

func (e *Embedder) Model() string  { return e.model }
func (e *Embedder) Dimension() int { return e.dimension }

// EmbedBatch generates embeddings for all texts in a single request and
// verifies every vector matches the expected dimension.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}
	for i, emb := range resp.Embeddings {
		if len(emb) != e.dimension {
			return nil, fmt.Errorf("embedding %d dimension mismatch: got %d, want %d (model: %s)",
				i, len(emb), e.dimension, e.model)
		}
	}
	return resp.Embeddings, nil
}
