package domain

import "context"

// ReviewStore owns the persisted vector collection. Callers pass only the
// valid subset of a batch to Add; the store keeps ids, documents and
// metadata aligned by building them in one pass over the input.
type ReviewStore interface {
	// Write paths
	Add(ctx context.Context, reviews []Review) error
	Delete(ctx context.Context, ids []int64) error
	// Reset destroys the whole collection and recreates it empty with the
	// same embedding configuration. Destructive and irreversible.
	Reset(ctx context.Context) error

	// Read paths
	List(ctx context.Context, limit, offset int) (RecordPage, error)
	Count(ctx context.Context) (int64, error)
	Search(ctx context.Context, texts []string, k int) (QueryMatches, error)

	Close() error
}

// Embedder turns text into vectors for similarity comparison.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimension() int
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
}
