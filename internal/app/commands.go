package app

import (
	"context"
	"fmt"

	"reviewhub/internal/domain"
)

// IngestionService owns the write paths. Every successful mutation bumps
// the cache generation so read caches from before the write stop matching.
type IngestionService struct {
	store domain.ReviewStore
	cache domain.Cache
}

func NewIngestionService(store domain.ReviewStore, cache domain.Cache) *IngestionService {
	return &IngestionService{store: store, cache: cache}
}

// Ingest filters out reviews missing id or text and writes the remainder
// in one batch. The batch succeeds for the valid subset; if nothing valid
// remains it fails with domain.ErrNoValidReviews and nothing is written.
// Re-ingesting an existing id overwrites the stored record.
func (s *IngestionService) Ingest(ctx context.Context, reviews []domain.Review) (int, error) {
	valid := domain.FilterValid(reviews)
	if len(valid) == 0 {
		return 0, domain.ErrNoValidReviews
	}
	if err := s.store.Add(ctx, valid); err != nil {
		return 0, fmt.Errorf("add reviews: %w", err)
	}
	s.bumpGeneration(ctx)
	return len(valid), nil
}

// Delete removes reviews by id. Unknown ids are a no-op, so deletion is
// idempotent.
func (s *IngestionService) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete reviews: %w", err)
	}
	s.bumpGeneration(ctx)
	return nil
}

// Reset drops the whole collection and recreates it empty. Destructive.
func (s *IngestionService) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset collection: %w", err)
	}
	s.bumpGeneration(ctx)
	return nil
}

func (s *IngestionService) bumpGeneration(ctx context.Context) {
	if s.cache == nil {
		return
	}
	// best-effort; a failed bump only means stale cache entries expire by TTL
	_, _ = s.cache.Incr(ctx, genKey)
}
