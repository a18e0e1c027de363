package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"reviewhub/internal/domain"
)

const genKey = "reviews:gen"

// sample size returned by Status alongside the record count
const statusSample = 5

// QueryService serves the read paths with a generation-keyed cache: keys
// embed the current generation counter, so any mutation makes previous
// entries unreachable without enumerating them.
type QueryService struct {
	store    domain.ReviewStore
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(store domain.ReviewStore, cache domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{store: store, cache: cache, cacheTTL: ttl}
}

// Status reports the total record count plus a small sample page.
type Status struct {
	RecordCount int64             `json:"record_count"`
	Sample      domain.RecordPage `json:"sample"`
}

func (s *QueryService) Status(ctx context.Context) (Status, error) {
	key := fmt.Sprintf("reviews:g%d:status", s.generation(ctx))
	var st Status
	if ok, _ := s.cacheGet(ctx, key, &st); ok {
		return st, nil
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return Status{}, err
	}
	sample, err := s.store.List(ctx, statusSample, 0)
	if err != nil {
		return Status{}, err
	}
	st = Status{RecordCount: count, Sample: sample}
	s.cacheSet(ctx, key, st)
	return st, nil
}

// ListReviews returns up to limit records from offset as parallel arrays,
// ordered by ascending id.
func (s *QueryService) ListReviews(ctx context.Context, limit, offset int) (domain.RecordPage, error) {
	key := fmt.Sprintf("reviews:g%d:list:%d:%d", s.generation(ctx), limit, offset)
	var page domain.RecordPage
	if ok, _ := s.cacheGet(ctx, key, &page); ok {
		return page, nil
	}

	page, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return domain.RecordPage{}, err
	}
	s.cacheSet(ctx, key, page)
	return page, nil
}

// Search returns, per query text, up to k nearest matches ranked by
// ascending distance.
func (s *QueryService) Search(ctx context.Context, texts []string, k int) (domain.QueryMatches, error) {
	key := fmt.Sprintf("reviews:g%d:search:%d:%s", s.generation(ctx), k, hashQueries(texts))
	var out domain.QueryMatches
	if ok, _ := s.cacheGet(ctx, key, &out); ok {
		return out, nil
	}

	out, err := s.store.Search(ctx, texts, k)
	if err != nil {
		return domain.QueryMatches{}, err
	}
	s.cacheSet(ctx, key, out)
	return out, nil
}

func (s *QueryService) generation(ctx context.Context) int64 {
	if s.cache == nil {
		return 0
	}
	var gen int64
	if ok, _ := s.cache.Get(ctx, genKey, &gen); !ok {
		return 0
	}
	return gen
}

func (s *QueryService) cacheGet(ctx context.Context, key string, dst any) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	return s.cache.Get(ctx, key, dst)
}

func (s *QueryService) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds()))
}

func hashQueries(texts []string) string {
	sum := sha1.Sum([]byte(strings.Join(texts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
