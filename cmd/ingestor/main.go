package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"reviewhub/internal/adapters/observability"
	"reviewhub/internal/client"
	"reviewhub/internal/domain"
	"reviewhub/internal/shared"
)

// The ingestor reads a JSON file holding an array of reviews and posts it
// to the API in batches through a bounded worker pool.
func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	var file string
	flag.StringVar(&file, "file", "", "path to a JSON file with an array of reviews")
	flag.Parse()
	if file == "" {
		log.Fatal().Msg("-file is required")
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("read input failed")
	}
	var reviews []domain.Review
	if err := json.Unmarshal(raw, &reviews); err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("input is not a JSON array of reviews")
	}

	log.Info().
		Str("api", cfg.APIBaseURL).
		Int("workers", cfg.Workers).
		Int("reviews", len(reviews)).
		Int("batch", cfg.IngestBatch).
		Msg("ingestor starting")

	cl := client.New(cfg.APIBaseURL, cfg.ClientRPS)
	if err := cl.Health(ctx); err != nil {
		log.Fatal().Err(err).Msg("API not healthy")
	}

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup

	for start := 0; start < len(reviews); start += cfg.IngestBatch {
		end := start + cfg.IngestBatch
		if end > len(reviews) {
			end = len(reviews)
		}
		batch := reviews[start:end]

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(offset int, batch []domain.Review) {
			defer wg.Done()
			defer sem.Release(1)

			detail, err := cl.Ingest(ctx, batch)
			if err != nil {
				log.Warn().Int("offset", offset).Int("size", len(batch)).Err(err).Msg("batch failed")
				return
			}
			log.Info().Int("offset", offset).Int("size", len(batch)).Str("detail", detail).Msg("batch ok")
		}(start, batch)
	}

	wg.Wait()

	st, err := cl.Status(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("db status check failed")
	} else {
		log.Info().Int64("record_count", st.RecordCount).Msg("ingestion completed")
	}
}
