// Package client is a thin HTTP client over the review API, used by the
// bulk ingestor and other callers of the service.
package client

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reviewhub/internal/domain"
)

type Client struct {
	base string
	hc   *http.Client
	rl   *rate.Limiter
}

func New(base string, rps int) *Client {
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 30 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// envelope mirrors the API's {status, detail|body} response shape.
type envelope struct {
	Status      string          `json:"status"`
	Detail      string          `json:"detail"`
	RecordCount int64           `json:"record_count"`
	Body        json.RawMessage `json:"body"`
}

type DBStatus struct {
	RecordCount int64
	Sample      domain.RecordPage
}

// ---- Public API ----

func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "healthy" {
		return fmt.Errorf("unexpected health status %q", out.Status)
	}
	return nil
}

func (c *Client) Status(ctx context.Context) (DBStatus, error) {
	env, err := c.doEnvelope(ctx, http.MethodGet, "/db_status", nil)
	if err != nil {
		return DBStatus{}, err
	}
	st := DBStatus{RecordCount: env.RecordCount}
	if len(env.Body) > 0 {
		if err := json.Unmarshal(env.Body, &st.Sample); err != nil {
			return DBStatus{}, fmt.Errorf("decode db_status body: %w", err)
		}
	}
	return st, nil
}

// Ingest posts a batch of reviews and returns the server's detail message.
func (c *Client) Ingest(ctx context.Context, reviews []domain.Review) (string, error) {
	env, err := c.doEnvelope(ctx, http.MethodPost, "/ingest", reviews)
	if err != nil {
		return "", err
	}
	return env.Detail, nil
}

func (c *Client) GetReviews(ctx context.Context, limit, offset int) (domain.RecordPage, error) {
	path := fmt.Sprintf("/get_reviews?limit=%d&offset=%d", limit, offset)
	env, err := c.doEnvelope(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.RecordPage{}, err
	}
	var page domain.RecordPage
	if err := json.Unmarshal(env.Body, &page); err != nil {
		return domain.RecordPage{}, fmt.Errorf("decode get_reviews body: %w", err)
	}
	return page, nil
}

func (c *Client) DeleteReview(ctx context.Context, id int64) error {
	_, err := c.doEnvelope(ctx, http.MethodDelete, fmt.Sprintf("/reviews/%d", id), nil)
	return err
}

func (c *Client) DeleteReviews(ctx context.Context, ids []int64) error {
	_, err := c.doEnvelope(ctx, http.MethodDelete, "/reviews", ids)
	return err
}

// ResetCollection destroys the whole collection server-side. Irreversible.
func (c *Client) ResetCollection(ctx context.Context) error {
	_, err := c.doEnvelope(ctx, http.MethodDelete, "/collection", nil)
	return err
}

func (c *Client) Search(ctx context.Context, queries []string, k int) (domain.QueryMatches, error) {
	q := url.Values{}
	q.Set("query", strings.Join(queries, ","))
	q.Set("n_responses", strconv.Itoa(k))
	path := "/search?" + q.Encode()
	env, err := c.doEnvelope(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.QueryMatches{}, err
	}
	var out domain.QueryMatches
	if err := json.Unmarshal(env.Body, &out); err != nil {
		return domain.QueryMatches{}, fmt.Errorf("decode search body: %w", err)
	}
	return out, nil
}

// ---- Internals ----

func (c *Client) doEnvelope(ctx context.Context, method, path string, body any) (envelope, error) {
	var env envelope
	if err := c.do(ctx, method, path, body, &env); err != nil {
		return envelope{}, err
	}
	if env.Status == "error" {
		return envelope{}, fmt.Errorf("api error: %s", env.Detail)
	}
	return env, nil
}

// do performs a request with client-side rate limiting and retries on 429
// and transient 5xx, honoring Retry-After when provided. Non-2xx bodies
// still decode into out so envelope details survive.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		// fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return lastErr
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode == http.StatusBadGateway ||
			resp.StatusCode == http.StatusServiceUnavailable ||
			resp.StatusCode == http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			// 2xx plus 4xx/500 envelopes: decode so the caller sees detail
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
			}
			return nil
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// Base doubles each attempt (200ms, 400ms, 800ms...), with up to +50%
// random jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
