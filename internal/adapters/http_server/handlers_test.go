package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	server "reviewhub/internal/adapters/http_server"
	"reviewhub/internal/app"
	"reviewhub/internal/domain"
)

// ---- in-memory store fake ----

type memStore struct {
	records map[int64]domain.Review
}

func (m *memStore) Add(ctx context.Context, reviews []domain.Review) error {
	for _, r := range reviews {
		m.records[*r.ID] = r
	}
	return nil
}

func (m *memStore) Delete(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		delete(m.records, id)
	}
	return nil
}

func (m *memStore) Reset(ctx context.Context) error {
	m.records = map[int64]domain.Review{}
	return nil
}

func (m *memStore) ids() []int64 {
	ids := make([]int64, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *memStore) List(ctx context.Context, limit, offset int) (domain.RecordPage, error) {
	page := domain.RecordPage{IDs: []int64{}, Documents: []string{}, Metadatas: []domain.Metadata{}}
	ids := m.ids()
	for i := offset; i < len(ids) && i < offset+limit; i++ {
		r := m.records[ids[i]]
		page.IDs = append(page.IDs, ids[i])
		page.Documents = append(page.Documents, *r.Text)
		page.Metadatas = append(page.Metadatas, r.Metadata())
	}
	return page, nil
}

func (m *memStore) Count(ctx context.Context) (int64, error) { return int64(len(m.records)), nil }

func (m *memStore) Search(ctx context.Context, texts []string, k int) (domain.QueryMatches, error) {
	out := domain.QueryMatches{
		IDs:       make([][]int64, len(texts)),
		Documents: make([][]string, len(texts)),
		Distances: make([][]float32, len(texts)),
		Metadatas: make([][]domain.Metadata, len(texts)),
	}
	for qi := range texts {
		out.IDs[qi] = []int64{}
		out.Documents[qi] = []string{}
		out.Distances[qi] = []float32{}
		out.Metadatas[qi] = []domain.Metadata{}
		for i, id := range m.ids() {
			if i >= k {
				break
			}
			r := m.records[id]
			out.IDs[qi] = append(out.IDs[qi], id)
			out.Documents[qi] = append(out.Documents[qi], *r.Text)
			out.Distances[qi] = append(out.Distances[qi], float32(i)*0.25)
			out.Metadatas[qi] = append(out.Metadatas[qi], r.Metadata())
		}
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *memStore) {
	t.Helper()
	store := &memStore{records: map[int64]domain.Review{}}
	h := &server.Handlers{
		Ing: app.NewIngestionService(store, nil),
		Q:   app.NewQueryService(store, nil, time.Minute),
	}
	srv := server.New()
	srv.MountHandlers(h)
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts, store
}

type env struct {
	Status      string          `json:"status"`
	Detail      string          `json:"detail"`
	RecordCount *int64          `json:"record_count"`
	Body        json.RawMessage `json:"body"`
}

func doJSON(t *testing.T, method, url string, body any) (int, env) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()
	var e env
	if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return res.StatusCode, e
}

func review(id int64, text string) map[string]any {
	return map[string]any{"id": id, "text": text}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	code, e := doJSON(t, http.MethodGet, ts.URL+"/health", nil)
	if code != http.StatusOK || e.Status != "healthy" {
		t.Fatalf("health: code=%d status=%q", code, e.Status)
	}
}

func TestIngest_ValidSubset(t *testing.T) {
	ts, store := newTestServer(t)

	payload := []map[string]any{
		{"id": 1, "text": "great food", "location": "NYC", "rating": 5, "date": "2024-01-01"},
		{"id": 2, "text": nil},
	}
	code, e := doJSON(t, http.MethodPost, ts.URL+"/ingest", payload)
	if code != http.StatusOK || e.Status != "ok" {
		t.Fatalf("ingest: code=%d env=%+v", code, e)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected only the valid review persisted, got %d", len(store.records))
	}
	if _, ok := store.records[1]; !ok {
		t.Fatalf("record 1 missing")
	}
}

func TestIngest_NoValidReviews(t *testing.T) {
	ts, store := newTestServer(t)

	code, e := doJSON(t, http.MethodPost, ts.URL+"/ingest", []map[string]any{{"id": 3}})
	if code != http.StatusBadRequest || e.Status != "error" {
		t.Fatalf("expected 400 error envelope, got code=%d env=%+v", code, e)
	}
	if len(store.records) != 0 {
		t.Fatalf("no write may happen on a fully invalid batch")
	}
}

func TestIngest_MalformedBody(t *testing.T) {
	ts, _ := newTestServer(t)
	code, e := doJSON(t, http.MethodPost, ts.URL+"/ingest", map[string]any{"id": 1})
	if code != http.StatusBadRequest || e.Status != "error" {
		t.Fatalf("expected 400 for non-array body, got code=%d env=%+v", code, e)
	}
}

func TestGetReviews_ParallelArrays(t *testing.T) {
	ts, _ := newTestServer(t)
	_, _ = doJSON(t, http.MethodPost, ts.URL+"/ingest", []map[string]any{review(1, "a"), review(2, "b")})

	code, e := doJSON(t, http.MethodGet, ts.URL+"/get_reviews?limit=1&offset=0", nil)
	if code != http.StatusOK || e.Status != "ok" {
		t.Fatalf("get_reviews: code=%d env=%+v", code, e)
	}
	var page domain.RecordPage
	if err := json.Unmarshal(e.Body, &page); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(page.IDs) != 1 || len(page.Documents) != 1 || len(page.Metadatas) != 1 {
		t.Fatalf("parallel arrays must each have length 1: %+v", page)
	}
	// absent metadata values come back as explicit nulls
	if page.Metadatas[0].Location != nil || page.Metadatas[0].Rating != nil {
		t.Fatalf("expected null metadata, got %+v", page.Metadatas[0])
	}
}

func TestGetReviews_BadLimit(t *testing.T) {
	ts, _ := newTestServer(t)
	code, _ := doJSON(t, http.MethodGet, ts.URL+"/get_reviews?limit=abc", nil)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestDeleteReview_ThenListExcludesIt(t *testing.T) {
	ts, _ := newTestServer(t)
	_, _ = doJSON(t, http.MethodPost, ts.URL+"/ingest", []map[string]any{review(1, "a"), review(2, "b")})

	code, e := doJSON(t, http.MethodDelete, ts.URL+"/reviews/1", nil)
	if code != http.StatusOK || e.Status != "ok" {
		t.Fatalf("delete: code=%d env=%+v", code, e)
	}

	_, e = doJSON(t, http.MethodGet, ts.URL+"/get_reviews?limit=100&offset=0", nil)
	var page domain.RecordPage
	_ = json.Unmarshal(e.Body, &page)
	for _, id := range page.IDs {
		if id == 1 {
			t.Fatalf("deleted id present in listing")
		}
	}
}

func TestDeleteReviews_Bulk(t *testing.T) {
	ts, store := newTestServer(t)
	_, _ = doJSON(t, http.MethodPost, ts.URL+"/ingest", []map[string]any{review(1, "a"), review(2, "b"), review(3, "c")})

	code, e := doJSON(t, http.MethodDelete, ts.URL+"/reviews", []int64{1, 3, 99})
	if code != http.StatusOK || e.Status != "ok" {
		t.Fatalf("bulk delete: code=%d env=%+v", code, e)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected 1 record left, got %d", len(store.records))
	}

	code, _ = doJSON(t, http.MethodDelete, ts.URL+"/reviews", []int64{})
	if code != http.StatusBadRequest {
		t.Fatalf("empty id list must be a 400, got %d", code)
	}
}

func TestResetCollection(t *testing.T) {
	ts, _ := newTestServer(t)
	_, _ = doJSON(t, http.MethodPost, ts.URL+"/ingest", []map[string]any{review(1, "a")})

	code, e := doJSON(t, http.MethodDelete, ts.URL+"/collection", nil)
	if code != http.StatusOK || e.Status != "ok" {
		t.Fatalf("reset: code=%d env=%+v", code, e)
	}

	_, e = doJSON(t, http.MethodGet, ts.URL+"/db_status", nil)
	if e.RecordCount == nil || *e.RecordCount != 0 {
		t.Fatalf("expected record_count 0 after reset, got %+v", e.RecordCount)
	}
}

func TestDBStatus(t *testing.T) {
	ts, _ := newTestServer(t)
	var batch []map[string]any
	for i := int64(1); i <= 7; i++ {
		batch = append(batch, review(i, "r"))
	}
	_, _ = doJSON(t, http.MethodPost, ts.URL+"/ingest", batch)

	code, e := doJSON(t, http.MethodGet, ts.URL+"/db_status", nil)
	if code != http.StatusOK || e.Status != "ok" {
		t.Fatalf("db_status: code=%d env=%+v", code, e)
	}
	if e.RecordCount == nil || *e.RecordCount != 7 {
		t.Fatalf("record_count: %+v", e.RecordCount)
	}
	var sample domain.RecordPage
	_ = json.Unmarshal(e.Body, &sample)
	if len(sample.IDs) != 5 {
		t.Fatalf("sample must be capped at 5, got %d", len(sample.IDs))
	}
}

func TestSearch(t *testing.T) {
	ts, _ := newTestServer(t)
	_, _ = doJSON(t, http.MethodPost, ts.URL+"/ingest", []map[string]any{review(1, "slow service"), review(2, "nice view")})

	code, e := doJSON(t, http.MethodGet, ts.URL+"/search?query=slow+service,rooms&n_responses=2", nil)
	if code != http.StatusOK || e.Status != "ok" {
		t.Fatalf("search: code=%d env=%+v", code, e)
	}
	var out domain.QueryMatches
	if err := json.Unmarshal(e.Body, &out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(out.IDs) != 2 {
		t.Fatalf("expected per-query arrays for 2 queries, got %d", len(out.IDs))
	}
	for qi := range out.Distances {
		if len(out.IDs[qi]) > 2 {
			t.Fatalf("more than n_responses matches: %v", out.IDs[qi])
		}
		for i := 1; i < len(out.Distances[qi]); i++ {
			if out.Distances[qi][i] < out.Distances[qi][i-1] {
				t.Fatalf("distances not ascending: %v", out.Distances[qi])
			}
		}
	}
}

func TestSearch_MissingQuery(t *testing.T) {
	ts, _ := newTestServer(t)
	code, e := doJSON(t, http.MethodGet, ts.URL+"/search", nil)
	if code != http.StatusBadRequest || e.Status != "error" {
		t.Fatalf("expected 400 error envelope, got code=%d env=%+v", code, e)
	}
}
