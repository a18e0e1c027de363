package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"reviewhub/internal/app"
	"reviewhub/internal/domain"
)

const (
	defaultListLimit  = 10
	defaultNResponses = 5
)

type Handlers struct {
	Ing *app.IngestionService
	Q   *app.QueryService
}

// envelope is the uniform response shape: {status, detail|body}.
type envelope struct {
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
	RecordCount *int64 `json:"record_count,omitempty"`
	Body        any    `json:"body,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	s.mux.Get("/db_status", h.dbStatus)
	s.mux.Post("/ingest", h.ingest)
	s.mux.Get("/get_reviews", h.getReviews)
	s.mux.Delete("/reviews/{id}", h.deleteReview)
	s.mux.Delete("/reviews", h.deleteReviews)
	s.mux.Delete("/collection", h.resetCollection)
	s.mux.Get("/search", h.search)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, envelope{Status: "error", Detail: detail})
}

// storeError maps an adapter failure to the generic internal-error
// envelope. The raw message is exposed; current behavior, not a contract.
func storeError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (h *Handlers) dbStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.Q.Status(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "ok", RecordCount: &st.RecordCount, Body: st.Sample})
}

func (h *Handlers) ingest(w http.ResponseWriter, r *http.Request) {
	var payload []domain.Review
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON array of reviews")
		return
	}

	n, err := h.Ing.Ingest(r.Context(), payload)
	if err != nil {
		if errors.Is(err, domain.ErrNoValidReviews) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "ok", Detail: fmt.Sprintf("added %d reviews", n)})
}

func (h *Handlers) getReviews(w http.ResponseWriter, r *http.Request) {
	limit, ok := intQuery(w, r, "limit", defaultListLimit)
	if !ok {
		return
	}
	offset, ok := intQuery(w, r, "offset", 0)
	if !ok {
		return
	}

	page, err := h.Q.ListReviews(r.Context(), limit, offset)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "ok", Body: page})
}

func (h *Handlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}
	if err := h.Ing.Delete(r.Context(), []int64{id}); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "ok", Detail: fmt.Sprintf("deleted review %d", id)})
}

func (h *Handlers) deleteReviews(w http.ResponseWriter, r *http.Request) {
	var ids []int64
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON array of ids")
		return
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "no ids provided")
		return
	}
	if err := h.Ing.Delete(r.Context(), ids); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "ok", Detail: fmt.Sprintf("deleted %d reviews", len(ids))})
}

func (h *Handlers) resetCollection(w http.ResponseWriter, r *http.Request) {
	if err := h.Ing.Reset(r.Context()); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "ok", Detail: "collection reset"})
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	queries := splitQueries(r.URL.Query().Get("query"))
	if len(queries) == 0 {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}
	k, ok := intQuery(w, r, "n_responses", defaultNResponses)
	if !ok {
		return
	}
	if k <= 0 {
		writeError(w, http.StatusBadRequest, "n_responses must be positive")
		return
	}

	out, err := h.Q.Search(r.Context(), queries, k)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "ok", Body: out})
}

// splitQueries parses the comma-separated multi-query parameter, dropping
// empty segments.
func splitQueries(raw string) []string {
	var out []string
	for _, q := range strings.Split(raw, ",") {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// intQuery parses an integer query parameter, writing a 400 envelope and
// returning ok=false when the value is present but malformed.
func intQuery(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return n, true
}
