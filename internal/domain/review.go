package domain

import "errors"

var (
	ErrNoValidReviews = errors.New("no valid reviews to add")
	ErrNotFound       = errors.New("not found")
)

// Review is the inbound record shape. ID and Text are required for
// persistence; the rest travels as metadata.
type Review struct {
	ID       *int64  `json:"id"`
	Text     *string `json:"text"`
	Location *string `json:"location"`
	Rating   *int    `json:"rating"`
	Date     *string `json:"date"`
}

// Valid reports whether the review can be persisted.
func (r Review) Valid() bool { return r.ID != nil && r.Text != nil }

// Metadata is the per-record attribute mapping stored next to the document.
// All three keys are always present; absent values marshal as null so the
// key set stays stable across records.
type Metadata struct {
	Location *string `json:"location"`
	Rating   *int    `json:"rating"`
	Date     *string `json:"date"`
}

func (r Review) Metadata() Metadata {
	return Metadata{Location: r.Location, Rating: r.Rating, Date: r.Date}
}

// FilterValid drops reviews missing id or text, preserving input order.
// Invalid entries are silently excluded, not rejected individually.
func FilterValid(in []Review) []Review {
	out := make([]Review, 0, len(in))
	for _, r := range in {
		if r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

// RecordPage holds listed records as parallel arrays aligned by position.
type RecordPage struct {
	IDs       []int64    `json:"ids"`
	Documents []string   `json:"documents"`
	Metadatas []Metadata `json:"metadatas"`
}

// QueryMatches holds semantic-search results as parallel arrays indexed
// first by query, then by rank. Distances are ascending per query; lower
// means more similar.
type QueryMatches struct {
	IDs       [][]int64    `json:"ids"`
	Documents [][]string   `json:"documents"`
	Distances [][]float32  `json:"distances"`
	Metadatas [][]Metadata `json:"metadatas"`
}
