package qdrant

import (
	"context"
	"fmt"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"reviewhub/internal/adapters/observability"
	"reviewhub/internal/domain"
)

// payload keys inside a point
const (
	keyText     = "text"
	keyLocation = "location"
	keyRating   = "rating"
	keyDate     = "date"
)

// Store implements domain.ReviewStore on top of a Qdrant collection.
// Embedding is delegated to the injected Embedder; indexing and
// nearest-neighbor search to Qdrant. One Store per process, created at
// startup and closed at shutdown.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	embed       domain.Embedder
	collection  string
}

// New connects to Qdrant and creates the collection if it does not exist
// yet, sized to the embedder's dimension with cosine distance.
func New(ctx context.Context, addr, collection string, embed domain.Embedder) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	s := &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		embed:       embed,
		collection:  collection,
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	ex, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: s.collection})
	if err != nil {
		return fmt.Errorf("collection exists check: %w", err)
	}
	if ex.GetResult().GetExists() {
		return nil
	}
	return s.createCollection(ctx)
}

func (s *Store) createCollection(ctx context.Context) error {
	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(s.embed.Dimension()),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %q: %w", s.collection, err)
	}
	return nil
}

// Add embeds the review texts in one batch and upserts them as points.
// Re-adding an existing id overwrites the stored point. Callers must pass
// only valid reviews (non-nil id and text).
func (s *Store) Add(ctx context.Context, reviews []domain.Review) error {
	start := time.Now()
	defer func() { observability.ObserveStore("add", time.Since(start)) }()

	texts := make([]string, len(reviews))
	for i, r := range reviews {
		texts[i] = *r.Text
	}
	vectors, err := s.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != len(reviews) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(reviews))
	}

	points := make([]*pb.PointStruct, len(reviews))
	for i, r := range reviews {
		points[i] = &pb.PointStruct{
			Id:      numID(uint64(*r.ID)),
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vectors[i]}}},
			Payload: payloadFor(r),
		}
	}

	wait := true
	_, err = s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// List returns up to limit records starting at offset, ordered by
// ascending id (Qdrant scroll order). Out-of-range offsets yield an empty
// page.
func (s *Store) List(ctx context.Context, limit, offset int) (domain.RecordPage, error) {
	start := time.Now()
	defer func() { observability.ObserveStore("list", time.Since(start)) }()

	if limit <= 0 || offset < 0 {
		return emptyPage(), nil
	}
	n := uint32(limit + offset)
	resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: s.collection,
		Limit:          &n,
		WithPayload:    withPayload(),
	})
	if err != nil {
		return domain.RecordPage{}, fmt.Errorf("scroll: %w", err)
	}

	pts := resp.GetResult()
	if offset >= len(pts) {
		return emptyPage(), nil
	}
	pts = pts[offset:]

	page := domain.RecordPage{
		IDs:       make([]int64, len(pts)),
		Documents: make([]string, len(pts)),
		Metadatas: make([]domain.Metadata, len(pts)),
	}
	for i, pt := range pts {
		page.IDs[i] = int64(pt.GetId().GetNum())
		page.Documents[i], page.Metadatas[i] = decodePayload(pt.GetPayload())
	}
	return page, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	start := time.Now()
	defer func() { observability.ObserveStore("count", time.Since(start)) }()

	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return int64(resp.GetResult().GetCount()), nil
}

// Delete removes points by id. Missing ids are a no-op; deletion is
// idempotent.
func (s *Store) Delete(ctx context.Context, ids []int64) error {
	start := time.Now()
	defer func() { observability.ObserveStore("delete", time.Since(start)) }()

	if len(ids) == 0 {
		return nil
	}
	pids := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pids[i] = numID(uint64(id))
	}
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pids},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Reset drops the collection and recreates it empty with the same vector
// configuration. Not isolated from concurrent requests.
func (s *Store) Reset(ctx context.Context) error {
	start := time.Now()
	defer func() { observability.ObserveStore("reset", time.Since(start)) }()

	if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection}); err != nil {
		return fmt.Errorf("drop collection %q: %w", s.collection, err)
	}
	return s.createCollection(ctx)
}

// Search embeds every query text and runs one nearest-neighbor search per
// query. Matches come back ranked by ascending distance, where
// distance = 1 - cosine score.
func (s *Store) Search(ctx context.Context, texts []string, k int) (domain.QueryMatches, error) {
	start := time.Now()
	defer func() { observability.ObserveStore("search", time.Since(start)) }()

	vectors, err := s.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return domain.QueryMatches{}, fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != len(texts) {
		return domain.QueryMatches{}, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}

	out := domain.QueryMatches{
		IDs:       make([][]int64, len(texts)),
		Documents: make([][]string, len(texts)),
		Distances: make([][]float32, len(texts)),
		Metadatas: make([][]domain.Metadata, len(texts)),
	}
	for qi, vec := range vectors {
		resp, err := s.points.Search(ctx, &pb.SearchPoints{
			CollectionName: s.collection,
			Vector:         vec,
			Limit:          uint64(k),
			WithPayload:    withPayload(),
		})
		if err != nil {
			return domain.QueryMatches{}, fmt.Errorf("search %q: %w", texts[qi], err)
		}
		res := resp.GetResult()
		out.IDs[qi] = make([]int64, len(res))
		out.Documents[qi] = make([]string, len(res))
		out.Distances[qi] = make([]float32, len(res))
		out.Metadatas[qi] = make([]domain.Metadata, len(res))
		for i, pt := range res {
			out.IDs[qi][i] = int64(pt.GetId().GetNum())
			out.Distances[qi][i] = 1 - pt.GetScore()
			out.Documents[qi][i], out.Metadatas[qi][i] = decodePayload(pt.GetPayload())
		}
	}
	return out, nil
}

func (s *Store) Close() error { return s.conn.Close() }

var _ domain.ReviewStore = (*Store)(nil)

// ---- payload helpers ----

func numID(n uint64) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: n}}
}

func withPayload() *pb.WithPayloadSelector {
	return &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}}
}

func nullValue() *pb.Value {
	return &pb.Value{Kind: &pb.Value_NullValue{NullValue: pb.NullValue_NULL_VALUE}}
}

func strValue(p *string) *pb.Value {
	if p == nil {
		return nullValue()
	}
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: *p}}
}

func intValue(p *int) *pb.Value {
	if p == nil {
		return nullValue()
	}
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(*p)}}
}

// payloadFor stores the document text plus the metadata mapping. All three
// metadata keys are written even when null so the key set is stable.
func payloadFor(r domain.Review) map[string]*pb.Value {
	return map[string]*pb.Value{
		keyText:     strValue(r.Text),
		keyLocation: strValue(r.Location),
		keyRating:   intValue(r.Rating),
		keyDate:     strValue(r.Date),
	}
}

func decodePayload(p map[string]*pb.Value) (string, domain.Metadata) {
	var md domain.Metadata
	if v, ok := p[keyLocation]; ok {
		if _, null := v.GetKind().(*pb.Value_NullValue); !null {
			loc := v.GetStringValue()
			md.Location = &loc
		}
	}
	if v, ok := p[keyRating]; ok {
		if _, null := v.GetKind().(*pb.Value_NullValue); !null {
			rating := int(v.GetIntegerValue())
			md.Rating = &rating
		}
	}
	if v, ok := p[keyDate]; ok {
		if _, null := v.GetKind().(*pb.Value_NullValue); !null {
			date := v.GetStringValue()
			md.Date = &date
		}
	}
	return p[keyText].GetStringValue(), md
}

func emptyPage() domain.RecordPage {
	return domain.RecordPage{
		IDs:       []int64{},
		Documents: []string{},
		Metadatas: []domain.Metadata{},
	}
}
