package memory

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/achintir-projects/elite-ai-agent/logging"
)

// QdrantConfig holds connection settings for a Qdrant collection.
type QdrantConfig struct {
	URL        string // e.g. "http://localhost:6333"
	APIKey     string
	Collection string
	Dims       uint64
}

// QdrantIndex implements VectorIndex over a Qdrant collection. Point ids are
// derived from entry keys so upserts replace earlier vectors.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dims       uint64
	logger     logging.Logger

	ensureOnce sync.Once
	ensureErr  error
}

var _ VectorIndex = (*QdrantIndex)(nil)

// parseQdrantURL extracts host, port and TLS flag. The REST port 6333 is
// mapped to the gRPC port 6334.
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, perr := url.Parse(rawURL)
	if perr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("memory: invalid qdrant URL: %q", rawURL)
	}
	useTLS = u.Scheme == "https"
	host = u.Hostname()
	port = 6334
	if ps := u.Port(); ps != "" {
		p, err := strconv.Atoi(ps)
		if err != nil {
			return "", 0, false, fmt.Errorf("memory: invalid port in qdrant URL: %q", ps)
		}
		if p != 6333 {
			port = p
		}
	}
	return host, port, useTLS, nil
}

// NewQdrantIndex connects to Qdrant over gRPC. The collection is created
// lazily on first use.
func NewQdrantIndex(cfg QdrantConfig, logger logging.Logger) (*QdrantIndex, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("memory: connect to qdrant at %s:%d: %w", host, port, err)
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &QdrantIndex{client: client, collection: cfg.Collection, dims: cfg.Dims, logger: logger}, nil
}

func (q *QdrantIndex) ensure(ctx context.Context) error {
	q.ensureOnce.Do(func() {
		exists, err := q.client.CollectionExists(ctx, q.collection)
		if err != nil {
			q.ensureErr = fmt.Errorf("memory: check collection exists: %w", err)
			return
		}
		if exists {
			return
		}
		if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     q.dims,
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			q.ensureErr = fmt.Errorf("memory: create collection %q: %w", q.collection, err)
			return
		}
		q.logger.Info("memory.qdrant.collection_created", "collection", q.collection, "dims", q.dims)
	})
	return q.ensureErr
}

func pointID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// Upsert implements VectorIndex.
func (q *QdrantIndex) Upsert(ctx context.Context, e VectorEntry) error {
	if err := q.ensure(ctx); err != nil {
		return err
	}
	payload := map[string]any{
		"key":          e.Key,
		"created_unix": float64(e.CreatedAt.Unix()),
	}
	for k, v := range e.Metadata {
		payload["md_"+k] = v
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(pointID(e.Key)),
			Vectors: qdrant.NewVectorsDense(e.Vector),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return fmt.Errorf("memory: qdrant upsert %q: %w", e.Key, err)
	}
	return nil
}

// Search implements VectorIndex.
func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int, threshold float64) ([]VectorMatch, error) {
	if err := q.ensure(ctx); err != nil {
		return nil, err
	}
	limit := uint64(k) //nolint:gosec
	scoreThreshold := float32(threshold)
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(query),
		ScoreThreshold: &scoreThreshold,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("memory: qdrant query: %w", err)
	}
	out := make([]VectorMatch, 0, len(scored))
	for _, sp := range scored {
		m := VectorMatch{Similarity: float64(sp.GetScore())}
		for k, v := range sp.GetPayload() {
			switch {
			case k == "key":
				m.Key = v.GetStringValue()
			case len(k) > 3 && k[:3] == "md_":
				if m.Metadata == nil {
					m.Metadata = map[string]string{}
				}
				m.Metadata[k[3:]] = v.GetStringValue()
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// DeleteOlderThan implements VectorIndex.
func (q *QdrantIndex) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if err := q.ensure(ctx); err != nil {
		return 0, err
	}
	filter := &qdrant.Filter{Must: []*qdrant.Condition{
		qdrant.NewRange("created_unix", &qdrant.Range{Lt: qdrant.PtrOf(float64(cutoff.Unix()))}),
	}}
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("memory: qdrant count expired: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	_, err = q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("memory: qdrant delete expired: %w", err)
	}
	return int(n), nil
}

// Len implements VectorIndex.
func (q *QdrantIndex) Len(ctx context.Context) (int, error) {
	if err := q.ensure(ctx); err != nil {
		return 0, err
	}
	n, err := q.client.Count(ctx, &qdrant.CountPoints{CollectionName: q.collection, Exact: qdrant.PtrOf(true)})
	if err != nil {
		return 0, fmt.Errorf("memory: qdrant count: %w", err)
	}
	return int(n), nil
}

// Close implements VectorIndex.
func (q *QdrantIndex) Close() error { return q.client.Close() }
