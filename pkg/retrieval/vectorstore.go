package retrieval

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"screenplay-core/pkg/screenplay"
)

// VectorStoreConfig configures the qdrant collection the Retrieval Service
// searches scene embeddings against.
type VectorStoreConfig struct {
	Host       string
	Port       int
	UseTLS     bool
	APIKey     string
	Collection string
}

// QdrantStore implements screenplay.SceneVectorStore against a qdrant
// collection of scene embeddings, one point per (script_id, position).
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStore connects to qdrant and ensures the scene-embeddings
// collection exists with the right vector size and distance metric.
func NewQdrantStore(ctx context.Context, cfg VectorStoreConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}

	s := &QdrantStore{client: client, collection: cfg.Collection}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, dims ...int) error {
	dimension := uint64(1536)
	if len(dims) > 0 {
		dimension = uint64(dims[0])
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig:  qdrant.NewVectorsConfig(&qdrant.VectorParams{Size: dimension, Distance: qdrant.Distance_Cosine}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// pointID derives a stable UUID for a scene from its (script_id, position)
// pair, since qdrant point ids must be UUIDs or unsigned integers.
func pointID(scriptID string, position int) string {
	name := scriptID + "#" + strconv.Itoa(position)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// Upsert stores or replaces one scene's embedding.
func (s *QdrantStore) Upsert(ctx context.Context, scriptID string, position int, vector []float32) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(pointID(scriptID, position)),
		Vectors: qdrant.NewVectorsDense(vector),
		Payload: qdrant.NewValueMap(map[string]any{
			"script_id": scriptID,
			"position":  position,
		}),
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("upsert scene embedding: %w", err)
	}
	return nil
}

var _ screenplay.SceneVectorStore = (*QdrantStore)(nil)

// SearchByVector returns the topK scenes closest to query under cosine
// distance, filtered to scriptID.
func (s *QdrantStore) SearchByVector(ctx context.Context, scriptID string, query []float32, topK int) ([]screenplay.ScoredPosition, error) {
	limit := uint64(topK)
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("script_id", scriptID)},
	}

	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(query),
		Limit:          &limit,
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query scene embeddings: %w", err)
	}

	out := make([]screenplay.ScoredPosition, 0, len(hits))
	for _, hit := range hits {
		pos, ok := hit.Payload["position"]
		if !ok {
			continue
		}
		out = append(out, screenplay.ScoredPosition{
			Position: int(pos.GetIntegerValue()),
			Score:    float64(hit.Score),
		})
	}
	return out, nil
}
