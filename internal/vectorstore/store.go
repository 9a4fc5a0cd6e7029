package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ali-haidir/hybrid-rag/internal/models"
)

// ScoredChunk is a chunk returned from a similarity query together with its
// cosine similarity to the query vector.
type ScoredChunk struct {
	models.Chunk
	Cosine float64
}

// getResult is Chroma's flat response shape for get.
type getResult struct {
	IDs        []string         `json:"ids"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
	Embeddings [][]float32      `json:"embeddings"`
}

// queryResult is Chroma's nested response shape for query: the outer slice is
// one entry per query embedding.
type queryResult struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

// Upsert writes chunks under their deterministic ids, replacing any previous
// version of the same chunk. Metadata is flattened to scalars: tags become a
// comma joined string and empty fields are dropped.
func (s *Store) Upsert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	documents := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	metadatas := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		ids[i] = models.VectorID(ch.DocumentID, ch.ChunkID)
		documents[i] = ch.Text
		embeddings[i] = ch.Embedding
		metadatas[i] = chunkMetadata(ch)
	}

	body := map[string]any{
		"ids":        ids,
		"documents":  documents,
		"embeddings": embeddings,
		"metadatas":  metadatas,
	}
	if err := s.doCollectionOp(ctx, "upsert", body, nil); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"chunks":     len(chunks),
		"collection": s.collection,
	}).Info("upserted chunks")
	return nil
}

// GetByIDs fetches chunks by their vector ids, embeddings included. Ids not
// present in the collection are omitted from the result, in particular
// neighbor ids past either end of a document.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]models.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	body := map[string]any{
		"ids":     ids,
		"include": []string{"documents", "metadatas", "embeddings"},
	}
	var res getResult
	if err := s.doCollectionOp(ctx, "get", body, &res); err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, 0, len(res.IDs))
	for i, id := range res.IDs {
		ch, err := chunkFromRecord(id, stringAt(res.Documents, i), metaAt(res.Metadatas, i))
		if err != nil {
			return nil, err
		}
		if i < len(res.Embeddings) {
			ch.Embedding = res.Embeddings[i]
		}
		chunks = append(chunks, ch)
	}
	return chunks, nil
}

// GetWhere fetches every chunk whose metadata matches the filter, for example
// {"document_id": "doc-1"}.
func (s *Store) GetWhere(ctx context.Context, where map[string]any) ([]models.Chunk, error) {
	body := map[string]any{
		"where":   where,
		"include": []string{"documents", "metadatas"},
	}
	var res getResult
	if err := s.doCollectionOp(ctx, "get", body, &res); err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, 0, len(res.IDs))
	for i, id := range res.IDs {
		ch, err := chunkFromRecord(id, stringAt(res.Documents, i), metaAt(res.Metadatas, i))
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, nil
}

// QueryByVector runs a similarity query and returns the nearest chunks with
// cosine similarity, best first. A nil where queries the whole collection.
func (s *Store) QueryByVector(ctx context.Context, vector []float32, topK int, where map[string]any) ([]ScoredChunk, error) {
	if topK <= 0 {
		return nil, nil
	}

	body := map[string]any{
		"query_embeddings": [][]float32{vector},
		"n_results":        topK,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if len(where) > 0 {
		body["where"] = where
	}

	var res queryResult
	if err := s.doCollectionOp(ctx, "query", body, &res); err != nil {
		return nil, err
	}
	if len(res.IDs) == 0 {
		return nil, nil
	}

	ids := res.IDs[0]
	out := make([]ScoredChunk, 0, len(ids))
	for i, id := range ids {
		var doc string
		if len(res.Documents) > 0 {
			doc = stringAt(res.Documents[0], i)
		}
		var meta map[string]any
		if len(res.Metadatas) > 0 {
			meta = metaAt(res.Metadatas[0], i)
		}
		ch, err := chunkFromRecord(id, doc, meta)
		if err != nil {
			return nil, err
		}

		// Chroma reports cosine distance for a cosine space.
		var cosine float64
		if len(res.Distances) > 0 && i < len(res.Distances[0]) {
			cosine = 1 - res.Distances[0][i]
		}
		out = append(out, ScoredChunk{Chunk: ch, Cosine: cosine})
	}
	return out, nil
}

// chunkMetadata flattens a chunk into Chroma-safe scalar metadata.
func chunkMetadata(ch models.Chunk) map[string]any {
	meta := map[string]any{
		"document_id": ch.DocumentID,
		"chunk_id":    ch.ChunkID,
	}
	if ch.Source != "" {
		meta["source"] = ch.Source
	}
	if ch.Page > 0 {
		meta["page"] = ch.Page
	}
	if len(ch.Tags) > 0 {
		meta["tags"] = strings.Join(ch.Tags, ",")
	}
	return meta
}

// chunkFromRecord rebuilds a chunk from a stored record. The id is
// authoritative for document_id and chunk_id; metadata fills in the rest.
func chunkFromRecord(id, document string, meta map[string]any) (models.Chunk, error) {
	documentID, chunkID, err := models.SplitVectorID(id)
	if err != nil {
		return models.Chunk{}, fmt.Errorf("unexpected record id %q: %w", id, err)
	}

	ch := models.Chunk{
		DocumentID: documentID,
		ChunkID:    chunkID,
		Text:       document,
	}
	if meta == nil {
		return ch, nil
	}
	if v, ok := meta["source"].(string); ok {
		ch.Source = v
	}
	if v, ok := meta["page"].(float64); ok {
		ch.Page = int(v)
	}
	if v, ok := meta["tags"].(string); ok && v != "" {
		ch.Tags = strings.Split(v, ",")
	}
	return ch, nil
}

func stringAt(xs []string, i int) string {
	if i < len(xs) {
		return xs[i]
	}
	return ""
}

func metaAt(xs []map[string]any, i int) map[string]any {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}
