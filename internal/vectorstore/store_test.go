package vectorstore

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ali-haidir/hybrid-rag/internal/models"
)

// fakeChroma is an in-memory stand-in for the Chroma REST API, implementing
// just the endpoints the store uses.
type fakeChroma struct {
	mu      sync.Mutex
	records map[string]record

	collectionCreates int
}

type record struct {
	document  string
	metadata  map[string]any
	embedding []float32
}

func newFakeChroma() *fakeChroma {
	return &fakeChroma{records: map[string]record{}}
}

func (f *fakeChroma) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"nanosecond heartbeat": 1})
	})

	mux.HandleFunc("POST /api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.collectionCreates++
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"name": "documents"})
	})

	mux.HandleFunc("POST /api/v1/collections/documents/upsert", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs        []string         `json:"ids"`
			Documents  []string         `json:"documents"`
			Embeddings [][]float32      `json:"embeddings"`
			Metadatas  []map[string]any `json:"metadatas"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		for i, id := range req.IDs {
			f.records[id] = record{
				document:  req.Documents[i],
				metadata:  req.Metadatas[i],
				embedding: req.Embeddings[i],
			}
		}
		f.mu.Unlock()
		json.NewEncoder(w).Encode(true)
	})

	mux.HandleFunc("POST /api/v1/collections/documents/get", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs   []string       `json:"ids"`
			Where map[string]any `json:"where"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		defer f.mu.Unlock()

		var ids []string
		if len(req.IDs) > 0 {
			for _, id := range req.IDs {
				if _, ok := f.records[id]; ok {
					ids = append(ids, id)
				}
			}
		} else {
			for id, rec := range f.records {
				match := true
				for k, v := range req.Where {
					if rec.metadata[k] != v {
						match = false
						break
					}
				}
				if match {
					ids = append(ids, id)
				}
			}
		}
		sort.Strings(ids)

		res := getResult{IDs: ids}
		for _, id := range ids {
			rec := f.records[id]
			res.Documents = append(res.Documents, rec.document)
			res.Metadatas = append(res.Metadatas, rec.metadata)
			res.Embeddings = append(res.Embeddings, rec.embedding)
		}
		json.NewEncoder(w).Encode(res)
	})

	mux.HandleFunc("POST /api/v1/collections/documents/query", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QueryEmbeddings [][]float32    `json:"query_embeddings"`
			NResults        int            `json:"n_results"`
			Where           map[string]any `json:"where"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		defer f.mu.Unlock()

		// Rank by the first embedding component as a stand-in distance.
		var ids []string
		for id, rec := range f.records {
			match := true
			for k, v := range req.Where {
				if rec.metadata[k] != v {
					match = false
					break
				}
			}
			if match {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(a, b int) bool {
			return f.records[ids[a]].embedding[0] < f.records[ids[b]].embedding[0]
		})
		if len(ids) > req.NResults {
			ids = ids[:req.NResults]
		}

		res := queryResult{
			IDs:       [][]string{ids},
			Documents: [][]string{{}},
			Metadatas: [][]map[string]any{{}},
			Distances: [][]float64{{}},
		}
		for _, id := range ids {
			rec := f.records[id]
			res.Documents[0] = append(res.Documents[0], rec.document)
			res.Metadatas[0] = append(res.Metadatas[0], rec.metadata)
			res.Distances[0] = append(res.Distances[0], float64(rec.embedding[0]))
		}
		json.NewEncoder(w).Encode(res)
	})

	return httptest.NewServer(mux)
}

func newTestStore(t *testing.T, f *fakeChroma) *Store {
	t.Helper()
	srv := f.server(t)
	t.Cleanup(srv.Close)
	return New(Config{URL: srv.URL, Collection: "documents"})
}

func TestUpsertAndGetByIDs(t *testing.T) {
	fake := newFakeChroma()
	store := newTestStore(t, fake)

	chunks := []models.Chunk{
		{DocumentID: "doc-1", ChunkID: 0, Text: "alpha", Page: 1, Source: "a.pdf", Tags: []string{"x", "y"}, Embedding: []float32{0.1}},
		{DocumentID: "doc-1", ChunkID: 1, Text: "beta", Page: 2, Source: "a.pdf", Embedding: []float32{0.2}},
	}
	require.NoError(t, store.Upsert(t.Context(), chunks))

	got, err := store.GetByIDs(t.Context(), []string{"doc-1::0", "doc-1::1", "doc-1::99"})
	require.NoError(t, err)
	require.Len(t, got, 2, "missing ids are omitted, not errors")

	assert.Equal(t, "doc-1", got[0].DocumentID)
	assert.Equal(t, 0, got[0].ChunkID)
	assert.Equal(t, "alpha", got[0].Text)
	assert.Equal(t, 1, got[0].Page)
	assert.Equal(t, "a.pdf", got[0].Source)
	assert.Equal(t, []string{"x", "y"}, got[0].Tags)
	assert.Equal(t, []float32{0.1}, got[0].Embedding, "embeddings come back for rescoring")
}

func TestUpsertIsIdempotent(t *testing.T) {
	fake := newFakeChroma()
	store := newTestStore(t, fake)

	ch := models.Chunk{DocumentID: "doc-1", ChunkID: 0, Text: "v1", Embedding: []float32{0.1}}
	require.NoError(t, store.Upsert(t.Context(), []models.Chunk{ch}))

	ch.Text = "v2"
	require.NoError(t, store.Upsert(t.Context(), []models.Chunk{ch}))

	got, err := store.GetByIDs(t.Context(), []string{"doc-1::0"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v2", got[0].Text)
}

func TestUpsertFlattensMetadata(t *testing.T) {
	fake := newFakeChroma()
	store := newTestStore(t, fake)

	chunks := []models.Chunk{
		{DocumentID: "doc-1", ChunkID: 0, Text: "no extras", Embedding: []float32{0.1}},
		{DocumentID: "doc-1", ChunkID: 1, Text: "tagged", Tags: []string{"faq", "golf"}, Embedding: []float32{0.2}},
	}
	require.NoError(t, store.Upsert(t.Context(), chunks))

	fake.mu.Lock()
	defer fake.mu.Unlock()

	bare := fake.records["doc-1::0"].metadata
	assert.NotContains(t, bare, "source", "empty fields are dropped")
	assert.NotContains(t, bare, "page")
	assert.NotContains(t, bare, "tags")
	assert.Equal(t, "doc-1", bare["document_id"])

	tagged := fake.records["doc-1::1"].metadata
	assert.Equal(t, "faq,golf", tagged["tags"], "tags are stored as one scalar string")
}

func TestQueryByVector(t *testing.T) {
	fake := newFakeChroma()
	store := newTestStore(t, fake)

	chunks := []models.Chunk{
		{DocumentID: "doc-1", ChunkID: 0, Text: "near", Embedding: []float32{0.1}},
		{DocumentID: "doc-1", ChunkID: 1, Text: "far", Embedding: []float32{0.9}},
		{DocumentID: "doc-2", ChunkID: 0, Text: "other doc", Embedding: []float32{0.2}},
	}
	require.NoError(t, store.Upsert(t.Context(), chunks))

	got, err := store.QueryByVector(t.Context(), []float32{0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "near", got[0].Text)
	assert.InDelta(t, 0.9, got[0].Cosine, 1e-9, "cosine is 1 minus distance")
	assert.Greater(t, got[0].Cosine, got[1].Cosine)
}

func TestQueryByVectorWhereFilter(t *testing.T) {
	fake := newFakeChroma()
	store := newTestStore(t, fake)

	chunks := []models.Chunk{
		{DocumentID: "doc-1", ChunkID: 0, Text: "wanted", Embedding: []float32{0.5}},
		{DocumentID: "doc-2", ChunkID: 0, Text: "filtered out", Embedding: []float32{0.1}},
	}
	require.NoError(t, store.Upsert(t.Context(), chunks))

	got, err := store.QueryByVector(t.Context(), []float32{0}, 10, map[string]any{"document_id": "doc-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "doc-1", got[0].DocumentID)
}

func TestGetWhere(t *testing.T) {
	fake := newFakeChroma()
	store := newTestStore(t, fake)

	chunks := []models.Chunk{
		{DocumentID: "doc-1", ChunkID: 0, Text: "a", Embedding: []float32{0.1}},
		{DocumentID: "doc-1", ChunkID: 1, Text: "b", Embedding: []float32{0.2}},
		{DocumentID: "doc-2", ChunkID: 0, Text: "c", Embedding: []float32{0.3}},
	}
	require.NoError(t, store.Upsert(t.Context(), chunks))

	got, err := store.GetWhere(t.Context(), map[string]any{"document_id": "doc-1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCollectionEnsuredOnce(t *testing.T) {
	fake := newFakeChroma()
	store := newTestStore(t, fake)

	require.NoError(t, store.Upsert(t.Context(), []models.Chunk{{DocumentID: "d", ChunkID: 0, Text: "x", Embedding: []float32{0.1}}}))
	_, err := store.GetByIDs(t.Context(), []string{"d::0"})
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.collectionCreates)
}

func TestHeartbeat(t *testing.T) {
	fake := newFakeChroma()
	store := newTestStore(t, fake)
	assert.NoError(t, store.Heartbeat(t.Context()))
}

func TestHeartbeatDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := New(Config{URL: srv.URL, Collection: "documents"})
	assert.Error(t, store.Heartbeat(t.Context()))
}

func TestUpsertServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := New(Config{URL: srv.URL, Collection: "documents"})
	err := store.Upsert(t.Context(), []models.Chunk{{DocumentID: "d", ChunkID: 0, Text: "x"}})
	assert.Error(t, err)
}
