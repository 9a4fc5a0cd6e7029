package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ali-haidir/hybrid-rag/internal/models"
)

type mockLexicalStore struct {
	searchResp models.SearchResponse
	searchErr  error
	indexResp  models.IndexResponse
	indexErr   error
	info       map[string]any
	infoErr    error

	lastSearch models.SearchRequest
	lastChunk  models.Chunk
}

func (m *mockLexicalStore) Search(_ context.Context, req models.SearchRequest) (models.SearchResponse, error) {
	m.lastSearch = req
	return m.searchResp, m.searchErr
}

func (m *mockLexicalStore) Index(_ context.Context, ch models.Chunk) (models.IndexResponse, error) {
	m.lastChunk = ch
	return m.indexResp, m.indexErr
}

func (m *mockLexicalStore) Info(context.Context) (map[string]any, error) {
	return m.info, m.infoErr
}

func postJSON(t *testing.T, store *mockLexicalStore, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewSearchRouter(store, testLogger())

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSearchEndpoint(t *testing.T) {
	store := &mockLexicalStore{searchResp: models.SearchResponse{
		Hits:  []models.SearchHit{{DocumentID: "doc-1", ChunkID: 2, Text: "hit", Score: 3.3}},
		Total: 1,
	}}

	rec := postJSON(t, store, "/search", `{"query": "wind", "top_k": 5, "document_ids": ["doc-1"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, 1, resp.Total)

	assert.Equal(t, "wind", store.lastSearch.Query)
	assert.Equal(t, []string{"doc-1"}, store.lastSearch.DocumentIDs)
}

func TestSearchEndpointEmptyResultIsArray(t *testing.T) {
	rec := postJSON(t, &mockLexicalStore{}, "/search", `{"query": "nothing"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hits":[]`)
}

func TestSearchEndpointValidation(t *testing.T) {
	rec := postJSON(t, &mockLexicalStore{}, "/search", `{"query": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpointStoreError(t *testing.T) {
	store := &mockLexicalStore{searchErr: errors.New("index gone")}
	rec := postJSON(t, store, "/search", `{"query": "wind"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "index gone")
}

func TestIndexEndpoint(t *testing.T) {
	store := &mockLexicalStore{indexResp: models.IndexResponse{Index: "docs_bm25", ID: "doc-1::0", Result: "created"}}

	rec := postJSON(t, store, "/index",
		`{"document_id": "doc-1", "chunk_id": 0, "text": "body", "page": 2, "tags": ["a"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "doc-1", store.lastChunk.DocumentID)
	assert.Equal(t, 2, store.lastChunk.Page)
	assert.Equal(t, []string{"a"}, store.lastChunk.Tags)
	assert.Contains(t, rec.Body.String(), `"result":"created"`)
}

func TestIndexEndpointValidation(t *testing.T) {
	rec := postJSON(t, &mockLexicalStore{}, "/index", `{"chunk_id": 0, "text": "body"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "document_id is required")
}

func TestSearchHealth(t *testing.T) {
	store := &mockLexicalStore{info: map[string]any{"cluster_name": "os-test"}}
	router := NewSearchRouter(store, testLogger())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "os-test")
}

func TestSearchHealthDegraded(t *testing.T) {
	store := &mockLexicalStore{infoErr: errors.New("connection refused")}
	router := NewSearchRouter(store, testLogger())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}
