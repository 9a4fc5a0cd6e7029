// Package retrieval implements hybrid retrieval: BM25 candidates rescored
// against the query embedding, fused scores, center selection, and neighbor
// expansion into a bounded context window.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/ali-haidir/hybrid-rag/internal/config"
	"github.com/ali-haidir/hybrid-rag/internal/models"
	"github.com/ali-haidir/hybrid-rag/internal/vectorstore"
)

// DefaultTopK applies when a query does not ask for a specific number of
// sources.
const DefaultTopK = 5

// VectorStore is the slice of the vector store the engine needs.
type VectorStore interface {
	QueryByVector(ctx context.Context, vector []float32, topK int, where map[string]any) ([]vectorstore.ScoredChunk, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Chunk, error)
}

// Embedder embeds query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// BM25Searcher returns lexical hits, or nil when the lexical side is
// unavailable.
type BM25Searcher interface {
	SearchBM25(ctx context.Context, req models.SearchRequest) []models.SearchHit
}

// RankedChunk is one chunk in the final evidence ordering.
type RankedChunk struct {
	models.Chunk
	Score              float64
	DistanceFromCenter int
}

// Engine runs the retrieval pipeline.
type Engine struct {
	vectors  VectorStore
	bm25     BM25Searcher
	embedder Embedder
	cfg      config.HybridConfig
	logger   *logrus.Logger
}

// NewEngine wires the retrieval pipeline.
func NewEngine(vectors VectorStore, bm25 BM25Searcher, embedder Embedder, cfg config.HybridConfig, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{vectors: vectors, bm25: bm25, embedder: embedder, cfg: cfg, logger: logger}
}

// Retrieve returns the evidence chunks for a question, best first.
//
// With a documentID the search is restricted to that document and ranked by
// vector similarity alone. Otherwise BM25 proposes candidates which are
// rescored against the query embedding; when BM25 has nothing, pure vector
// search over the whole corpus is the fallback.
func (e *Engine) Retrieve(ctx context.Context, question string, topK int, documentID string) ([]RankedChunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	if documentID != "" {
		vec, err := e.embedder.EmbedQuery(ctx, question)
		if err != nil {
			return nil, fmt.Errorf("failed to embed question: %w", err)
		}
		scored, err := e.vectors.QueryByVector(ctx, vec, topK, map[string]any{"document_id": documentID})
		if err != nil {
			return nil, err
		}
		return rankedFromScored(scored), nil
	}

	// The embedding call and the BM25 lookup are independent.
	var (
		wg       sync.WaitGroup
		vec      []float32
		embedErr error
		hits     []models.SearchHit
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		vec, embedErr = e.embedder.EmbedQuery(ctx, question)
	}()
	go func() {
		defer wg.Done()
		hits = e.bm25.SearchBM25(ctx, models.SearchRequest{Query: question, TopK: e.cfg.BM25Chunks})
	}()
	wg.Wait()

	if embedErr != nil {
		return nil, fmt.Errorf("failed to embed question: %w", embedErr)
	}

	cands, err := e.rescoreCandidates(ctx, vec, hits)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		scored, err := e.vectors.QueryByVector(ctx, vec, topK, nil)
		if err != nil {
			return nil, err
		}
		e.logger.WithField("question_length", len(question)).Debug("no bm25 candidates, vector fallback")
		return rankedFromScored(scored), nil
	}

	centers := e.selectCenters(cands)
	ranked, err := e.expandNeighbors(ctx, centers)
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"bm25_hits":  len(hits),
		"candidates": len(cands),
		"centers":    len(centers),
		"chunks":     len(ranked),
	}).Debug("hybrid retrieval")

	return ranked, nil
}

// candidate is a BM25 hit that also exists in the vector store.
type candidate struct {
	chunk    models.Chunk
	cosine   float64
	bm25     float64
	fused    float64
	bm25Rank int
}

// rescoreCandidates fetches the stored vectors for the BM25 hits and fuses
// lexical and semantic scores. Hits the vector store no longer holds are
// dropped: the vector store is authoritative.
func (e *Engine) rescoreCandidates(ctx context.Context, vec []float32, hits []models.SearchHit) ([]candidate, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = models.VectorID(h.DocumentID, h.ChunkID)
	}
	stored, err := e.vectors.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Chunk, len(stored))
	for _, ch := range stored {
		byID[models.VectorID(ch.DocumentID, ch.ChunkID)] = ch
	}

	cands := make([]candidate, 0, len(hits))
	for rank, h := range hits {
		ch, ok := byID[models.VectorID(h.DocumentID, h.ChunkID)]
		if !ok || len(ch.Embedding) == 0 {
			continue
		}
		cands = append(cands, candidate{
			chunk:    ch,
			cosine:   cosineSimilarity(vec, ch.Embedding),
			bm25:     h.Score,
			bm25Rank: rank,
		})
	}
	if len(cands) == 0 {
		return nil, nil
	}

	cos := make([]float64, len(cands))
	lex := make([]float64, len(cands))
	for i, c := range cands {
		cos[i] = c.cosine
		lex[i] = c.bm25
	}
	cosNorm := minMaxNormalize(cos)
	lexNorm := minMaxNormalize(lex)

	alpha := e.cfg.FusionAlpha
	for i := range cands {
		cands[i].fused = alpha*cosNorm[i] + (1-alpha)*lexNorm[i]
	}

	sort.SliceStable(cands, func(a, b int) bool {
		if cands[a].fused != cands[b].fused {
			return cands[a].fused > cands[b].fused
		}
		return lessByIdentity(cands[a].chunk, cands[b].chunk)
	})
	return cands, nil
}

// selectCenters picks the expansion centers: candidates whose fused score is
// within the relative threshold of the best one, capped at CenterK. The
// BM25 rank 1 hit always stays a center; when it would not make the cut it
// replaces the weakest selected center.
func (e *Engine) selectCenters(cands []candidate) []candidate {
	threshold := cands[0].fused * e.cfg.CenterRelThreshold

	centers := make([]candidate, 0, e.cfg.CenterK)
	for _, c := range cands {
		if len(centers) == e.cfg.CenterK {
			break
		}
		if c.fused < threshold {
			break
		}
		centers = append(centers, c)
	}

	for _, c := range cands {
		if c.bm25Rank != 0 {
			continue
		}
		for _, kept := range centers {
			if kept.chunk.DocumentID == c.chunk.DocumentID && kept.chunk.ChunkID == c.chunk.ChunkID {
				return centers
			}
		}
		if len(centers) < e.cfg.CenterK {
			centers = append(centers, c)
		} else {
			centers[len(centers)-1] = c
		}
		break
	}
	return centers
}

// neighborRef tracks the best way a chunk entered the expansion: the smallest
// distance to any center, and the best score at that distance.
type neighborRef struct {
	score    float64
	distance int
}

// expandNeighbors pulls the +/-window neighbors of every center and ranks the
// union by evidence score. Neighbor ids that fall outside a document are
// simply absent from the store and drop out.
func (e *Engine) expandNeighbors(ctx context.Context, centers []candidate) ([]RankedChunk, error) {
	want := map[string]neighborRef{}
	for _, c := range centers {
		for off := -e.cfg.NeighborWindow; off <= e.cfg.NeighborWindow; off++ {
			chunkID := c.chunk.ChunkID + off
			if chunkID < 0 {
				continue
			}
			dist := off
			if dist < 0 {
				dist = -dist
			}
			score := c.fused - float64(dist)*e.cfg.DistancePenalty
			id := models.VectorID(c.chunk.DocumentID, chunkID)
			prev, seen := want[id]
			if !seen || dist < prev.distance || (dist == prev.distance && score > prev.score) {
				want[id] = neighborRef{score: score, distance: dist}
			}
		}
	}

	ids := make([]string, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fetched, err := e.vectors.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedChunk, 0, len(fetched))
	for _, ch := range fetched {
		ref := want[models.VectorID(ch.DocumentID, ch.ChunkID)]
		ch.Embedding = nil
		ranked = append(ranked, RankedChunk{Chunk: ch, Score: ref.score, DistanceFromCenter: ref.distance})
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].Score != ranked[b].Score {
			return ranked[a].Score > ranked[b].Score
		}
		return lessByIdentity(ranked[a].Chunk, ranked[b].Chunk)
	})

	if len(ranked) > e.cfg.MaxContextChunks {
		ranked = ranked[:e.cfg.MaxContextChunks]
	}
	return ranked, nil
}

// BuildContext renders ranked chunks into the prompt context, stopping at the
// first chunk that would push the text past maxChars. It returns the context
// and how many chunks made it in.
func BuildContext(chunks []RankedChunk, maxChars int) (string, int) {
	var (
		out   []byte
		used  int
		total int
	)
	for _, ch := range chunks {
		block := fmt.Sprintf("[Chunk %d]\n%s\n", used+1, ch.Text)
		sep := 0
		if used > 0 {
			sep = 1
		}
		if total+sep+len(block) > maxChars {
			break
		}
		if used > 0 {
			out = append(out, '\n')
		}
		out = append(out, block...)
		total += sep + len(block)
		used++
	}
	return string(out), used
}

// Sources converts the top ranked chunks into citations, at most topK.
func Sources(chunks []RankedChunk, topK int) []models.Source {
	if topK > len(chunks) {
		topK = len(chunks)
	}
	sources := make([]models.Source, 0, topK)
	for _, ch := range chunks[:topK] {
		sources = append(sources, models.Source{
			DocumentID: ch.DocumentID,
			ChunkID:    strconv.Itoa(ch.ChunkID),
			Source:     ch.Source,
			Page:       ch.Page,
			Snippet:    snippet(ch.Text, 200),
		})
	}
	return sources
}

// snippet returns the first n characters of s, never splitting a rune.
func snippet(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func rankedFromScored(scored []vectorstore.ScoredChunk) []RankedChunk {
	ranked := make([]RankedChunk, 0, len(scored))
	for _, s := range scored {
		ch := s.Chunk
		ch.Embedding = nil
		ranked = append(ranked, RankedChunk{Chunk: ch, Score: s.Cosine})
	}
	return ranked
}

func lessByIdentity(a, b models.Chunk) bool {
	if a.DocumentID != b.DocumentID {
		return a.DocumentID < b.DocumentID
	}
	return a.ChunkID < b.ChunkID
}

// minMaxNormalize maps scores to [0, 1]. A degenerate range normalizes to 1
// so a single candidate keeps full weight on both signals.
func minMaxNormalize(xs []float64) []float64 {
	if len(xs) == 0 {
		return nil
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	out := make([]float64, len(xs))
	if hi == lo {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	for i, x := range xs {
		out[i] = (x - lo) / (hi - lo)
	}
	return out
}

// cosineSimilarity computes the cosine between two vectors, 0 when either is
// zero length or all zeros.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
