// Package chunker splits per-page document text into fixed-size overlapping
// windows of whitespace tokens.
package chunker

import (
	"fmt"
	"strings"

	"github.com/ali-haidir/hybrid-rag/internal/models"
)

const (
	// DefaultChunkSize is the window size in whitespace tokens.
	DefaultChunkSize = 500
	// DefaultOverlap is the number of tokens shared with the previous chunk.
	DefaultOverlap = 50
)

// Page is one page of already-parsed text. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Chunker produces ordered chunks from per-page text.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a Chunker. overlap must be smaller than chunkSize, otherwise
// the window step would be zero or negative and chunking would never advance.
func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk size), got overlap=%d chunk_size=%d", overlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// SplitText splits one text into overlapping token windows.
func (c *Chunker) SplitText(text string) []string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(tokens); start = start + c.chunkSize - c.overlap {
		end := start + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, strings.Join(tokens[start:end], " "))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// ChunkPages chunks every page in reading order and assigns chunk ids
// contiguously from 0 across the whole document. Pages that yield no tokens
// contribute no chunks but do not break the numbering.
func (c *Chunker) ChunkPages(documentID, source string, tags []string, pages []Page) []models.Chunk {
	var out []models.Chunk
	for _, p := range pages {
		for _, text := range c.SplitText(p.Text) {
			out = append(out, models.Chunk{
				DocumentID: documentID,
				ChunkID:    len(out),
				Text:       text,
				Page:       p.Number,
				Source:     source,
				Tags:       tags,
			})
		}
	}
	return out
}
