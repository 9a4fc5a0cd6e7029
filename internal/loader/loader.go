// Package loader extracts per-page text from uploaded documents.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ali-haidir/hybrid-rag/internal/chunker"
)

// LoadPages reads the file at path and returns its text page by page.
// PDF files are split on their real page boundaries; anything else is treated
// as plain text and becomes a single page 1.
func LoadPages(path, filename string) ([]chunker.Page, error) {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return loadPDF(path)
	}
	return loadText(path)
}

func loadPDF(path string) ([]chunker.Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var pages []chunker.Page
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			// skip pages we cannot decode instead of failing the document
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		pages = append(pages, chunker.Page{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no readable text found in PDF")
	}
	return pages, nil
}

func loadText(path string) ([]chunker.Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, fmt.Errorf("no readable text found in file")
	}
	return []chunker.Page{{Number: 1, Text: text}}, nil
}
