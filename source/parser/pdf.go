package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hassan-khan-web/ScholarForge/source"
	"github.com/ledongthuc/pdf"
)

// PDFParser extracts the text layer of PDF documents.
type PDFParser struct {
	maxPages int
}

// NewPDFParser creates a PDF parser reading at most maxPages pages.
// Zero reads every page.
func NewPDFParser(maxPages int) *PDFParser {
	return &PDFParser{maxPages: maxPages}
}

// Parse parses a PDF document and extracts text content.
func (p *PDFParser) Parse(filename string, content []byte) (*source.Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	numPages := reader.NumPage()
	last := numPages
	if p.maxPages > 0 && last > p.maxPages {
		last = p.maxPages
	}

	var text strings.Builder
	for i := 1; i <= last; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		// Pages that fail to decode are skipped
		pageText, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(pageText) == "" {
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}

	extracted := strings.TrimSpace(text.String())
	if extracted == "" {
		// Scanned PDFs carry no text layer
		extracted = fmt.Sprintf("[PDF document with %d pages - no text content extracted]", numPages)
	}

	return &source.Document{
		ID:       generateID("pdf", filename, content),
		Filename: filepath.Base(filename),
		Content:  extracted,
		Pages:    last,
	}, nil
}

// CanParse returns true if this parser can handle the given MIME type.
func (p *PDFParser) CanParse(mimeType string) bool {
	return mimeType == "application/pdf"
}

// MimeType returns the primary MIME type for this parser.
func (p *PDFParser) MimeType() string {
	return "application/pdf"
}
