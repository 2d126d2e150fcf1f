package search

import (
	"github.com/hassan-khan-web/ScholarForge/source"
	"github.com/hassan-khan-web/ScholarForge/source/htmltext"
)

// DefaultExtractCap bounds the text kept from one page.
const DefaultExtractCap = 5000

// Extractor turns an HTML page into bounded Markdown text.
type Extractor struct {
	converter *htmltext.Converter
	cap       int
}

// NewExtractor creates an extractor keeping at most limit bytes.
func NewExtractor(limit int) *Extractor {
	if limit <= 0 {
		limit = DefaultExtractCap
	}
	return &Extractor{converter: htmltext.NewConverter(), cap: limit}
}

// Extract returns the page's main text, or "" when nothing readable is found.
func (e *Extractor) Extract(page []byte) string {
	res, err := e.converter.Convert(page)
	if err != nil {
		return ""
	}
	return source.Truncate(res.Markdown, e.cap)
}
