package parser

import (
	"path/filepath"

	"github.com/hassan-khan-web/ScholarForge/source"
	"github.com/hassan-khan-web/ScholarForge/source/htmltext"
)

// HTMLParser converts saved web pages to markdown text.
type HTMLParser struct {
	converter *htmltext.Converter
}

// NewHTMLParser creates a new HTML parser.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{converter: htmltext.NewConverter()}
}

// Parse converts the page body to markdown.
func (p *HTMLParser) Parse(filename string, content []byte) (*source.Document, error) {
	res, err := p.converter.Convert(content)
	if err != nil {
		return nil, err
	}

	doc := &source.Document{
		ID:       generateID("html", filename, content),
		Filename: filepath.Base(filename),
		Content:  res.Markdown,
	}
	if res.Title != "" {
		doc.Frontmatter = map[string]any{"title": res.Title}
	}
	return doc, nil
}

// CanParse returns true if this parser can handle the given MIME type.
func (p *HTMLParser) CanParse(mimeType string) bool {
	return mimeType == "text/html" || mimeType == "application/xhtml+xml"
}

// MimeType returns the primary MIME type for this parser.
func (p *HTMLParser) MimeType() string {
	return "text/html"
}
