// Package source holds the evidence a research run gathers: ranked web
// records and the text of user-uploaded documents.
package source

import (
	"strings"
	"unicode/utf8"
)

// Record is one search result, optionally enriched with page text.
type Record struct {
	// Rank is the 1-based position within the run's evidence.
	Rank int `json:"rank"`

	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`

	// Extract is the cleaned page text, bounded by the fetcher. Empty when
	// the page could not be fetched.
	Extract string `json:"extract,omitempty"`
}

// Document is a user-supplied file. Data carries the raw upload; Content is
// filled by the parser.
type Document struct {
	// ID is derived from the file name and content hash.
	ID string `json:"id"`

	// Filename is the original filename.
	Filename string `json:"filename"`

	// MimeType is the detected content type.
	MimeType string `json:"mime_type,omitempty"`

	// Data is the uploaded bytes.
	Data []byte `json:"-"`

	// Content is the extracted plain text.
	Content string `json:"content"`

	// Pages is the number of pages read, for paged formats.
	Pages int `json:"pages,omitempty"`

	// Frontmatter contains parsed YAML frontmatter if present.
	Frontmatter map[string]any `json:"frontmatter,omitempty"`

	// Truncated is set when Content was cut to the per-document cap.
	Truncated bool `json:"truncated,omitempty"`
}

// HasFrontmatter returns true if the document has parsed frontmatter.
func (d *Document) HasFrontmatter() bool {
	return len(d.Frontmatter) > 0
}

// Title returns the frontmatter title, falling back to the filename.
func (d *Document) Title() string {
	if t, ok := d.Frontmatter["title"].(string); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	return d.Filename
}

// Truncate cuts s to at most limit bytes without splitting a UTF-8 rune.
// A limit <= 0 returns s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
