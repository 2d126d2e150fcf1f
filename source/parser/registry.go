// Package parser extracts plain text from user-uploaded documents.
package parser

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hassan-khan-web/ScholarForge/source"
)

// Parser defines the interface for document parsers.
type Parser interface {
	// Parse parses a document and returns its text.
	Parse(filename string, content []byte) (*source.Document, error)

	// CanParse returns true if this parser handles the given MIME type.
	CanParse(mimeType string) bool

	// MimeType returns the primary MIME type for this parser.
	MimeType() string
}

// Limits bounds what is read from each upload.
type Limits struct {
	// MaxPDFPages is the number of PDF pages read per document.
	MaxPDFPages int `json:"max_pdf_pages" yaml:"max_pdf_pages"`

	// MaxPDFChars caps the text kept from one PDF.
	MaxPDFChars int `json:"max_pdf_chars" yaml:"max_pdf_chars"`

	// MaxTextChars caps the text kept from any other document.
	MaxTextChars int `json:"max_text_chars" yaml:"max_text_chars"`
}

// DefaultLimits returns the upload limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxPDFPages:  25,
		MaxPDFChars:  15000,
		MaxTextChars: 20000,
	}
}

// UnsupportedError is returned for files no parser can read.
type UnsupportedError struct {
	Filename string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Filename)
}

// Registry manages document parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser // keyed by primary MIME type
	limits  Limits
}

// NewRegistry creates a parser registry with the default parsers.
func NewRegistry(limits Limits) *Registry {
	r := &Registry{
		parsers: make(map[string]Parser),
		limits:  limits,
	}

	r.Register(NewMarkdownParser())
	r.Register(NewPDFParser(limits.MaxPDFPages))
	r.Register(NewHTMLParser())

	return r
}

// Register adds a parser to the registry.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[p.MimeType()] = p
}

// GetByMimeType returns a parser for the given MIME type.
func (r *Registry) GetByMimeType(mimeType string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.parsers[mimeType]; ok {
		return p
	}

	// Deterministic order for CanParse fallback
	keys := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if r.parsers[k].CanParse(mimeType) {
			return r.parsers[k]
		}
	}

	return nil
}

// GetByExtension returns a parser for a file based on its extension.
func (r *Registry) GetByExtension(filename string) Parser {
	return r.GetByMimeType(MimeTypeFromExtension(filepath.Ext(filename)))
}

// Parse parses content using the parser for the file's extension and
// applies the per-document text cap.
func (r *Registry) Parse(filename string, content []byte) (*source.Document, error) {
	mimeType := MimeTypeFromExtension(filepath.Ext(filename))
	if mimeType == "application/octet-stream" && bytes.HasPrefix(content, []byte("%PDF-")) {
		mimeType = "application/pdf"
	}

	p := r.GetByMimeType(mimeType)
	if p == nil {
		return nil, &UnsupportedError{Filename: filepath.Base(filename)}
	}

	doc, err := p.Parse(filename, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(filename), err)
	}
	doc.MimeType = p.MimeType()

	limit := r.limits.MaxTextChars
	if doc.MimeType == "application/pdf" {
		limit = r.limits.MaxPDFChars
	}
	if trimmed := source.Truncate(doc.Content, limit); len(trimmed) < len(doc.Content) {
		doc.Content = trimmed
		doc.Truncated = true
	}
	return doc, nil
}

// ParseDocument parses an uploaded document in place of its raw bytes.
func (r *Registry) ParseDocument(doc source.Document) (source.Document, error) {
	parsed, err := r.Parse(doc.Filename, doc.Data)
	if err != nil {
		return source.Document{}, err
	}
	return *parsed, nil
}

// ListMimeTypes returns all registered MIME types, sorted.
func (r *Registry) ListMimeTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.parsers))
	for t := range r.parsers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// MimeTypeFromExtension returns the MIME type for a file extension.
func MimeTypeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt", ".text":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// generateID creates a stable document ID from filename and content hash.
func generateID(kind, filename string, content []byte) string {
	base := filepath.Base(filename)
	name := sanitizeID(strings.TrimSuffix(base, filepath.Ext(base)))

	hash := sha256.Sum256(content)
	return fmt.Sprintf("doc.%s.%s.%s", kind, name, hex.EncodeToString(hash[:])[:12])
}

// sanitizeID makes a string safe for use as an identifier.
func sanitizeID(s string) string {
	var buf bytes.Buffer
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			buf.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			buf.WriteRune('-')
		}
	}
	return buf.String()
}
