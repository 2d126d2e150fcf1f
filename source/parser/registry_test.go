package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/hassan-khan-web/ScholarForge/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetByMimeType(t *testing.T) {
	r := NewRegistry(DefaultLimits())

	tests := []struct {
		mimeType string
		want     string
	}{
		{"text/markdown", "text/markdown"},
		{"text/x-markdown", "text/markdown"},
		{"text/plain", "text/markdown"},
		{"application/pdf", "application/pdf"},
		{"text/html", "text/html"},
		{"application/xhtml+xml", "text/html"},
	}
	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			p := r.GetByMimeType(tt.mimeType)
			require.NotNil(t, p)
			assert.Equal(t, tt.want, p.MimeType())
		})
	}

	assert.Nil(t, r.GetByMimeType("application/octet-stream"))
}

func TestRegistry_GetByExtension(t *testing.T) {
	r := NewRegistry(DefaultLimits())

	tests := []struct {
		filename string
		wantNil  bool
	}{
		{"test.md", false},
		{"test.markdown", false},
		{"test.txt", false},
		{"test.pdf", false},
		{"page.html", false},
		{"test.docx", true},
		{"noextension", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			p := r.GetByExtension(tt.filename)
			if tt.wantNil {
				assert.Nil(t, p)
			} else {
				assert.NotNil(t, p)
			}
		})
	}
}

func TestRegistry_Parse(t *testing.T) {
	r := NewRegistry(Limits{MaxPDFPages: 25, MaxPDFChars: 10, MaxTextChars: 20})

	t.Run("markdown", func(t *testing.T) {
		doc, err := r.Parse("test.md", []byte("# Hello"))
		require.NoError(t, err)
		assert.Equal(t, "test.md", doc.Filename)
		assert.Equal(t, "text/markdown", doc.MimeType)
		assert.Equal(t, "# Hello", doc.Content)
		assert.False(t, doc.Truncated)
	})

	t.Run("text cap applied", func(t *testing.T) {
		doc, err := r.Parse("long.txt", []byte(strings.Repeat("a", 50)))
		require.NoError(t, err)
		assert.Len(t, doc.Content, 20)
		assert.True(t, doc.Truncated)
	})

	t.Run("html converted", func(t *testing.T) {
		doc, err := r.Parse("saved.html", []byte("<html><head><title>Saved</title></head><body><p>Kept</p></body></html>"))
		require.NoError(t, err)
		assert.Equal(t, "Kept", doc.Content)
		assert.Equal(t, "Saved", doc.Title())
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := r.Parse("report.docx", []byte("PK"))
		var unsupported *UnsupportedError
		require.True(t, errors.As(err, &unsupported))
		assert.Equal(t, "report.docx", unsupported.Filename)
	})

	t.Run("pdf sniffed without extension", func(t *testing.T) {
		_, err := r.Parse("upload", []byte("%PDF-1.4 truncated"))
		require.Error(t, err)
		var unsupported *UnsupportedError
		assert.False(t, errors.As(err, &unsupported), "should reach the PDF parser")
	})
}

func TestRegistry_ParseDocument(t *testing.T) {
	r := NewRegistry(DefaultLimits())

	doc, err := r.ParseDocument(source.Document{Filename: "brief.txt", Data: []byte("Scope: EU market")})
	require.NoError(t, err)
	assert.Equal(t, "Scope: EU market", doc.Content)
	assert.Nil(t, doc.Data)
}

func TestRegistry_ListMimeTypes(t *testing.T) {
	r := NewRegistry(DefaultLimits())
	assert.Equal(t, []string{"application/pdf", "text/html", "text/markdown"}, r.ListMimeTypes())
}

func TestMimeTypeFromExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".md", "text/markdown"},
		{".markdown", "text/markdown"},
		{".MD", "text/markdown"},
		{".txt", "text/plain"},
		{".html", "text/html"},
		{".htm", "text/html"},
		{".pdf", "application/pdf"},
		{".unknown", "application/octet-stream"},
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, MimeTypeFromExtension(tt.ext))
		})
	}
}
