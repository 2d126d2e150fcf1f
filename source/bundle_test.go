package source

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundle_AppendContinuesRanks(t *testing.T) {
	b := NewBundle()

	first := b.Append(
		Record{Rank: 7, Title: "A", URL: "https://a.example"},
		Record{Title: "B", URL: "https://b.example"},
	)
	require.Len(t, first, 2)
	assert.Equal(t, 1, first[0].Rank)
	assert.Equal(t, 2, first[1].Rank)

	more := b.Append(Record{Title: "C", URL: "https://c.example"})
	assert.Equal(t, 3, more[0].Rank)

	records := b.Records()
	require.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestBundle_RecordsIsCopy(t *testing.T) {
	b := NewBundle()
	b.Append(Record{Title: "Original"})

	records := b.Records()
	records[0].Title = "Changed"

	assert.Equal(t, "Original", b.Records()[0].Title)
}

func TestBundle_MarkResearched(t *testing.T) {
	b := NewBundle()

	assert.True(t, b.MarkResearched("Introduction"))
	assert.False(t, b.MarkResearched("Introduction"))
	assert.True(t, b.MarkResearched("Analysis"))
}

func TestBundle_Render(t *testing.T) {
	t.Run("empty bundle shows marker", func(t *testing.T) {
		b := NewBundle()
		assert.Contains(t, b.Render(), InternalKnowledgeMarker)
	})

	t.Run("records", func(t *testing.T) {
		b := NewBundle()
		b.Append(
			Record{Title: "Solar Outlook", URL: "https://iea.example/solar", Snippet: "Capacity grew", Extract: "Full text"},
			Record{URL: "https://b.example", Snippet: "No title"},
		)
		out := b.Render()

		assert.True(t, strings.HasPrefix(out, "--- VERIFIED SOURCES ---\n"))
		assert.Contains(t, out, "SOURCE [1]\nTitle: Solar Outlook\nURL: https://iea.example/solar\nSummary: Capacity grew\nEXTRACT: Full text")
		assert.Contains(t, out, "SOURCE [2]\nTitle: Unknown Title")
		assert.NotContains(t, out, InternalKnowledgeMarker)
	})

	t.Run("documents follow sources", func(t *testing.T) {
		b := NewBundle()
		b.AddDocuments(Document{Filename: "notes.md", Content: "Internal memo"})
		out := b.Render()

		assert.Contains(t, out, InternalKnowledgeMarker)
		assert.Contains(t, out, "--- USER UPLOADED DOCUMENTS ---")
		assert.Contains(t, out, "[Document 1 Content]:\nInternal memo")
	})
}

func TestBundle_AddDocumentsCap(t *testing.T) {
	b := NewBundle()
	b.SetDocumentsCap(10)

	n := b.AddDocuments(
		Document{Filename: "a.txt", Content: "123456"},
		Document{Filename: "blank.txt", Content: "   "},
		Document{Filename: "b.txt", Content: "abcdef"},
		Document{Filename: "c.txt", Content: "never"},
	)

	assert.Equal(t, 2, n)
	docs := b.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "abcd", docs[1].Content)
	assert.True(t, docs[1].Truncated)
}

func TestBundle_ConcurrentAppend(t *testing.T) {
	b := NewBundle()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Append(Record{Title: fmt.Sprintf("r%d", i)})
		}(i)
	}
	wg.Wait()

	records := b.Records()
	require.Len(t, records, 20)
	for i, r := range records {
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"under limit", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"cut", "abcdef", 3, "abc"},
		{"no limit", "abcdef", 0, "abcdef"},
		{"rune boundary", "héllo", 2, "h"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.limit))
		})
	}
}
