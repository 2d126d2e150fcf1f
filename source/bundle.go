package source

import (
	"fmt"
	"strings"
	"sync"
)

// InternalKnowledgeMarker stands in for web evidence when search was skipped.
const InternalKnowledgeMarker = "[Internal Knowledge & User Documents Mode Active - Web Search Skipped]"

// DefaultDocumentsCap bounds the combined text of all user documents.
const DefaultDocumentsCap = 60000

// Bundle is the evidence of one run. Records are append-only and ranks
// continue across appends, so citations stay stable once written.
type Bundle struct {
	mu                sync.Mutex
	records           []Record
	documents         []Document
	documentsCap      int
	documentsLen      int
	internalKnowledge bool
	researched        map[string]bool
}

// NewBundle creates an empty bundle.
func NewBundle() *Bundle {
	return &Bundle{
		documentsCap: DefaultDocumentsCap,
		researched:   make(map[string]bool),
	}
}

// SetDocumentsCap changes the aggregate document cap. Zero disables it.
func (b *Bundle) SetDocumentsCap(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.documentsCap = n
}

// Append adds records after the existing ones, renumbering their ranks to
// continue the sequence. It returns the records as stored.
func (b *Bundle) Append(records ...Record) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	added := make([]Record, 0, len(records))
	for _, r := range records {
		r.Rank = len(b.records) + 1
		b.records = append(b.records, r)
		added = append(added, r)
	}
	return added
}

// Records returns a copy of the stored records in rank order.
func (b *Bundle) Records() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// Len returns the number of records.
func (b *Bundle) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// AddDocuments stores parsed user documents. Text beyond the aggregate cap
// is dropped; a document that no longer fits at all is skipped.
func (b *Bundle) AddDocuments(docs ...Document) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	added := 0
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		if b.documentsCap > 0 {
			room := b.documentsCap - b.documentsLen
			if room <= 0 {
				break
			}
			if len(d.Content) > room {
				d.Content = Truncate(d.Content, room)
				d.Truncated = true
			}
		}
		d.Data = nil
		b.documents = append(b.documents, d)
		b.documentsLen += len(d.Content)
		added++
	}
	return added
}

// Documents returns a copy of the stored user documents.
func (b *Bundle) Documents() []Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Document, len(b.documents))
	copy(out, b.documents)
	return out
}

// SetInternalKnowledge records that web search was skipped.
func (b *Bundle) SetInternalKnowledge(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.internalKnowledge = v
}

// InternalKnowledge reports whether the run relies on model knowledge and
// user documents only. Citation markers must not be used in that mode.
func (b *Bundle) InternalKnowledge() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.internalKnowledge
}

// MarkResearched records that key had its extra research round. It returns
// false when the key was already marked.
func (b *Bundle) MarkResearched(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.researched[key] {
		return false
	}
	b.researched[key] = true
	return true
}

// Render formats the evidence for prompts: web sources first, then user
// documents.
func (b *Bundle) Render() string {
	records := b.Records()
	docs := b.Documents()

	var sb strings.Builder
	if len(records) == 0 {
		sb.WriteString(InternalKnowledgeMarker)
		sb.WriteString("\n")
	} else {
		sb.WriteString(RenderRecords(records))
	}
	if len(docs) > 0 {
		sb.WriteString(RenderDocuments(docs))
	}
	return sb.String()
}

// RenderRecords formats records as a VERIFIED SOURCES block.
func RenderRecords(records []Record) string {
	var sb strings.Builder
	sb.WriteString("--- VERIFIED SOURCES ---\n")
	for _, r := range records {
		title := r.Title
		if title == "" {
			title = "Unknown Title"
		}
		fmt.Fprintf(&sb, "SOURCE [%d]\nTitle: %s\nURL: %s\nSummary: %s", r.Rank, title, r.URL, r.Snippet)
		if r.Extract != "" {
			sb.WriteString("\nEXTRACT: ")
			sb.WriteString(r.Extract)
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// RenderDocuments formats user documents as numbered content blocks.
func RenderDocuments(docs []Document) string {
	var sb strings.Builder
	sb.WriteString("\n\n--- USER UPLOADED DOCUMENTS ---\n")
	for i, d := range docs {
		fmt.Fprintf(&sb, "\n[Document %d Content]:\n%s\n", i+1, d.Content)
	}
	sb.WriteString("\n------------------------------\n")
	return sb.String()
}
