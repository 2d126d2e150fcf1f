package evidence

import (
	"strings"

	"github.com/hassan-khan-web/ScholarForge/llm"
)

// Legacy free-text tokens still honored when a model ignores the JSON format.
const (
	skipToken = "SKIP_SEARCH"
	passToken = "PASS"
)

// maxQueryLength is the longest bare-line answer still read as a query.
// Anything longer is prose and means no search.
const maxQueryLength = 100

// Decision is the outcome of a search decision call.
type Decision struct {
	Search bool
	Query  string
	// Structured is false when the answer was read by the free-text fallback.
	Structured bool
}

// ParseNeed reads the need-assessment answer. A search verdict without a
// query searches for the topic itself. A JSON answer whose verdict cannot be
// read also searches for the topic.
func ParseNeed(content, topic string) Decision {
	if obj, ok := decodeObject(content); ok {
		search, known := readFlag(obj["search"])
		if !known {
			return Decision{Search: true, Query: topic}
		}
		if !search {
			return Decision{Structured: true}
		}
		q := readQuery(obj["query"])
		if q == "" {
			q = topic
		}
		return Decision{Search: true, Query: q, Structured: true}
	}

	line := cleanLine(content)
	switch {
	case strings.Contains(line, skipToken):
		return Decision{}
	case line == "", strings.Contains(line, "{"):
		return Decision{Search: true, Query: topic}
	case len(line) > maxQueryLength:
		return Decision{}
	}
	return Decision{Search: true, Query: line}
}

// ParseGap reads the gap-check answer. A positive verdict without a query
// falls back to "<topic> <section>". Anything unreadable means no re-search.
func ParseGap(content, topic, sectionKey string) Decision {
	if obj, ok := decodeObject(content); ok {
		more, known := readFlag(obj["needs_more"])
		if !known {
			return Decision{}
		}
		if !more {
			return Decision{Structured: true}
		}
		q := readQuery(obj["query"])
		if q == "" {
			q = strings.TrimSpace(topic + " " + sectionKey)
		}
		return Decision{Search: true, Query: q, Structured: true}
	}

	line := cleanLine(content)
	if line == "" || strings.Contains(line, passToken) || strings.Contains(line, "{") || len(line) > maxQueryLength {
		return Decision{}
	}
	return Decision{Search: true, Query: line}
}

func decodeObject(content string) (map[string]any, bool) {
	var obj map[string]any
	if err := llm.DecodeJSON(content, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// readFlag accepts JSON booleans and the usual yes/no spellings.
func readFlag(v any) (value, known bool) {
	switch f := v.(type) {
	case bool:
		return f, true
	case string:
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "true", "yes", "y":
			return true, true
		case "false", "no", "n":
			return false, true
		}
	}
	return false, false
}

func readQuery(v any) string {
	q, _ := v.(string)
	q = strings.TrimSpace(q)
	if strings.ContainsAny(q, "{}") {
		return ""
	}
	return q
}

func cleanLine(content string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(content), `"`, ""))
}
