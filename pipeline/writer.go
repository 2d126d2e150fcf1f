package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/hassan-khan-web/ScholarForge/llm"
	"github.com/hassan-khan-web/ScholarForge/model"
	"github.com/hassan-khan-web/ScholarForge/prompts"
	"github.com/hassan-khan-web/ScholarForge/source"
)

var (
	headingRe   = regexp.MustCompile(`^\s{0,3}(#{1,2})\s+(.+?)\s*#*\s*$`)
	numberingRe = regexp.MustCompile(`^(?:\d+(?:\.\d+)*[.)]?|[ivxlc]+[.)])\s+`)
)

// writeBundle writes the sections of one bundle with a single call and
// returns one body per title. The bundle's first section keys its gap check.
func (p *Pipeline) writeBundle(ctx context.Context, topic string, titles []string, data string, words int, bundle *source.Bundle) []string {
	if records, ok := p.collector.GapCheck(ctx, bundle, topic, titles[0], data); ok && len(records) > 0 {
		data = source.RenderRecords(records) + "\n" + data
	}

	internal := bundle.InternalKnowledge()
	res := p.invoker.Invoke(ctx, llm.Call{
		Role:        model.RoleWriter,
		System:      prompts.WriterSystemPrompt(internal),
		User:        prompts.BundlePrompt(topic, titles, data, words, internal),
		Temperature: 0.7,
	})
	if res.Failed() {
		p.logger.Warn("Bundle writer failed", "first_section", titles[0], "error", res.Err)
		bodies := make([]string, len(titles))
		bodies[0] = res.Text()
		return bodies
	}
	return SplitSections(res.Content, titles)
}

// SplitSections cuts a multi-section response back into per-title bodies.
// Headings are matched in outline order: a level one or two heading starts a
// section when it names a title after the current one. A loose match is only
// tried for the next title, and only when that title never appears verbatim.
// Text before the first matched heading belongs to the first title; titles
// whose heading never appears get an empty body.
func SplitSections(text string, titles []string) []string {
	keys := make([]string, len(titles))
	for i, t := range titles {
		keys[i] = normalizeTitle(t)
	}

	lines := strings.Split(llm.Sanitize(text), "\n")
	verbatim := make([]bool, len(titles))
	for _, line := range lines {
		heading := headingKey(line)
		for i, key := range keys {
			if heading != "" && heading == key {
				verbatim[i] = true
			}
		}
	}

	bodies := make([]strings.Builder, len(titles))
	current, next := 0, 0
	for _, line := range lines {
		if idx := matchHeading(headingKey(line), keys, next, verbatim); idx >= 0 {
			current, next = idx, idx+1
			continue
		}
		bodies[current].WriteString(line)
		bodies[current].WriteString("\n")
	}

	out := make([]string, len(titles))
	for i := range bodies {
		out[i] = CleanSection(bodies[i].String(), titles[i])
	}
	return out
}

// headingKey returns the normalized text of a level one or two heading.
func headingKey(line string) string {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return normalizeTitle(m[2])
}

// matchHeading returns the index of the title heading names, or -1. Only
// titles from next onwards can be claimed.
func matchHeading(heading string, keys []string, next int, verbatim []bool) int {
	if heading == "" {
		return -1
	}
	for i := next; i < len(keys); i++ {
		if keys[i] == heading {
			return i
		}
	}
	if next < len(keys) && !verbatim[next] && looselyNames(heading, keys[next]) {
		return next
	}
	return -1
}

// looselyNames reports whether one text contains the other and the shorter
// has at least half the words of the longer.
func looselyNames(heading, key string) bool {
	if key == "" || (!strings.Contains(heading, key) && !strings.Contains(key, heading)) {
		return false
	}
	h, k := len(strings.Fields(heading)), len(strings.Fields(key))
	return 2*min(h, k) >= max(h, k)
}

// CleanSection sanitizes a section body and drops a leading line that only
// repeats the section title.
func CleanSection(text, title string) string {
	text = llm.Sanitize(text)
	if text == "" {
		return ""
	}
	first, rest, _ := strings.Cut(text, "\n")
	key := normalizeTitle(title)
	line := normalizeTitle(first)
	if line == "" || key == "" {
		return text
	}
	isHeading := strings.HasPrefix(strings.TrimSpace(first), "#")
	if line == key || (isHeading && (strings.Contains(line, key) || strings.Contains(key, line))) {
		return strings.TrimSpace(rest)
	}
	return text
}

func normalizeTitle(s string) string {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "#*_ "))
	s = numberingRe.ReplaceAllString(strings.ToLower(s), "")
	return strings.Join(strings.Fields(strings.TrimRight(s, ":.")), " ")
}
