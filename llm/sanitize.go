package llm

import (
	"regexp"
	"strings"
)

// Directives appended to every system prompt sent through the gateway.
const (
	RawOutputDirective  = " Output raw Markdown only. No code fences, no meta-commentary."
	JSONOutputDirective = " Return only one JSON object. No code fences, no commentary."
)

var (
	thinkBlockRe  = regexp.MustCompile(`(?is)<think>.*?</think>`)
	openThinkRe   = regexp.MustCompile(`(?is)^\s*<think>.*`)
	fenceLineRe   = regexp.MustCompile("(?m)^[ \t]*```[\\w+-]*[ \t]*$\\n?")
	blankRunRe    = regexp.MustCompile(`\n{3,}`)
	strayCloseTag = regexp.MustCompile(`(?i)</think>`)
)

// Sanitize removes reasoning blocks and code fences from model output.
// A <think> block that is never closed swallows the rest of the response.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	text = thinkBlockRe.ReplaceAllString(text, "")
	text = openThinkRe.ReplaceAllString(text, "")
	text = strayCloseTag.ReplaceAllString(text, "")
	text = fenceLineRe.ReplaceAllString(text, "")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// withDirective returns a copy of messages whose system prompt carries the
// raw-output or JSON-only directive. A system message is added when absent.
func withDirective(messages []Message, jsonOnly bool) []Message {
	directive := RawOutputDirective
	if jsonOnly {
		directive = JSONOutputDirective
	}

	out := make([]Message, 0, len(messages)+1)
	found := false
	for _, m := range messages {
		if m.Role == "system" && !found {
			found = true
			if !strings.Contains(m.Content, strings.TrimSpace(directive)) {
				m.Content = strings.TrimRight(m.Content, " \n") + directive
			}
		}
		out = append(out, m)
	}
	if !found {
		out = append([]Message{{Role: "system", Content: strings.TrimSpace(directive)}}, out...)
	}
	return out
}
