// Package prompts builds the system and user prompts for every model role.
package prompts

import (
	"fmt"
	"strings"

	"github.com/hassan-khan-web/ScholarForge/source"
)

// Input limits applied when evidence is embedded in a prompt.
const (
	NeedPreviewLimit   = 1000
	GapContextLimit    = 3000
	PlanEvidenceLimit  = 35000
	WriterDataLimit    = 20000
	LegionContextLimit = 10000
)

// System prompts for each persona.
const (
	DirectorSystem   = "You are a Research Director."
	AnalystSystem    = "You are a Senior Research Analyst."
	WriterSystem     = "You are a Report Writer. Use Markdown Tables and Charts."
	LegionSystem     = "You are a specialized Research Agent."
	NexusSystem      = "You are The Nexus, a Master Synthesizer."
	InquisitorSystem = "You are The Inquisitor, a skeptical Fact-Checker. Return JSON."
	ArtisanSystem    = "You are The Artisan, a Master Writer."
)

// NeedAssessmentPrompt asks whether the topic requires live web search.
func NeedAssessmentPrompt(topic, existingContext string) string {
	return fmt.Sprintf(`Query: '%s'
Existing Context Length: %d chars
Existing Context Preview: %s

DECISION: To write a high-quality, detailed report on this, do we STRICTLY need external live web search data?
Criteria:
- If it is a well-known topic (history, science, standard concepts) or purely creative -> NO.
- If the provided Context answers it -> NO.
- If it requires REAL-TIME news, specific recent data, or obscure info -> YES.

OUTPUT: a JSON object only.
{"search": false, "query": ""}
or
{"search": true, "query": "<specific, optimized web search query>"}`,
		topic, len(existingContext), source.Truncate(existingContext, NeedPreviewLimit))
}

// GapCheckPrompt asks whether the evidence covers one section or bundle.
func GapCheckPrompt(topic, sectionKey, evidence string) string {
	return fmt.Sprintf(`We are writing a report on '%s'.
Current Section: '%s'
Available Data Summary: %s

DECISION: Do we have specific enough data to write a detailed 600-word section with stats and tables on this specific sub-topic?

OUTPUT: a JSON object only.
{"needs_more": false, "query": ""}
or
{"needs_more": true, "query": "<web search query for the missing specific info>"}`,
		topic, sectionKey, source.Truncate(evidence, GapContextLimit))
}

// PlanPrompt requests summary, chart data and outline in one JSON object.
func PlanPrompt(topic, structure string, sections int, evidence string) string {
	return fmt.Sprintf(`Topic: %s

Data:
%s

TASKS:
1. SUMMARY: Synthesize a master summary (about 500 words) of key facts, numbers, and sources, grouped by theme. If the Data seems empty or insufficient, rely on your extensive INTERNAL KNOWLEDGE.
2. CHART: Extract the most important numeric trend as a bar chart series.
3. OUTLINE: Plan exactly %d section titles following this structure:
%s

OUTLINE RULES:
- Titles MUST be engaging (e.g. 'The Quantum Leap' instead of 'Introduction').
- Return exactly %d sections, in reading order.

OUTPUT: a single JSON object only.
{
  "summary": "...",
  "chart_data": {"title": "...", "x_label": "...", "y_label": "...", "data": [{"label": "A", "value": 10}]},
  "outline": ["1. The Awakening", "2. Market Forces"]
}`,
		topic, source.Truncate(evidence, PlanEvidenceLimit), sections, structure, sections)
}

// WriterSystemPrompt returns the writer persona, forbidding citations when
// the run has no web sources.
func WriterSystemPrompt(internalKnowledge bool) string {
	if internalKnowledge {
		return WriterSystem + " No web sources are available: do NOT use [n] citation markers."
	}
	return WriterSystem
}

// BundlePrompt asks one writer call to produce several consecutive sections.
func BundlePrompt(topic string, sections []string, data string, wordsPerSection int, internalKnowledge bool) string {
	var titles strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&titles, "## %s\n", s)
	}

	citation := "4. CITATIONS: Use [1], [2] notation corresponding to the numbered sources."
	if internalKnowledge {
		citation = "4. CITATIONS: No web sources were consulted. Do NOT use [n] citation markers."
	}

	return fmt.Sprintf(`Write the following sections of the report '%s', in this order:
%s
Data Source:
%s

Length Target: %d words per section (%d words total).

FORMATTING RULES (STRICT):
1. HEADERS: Start each section with its exact title as a ## H2 line, copied verbatim from the list above.
2. SUB-HEADERS: Use ### H3 for sub-themes. Do NOT use generic names.
3. TABLES: Include at least one Markdown table comparing data, pros/cons, or timelines.
%s
5. TONE: Professional, dense, and analytical. Avoid fluff.
6. CONTENT: Where it fits, include a 'Real World Application' subsection.`,
		topic, titles.String(), source.Truncate(data, WriterDataLimit),
		wordsPerSection, wordsPerSection*len(sections), citation)
}

// LegionPrompt is the brief every panel model drafts from.
func LegionPrompt(section, topic, context string, wordTarget int, internalKnowledge bool) string {
	citation := "4. Cite sources with [n] markers matching the numbered sources."
	if internalKnowledge {
		citation = "4. No web sources were consulted: do NOT use [n] citation markers."
	}
	return fmt.Sprintf(`Write a detailed, academic section titled '%s' for a report on '%s'.
Context:
%s

Requirements:
1. Be dense, factual, and analytical.
2. Use Markdown formatting (### Headers, Tables).
3. Focus on specific stats, numbers, and case studies found in the context.
%s
5. Length Target: about %d words.`,
		section, topic, source.Truncate(context, LegionContextLimit), citation, wordTarget)
}

// NexusPrompt merges the surviving drafts into one.
func NexusPrompt(section string, drafts []string, supplement string) string {
	var sb strings.Builder
	for i, d := range drafts {
		fmt.Fprintf(&sb, "\n--- DRAFT %d ---\n%s\n", i+1, d)
	}
	if strings.TrimSpace(supplement) != "" {
		sb.WriteString("\n--- SUPPLEMENTARY RESEARCH ---\n")
		sb.WriteString(supplement)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, `
Synthesize the %d drafts above for the section '%s' into ONE superior, cohesive master draft.
RULES:
1. Remove all repetition/redundancy.
2. Keep the BEST stats, tables, and insights from ALL drafts and the supplementary research.
3. Maintain a unified professional tone.
4. Structure with clear Markdown headers.
5. Output ONLY the synthesized content.`, len(drafts), section)
	return sb.String()
}

// ClaimsPrompt asks the fact-checker for suspicious claims to verify.
func ClaimsPrompt(topic, content string, maxClaims int) string {
	return fmt.Sprintf(`%s

Review this text for a report on '%s'.
List at most %d specific factual claims (statistics, dates, attributions) that look doubtful and should be checked against an external source. Phrase each claim as a short search query.

OUTPUT: a JSON object only.
{"claims": ["claim one", "claim two"]}`, content, topic, maxClaims)
}

// CritiquePrompt asks for the structured verdict.
func CritiquePrompt(topic, content, verification string) string {
	evidence := ""
	if strings.TrimSpace(verification) != "" {
		evidence = "\nVERIFICATION EVIDENCE (external search on flagged claims):\n" + verification + "\n"
	}
	return fmt.Sprintf(`%s
%s
Review this text for a report on '%s'.
CRITICAL TASKS:
1. Identify any logical fallacies or hallucinated-looking stats.
2. Question every major finding: 'Is this from a trustworthy source context?' Use the verification evidence where given.
3. Check for repetition.

DECISION: Output JSON format:
{
  "status": "APPROVED" or "REJECTED",
  "critique": "...detailed feedback if rejected...",
  "score": 85
}`, content, evidence, topic)
}

// ArtisanPrompt rewrites content for originality, optionally addressing a
// critique.
func ArtisanPrompt(content, critique string) string {
	var sb strings.Builder
	sb.WriteString(content)
	sb.WriteString("\n\nRefine and Rewrite this content to be strictly ORIGINAL (0% Plagiarism) and Polished.\n")
	if strings.TrimSpace(critique) != "" {
		sb.WriteString("ADDRESS THIS CRITIQUE: ")
		sb.WriteString(critique)
		sb.WriteString("\n")
	}
	sb.WriteString(`1. Rephrase generic sentences to be more unique and academic.
2. Ensure perfect flow and structure.
3. Keep all factual data/stats intact, but change the wording around them.
4. Output ONLY the final polished markdown.`)
	return sb.String()
}
