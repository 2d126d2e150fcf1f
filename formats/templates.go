package formats

import (
	"sort"
	"strconv"
	"strings"
)

// Format keys.
const (
	LiteratureReview    = "literature_review"
	CaseStudy           = "case_study"
	BusinessWhitePaper  = "business_white_paper"
	TechnicalManual     = "technical_manual"
	JournalisticArticle = "journalistic_article"
	Custom              = "custom"
)

// Template is a report format skeleton. Placeholders {section_count},
// {complexity_note}, {last_n} and {last} are filled from the tier.
type Template struct {
	Key         string
	Title       string
	Description string
	Skeleton    string
}

var templates = map[string]Template{
	LiteratureReview: {
		Key:         LiteratureReview,
		Title:       "Literature Review",
		Description: "Thematic survey of existing research with conclusions and references",
		Skeleton: `# 1. Introduction (Scope & Rationale)
# 2. Main Thematic Analysis
[INSTRUCTION: Generate {section_count} distinct thematic sections based on the research.
{complexity_note}]
# {last_n}. Conclusion & Future Research
# {last}. References`,
	},
	CaseStudy: {
		Key:         CaseStudy,
		Title:       "Case Study",
		Description: "Problem, strategy, execution and outcome of a specific case",
		Skeleton: `# 1. Executive Summary
# 2. Introduction & Problem Statement
# 3. Context/Background
[INSTRUCTION: Analyze the case phases. Generate {section_count} sections covering the Strategy, Execution, and Outcome.
{complexity_note}]
# {last_n}. Key Lessons Learned
# {last}. Conclusion`,
	},
	BusinessWhitePaper: {
		Key:         BusinessWhitePaper,
		Title:       "Business White Paper",
		Description: "Market context and ROI analysis of a proposed solution",
		Skeleton: `# 1. Executive Summary
# 2. Market Context
[INSTRUCTION: Compare solutions. Generate {section_count} sections analyzing the technical and business ROI of the proposed solution.
{complexity_note}]
# {last_n}. Implementation Framework
# {last}. Call to Action`,
	},
	TechnicalManual: {
		Key:         TechnicalManual,
		Title:       "Technical Manual",
		Description: "System overview, features, configuration and troubleshooting",
		Skeleton: `# 1. System Overview
# 2. Quick Start Guide
[INSTRUCTION: Technical Breakdown. Generate {section_count} sections covering Core Features, Advanced Configuration, and API usage.
{complexity_note}]
# {last_n}. Troubleshooting
# {last}. Glossary/Appendix`,
	},
	JournalisticArticle: {
		Key:         JournalisticArticle,
		Title:       "Journalistic Article",
		Description: "Narrative story told chronologically or thematically",
		Skeleton: `# 1. The Lead (Headline)
[INSTRUCTION: Narrative Flow. Generate {section_count} sections that tell the story chronologically or thematically. Use punchy headers.
{complexity_note}]
# {last}. The Kicker (Conclusion)`,
	},
}

// Lookup returns the template for key. Unknown keys, and custom, resolve to
// the literature review.
func Lookup(key string) Template {
	if t, ok := templates[strings.ToLower(strings.TrimSpace(key))]; ok {
		return t
	}
	return templates[LiteratureReview]
}

// Keys lists the selectable format keys, custom included.
func Keys() []string {
	keys := make([]string, 0, len(templates)+1)
	for k := range templates {
		keys = append(keys, k)
	}
	keys = append(keys, Custom)
	sort.Strings(keys)
	return keys
}

// Instructions is the rendered structure guidance for the planner.
type Instructions struct {
	Format   string
	Tier     Tier
	Template string
}

// Render resolves format and page count into planner instructions. For the
// custom format a non-blank structure replaces the skeleton; the tier note is
// still appended.
func Render(format string, pages int, customStructure string) Instructions {
	tier := TierFor(pages)
	key := strings.ToLower(strings.TrimSpace(format))

	if key == Custom && strings.TrimSpace(customStructure) != "" {
		return Instructions{
			Format:   Custom,
			Tier:     tier,
			Template: strings.TrimSpace(customStructure) + "\n[" + tier.ComplexityNote + "]",
		}
	}

	t := Lookup(key)
	middle := max(2, tier.Sections-3)
	text := strings.NewReplacer(
		"{section_count}", strconv.Itoa(middle)+" to "+strconv.Itoa(middle+2),
		"{complexity_note}", tier.ComplexityNote,
		"{last_n}", strconv.Itoa(tier.Sections-1),
		"{last}", strconv.Itoa(tier.Sections),
	).Replace(t.Skeleton)

	return Instructions{Format: t.Key, Tier: tier, Template: text}
}
