// Package council refines one report section through a bounded consensus
// loop. A panel of models drafts in parallel (the Legion), the drafts are
// merged (the Nexus), then the merged text is reviewed (the Inquisitor) and
// rewritten (the Artisan) until it is approved or the cycle cap is reached.
package council

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hassan-khan-web/ScholarForge/llm"
	"github.com/hassan-khan-web/ScholarForge/model"
	"github.com/hassan-khan-web/ScholarForge/progress"
	"github.com/hassan-khan-web/ScholarForge/prompts"
	"github.com/hassan-khan-web/ScholarForge/source"
)

// Researcher is the evidence surface the council needs.
type Researcher interface {
	GapCheck(ctx context.Context, bundle *source.Bundle, topic, sectionKey, evidence string) ([]source.Record, bool)
	Verify(ctx context.Context, claim string) string
}

// Config tunes the loop.
type Config struct {
	MaxCycles      int  `json:"max_cycles" yaml:"max_cycles"`
	ApproveScore   int  `json:"approve_score" yaml:"approve_score"`
	MinDraftLength int  `json:"min_draft_length" yaml:"min_draft_length"`
	MaxClaims      int  `json:"max_claims" yaml:"max_claims"`
	StrictVerdicts bool `json:"strict_verdicts" yaml:"strict_verdicts"`
}

// DefaultConfig returns the standard loop settings.
func DefaultConfig() Config {
	return Config{
		MaxCycles:      3,
		ApproveScore:   85,
		MinDraftLength: 100,
		MaxClaims:      2,
	}
}

// Brief is the per-section assignment.
type Brief struct {
	Section    string
	Topic      string
	Context    string
	WordTarget int
	Bundle     *source.Bundle
}

func (b Brief) internalKnowledge() bool {
	return b.Bundle != nil && b.Bundle.InternalKnowledge()
}

// Draft is one panel model's candidate text.
type Draft struct {
	Model   string
	Content string
}

// State is a step in a section's refinement.
type State string

const (
	StateDrafted  State = "DRAFTED"
	StateMerged   State = "MERGED"
	StateReviewed State = "REVIEWED"
	StateApproved State = "APPROVED"
	StateRejected State = "REJECTED"
	StateRevised  State = "REVISED"
	StatePolished State = "POLISHED"
)

// Outcome is the final text of a section and how it got there.
type Outcome struct {
	Content  string
	Drafts   int
	Cycles   int
	Approved bool
	Score    int
	Trail    []State
}

// Observer is told about every finished section.
type Observer interface {
	ObserveOutcome(section string, o Outcome)
}

type nopObserver struct{}

func (nopObserver) ObserveOutcome(string, Outcome) {}

// Engine runs the council for one report.
type Engine struct {
	invoker    llm.Invoker
	researcher Researcher
	panel      []string
	cfg        Config
	logger     *slog.Logger
	observer   Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConfig overrides the loop settings. Non-positive numbers keep the
// defaults.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		def := DefaultConfig()
		if cfg.MaxCycles > 0 {
			def.MaxCycles = cfg.MaxCycles
		}
		if cfg.ApproveScore > 0 {
			def.ApproveScore = cfg.ApproveScore
		}
		if cfg.MinDraftLength > 0 {
			def.MinDraftLength = cfg.MinDraftLength
		}
		if cfg.MaxClaims > 0 {
			def.MaxClaims = cfg.MaxClaims
		}
		def.StrictVerdicts = cfg.StrictVerdicts
		e.cfg = def
	}
}

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewEngine creates a council. panel lists the endpoint names the Legion
// drafts with; an empty panel drafts once with the writer role chain.
func NewEngine(invoker llm.Invoker, researcher Researcher, panel []string, opts ...Option) *Engine {
	e := &Engine{
		invoker:    invoker,
		researcher: researcher,
		panel:      append([]string(nil), panel...),
		cfg:        DefaultConfig(),
		logger:     slog.Default(),
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run takes one section through the full loop. It always returns content:
// failures degrade to the best text produced so far.
func (e *Engine) Run(ctx context.Context, brief Brief, sink progress.Sink) Outcome {
	if sink == nil {
		sink = progress.Discard
	}
	var out Outcome

	sink.Report(fmt.Sprintf("The Legion is generating variants for '%s'...", brief.Section))
	drafts := e.Legion(ctx, brief)
	out.Drafts = len(drafts)
	if len(drafts) == 0 {
		e.logger.Warn("Legion produced no drafts", "section", brief.Section)
		out.Content = llm.FailureText("legion")
		e.observer.ObserveOutcome(brief.Section, out)
		return out
	}
	out.Trail = append(out.Trail, StateDrafted)

	sink.Report(fmt.Sprintf("The Nexus is merging %d drafts...", len(drafts)))
	content := e.Nexus(ctx, brief, drafts)
	out.Trail = append(out.Trail, StateMerged)

	for cycle := 1; cycle <= e.cfg.MaxCycles; cycle++ {
		if ctx.Err() != nil {
			break
		}
		sink.Report(fmt.Sprintf("Council Review Cycle %d: Inquisitor & Artisan working...", cycle))

		verdict := e.Inquisitor(ctx, brief, content)
		out.Cycles = cycle
		out.Score = verdict.Score
		out.Trail = append(out.Trail, StateReviewed)
		e.logger.Debug("Inquisitor verdict",
			"section", brief.Section,
			"cycle", cycle,
			"status", verdict.Status,
			"score", verdict.Score,
			"parsed", verdict.Parsed)

		if verdict.Passes(e.cfg.ApproveScore) {
			out.Trail = append(out.Trail, StateApproved)
			content = e.Artisan(ctx, content, "")
			out.Trail = append(out.Trail, StatePolished)
			out.Approved = true
			break
		}

		out.Trail = append(out.Trail, StateRejected)
		critique := verdict.Critique
		if critique == "" {
			critique = DefaultCritique
		}
		content = e.Artisan(ctx, content, critique)
		out.Trail = append(out.Trail, StateRevised)
	}

	out.Content = content
	e.observer.ObserveOutcome(brief.Section, out)
	return out
}

// Legion sends the brief to every panel model concurrently and keeps the
// usable drafts in panel order. When every panelist fails, one serial call
// to the first panel model is made.
func (e *Engine) Legion(ctx context.Context, brief Brief) []Draft {
	call := llm.Call{
		Role:        model.RoleWriter,
		System:      prompts.LegionSystem,
		User:        prompts.LegionPrompt(brief.Section, brief.Topic, brief.Context, brief.WordTarget, brief.internalKnowledge()),
		Temperature: 0.7,
	}

	panel := e.panel
	if len(panel) == 0 {
		panel = []string{""}
	}

	results := make([]llm.Result, len(panel))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range panel {
		c := call
		c.Model = name
		g.Go(func() error {
			results[i] = e.invoker.Invoke(gctx, c)
			return nil
		})
	}
	_ = g.Wait()

	drafts := make([]Draft, 0, len(results))
	for _, res := range results {
		if e.usable(res) {
			drafts = append(drafts, Draft{Model: res.Model, Content: res.Content})
		}
	}
	if len(drafts) > 0 {
		return drafts
	}

	e.logger.Warn("All Legion drafts failed, retrying first panel model", "section", brief.Section)
	call.Model = panel[0]
	res := e.invoker.Invoke(ctx, call)
	if res.Failed() || strings.TrimSpace(res.Content) == "" {
		return nil
	}
	return []Draft{{Model: res.Model, Content: res.Content}}
}

func (e *Engine) usable(res llm.Result) bool {
	if res.Failed() || llm.IsFailureText(res.Content) {
		return false
	}
	return len(strings.TrimSpace(res.Content)) > e.cfg.MinDraftLength
}

// Nexus merges drafts into one. It first runs the section's single gap
// check over the combined drafts and feeds any new sources into the merge.
// A failed merge returns the longest draft.
func (e *Engine) Nexus(ctx context.Context, brief Brief, drafts []Draft) string {
	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.Content
	}

	var supplement string
	if e.researcher != nil && brief.Bundle != nil {
		records, _ := e.researcher.GapCheck(ctx, brief.Bundle, brief.Topic, brief.Section, strings.Join(texts, "\n\n"))
		if len(records) > 0 {
			supplement = source.RenderRecords(records)
		}
	}

	res := e.invoker.Invoke(ctx, llm.Call{
		Role:        model.RoleSynthesizer,
		System:      prompts.NexusSystem,
		User:        prompts.NexusPrompt(brief.Section, texts, supplement),
		Temperature: 0.4,
	})
	if res.Failed() || strings.TrimSpace(res.Content) == "" {
		e.logger.Warn("Nexus merge failed, keeping longest draft", "section", brief.Section, "error", res.Err)
		return longest(texts)
	}
	return res.Content
}

func longest(texts []string) string {
	best := ""
	for _, t := range texts {
		if len(t) > len(best) {
			best = t
		}
	}
	return best
}

// Inquisitor flags suspicious claims, verifies each with a narrow search and
// returns the critique verdict.
func (e *Engine) Inquisitor(ctx context.Context, brief Brief, content string) Verdict {
	verification := e.verifyClaims(ctx, brief, content)

	res := e.invoker.Invoke(ctx, llm.Call{
		Role:        model.RoleFactChecker,
		System:      prompts.InquisitorSystem,
		User:        prompts.CritiquePrompt(brief.Topic, content, verification),
		Temperature: 0.2,
		JSON:        true,
	})
	if res.Failed() {
		e.logger.Warn("Inquisitor call failed, using default verdict",
			"section", brief.Section, "strict", e.cfg.StrictVerdicts, "error", res.Err)
		return fallbackVerdict(e.cfg.StrictVerdicts)
	}

	v := ParseVerdict(res.Content, e.cfg.StrictVerdicts)
	if !v.Parsed {
		e.logger.Warn("Inquisitor verdict unparseable, using default",
			"section", brief.Section, "model", res.Model, "status", v.Status)
	}
	return v
}

func (e *Engine) verifyClaims(ctx context.Context, brief Brief, content string) string {
	if e.researcher == nil {
		return ""
	}

	res := e.invoker.Invoke(ctx, llm.Call{
		Role:        model.RoleFactChecker,
		System:      prompts.InquisitorSystem,
		User:        prompts.ClaimsPrompt(brief.Topic, content, e.cfg.MaxClaims),
		Temperature: 0.2,
		JSON:        true,
	})
	if res.Failed() {
		return ""
	}

	claims := ParseClaims(res.Content, e.cfg.MaxClaims)
	var sb strings.Builder
	for _, claim := range claims {
		sb.WriteString(e.researcher.Verify(ctx, claim))
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// ParseClaims reads {"claims": [...]} or a bare list, keeping at most limit
// non-blank entries.
func ParseClaims(content string, limit int) []string {
	var obj struct {
		Claims []string `json:"claims"`
	}
	var list []string
	if err := llm.DecodeJSON(content, &obj); err == nil {
		list = obj.Claims
	} else if arr := llm.ExtractJSONArray(content); arr != "" {
		_ = json.Unmarshal([]byte(arr), &list)
	}

	out := make([]string, 0, len(list))
	for _, c := range list {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Artisan rewrites content for originality and polish, addressing critique
// when given. A failed rewrite keeps the previous content.
func (e *Engine) Artisan(ctx context.Context, content, critique string) string {
	res := e.invoker.Invoke(ctx, llm.Call{
		Role:        model.RoleArtisan,
		System:      prompts.ArtisanSystem,
		User:        prompts.ArtisanPrompt(content, critique),
		Temperature: 0.6,
	})
	if res.Failed() || strings.TrimSpace(res.Content) == "" {
		e.logger.Warn("Artisan rewrite failed, keeping previous content", "error", res.Err)
		return content
	}
	return res.Content
}
