// Package pipeline runs a research request end to end: document intake,
// evidence collection, planning, section writing and report assembly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hassan-khan-web/ScholarForge/budget"
	"github.com/hassan-khan-web/ScholarForge/council"
	"github.com/hassan-khan-web/ScholarForge/evidence"
	"github.com/hassan-khan-web/ScholarForge/formats"
	"github.com/hassan-khan-web/ScholarForge/llm"
	"github.com/hassan-khan-web/ScholarForge/model"
	"github.com/hassan-khan-web/ScholarForge/planner"
	"github.com/hassan-khan-web/ScholarForge/progress"
	"github.com/hassan-khan-web/ScholarForge/source"
)

// DefaultPages is used when a request does not set a page count.
const DefaultPages = 15

// Failure stages.
const (
	StageInput       = "input"
	StageCredentials = "credentials"
	StageCanceled    = "canceled"
)

// Failure is returned when a run cannot start or was cancelled. Every other
// stage degrades instead of failing.
type Failure struct {
	Stage   string
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Stage, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Stage, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Request describes one report.
type Request struct {
	// RunID is generated when empty.
	RunID           string
	Topic           string
	Format          string
	CustomStructure string
	Pages           int
	Documents       []source.Document
	UseConsensus    bool
}

// SectionOutput is the final text of one outline entry.
type SectionOutput struct {
	Title   string
	Content string
	// Bundle is the 1-based writing call that produced the section in
	// direct mode; 0 in consensus mode.
	Bundle int
	// Council is set in consensus mode.
	Council *council.Outcome
}

// Result is everything a run produced.
type Result struct {
	RunID        string
	Topic        string
	Instructions formats.Instructions
	Evidence     *source.Bundle
	EvidenceText string
	ReportText   string
	Chart        *planner.ChartSpec
	Plan         planner.Plan
	Sections     []SectionOutput
	// ReportID is the archive row, or 0 when the report was not stored.
	ReportID int64
}

// CredentialChecker verifies API keys before any call is made.
type CredentialChecker interface {
	CheckCredentials(roles ...model.Role) error
}

// DocumentParser turns an upload into text.
type DocumentParser interface {
	ParseDocument(doc source.Document) (source.Document, error)
}

// Collector is the evidence stage.
type Collector interface {
	AssessNeed(ctx context.Context, topic, existingContext string) evidence.Decision
	Collect(ctx context.Context, bundle *source.Bundle, query string) ([]source.Record, error)
	GapCheck(ctx context.Context, bundle *source.Bundle, topic, sectionKey, evidence string) ([]source.Record, bool)
}

// Council refines a single section.
type Council interface {
	Run(ctx context.Context, brief council.Brief, sink progress.Sink) council.Outcome
}

// ReportStore archives finished reports.
type ReportStore interface {
	SaveReport(ctx context.Context, topic, content string) (int64, error)
}

// Pipeline wires the stages together. It is safe for concurrent runs; all
// per-run state lives in the run's bundle.
type Pipeline struct {
	invoker      llm.Invoker
	collector    Collector
	planner      *planner.Builder
	credentials  CredentialChecker
	parser       DocumentParser
	council      Council
	store        ReportStore
	logger       *slog.Logger
	documentsCap int
	newRunID     func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithCredentialCheck enables the credential precondition.
func WithCredentialCheck(c CredentialChecker) Option {
	return func(p *Pipeline) {
		p.credentials = c
	}
}

// WithParser sets the document parser. Without one, only documents that
// already carry Content are accepted.
func WithParser(dp DocumentParser) Option {
	return func(p *Pipeline) {
		p.parser = dp
	}
}

// WithCouncil enables consensus mode.
func WithCouncil(c Council) Option {
	return func(p *Pipeline) {
		p.council = c
	}
}

// WithStore archives every finished report.
func WithStore(s ReportStore) Option {
	return func(p *Pipeline) {
		p.store = s
	}
}

// WithDocumentsCap bounds the combined text of uploaded documents.
func WithDocumentsCap(n int) Option {
	return func(p *Pipeline) {
		p.documentsCap = n
	}
}

// New creates a pipeline.
func New(invoker llm.Invoker, collector Collector, opts ...Option) *Pipeline {
	p := &Pipeline{
		invoker:      invoker,
		collector:    collector,
		logger:       slog.Default(),
		documentsCap: source.DefaultDocumentsCap,
		newRunID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.planner = planner.NewBuilder(invoker, planner.WithLogger(p.logger))
	return p
}

// Run produces one report. Progress messages go to sink, which may be nil.
func (p *Pipeline) Run(ctx context.Context, req Request, sink progress.Sink) (*Result, error) {
	runID := req.RunID
	if runID == "" {
		runID = p.newRunID()
	}
	logger := p.logger.With("run_id", runID)
	if sink == nil {
		sink = progress.Discard
	}
	sink = progress.Safe(sink, logger)

	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, &Failure{Stage: StageInput, Message: "topic is required"}
	}
	if p.credentials != nil {
		if err := p.credentials.CheckCredentials(model.AllRoles()...); err != nil {
			return nil, &Failure{Stage: StageCredentials, Message: "model credentials unavailable", Err: err}
		}
	}
	if p.council == nil && req.UseConsensus {
		logger.Warn("Consensus requested without a council, writing directly")
	}
	pages := req.Pages
	if pages <= 0 {
		pages = DefaultPages
	}

	res := &Result{
		RunID:    runID,
		Topic:    topic,
		Evidence: source.NewBundle(),
	}
	res.Evidence.SetDocumentsCap(p.documentsCap)
	logger.Info("Run started", "topic", topic, "format", req.Format, "pages", pages, "consensus", req.UseConsensus)

	// Inputs
	sink.Report("Step 1/7: Processing Inputs...")
	if len(req.Documents) > 0 {
		res.Evidence.AddDocuments(p.parseDocuments(req.Documents, logger)...)
		sink.Report(fmt.Sprintf("    > Analyzed %d uploaded documents.", len(req.Documents)))
	}
	if err := canceled(ctx); err != nil {
		return nil, err
	}

	// Evidence
	sink.Report("Step 2/7: Checking Information Needs...")
	var docText string
	if docs := res.Evidence.Documents(); len(docs) > 0 {
		docText = source.RenderDocuments(docs)
	}
	decision := p.collector.AssessNeed(ctx, topic, docText)
	var searchErr error
	if decision.Search {
		sink.Report("    > Web Search Required: " + decision.Query)
		if _, err := p.collector.Collect(ctx, res.Evidence, decision.Query); err != nil {
			searchErr = err
			logger.Warn("Web search failed", "query", decision.Query, "error", err)
		}
		if res.Evidence.Len() == 0 {
			res.Evidence.SetInternalKnowledge(true)
		}
	} else {
		sink.Report("    > Sufficient internal/provided info. Skipping Web Search.")
		res.Evidence.SetInternalKnowledge(true)
	}
	res.EvidenceText = res.Evidence.Render()
	if searchErr != nil {
		res.EvidenceText = fmt.Sprintf("Search Error: %v\n%s", searchErr, res.EvidenceText)
	}
	if err := canceled(ctx); err != nil {
		return nil, err
	}

	// Plan
	sink.Report("Step 3/7: Synthesizing Data...")
	sink.Report("Step 4/7: Planning Structure...")
	res.Instructions = formats.Render(req.Format, pages, req.CustomStructure)
	res.Plan = p.planner.Build(ctx, topic, res.Instructions, res.EvidenceText)
	res.Chart = res.Plan.Chart
	logger.Info("Plan ready", "sections", len(res.Plan.Outline), "tier", res.Instructions.Tier.Name)
	if err := canceled(ctx); err != nil {
		return nil, err
	}

	words := budget.WordsPerSection(pages, len(res.Plan.Outline))
	data := writingData(res.Plan.Summary, res.EvidenceText)

	// Write
	var err error
	if p.council != nil && req.UseConsensus {
		res.Sections, err = p.writeConsensus(ctx, topic, res.Plan.Outline, data, words, res.Evidence, sink)
	} else {
		sink.Report("Step 5/7: Allocating Call Budget...")
		bundles := budget.Allocate(res.Plan.Outline, res.Instructions.Tier.WritingCalls)
		res.Sections, err = p.writeDirect(ctx, topic, bundles, data, words, res.Evidence, sink)
	}
	if err != nil {
		return nil, err
	}

	// Assemble
	sink.Report("Step 7/7: Finalizing...")
	res.ReportText = Assemble(topic, res.Sections)
	res.ReportID = p.persist(ctx, topic, res.ReportText, logger)
	logger.Info("Run finished", "chars", len(res.ReportText), "report_id", res.ReportID)
	return res, nil
}

func (p *Pipeline) parseDocuments(docs []source.Document, logger *slog.Logger) []source.Document {
	parsed := make([]source.Document, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Data) == 0 {
			if strings.TrimSpace(doc.Content) != "" {
				parsed = append(parsed, doc)
			}
			continue
		}
		if p.parser == nil {
			logger.Warn("No document parser configured, skipping upload", "file", doc.Filename)
			continue
		}
		out, err := p.parser.ParseDocument(doc)
		if err != nil {
			logger.Warn("Failed to parse uploaded document", "file", doc.Filename, "error", err)
			continue
		}
		parsed = append(parsed, out)
	}
	return parsed
}

func (p *Pipeline) writeConsensus(ctx context.Context, topic string, outline []string, data string, words int, bundle *source.Bundle, sink progress.Sink) ([]SectionOutput, error) {
	sections := make([]SectionOutput, 0, len(outline))
	for i, title := range outline {
		if err := canceled(ctx); err != nil {
			return nil, err
		}
		sink.Report(fmt.Sprintf("Step 6/7: Council Section %d/%d: %s...", i+1, len(outline), title))
		outcome := p.council.Run(ctx, council.Brief{
			Section:    title,
			Topic:      topic,
			Context:    data,
			WordTarget: words,
			Bundle:     bundle,
		}, sink)
		sections = append(sections, SectionOutput{
			Title:   title,
			Content: CleanSection(outcome.Content, title),
			Council: &outcome,
		})
	}
	return sections, nil
}

func (p *Pipeline) writeDirect(ctx context.Context, topic string, bundles []budget.Bundle, data string, words int, bundle *source.Bundle, sink progress.Sink) ([]SectionOutput, error) {
	var sections []SectionOutput
	for _, b := range bundles {
		if err := canceled(ctx); err != nil {
			return nil, err
		}
		sink.Report(fmt.Sprintf("Step 6/7: Writing Bundle %d/%d...", b.Index+1, len(bundles)))
		bodies := p.writeBundle(ctx, topic, b.Sections, data, words, bundle)
		for i, title := range b.Sections {
			sections = append(sections, SectionOutput{Title: title, Content: bodies[i], Bundle: b.Index + 1})
		}
	}
	return sections, nil
}

func (p *Pipeline) persist(ctx context.Context, topic, report string, logger *slog.Logger) int64 {
	if p.store == nil {
		return 0
	}
	id, err := p.store.SaveReport(context.WithoutCancel(ctx), topic, report)
	if err != nil {
		logger.Warn("Failed to archive report", "error", err)
		return 0
	}
	logger.Debug("Report archived", "report_id", id)
	return id
}

// Assemble joins the sections under the upper-cased topic title.
func Assemble(topic string, sections []SectionOutput) string {
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(strings.ToUpper(topic))
	sb.WriteString("\n\n")
	for _, s := range sections {
		fmt.Fprintf(&sb, "\n\n## %s\n%s\n", s.Title, s.Content)
	}
	return llm.Sanitize(sb.String())
}

func writingData(summary, evidenceText string) string {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return evidenceText
	}
	return "RESEARCH SUMMARY:\n" + summary + "\n\n" + evidenceText
}

func canceled(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	msg := "run canceled"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "run deadline exceeded"
	}
	return &Failure{Stage: StageCanceled, Message: msg, Err: err}
}
