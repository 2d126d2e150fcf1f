package planner

import (
	"context"
	"log/slog"

	"github.com/hassan-khan-web/ScholarForge/formats"
	"github.com/hassan-khan-web/ScholarForge/llm"
	"github.com/hassan-khan-web/ScholarForge/model"
	"github.com/hassan-khan-web/ScholarForge/prompts"
)

// Builder produces a plan with one director call.
type Builder struct {
	invoker llm.Invoker
	logger  *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a plan builder.
func NewBuilder(invoker llm.Invoker, opts ...Option) *Builder {
	b := &Builder{invoker: invoker, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build asks for summary, chart and outline together. It never fails: a
// failed call or unusable answer yields the default outline.
func (b *Builder) Build(ctx context.Context, topic string, instr formats.Instructions, evidence string) Plan {
	res := b.invoker.Invoke(ctx, llm.Call{
		Role:        model.RoleDirector,
		System:      prompts.AnalystSystem,
		User:        prompts.PlanPrompt(topic, instr.Template, instr.Tier.Sections, evidence),
		Temperature: 0.3,
		JSON:        true,
	})
	if res.Failed() {
		b.logger.Warn("Planning call failed, using default outline",
			"topic", topic, "error", res.Err)
		return Fallback()
	}

	plan, ok := Parse(res.Content, instr.Tier.Sections)
	if !ok {
		b.logger.Warn("Plan had no usable outline, using default",
			"topic", topic, "model", res.Model)
	}
	b.logger.Debug("Plan built",
		"sections", len(plan.Outline),
		"target", instr.Tier.Sections,
		"chart", plan.Chart != nil,
		"summary_chars", len(plan.Summary))
	return plan
}
