package planner

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hassan-khan-web/ScholarForge/formats"
	"github.com/hassan-khan-web/ScholarForge/llm/testutil"
	"github.com/hassan-khan-web/ScholarForge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		target  int
		want    Plan
		wantOK  bool
	}{
		{
			name: "complete plan",
			content: `{"summary": "Key facts.", "chart_data": {"title": "Capacity", "x_label": "Year", "y_label": "GW",
				"data": [{"label": "2022", "value": 240}, {"label": "2023", "value": "350.5"}]},
				"outline": ["1. The Surge", "2. Costs", "3. Outlook"]}`,
			target: 3,
			want: Plan{
				Summary: "Key facts.",
				Chart: &ChartSpec{Title: "Capacity", XLabel: "Year", YLabel: "GW", Series: []Point{
					{Label: "2022", Value: 240}, {Label: "2023", Value: 350.5},
				}},
				Outline: []string{"1. The Surge", "2. Costs", "3. Outlook"},
			},
			wantOK: true,
		},
		{
			name:    "fenced with prose and chart alias",
			content: "Here is the plan:\n```json\n{\"summary\": \"s\", \"chart\": {\"series\": [{\"label\": 2024, \"value\": \"40%\"}]}, \"outline\": [\"A\"]}\n```\nDone.",
			target:  3,
			want: Plan{
				Summary: "s",
				Chart:   &ChartSpec{Title: "Analysis", Series: []Point{{Label: "2024", Value: 40}}},
				Outline: []string{"A"},
			},
			wantOK: true,
		},
		{
			name:    "outline truncated never padded",
			content: `{"outline": ["A", " ", "B", "C", "D", ""]}`,
			target:  3,
			want:    Plan{Outline: []string{"A", "B", "C"}},
			wantOK:  true,
		},
		{
			name:    "chart without usable points is nil",
			content: `{"summary": "s", "chart_data": {"title": "t", "data": [{"label": "", "value": 1}, {"label": "x", "value": "n/a"}]}, "outline": ["A"]}`,
			target:  3,
			want:    Plan{Summary: "s", Outline: []string{"A"}},
			wantOK:  true,
		},
		{
			name:    "missing outline falls back",
			content: `{"summary": "only summary"}`,
			target:  7,
			want:    Plan{Summary: "only summary", Outline: DefaultOutline},
			wantOK:  false,
		},
		{
			name:    "wrong types back-filled",
			content: `{"summary": 42, "chart_data": "none", "outline": "Intro"}`,
			target:  7,
			want:    Plan{Outline: DefaultOutline},
			wantOK:  false,
		},
		{
			name:    "no json at all",
			content: "I cannot help with that.",
			target:  7,
			want:    Plan{Outline: DefaultOutline},
			wantOK:  false,
		},
		{
			name:    "bare outline array",
			content: `Outline: ["1. Origins", "2. Rivals"]`,
			target:  7,
			want:    Plan{Outline: []string{"1. Origins", "2. Rivals"}},
			wantOK:  true,
		},
		{
			name:    "outline objects with title",
			content: `{"outline": [{"title": "Alpha"}, {"name": "skip"}, "Beta"]}`,
			target:  7,
			want:    Plan{Outline: []string{"Alpha", "Beta"}},
			wantOK:  true,
		},
		{
			name:    "braces inside strings",
			content: `{"summary": "Uses {curly} and [square] text", "outline": ["A {1}"]}`,
			target:  3,
			want:    Plan{Summary: "Uses {curly} and [square] text", Outline: []string{"A {1}"}},
			wantOK:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.content, tt.target)
			assert.Equal(t, tt.wantOK, ok)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_DefaultOutlineNotShared(t *testing.T) {
	plan, _ := Parse("", 3)
	plan.Outline[0] = "changed"
	assert.Equal(t, "Introduction", DefaultOutline[0])
}

func TestBuilder_Build(t *testing.T) {
	instr := formats.Render(formats.LiteratureReview, 10, "")

	t.Run("uses model plan", func(t *testing.T) {
		mock := testutil.NewMockInvoker()
		mock.OnRole(model.RoleDirector, testutil.Reply{Content: `{"summary": "S", "outline": ["A", "B"]}`})

		plan := NewBuilder(mock).Build(context.Background(), "Topic", instr, "evidence")
		assert.Equal(t, []string{"A", "B"}, plan.Outline)

		calls := mock.Calls()
		require.Len(t, calls, 1)
		assert.True(t, calls[0].JSON)
		assert.Contains(t, calls[0].User, "exactly 7 section titles")
	})

	t.Run("gateway failure yields default outline", func(t *testing.T) {
		mock := testutil.NewMockInvoker()
		mock.OnRole(model.RoleDirector, testutil.Reply{Fail: true})

		plan := NewBuilder(mock).Build(context.Background(), "Topic", instr, "")
		assert.Equal(t, DefaultOutline, plan.Outline)
		assert.Empty(t, plan.Summary)
		assert.Nil(t, plan.Chart)
	})
}
