package council

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		content string
		strict  bool
		want    Verdict
	}{
		{
			name:    "approved",
			content: `{"status": "APPROVED", "critique": "", "score": 92}`,
			want:    Verdict{Status: StatusApproved, Score: 92, Parsed: true},
		},
		{
			name:    "rejected in prose and fence",
			content: "Here is my review:\n```json\n{\"status\": \"REJECTED\", \"critique\": \"Cite the 2023 figure.\", \"score\": 60}\n```",
			want:    Verdict{Status: StatusRejected, Critique: "Cite the 2023 figure.", Score: 60, Parsed: true},
		},
		{
			name:    "lowercase status and string score",
			content: `{"status": "approved", "score": "88/100"}`,
			want:    Verdict{Status: StatusApproved, Score: 88, Parsed: true},
		},
		{
			name:    "missing score is zero",
			content: `{"status": "APPROVED"}`,
			want:    Verdict{Status: StatusApproved, Score: 0, Parsed: true},
		},
		{
			name:    "score clamped",
			content: `{"status": "APPROVED", "score": 140}`,
			want:    Verdict{Status: StatusApproved, Score: 100, Parsed: true},
		},
		{
			name:    "verdict alias",
			content: `{"verdict": "needs_changes", "critique": "Too repetitive", "score": 40}`,
			want:    Verdict{Status: StatusRejected, Critique: "Too repetitive", Score: 40, Parsed: true},
		},
		{
			name:    "no json defaults to approved",
			content: "Looks good to me.",
			want:    Verdict{Status: StatusApproved, Score: 100},
		},
		{
			name:    "unknown status defaults to approved",
			content: `{"status": "MAYBE", "score": 50}`,
			want:    Verdict{Status: StatusApproved, Score: 100},
		},
		{
			name:    "strict default rejects",
			content: "not json",
			strict:  true,
			want:    Verdict{Status: StatusRejected, Critique: DefaultCritique, Score: 0},
		},
		{
			name:    "strict does not affect a valid verdict",
			content: `{"status": "APPROVED", "score": 95}`,
			strict:  true,
			want:    Verdict{Status: StatusApproved, Score: 95, Parsed: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseVerdict(tt.content, tt.strict))
		})
	}
}

func TestVerdict_Passes(t *testing.T) {
	assert.True(t, Verdict{Status: StatusApproved, Score: 86}.Passes(85))
	assert.False(t, Verdict{Status: StatusApproved, Score: 85}.Passes(85), "threshold is exclusive")
	assert.False(t, Verdict{Status: StatusRejected, Score: 99}.Passes(85))
}

func TestParseClaims(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseClaims(`{"claims": ["a", " ", "b", "c"]}`, 2))
	assert.Equal(t, []string{"x"}, ParseClaims(`["x"]`, 2))
	assert.Empty(t, ParseClaims("none", 2))
	assert.Empty(t, ParseClaims(`{"claims": []}`, 2))
}
