package council

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hassan-khan-web/ScholarForge/llm"
)

// Status is the Inquisitor's decision.
type Status string

const (
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// DefaultCritique is handed to the Artisan when a rejection carries none.
const DefaultCritique = "Improve verification and flow."

// Verdict is one review result.
type Verdict struct {
	Status   Status
	Critique string
	Score    int
	// Parsed is false when the verdict is the parse-failure default.
	Parsed bool
}

// Passes reports whether the verdict ends the review loop.
func (v Verdict) Passes(threshold int) bool {
	return v.Status == StatusApproved && v.Score > threshold
}

// ParseVerdict reads {status, critique, score} from model output. When no
// valid verdict is found it returns APPROVED/100, or REJECTED/0 with the
// default critique when strict is set.
func ParseVerdict(content string, strict bool) Verdict {
	var raw struct {
		Status   string          `json:"status"`
		Verdict  string          `json:"verdict"`
		Critique string          `json:"critique"`
		Score    json.RawMessage `json:"score"`
	}
	if err := llm.DecodeJSON(content, &raw); err != nil {
		return fallbackVerdict(strict)
	}

	status := raw.Status
	if status == "" {
		status = raw.Verdict
	}
	st, ok := parseStatus(status)
	if !ok {
		return fallbackVerdict(strict)
	}

	return Verdict{
		Status:   st,
		Critique: strings.TrimSpace(raw.Critique),
		Score:    parseScore(raw.Score),
		Parsed:   true,
	}
}

func fallbackVerdict(strict bool) Verdict {
	if strict {
		return Verdict{Status: StatusRejected, Critique: DefaultCritique, Score: 0}
	}
	return Verdict{Status: StatusApproved, Score: 100}
}

func parseStatus(s string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "APPROVED", "APPROVE", "PASS", "PASSED":
		return StatusApproved, true
	case "REJECTED", "REJECT", "FAIL", "FAILED", "NEEDS_CHANGES":
		return StatusRejected, true
	}
	return "", false
}

// parseScore accepts numbers and numeric strings, clamped to 0..100. A
// missing score is 0.
func parseScore(data json.RawMessage) int {
	if len(data) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		var s string
		if json.Unmarshal(data, &s) != nil {
			return 0
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "/100"))
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return 0
		}
	}
	return min(100, max(0, int(f)))
}
