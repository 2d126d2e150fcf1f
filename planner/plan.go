// Package planner turns gathered evidence into a report plan: a summary, an
// optional chart series and the ordered section outline.
package planner

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hassan-khan-web/ScholarForge/llm"
)

// DefaultOutline is used when the model's plan has no usable outline.
var DefaultOutline = []string{"Introduction", "Analysis", "Conclusion"}

// Point is one bar of the chart.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartSpec describes a single bar or column chart.
type ChartSpec struct {
	Title  string  `json:"title"`
	XLabel string  `json:"x_label"`
	YLabel string  `json:"y_label"`
	Series []Point `json:"data"`
}

// Plan is the output of the planning call.
type Plan struct {
	Summary string     `json:"summary"`
	Chart   *ChartSpec `json:"chart_data,omitempty"`
	Outline []string   `json:"outline"`
}

// Parse reads a plan from model output. Missing or invalid keys are filled
// with defaults, so the result is always usable; ok reports whether the
// outline came from the model.
func Parse(content string, target int) (Plan, bool) {
	plan := Plan{}

	var raw map[string]json.RawMessage
	if err := llm.DecodeJSON(content, &raw); err == nil {
		plan.Summary = parseSummary(raw["summary"])
		plan.Chart = parseChart(firstPresent(raw, "chart_data", "chart"))
		plan.Outline = parseOutline(raw["outline"])
	} else if arr := llm.ExtractJSONArray(content); arr != "" {
		// Some models answer with the bare outline list
		plan.Outline = parseOutline(json.RawMessage(arr))
	}

	ok := len(plan.Outline) > 0
	if !ok {
		plan.Outline = append([]string(nil), DefaultOutline...)
	}
	if target > 0 && len(plan.Outline) > target {
		plan.Outline = plan.Outline[:target]
	}
	return plan, ok
}

// Fallback is the plan used when the planning call failed outright.
func Fallback() Plan {
	return Plan{Outline: append([]string(nil), DefaultOutline...)}
}

func firstPresent(raw map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := raw[k]; ok && len(v) > 0 && string(v) != "null" {
			return v
		}
	}
	return nil
}

func parseSummary(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func parseOutline(data json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}

	outline := make([]string, 0, len(items))
	for _, item := range items {
		var title string
		if err := json.Unmarshal(item, &title); err != nil {
			// Accept {"title": "..."} entries as well
			var obj struct {
				Title string `json:"title"`
			}
			if json.Unmarshal(item, &obj) != nil {
				continue
			}
			title = obj.Title
		}
		if title = strings.TrimSpace(title); title != "" {
			outline = append(outline, title)
		}
	}
	return outline
}

func parseChart(data json.RawMessage) *ChartSpec {
	if len(data) == 0 {
		return nil
	}
	var raw struct {
		Title  string            `json:"title"`
		XLabel string            `json:"x_label"`
		YLabel string            `json:"y_label"`
		Data   []json.RawMessage `json:"data"`
		Series []json.RawMessage `json:"series"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	entries := raw.Data
	if len(entries) == 0 {
		entries = raw.Series
	}

	chart := &ChartSpec{
		Title:  strings.TrimSpace(raw.Title),
		XLabel: strings.TrimSpace(raw.XLabel),
		YLabel: strings.TrimSpace(raw.YLabel),
	}
	for _, e := range entries {
		var p struct {
			Label json.RawMessage `json:"label"`
			Value json.RawMessage `json:"value"`
		}
		if json.Unmarshal(e, &p) != nil {
			continue
		}
		label := scalarString(p.Label)
		value, ok := number(p.Value)
		if label == "" || !ok {
			continue
		}
		chart.Series = append(chart.Series, Point{Label: label, Value: value})
	}

	if len(chart.Series) == 0 {
		return nil
	}
	if chart.Title == "" {
		chart.Title = "Analysis"
	}
	return chart
}

// number accepts JSON numbers and numeric strings such as "12.5" or "40%".
func number(data json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(strings.NewReplacer(",", "", "%", "", "$", "").Replace(s))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// scalarString renders a JSON string or number label.
func scalarString(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}
