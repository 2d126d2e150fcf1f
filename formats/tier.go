// Package formats maps page counts to report size tiers and renders the
// structural skeleton of each report format.
package formats

// Tier names.
const (
	TierShort    = "short"
	TierMedium   = "medium"
	TierLong     = "long"
	TierVeryLong = "very_long"
)

// Tier describes report depth for a range of page counts.
type Tier struct {
	Name string

	// MaxPages is the largest page count in the tier; 0 means unbounded.
	MaxPages int

	// Sections is the outline length the planner asks for.
	Sections int

	// WritingCalls is the number of direct-mode writer calls.
	WritingCalls int

	// ComplexityNote is inserted into the format skeleton.
	ComplexityNote string
}

var tiers = []Tier{
	{
		Name:           TierShort,
		MaxPages:       6,
		Sections:       3,
		WritingCalls:   2,
		ComplexityNote: "Keep the structure concise. Focus only on the most critical high-level points.",
	},
	{
		Name:           TierMedium,
		MaxPages:       12,
		Sections:       7,
		WritingCalls:   3,
		ComplexityNote: "Standard report depth. Include background, main analysis, and distinct sub-themes.",
	},
	{
		Name:           TierLong,
		MaxPages:       22,
		Sections:       10,
		WritingCalls:   7,
		ComplexityNote: "Comprehensive deep-dive. Add extra sections for Context, Economic Impact, Future Outlook.",
	},
	{
		Name:           TierVeryLong,
		Sections:       15,
		WritingCalls:   11,
		ComplexityNote: "Extremely detailed research report. Deep analysis of all technical, economic, and strategic dimensions.",
	},
}

// TierFor returns the tier for a page count. Counts below 1 are treated as 1.
func TierFor(pages int) Tier {
	for _, t := range tiers {
		if t.MaxPages == 0 || pages <= t.MaxPages {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// Tiers returns the tier table in ascending order.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}
