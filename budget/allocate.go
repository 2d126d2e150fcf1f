// Package budget splits a report outline into a fixed number of writing calls.
package budget

// Bundle is a contiguous run of outline sections written by one call.
type Bundle struct {
	Index    int
	Sections []string
}

// Allocate partitions outline into at most calls ordered, contiguous bundles.
// Each step takes ceil(remaining sections / remaining calls), so earlier
// bundles are never smaller than later ones. With fewer sections than calls
// every section gets its own bundle. calls <= 0 is treated as 1.
func Allocate(outline []string, calls int) []Bundle {
	if len(outline) == 0 {
		return nil
	}
	if calls <= 0 {
		calls = 1
	}

	bundles := make([]Bundle, 0, min(calls, len(outline)))
	start := 0
	for remainingCalls := calls; start < len(outline) && remainingCalls > 0; remainingCalls-- {
		remaining := len(outline) - start
		size := (remaining + remainingCalls - 1) / remainingCalls

		sections := make([]string, size)
		copy(sections, outline[start:start+size])
		bundles = append(bundles, Bundle{Index: len(bundles), Sections: sections})
		start += size
	}
	return bundles
}

// WordsPerSection spreads 450 words per page over the outline, with a floor
// of 400 words per section.
func WordsPerSection(pages, sections int) int {
	if sections < 1 {
		sections = 1
	}
	return max(400, pages*450/sections)
}
