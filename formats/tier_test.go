package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		pages    int
		name     string
		sections int
		calls    int
	}{
		{0, TierShort, 3, 2},
		{1, TierShort, 3, 2},
		{6, TierShort, 3, 2},
		{7, TierMedium, 7, 3},
		{12, TierMedium, 7, 3},
		{13, TierLong, 10, 7},
		{15, TierLong, 10, 7},
		{22, TierLong, 10, 7},
		{23, TierVeryLong, 15, 11},
		{25, TierVeryLong, 15, 11},
		{400, TierVeryLong, 15, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier := TierFor(tt.pages)
			assert.Equal(t, tt.name, tier.Name, "pages=%d", tt.pages)
			assert.Equal(t, tt.sections, tier.Sections)
			assert.Equal(t, tt.calls, tier.WritingCalls)
		})
	}
}

func TestTierFor_Monotonic(t *testing.T) {
	prev := TierFor(1)
	for pages := 2; pages <= 60; pages++ {
		cur := TierFor(pages)
		assert.GreaterOrEqual(t, cur.Sections, prev.Sections, "pages=%d", pages)
		assert.GreaterOrEqual(t, cur.WritingCalls, prev.WritingCalls, "pages=%d", pages)
		assert.LessOrEqual(t, cur.WritingCalls, cur.Sections)
		prev = cur
	}
}

func TestRender(t *testing.T) {
	t.Run("literature review medium", func(t *testing.T) {
		in := Render(LiteratureReview, 10, "")
		assert.Equal(t, LiteratureReview, in.Format)
		assert.Equal(t, 7, in.Tier.Sections)
		assert.Contains(t, in.Template, "Generate 4 to 6 distinct thematic sections")
		assert.Contains(t, in.Template, "# 6. Conclusion & Future Research")
		assert.Contains(t, in.Template, "# 7. References")
		assert.Contains(t, in.Template, "Standard report depth.")
		assert.NotContains(t, in.Template, "{")
	})

	t.Run("short tier floors middle count", func(t *testing.T) {
		in := Render(CaseStudy, 3, "")
		assert.Contains(t, in.Template, "Generate 2 to 4 sections")
		assert.Contains(t, in.Template, "# 3. Conclusion")
	})

	t.Run("unknown falls back", func(t *testing.T) {
		in := Render("screenplay", 10, "")
		assert.Equal(t, LiteratureReview, in.Format)
	})

	t.Run("custom with structure", func(t *testing.T) {
		in := Render(Custom, 30, "1. Origins\n2. Rivals\n3. Legacy")
		assert.Equal(t, Custom, in.Format)
		assert.Contains(t, in.Template, "2. Rivals")
		assert.Contains(t, in.Template, "Extremely detailed research report.")
	})

	t.Run("custom without structure", func(t *testing.T) {
		in := Render(Custom, 30, "  ")
		assert.Equal(t, LiteratureReview, in.Format)
	})
}

func TestKeys(t *testing.T) {
	keys := Keys()
	require.Len(t, keys, 6)
	assert.Contains(t, keys, Custom)
	for _, k := range keys {
		if k == Custom {
			continue
		}
		assert.Equal(t, k, Lookup(k).Key)
	}
}
