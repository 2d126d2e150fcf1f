package budget

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func outline(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("S%d", i+1)
	}
	return out
}

func TestAllocate_Examples(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		calls int
		want  []Bundle
	}{
		{
			name:  "seven into three",
			n:     7,
			calls: 3,
			want: []Bundle{
				{Index: 0, Sections: []string{"S1", "S2", "S3"}},
				{Index: 1, Sections: []string{"S4", "S5"}},
				{Index: 2, Sections: []string{"S6", "S7"}},
			},
		},
		{
			name:  "fewer sections than calls",
			n:     2,
			calls: 5,
			want: []Bundle{
				{Index: 0, Sections: []string{"S1"}},
				{Index: 1, Sections: []string{"S2"}},
			},
		},
		{
			name:  "zero calls means one",
			n:     3,
			calls: 0,
			want:  []Bundle{{Index: 0, Sections: []string{"S1", "S2", "S3"}}},
		},
		{
			name:  "negative calls means one",
			n:     2,
			calls: -4,
			want:  []Bundle{{Index: 0, Sections: []string{"S1", "S2"}}},
		},
		{
			name:  "empty outline",
			n:     0,
			calls: 3,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Allocate(outline(tt.n), tt.calls)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Allocate(%d, %d) mismatch (-want +got):\n%s", tt.n, tt.calls, diff)
			}
		})
	}
}

func TestAllocate_PartitionGrid(t *testing.T) {
	for n := 1; n <= 20; n++ {
		for k := 1; k <= 20; k++ {
			in := outline(n)
			bundles := Allocate(in, k)

			assert.LessOrEqual(t, len(bundles), k, "n=%d k=%d", n, k)
			if n <= k {
				assert.Len(t, bundles, n, "n=%d k=%d", n, k)
			} else {
				assert.Len(t, bundles, k, "n=%d k=%d", n, k)
			}

			var flat []string
			prev := n + 1
			for i, b := range bundles {
				assert.Equal(t, i, b.Index)
				assert.NotEmpty(t, b.Sections, "n=%d k=%d", n, k)
				assert.LessOrEqual(t, len(b.Sections), prev, "bundle sizes must not grow, n=%d k=%d", n, k)
				prev = len(b.Sections)
				flat = append(flat, b.Sections...)
			}
			if diff := cmp.Diff(in, flat); diff != "" {
				t.Fatalf("n=%d k=%d concatenation differs (-want +got):\n%s", n, k, diff)
			}
		}
	}
}

func TestAllocate_DoesNotAliasOutline(t *testing.T) {
	in := outline(4)
	bundles := Allocate(in, 2)
	bundles[0].Sections[0] = "changed"
	assert.Equal(t, "S1", in[0])
}

func TestWordsPerSection(t *testing.T) {
	tests := []struct {
		pages, sections, want int
	}{
		{10, 7, 642},
		{3, 3, 450},
		{1, 3, 400},
		{25, 15, 750},
		{5, 0, 2250},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dp_%ds", tt.pages, tt.sections), func(t *testing.T) {
			assert.Equal(t, tt.want, WordsPerSection(tt.pages, tt.sections))
		})
	}
}
