package postprocess

import (
	"math/rand"
	"testing"

	"github.com/nvr-ai/go-detect/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(x1, y1, x2, y2 float32) images.Rect {
	return images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// randomCandidates produces a reproducible set of overlapping candidates.
func randomCandidates(seed int64, n int) []Candidate {
	r := rand.New(rand.NewSource(seed))
	out := make([]Candidate, n)
	for i := range out {
		x, y := r.Float32()*200, r.Float32()*200
		w, h := 10+r.Float32()*80, 10+r.Float32()*80
		out[i] = Candidate{
			Box:   box(x, y, x+w, y+h),
			Score: r.Float32(),
			Class: r.Intn(3),
			Index: i,
		}
	}
	return out
}

// TestFilter checks inclusivity at the threshold and order preservation.
func TestFilter(t *testing.T) {
	in := []Candidate{
		{Score: 0.9, Index: 0},
		{Score: 0.5, Index: 1},
		{Score: 0.7, Index: 2},
		{Score: 0.69, Index: 3},
	}

	out := Filter(in, 0.7)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].Index)
	assert.Equal(t, 2, out[1].Index)

	assert.Empty(t, Filter(nil, 0.5))
	assert.Len(t, in, 4, "input must not be modified")
}

// TestFilterMonotonic verifies t1 <= t2 implies Filter(t2) ⊆ Filter(t1).
func TestFilterMonotonic(t *testing.T) {
	cands := randomCandidates(7, 200)
	thresholds := []float32{0, 0.1, 0.25, 0.5, 0.7, 0.9, 1}

	for i := 1; i < len(thresholds); i++ {
		loose := Filter(cands, thresholds[i-1])
		strict := Filter(cands, thresholds[i])

		looseIdx := map[int]bool{}
		for _, c := range loose {
			looseIdx[c.Index] = true
		}
		for _, c := range strict {
			assert.True(t, looseIdx[c.Index], "candidate %d kept at %.2f but not at %.2f", c.Index, thresholds[i], thresholds[i-1])
		}
		assert.LessOrEqual(t, len(strict), len(loose))
	}
}

// TestSuppress covers the overlap threshold boundary cases.
func TestSuppress(t *testing.T) {
	tests := []struct {
		name     string
		in       []Candidate
		config   NMSConfig
		expected []int
	}{
		{
			name: "overlap above threshold keeps the stronger box",
			in: []Candidate{
				{Box: box(0, 0, 100, 80), Score: 0.6, Index: 0},
				{Box: box(0, 0, 100, 100), Score: 0.9, Index: 1},
			},
			config:   NMSConfig{IoUThreshold: 0.5},
			expected: []int{1},
		},
		{
			name: "overlap below threshold keeps both",
			in: []Candidate{
				{Box: box(0, 0, 100, 100), Score: 0.9, Index: 0},
				{Box: box(0, 0, 100, 30), Score: 0.6, Index: 1},
			},
			config:   NMSConfig{IoUThreshold: 0.5},
			expected: []int{0, 1},
		},
		{
			name: "overlap equal to threshold suppresses",
			in: []Candidate{
				{Box: box(0, 0, 100, 100), Score: 0.9, Index: 0},
				{Box: box(0, 0, 100, 50), Score: 0.6, Index: 1},
			},
			config:   NMSConfig{IoUThreshold: 0.5},
			expected: []int{0},
		},
		{
			name: "class aware keeps overlapping boxes of different classes",
			in: []Candidate{
				{Box: box(0, 0, 100, 100), Score: 0.9, Class: 0, Index: 0},
				{Box: box(0, 0, 100, 100), Score: 0.8, Class: 1, Index: 1},
				{Box: box(0, 0, 100, 100), Score: 0.7, Class: 0, Index: 2},
			},
			config:   NMSConfig{IoUThreshold: 0.5, ClassAware: true},
			expected: []int{0, 1},
		},
		{
			name: "equal scores keep scan order",
			in: []Candidate{
				{Box: box(0, 0, 10, 10), Score: 0.8, Index: 0},
				{Box: box(50, 50, 60, 60), Score: 0.8, Index: 1},
				{Box: box(0, 0, 10, 10), Score: 0.8, Index: 2},
			},
			config:   NMSConfig{IoUThreshold: 0.5},
			expected: []int{0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Suppress(tt.in, tt.config)
			got := make([]int, len(out))
			for i, c := range out {
				got[i] = c.Index
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

// TestSuppressIdempotent verifies Suppress(Suppress(x)) == Suppress(x) and the no-overlap invariant.
func TestSuppressIdempotent(t *testing.T) {
	config := NMSConfig{IoUThreshold: 0.45}

	for seed := int64(1); seed <= 5; seed++ {
		once := Suppress(randomCandidates(seed, 150), config)
		twice := Suppress(once, config)
		assert.Equal(t, once, twice)

		for i := range once {
			for j := i + 1; j < len(once); j++ {
				assert.Less(t, images.CalculateIoU(once[i].Box, once[j].Box), config.IoUThreshold)
			}
			if i > 0 {
				assert.GreaterOrEqual(t, once[i-1].Score, once[i].Score)
			}
		}
	}
}

// TestSuppressEmpty ensures an empty input yields an empty output.
func TestSuppressEmpty(t *testing.T) {
	assert.Empty(t, Suppress(nil, NMSConfig{IoUThreshold: 0.5}))
}

// BenchmarkSuppress measures suppression over a dense grid-sized candidate set.
func BenchmarkSuppress(b *testing.B) {
	cands := randomCandidates(42, 500)
	config := NMSConfig{IoUThreshold: 0.45}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Suppress(cands, config)
	}
}
