package grid

import (
	"testing"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

// element is one grid column before it is laid out channel-major.
type element struct {
	cx, cy, w, h float32
	scores       []float32
	mask         []float32
}

// gridTensor lays elements out as [1, C, E].
func gridTensor(elements ...element) *tensor.Dense {
	c := 4 + len(elements[0].scores) + len(elements[0].mask)
	e := len(elements)
	data := make([]float32, c*e)

	for i, el := range elements {
		col := append([]float32{el.cx, el.cy, el.w, el.h}, el.scores...)
		col = append(col, el.mask...)
		for ch, v := range col {
			data[ch*e+i] = v
		}
	}

	return tensor.New(tensor.WithShape(1, c, e), tensor.WithBacking(data))
}

func newDecoder(t *testing.T, channels, elements, masks int, policy BoxPolicy) *Decoder {
	t.Helper()

	desc, err := model.NewDescriptor(
		model.TensorInfo{Name: "images", Dims: []int64{1, 3, 640, 640}, Type: model.DataTypeFloat32},
		[]model.TensorInfo{{Name: "output0", Dims: []int64{1, int64(channels), int64(elements)}, Type: model.DataTypeFloat32}},
		model.Options{Normalization: &model.Normalization{Mean: 0, Std: 255}, MasksNum: masks, Convention: model.ConventionGrid},
	)
	require.NoError(t, err)

	d, err := New(desc, 0.5, policy)
	require.NoError(t, err)
	return d
}

// TestDecode covers arg-max class selection, the threshold, corner conversion and scaling.
func TestDecode(t *testing.T) {
	d := newDecoder(t, 7, 4, 0, BoxPolicyDrop)

	out := gridTensor(
		element{cx: 0.5, cy: 0.5, w: 0.2, h: 0.4, scores: []float32{0.1, 0.8, 0.3}},
		element{cx: 0.5, cy: 0.5, w: 0.2, h: 0.2, scores: []float32{0.2, 0.3, 0.4}},
		element{cx: 0.25, cy: 0.75, w: 0.5, h: 0.5, scores: []float32{0.9, 0.1, 0.0}},
		element{cx: 0.1, cy: 0.1, w: 0.1, h: 0.1, scores: []float32{0.5, 0.0, 0.0}},
	)

	cands, err := d.Decode(model.Tensors{out}, 1000, 500)
	require.NoError(t, err)
	require.Len(t, cands, 3)

	assert.Equal(t, 1, cands[0].Class)
	assert.InDelta(t, 0.8, cands[0].Score, 1e-6)
	assert.InDelta(t, 400, cands[0].Box.X1, 1e-3)
	assert.InDelta(t, 150, cands[0].Box.Y1, 1e-3)
	assert.InDelta(t, 600, cands[0].Box.X2, 1e-3)
	assert.InDelta(t, 350, cands[0].Box.Y2, 1e-3)
	assert.Nil(t, cands[0].Mask)

	assert.Equal(t, 0, cands[1].Class)
	assert.Equal(t, 2, cands[1].Index)
	assert.InDelta(t, 0, cands[1].Box.X1, 1e-3)
	assert.InDelta(t, 500, cands[1].Box.Y2, 1e-3)

	assert.Equal(t, 3, cands[2].Index, "a score equal to the threshold is kept")

	assert.True(t, d.Suppress())
}

// TestDecodeBelowThreshold yields nothing when every class score is under the threshold.
func TestDecodeBelowThreshold(t *testing.T) {
	d := newDecoder(t, 6, 1, 0, BoxPolicyDrop)

	cands, err := d.Decode(model.Tensors{gridTensor(
		element{cx: 0.5, cy: 0.5, w: 0.2, h: 0.2, scores: []float32{0.3, 0.49}},
	)}, 640, 640)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

// TestDecodeBoxPolicy checks out-of-range boxes are dropped or clamped by policy.
func TestDecodeBoxPolicy(t *testing.T) {
	outside := element{cx: 0.95, cy: 0.5, w: 0.2, h: 0.2, scores: []float32{0.9, 0.1}}

	drop := newDecoder(t, 6, 1, 0, BoxPolicyDrop)
	cands, err := drop.Decode(model.Tensors{gridTensor(outside)}, 100, 100)
	require.NoError(t, err)
	assert.Empty(t, cands)

	clamp := newDecoder(t, 6, 1, 0, BoxPolicyClamp)
	cands, err = clamp.Decode(model.Tensors{gridTensor(outside)}, 100, 100)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.InDelta(t, 85, cands[0].Box.X1, 1e-3)
	assert.InDelta(t, 100, cands[0].Box.X2, 1e-3)
}

// TestDecodeMasks collects the trailing mask weights per candidate.
func TestDecodeMasks(t *testing.T) {
	d := newDecoder(t, 9, 2, 3, "")

	cands, err := d.Decode(model.Tensors{gridTensor(
		element{cx: 0.5, cy: 0.5, w: 0.2, h: 0.2, scores: []float32{0.1, 0.9}, mask: []float32{1, 2, 3}},
		element{cx: 0.5, cy: 0.5, w: 0.2, h: 0.2, scores: []float32{0.1, 0.2}, mask: []float32{4, 5, 6}},
	)}, 640, 640)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, []float32{1, 2, 3}, cands[0].Mask)
	assert.Equal(t, 1, cands[0].Class)
	assertBox(t, images.Rect{X1: 256, Y1: 256, X2: 384, Y2: 384}, cands[0].Box)
}

// TestDecodeShapeMismatch rejects outputs whose size does not match the descriptor.
func TestDecodeShapeMismatch(t *testing.T) {
	d := newDecoder(t, 84, 8400, 0, BoxPolicyDrop)

	_, err := d.Decode(model.Tensors{gridTensor(
		element{cx: 0.5, cy: 0.5, w: 0.2, h: 0.2, scores: []float32{0.9}},
	)}, 640, 640)

	var mismatch *model.ShapeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 84*8400, mismatch.Want)
}

// TestNewUnknownPolicy rejects unknown policies.
func TestNewUnknownPolicy(t *testing.T) {
	desc := &model.Descriptor{Outputs: []model.TensorInfo{{Name: "output0"}}}
	_, err := New(desc, 0.5, "wrap")
	assert.Error(t, err)
}

func assertBox(t *testing.T, want, got images.Rect) {
	t.Helper()
	assert.InDelta(t, want.X1, got.X1, 1e-3)
	assert.InDelta(t, want.Y1, got.Y1, 1e-3)
	assert.InDelta(t, want.X2, got.X2, 1e-3)
	assert.InDelta(t, want.Y2, got.Y2, 1e-3)
}
