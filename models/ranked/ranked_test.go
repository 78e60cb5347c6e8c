package ranked

import (
	"testing"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func newDecoder(t *testing.T, rows int) *Decoder {
	t.Helper()

	desc, err := model.NewDescriptor(
		model.TensorInfo{Name: "in", Dims: []int64{1, 640, 640, 3}, Type: model.DataTypeFloat32},
		[]model.TensorInfo{{Name: "out", Dims: []int64{1, int64(rows), 6}, Type: model.DataTypeFloat32}},
		model.Options{Normalization: &model.Normalization{Mean: 128, Std: 128}, MasksNum: -1},
	)
	require.NoError(t, err)
	require.Equal(t, model.ConventionRanked, desc.Convention)

	return New(desc, DefaultFloor)
}

func rowsTensor(rows ...[]float32) *tensor.Dense {
	data := make([]float32, 0, len(rows)*6)
	for _, r := range rows {
		data = append(data, r...)
	}
	return tensor.New(tensor.WithShape(1, len(rows), 6), tensor.WithBacking(data))
}

// TestDecode scales rows to pixels and skips padding rows below the floor.
func TestDecode(t *testing.T) {
	d := newDecoder(t, 3)

	out := rowsTensor(
		[]float32{0.1, 0.1, 0.5, 0.5, 0.95, 3},
		[]float32{0, 0, 0, 0, 0.001, 0},
		[]float32{0.2, 0.3, 0.4, 0.9, 0.4, 17},
	)

	cands, err := d.Decode(model.Tensors{out}, 100, 200)
	require.NoError(t, err)
	require.Len(t, cands, 2)

	assert.Equal(t, images.Rect{X1: 10, Y1: 20, X2: 50, Y2: 100}, cands[0].Box)
	assert.Equal(t, 3, cands[0].Class)
	assert.InDelta(t, 0.95, cands[0].Score, 1e-6)
	assert.Equal(t, 0, cands[0].Index)

	assert.Equal(t, 17, cands[1].Class)
	assert.Equal(t, 2, cands[1].Index)
	assert.InDelta(t, 20, cands[1].Box.X1, 1e-4)
	assert.InDelta(t, 180, cands[1].Box.Y2, 1e-4)

	assert.False(t, d.Suppress())
}

// TestDecodeAllPadding returns no candidates, which is not an error.
func TestDecodeAllPadding(t *testing.T) {
	d := newDecoder(t, 2)

	cands, err := d.Decode(model.Tensors{rowsTensor(make([]float32, 6), make([]float32, 6))}, 640, 480)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

// TestDecodeShapeMismatch rejects outputs of the wrong size.
func TestDecodeShapeMismatch(t *testing.T) {
	d := newDecoder(t, 300)

	_, err := d.Decode(model.Tensors{rowsTensor([]float32{0.1, 0.1, 0.5, 0.5, 0.95, 3})}, 100, 100)

	var mismatch *model.ShapeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1800, mismatch.Want)
	assert.Equal(t, 6, mismatch.Got)
}
