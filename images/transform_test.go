package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRotate swaps dimensions for quarter turns and moves a marked corner pixel.
func TestRotate(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	img.Set(3, 0, color.NRGBA{R: 255, A: 255})

	tests := []struct {
		degrees int
		size    image.Point
		marked  image.Point
	}{
		{degrees: 0, size: image.Pt(4, 2), marked: image.Pt(3, 0)},
		{degrees: 360, size: image.Pt(4, 2), marked: image.Pt(3, 0)},
		{degrees: 90, size: image.Pt(2, 4), marked: image.Pt(0, 0)},
		{degrees: 180, size: image.Pt(4, 2), marked: image.Pt(0, 1)},
		{degrees: 270, size: image.Pt(2, 4), marked: image.Pt(1, 3)},
		{degrees: -90, size: image.Pt(2, 4), marked: image.Pt(1, 3)},
	}

	for _, tt := range tests {
		got, err := Rotate(img, tt.degrees)
		require.NoError(t, err)
		assert.Equal(t, tt.size, got.Bounds().Size(), "degrees %d", tt.degrees)

		r, _, _, _ := got.At(tt.marked.X, tt.marked.Y).RGBA()
		assert.Equal(t, uint32(0xffff), r, "degrees %d", tt.degrees)
	}

	_, err := Rotate(img, 45)
	assert.Error(t, err)
}

// TestResize scales to the requested size and keeps aspect ratio for zero dimensions.
func TestResize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))

	assert.Equal(t, image.Pt(64, 64), Resize(img, 64, 64).Bounds().Size())
	assert.Equal(t, image.Pt(100, 50), Resize(img, 100, 0).Bounds().Size())
	assert.Same(t, img, Resize(img, 0, 0))
}
