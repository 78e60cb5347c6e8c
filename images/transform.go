package images

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Rotate turns an image counter-clockwise by a multiple of 90 degrees, as needed for
// sensors mounted sideways or upside down.
//
// Arguments:
//   - img: The image. It is not modified.
//   - degrees: The rotation. Negative values rotate clockwise.
//
// Returns:
//   - image.Image: The rotated image, or img itself for multiples of 360.
//   - error: If degrees is not a multiple of 90.
func Rotate(img image.Image, degrees int) (image.Image, error) {
	switch ((degrees % 360) + 360) % 360 {
	case 0:
		return img, nil
	case 90:
		return imaging.Rotate90(img), nil
	case 180:
		return imaging.Rotate180(img), nil
	case 270:
		return imaging.Rotate270(img), nil
	}
	return nil, errors.Errorf("rotation must be a multiple of 90 degrees, got %d", degrees)
}

// Resize scales an image to exactly width x height with a linear filter. A zero
// dimension keeps the aspect ratio; both zero returns img unchanged.
func Resize(img image.Image, width, height int) image.Image {
	if width <= 0 && height <= 0 {
		return img
	}
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return imaging.Resize(img, width, height, imaging.Linear)
}
