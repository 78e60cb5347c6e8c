// Package images - Geometry and decoding utilities for frame processing.
package images

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// Rect is an axis-aligned box in either normalized ([0,1]) or pixel space.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// String implements fmt.Stringer.
func (r Rect) String() string {
	return fmt.Sprintf("(%.1f,%.1f)-(%.1f,%.1f)", r.X1, r.Y1, r.X2, r.Y2)
}

// Width returns the horizontal extent, zero for inverted boxes.
func (r Rect) Width() float32 {
	return math32.Max(0, r.X2-r.X1)
}

// Height returns the vertical extent, zero for inverted boxes.
func (r Rect) Height() float32 {
	return math32.Max(0, r.Y2-r.Y1)
}

// Area returns Width * Height.
func (r Rect) Area() float32 {
	return r.Width() * r.Height()
}

// Canon returns the box with corners ordered so that X1 <= X2 and Y1 <= Y2.
func (r Rect) Canon() Rect {
	if r.X1 > r.X2 {
		r.X1, r.X2 = r.X2, r.X1
	}
	if r.Y1 > r.Y2 {
		r.Y1, r.Y2 = r.Y2, r.Y1
	}
	return r
}

// Scale multiplies the horizontal coordinates by sx and the vertical ones by sy.
//
// Arguments:
//   - sx: The horizontal scale, usually the image width for normalized boxes.
//   - sy: The vertical scale, usually the image height for normalized boxes.
//
// Returns:
//   - Rect: The scaled box.
func (r Rect) Scale(sx, sy float32) Rect {
	return Rect{X1: r.X1 * sx, Y1: r.Y1 * sy, X2: r.X2 * sx, Y2: r.Y2 * sy}
}

// Clamp limits every coordinate to [0,w] horizontally and [0,h] vertically.
func (r Rect) Clamp(w, h float32) Rect {
	return Rect{
		X1: clamp(r.X1, 0, w),
		Y1: clamp(r.Y1, 0, h),
		X2: clamp(r.X2, 0, w),
		Y2: clamp(r.Y2, 0, h),
	}
}

// InUnit reports whether every coordinate lies in [0,1].
func (r Rect) InUnit() bool {
	return inUnit(r.X1) && inUnit(r.Y1) && inUnit(r.X2) && inUnit(r.Y2)
}

// Image converts the box to an integer image.Rectangle, rounding to the nearest pixel.
func (r Rect) Image() image.Rectangle {
	return image.Rect(
		int(math32.Round(r.X1)),
		int(math32.Round(r.Y1)),
		int(math32.Round(r.X2)),
		int(math32.Round(r.Y2)),
	)
}

// CenterRect builds a corner-form box from a center point and size.
//
// Arguments:
//   - cx, cy: The box center.
//   - w, h: The box width and height.
//
// Returns:
//   - Rect: The box with X1 = cx - w/2, Y1 = cy - h/2, X2 = cx + w/2, Y2 = cy + h/2.
func CenterRect(cx, cy, w, h float32) Rect {
	return Rect{X1: cx - w/2, Y1: cy - h/2, X2: cx + w/2, Y2: cy + h/2}
}

// CalculateIoU returns the Intersection over Union of two boxes.
//
// IoU answers "how much do these two boxes overlap?" with a value in [0,1]:
//
//	IoU = Area(A ∩ B) / (Area(A) + Area(B) - Area(A ∩ B))
//
// The intersection starts at the larger of the two top-left corners and ends at
// the smaller of the two bottom-right corners. A non-positive intersection width
// or height means the boxes do not overlap and the result is 0. Two degenerate
// boxes have a union of 0; that case also returns 0 instead of NaN.
//
// Arguments:
//   - r: The first box.
//   - o: The other box.
//
// Returns:
//   - float32: The IoU score. CalculateIoU(r, o) == CalculateIoU(o, r).
//
// Example Usage:
// ```go
//
//	a := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	b := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iou := CalculateIoU(a, b) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	interW := math32.Min(r.X2, o.X2) - math32.Max(r.X1, o.X1)
	interH := math32.Min(r.Y2, o.Y2) - math32.Max(r.Y1, o.Y1)
	if interW <= 0 || interH <= 0 {
		return 0
	}
	inter := interW * interH

	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}

	return inter / union
}

func clamp(v, lo, hi float32) float32 {
	return math32.Min(math32.Max(v, lo), hi)
}

func inUnit(v float32) bool {
	return v >= 0 && v <= 1
}
