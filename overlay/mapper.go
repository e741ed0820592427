// Package overlay turns detection geometry into time-bounded on-screen
// annotations.
package overlay

import (
	"errors"
	"image"

	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-capture/detect"
)

// ErrNotMappable indicates the coordinate transform is undefined, either
// because the native resolution has not been resolved yet or because the
// display element has zero layout size. Callers skip rendering rather than
// divide by zero.
var ErrNotMappable = errors.New("overlay: not mappable")

// Rect is an axis-aligned rectangle in display (viewport) space.
type Rect struct {
	X float32
	Y float32
	W float32
	H float32
}

// ToImageRect converts to an integral rectangle for drawing.
func (r Rect) ToImageRect() image.Rectangle {
	x := int(math32.Round(r.X))
	y := int(math32.Round(r.Y))
	return image.Rect(x, y, x+int(math32.Round(r.W)), y+int(math32.Round(r.H)))
}

// MapToDisplay converts a bounding box from native pixel space into the
// rendered viewport space.
//
// The live preview is rendered horizontally mirrored so users see themselves
// as in a mirror, while the detector reports coordinates in the un-mirrored
// native frame. The horizontal axis is therefore flipped before scaling:
//
//	screenX = (nativeW - x - w) * scaleX
//	screenY = y * scaleY
func MapToDisplay(b detect.BBox, nativeWidth, nativeHeight, displayWidth, displayHeight int) (Rect, error) {
	if nativeWidth <= 0 || nativeHeight <= 0 || displayWidth <= 0 || displayHeight <= 0 {
		return Rect{}, ErrNotMappable
	}
	scaleX := float32(displayWidth) / float32(nativeWidth)
	scaleY := float32(displayHeight) / float32(nativeHeight)
	return Rect{
		X: (float32(nativeWidth) - b.X - b.W) * scaleX,
		Y: b.Y * scaleY,
		W: b.W * scaleX,
		H: b.H * scaleY,
	}, nil
}
