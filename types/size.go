package types

import (
	"fmt"
	"image"
)

// Size is the extent of a 2D grid in pixels (or coefficients)
type Size struct {
	X, Y int
}

func NewSize(nx, ny int) Size {
	return Size{X: nx, Y: ny}
}

func (s Size) Product() int { return s.X * s.Y }

func (s Size) Min() int { return min(s.X, s.Y) }

func (s Size) IsEmpty() bool { return s.X <= 0 || s.Y <= 0 }

// Linear returns the row-major linear index of (x,y)
func (s Size) Linear(x, y int) int { return y*s.X + x }

// Rect is the full region covered by the grid
func (s Size) Rect() image.Rectangle { return image.Rect(0, 0, s.X, s.Y) }

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.X, s.Y) }

// ClipRegion restricts a region to the grid. An empty region means the full grid.
func (s Size) ClipRegion(region image.Rectangle) image.Rectangle {
	if region.Empty() {
		return s.Rect()
	}
	return region.Intersect(s.Rect())
}
