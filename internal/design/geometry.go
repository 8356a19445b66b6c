package design

import "math"

const (
	// CanvasPadding is the design-space margin every layer keeps from the canvas edges.
	CanvasPadding = 20.0
	// DefaultCanvasWidth is the logical canvas width used when none is configured.
	DefaultCanvasWidth = 600.0
	// DefaultCanvasHeight is the logical canvas height used when none is configured.
	DefaultCanvasHeight = 500.0
	// MaxRenderScale bounds the rendered canvas relative to the logical canvas on each axis.
	MaxRenderScale = 4.0
)

// Point is a position, either in design space or in screen pixels depending on context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - other.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Add returns p + other.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Scale holds the per-axis factor from design space to screen pixels.
type Scale struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transform maps between the fixed logical canvas and its rendered pixel box.
// The scale is cached and only recomputed when Resize is called.
type Transform struct {
	logical  Size
	rendered Size
	scale    Scale
}

// NewTransform constructs a transform for the logical canvas, initially unmeasured (1:1).
func NewTransform(logical Size) *Transform {
	if logical.Width <= 0 {
		logical.Width = DefaultCanvasWidth
	}
	if logical.Height <= 0 {
		logical.Height = DefaultCanvasHeight
	}
	return &Transform{
		logical: logical,
		scale:   Scale{X: 1, Y: 1},
	}
}

// Resize records the rendered pixel size reported on mount or on a layout change.
func (t *Transform) Resize(renderedWidth, renderedHeight float64) Scale {
	t.rendered = Size{Width: renderedWidth, Height: renderedHeight}
	t.scale = Scale{
		X: axisScale(renderedWidth, t.logical.Width),
		Y: axisScale(renderedHeight, t.logical.Height),
	}
	return t.scale
}

func axisScale(rendered, logical float64) float64 {
	if rendered <= 0 || logical <= 0 || math.IsNaN(rendered) || math.IsInf(rendered, 0) {
		return 1
	}
	return rendered / logical
}

// Scale returns the cached scale factor.
func (t *Transform) Scale() Scale {
	return t.scale
}

// Logical returns the design-space canvas size.
func (t *Transform) Logical() Size {
	return t.logical
}

// Rendered returns the rendered pixel size, falling back to the logical size when unmeasured.
func (t *Transform) Rendered() Size {
	return Size{
		Width:  t.logical.Width * t.scale.X,
		Height: t.logical.Height * t.scale.Y,
	}
}

// ToScreen converts a design-space point to screen pixels.
func (t *Transform) ToScreen(point Point) Point {
	return Point{X: point.X * t.scale.X, Y: point.Y * t.scale.Y}
}

// ToDesign converts a screen point to design space.
func (t *Transform) ToDesign(point Point) Point {
	return Point{X: point.X / t.scale.X, Y: point.Y / t.scale.Y}
}

// DeltaToDesign converts a pointer delta in screen pixels to a design-space delta.
func (t *Transform) DeltaToDesign(delta Point) Point {
	return t.ToDesign(delta)
}

func clampFloat(value, lower, upper float64) float64 {
	if math.IsNaN(value) {
		return lower
	}
	if value < lower {
		return lower
	}
	if value > upper {
		return upper
	}
	return value
}

// clampPosition keeps a box of the given size inside the padded canvas region.
// When the box is larger than the region the position pins to the padding.
func clampPosition(position Point, box Size, canvas Size) Point {
	maxX := math.Max(CanvasPadding, canvas.Width-CanvasPadding-box.Width)
	maxY := math.Max(CanvasPadding, canvas.Height-CanvasPadding-box.Height)
	return Point{
		X: clampFloat(position.X, CanvasPadding, maxX),
		Y: clampFloat(position.Y, CanvasPadding, maxY),
	}
}

// insidePaddedRegion reports whether a design-space point lies inside the padded interior.
func insidePaddedRegion(point Point, canvas Size) bool {
	return point.X >= CanvasPadding && point.X <= canvas.Width-CanvasPadding &&
		point.Y >= CanvasPadding && point.Y <= canvas.Height-CanvasPadding
}
