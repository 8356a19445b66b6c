package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/design"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var (
	// ErrRasterizationFailed indicates that every renderer failed.
	ErrRasterizationFailed = errors.New("raster: rasterization failed")
	// ErrMissingAsset indicates an image layer whose pixels are unavailable.
	ErrMissingAsset = errors.New("raster: missing asset")
	// ErrMissingBackground indicates the mockup could not be loaded.
	ErrMissingBackground = errors.New("raster: missing background")
	errInvalidHexColor   = errors.New("raster: invalid hex color")
	errEmptyScene        = errors.New("raster: scene has no pixels")
)

// Scene is one flattening job at a concrete pixel size.
type Scene struct {
	Design     design.Design
	Width      int
	Height     int
	Scale      design.Scale
	Background image.Image
	Fill       color.Color
	Assets     map[string]image.Image
}

// DefaultMaxPixels bounds the pixel area of one scene when none is configured.
const DefaultMaxPixels = 4096 * 4096

// NewScene builds a scene from an editor render state. The output matches the rendered
// canvas size, or the logical size when the canvas was never measured. A canvas larger
// than maxPixels is scaled down uniformly to fit.
func NewScene(state design.RenderState, background image.Image, fill color.Color, maxPixels int) Scene {
	width := state.Rendered.Width
	height := state.Rendered.Height
	scale := state.Scale
	if !measured(width) || !measured(height) || !measured(scale.X) || !measured(scale.Y) {
		canvas := state.Design.Canvas()
		width = canvas.Width
		height = canvas.Height
		scale = design.Scale{X: 1, Y: 1}
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	round := math.Round
	if area := width * height; area > float64(maxPixels) {
		shrink := math.Sqrt(float64(maxPixels) / area)
		width *= shrink
		height *= shrink
		scale = design.Scale{X: scale.X * shrink, Y: scale.Y * shrink}
		round = math.Floor
	}
	if fill == nil {
		fill = color.White
	}
	return Scene{
		Design:     state.Design,
		Width:      int(round(width)),
		Height:     int(round(height)),
		Scale:      scale,
		Background: background,
		Fill:       fill,
		Assets:     state.Assets,
	}
}

func measured(value float64) bool {
	return value > 0 && !math.IsInf(value, 0)
}

func (s Scene) bounds() image.Rectangle {
	return image.Rect(0, 0, s.Width, s.Height)
}

func (s Scene) toScreen(point design.Point) (float64, float64) {
	return point.X * s.Scale.X, point.Y * s.Scale.Y
}

func (s Scene) uniformScale() float64 {
	return (s.Scale.X + s.Scale.Y) / 2
}

// Renderer flattens a scene into pixels.
type Renderer interface {
	Name() string
	Render(ctx context.Context, scene Scene) (*image.RGBA, error)
}

// paintBase fills the canvas and draws the mockup, if any, stretched to the canvas.
func paintBase(dst *image.RGBA, scene Scene, baseHex string, interpolator draw.Interpolator) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(scene.Fill), image.Point{}, draw.Src)
	if scene.Background != nil {
		interpolator.Scale(dst, dst.Bounds(), scene.Background, scene.Background.Bounds(), draw.Over, nil)
		return
	}
	if baseHex == "" {
		return
	}
	if base, err := ParseHexColor(baseHex); err == nil {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(base), image.Point{}, draw.Src)
	}
}

// placement is the on-screen box of a layer with its rotation in degrees.
type placement struct {
	x, y          float64
	width, height float64
	rotation      float64
	opacity       float64
}

// drawPlaced maps src into the placement box, rotating about the box center.
func drawPlaced(dst *image.RGBA, src image.Image, box placement, transformer draw.Transformer) {
	srcBounds := src.Bounds()
	srcWidth := float64(srcBounds.Dx())
	srcHeight := float64(srcBounds.Dy())
	if srcWidth == 0 || srcHeight == 0 || box.width <= 0 || box.height <= 0 {
		return
	}
	kx := box.width / srcWidth
	ky := box.height / srcHeight
	radians := box.rotation * math.Pi / 180
	sin, cos := math.Sincos(radians)
	cx := box.x + box.width/2
	cy := box.y + box.height/2
	originX := float64(srcBounds.Min.X) + srcWidth/2
	originY := float64(srcBounds.Min.Y) + srcHeight/2

	matrix := f64.Aff3{
		cos * kx, -sin * ky, cx - cos*kx*originX + sin*ky*originY,
		sin * kx, cos * ky, cy - sin*kx*originX - cos*ky*originY,
	}
	var options *draw.Options
	if box.opacity < 1 {
		alpha := uint8(math.Round(clampUnit(box.opacity) * 255))
		options = &draw.Options{SrcMask: image.NewUniform(color.Alpha{A: alpha})}
	}
	transformer.Transform(dst, matrix, src, srcBounds, draw.Over, options)
}

func clampUnit(value float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

// ParseHexColor parses #rgb or #rrggbb.
func ParseHexColor(raw string) (color.RGBA, error) {
	value := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if len(value) == 3 {
		value = string([]byte{value[0], value[0], value[1], value[1], value[2], value[2]})
	}
	if len(value) != 6 {
		return color.RGBA{}, fmt.Errorf("%w: %q", errInvalidHexColor, raw)
	}
	parsed, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", errInvalidHexColor, raw)
	}
	return color.RGBA{
		R: uint8(parsed >> 16),
		G: uint8(parsed >> 8),
		B: uint8(parsed),
		A: 0xff,
	}, nil
}
