package raster

import (
	"context"
	"image"
	"image/color"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/design"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"
)

const canvasRendererName = "canvas"

var (
	chromeBorderColor = color.RGBA{R: 0xd1, G: 0xd5, B: 0xdb, A: 0xff}
	placeholderColor  = color.RGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff}
)

// CanvasRenderer reproduces the editor canvas as displayed, chrome included, with the
// built-in bitmap face. Missing assets become placeholders instead of errors.
type CanvasRenderer struct {
	BorderWidth int
}

// NewCanvasRenderer constructs the fallback renderer.
func NewCanvasRenderer() *CanvasRenderer {
	return &CanvasRenderer{BorderWidth: 2}
}

// Name identifies the renderer in logs and outputs.
func (r *CanvasRenderer) Name() string {
	return canvasRendererName
}

// Render flattens the scene in z-order.
func (r *CanvasRenderer) Render(ctx context.Context, scene Scene) (*image.RGBA, error) {
	if scene.Width <= 0 || scene.Height <= 0 {
		return nil, errEmptyScene
	}
	canvas := image.NewRGBA(scene.bounds())
	paintBase(canvas, scene, scene.Design.BaseColorHex, draw.ApproxBiLinear)

	for _, ref := range scene.Design.Order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch ref.Kind {
		case design.KindImage:
			if layer, ok := scene.Design.Image(ref.ID); ok {
				r.drawImage(canvas, scene, layer)
			}
		case design.KindText:
			if layer, ok := scene.Design.Text(ref.ID); ok {
				r.drawText(canvas, scene, layer)
			}
		}
	}
	r.drawChrome(canvas)
	return canvas, nil
}

func (r *CanvasRenderer) drawImage(canvas *image.RGBA, scene Scene, layer design.ImageLayer) {
	x, y := scene.toScreen(layer.Position)
	box := placement{
		x:        x,
		y:        y,
		width:    layer.Size.Width * scene.Scale.X,
		height:   layer.Size.Height * scene.Scale.Y,
		rotation: layer.Rotation,
		opacity:  layer.Opacity,
	}
	src, ok := scene.Assets[layer.URL]
	if !ok || src == nil {
		src = placeholder()
	}
	drawPlaced(canvas, src, box, draw.ApproxBiLinear)
}

func placeholder() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, placeholderColor)
	return img
}

func (r *CanvasRenderer) drawText(canvas *image.RGBA, scene Scene, layer design.TextLayer) {
	textColor, err := ParseHexColor(layer.Color)
	if err != nil {
		textColor = color.RGBA{A: 0xff}
	}
	face := basicfont.Face7x13
	rendered := renderTextImage(face, layer.Text, textColor, layer.TextDecoration, 1)
	if rendered == nil {
		return
	}
	bounds := rendered.Bounds()
	factor := layer.FontSize * scene.uniformScale() / float64(face.Height)
	x, y := scene.toScreen(layer.Position)
	drawPlaced(canvas, rendered, placement{
		x:        x,
		y:        y,
		width:    float64(bounds.Dx()) * factor,
		height:   float64(bounds.Dy()) * factor,
		rotation: layer.Rotation,
		opacity:  1,
	}, draw.NearestNeighbor)
}

func (r *CanvasRenderer) drawChrome(canvas *image.RGBA) {
	bounds := canvas.Bounds()
	width := r.BorderWidth
	if width <= 0 {
		return
	}
	border := image.NewUniform(chromeBorderColor)
	edges := []image.Rectangle{
		image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+width),
		image.Rect(bounds.Min.X, bounds.Max.Y-width, bounds.Max.X, bounds.Max.Y),
		image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+width, bounds.Max.Y),
		image.Rect(bounds.Max.X-width, bounds.Min.Y, bounds.Max.X, bounds.Max.Y),
	}
	for _, edge := range edges {
		draw.Draw(canvas, edge.Intersect(bounds), border, image.Point{}, draw.Src)
	}
}
