package raster

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/design"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const cleanRendererName = "clean"

// CleanRenderer draws the design without editor chrome using the embedded TrueType Go fonts.
// It fails on any missing input so the caller can fall back.
type CleanRenderer struct {
	fonts *fontLibrary
}

// NewCleanRenderer constructs the primary renderer.
func NewCleanRenderer() *CleanRenderer {
	return &CleanRenderer{fonts: newFontLibrary()}
}

// Name identifies the renderer in logs and outputs.
func (r *CleanRenderer) Name() string {
	return cleanRendererName
}

// Render flattens the scene in z-order.
func (r *CleanRenderer) Render(ctx context.Context, scene Scene) (*image.RGBA, error) {
	if scene.Width <= 0 || scene.Height <= 0 {
		return nil, errEmptyScene
	}
	if scene.Design.BackgroundImage != "" && scene.Background == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingBackground, scene.Design.BackgroundImage)
	}

	canvas := image.NewRGBA(scene.bounds())
	paintBase(canvas, scene, scene.Design.BaseColorHex, draw.CatmullRom)

	for _, ref := range scene.Design.Order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch ref.Kind {
		case design.KindImage:
			layer, ok := scene.Design.Image(ref.ID)
			if !ok {
				continue
			}
			if err := r.drawImage(canvas, scene, layer); err != nil {
				return nil, err
			}
		case design.KindText:
			layer, ok := scene.Design.Text(ref.ID)
			if !ok {
				continue
			}
			if err := r.drawText(canvas, scene, layer); err != nil {
				return nil, err
			}
		}
	}
	return canvas, nil
}

func (r *CleanRenderer) drawImage(canvas *image.RGBA, scene Scene, layer design.ImageLayer) error {
	src, ok := scene.Assets[layer.URL]
	if !ok || src == nil {
		return fmt.Errorf("%w: %s", ErrMissingAsset, layer.ID)
	}
	x, y := scene.toScreen(layer.Position)
	drawPlaced(canvas, src, placement{
		x:        x,
		y:        y,
		width:    layer.Size.Width * scene.Scale.X,
		height:   layer.Size.Height * scene.Scale.Y,
		rotation: layer.Rotation,
		opacity:  layer.Opacity,
	}, draw.CatmullRom)
	return nil
}

func (r *CleanRenderer) drawText(canvas *image.RGBA, scene Scene, layer design.TextLayer) error {
	textColor, err := ParseHexColor(layer.Color)
	if err != nil {
		return err
	}
	size := layer.FontSize * scene.uniformScale()
	face, err := r.fonts.face(variantFor(layer), size)
	if err != nil {
		return err
	}
	defer face.Close()

	rendered := renderTextImage(face, layer.Text, textColor, layer.TextDecoration, math.Max(1, size/15))
	if rendered == nil {
		return nil
	}
	x, y := scene.toScreen(layer.Position)
	bounds := rendered.Bounds()
	drawPlaced(canvas, rendered, placement{
		x:        x,
		y:        y,
		width:    float64(bounds.Dx()),
		height:   float64(bounds.Dy()),
		rotation: layer.Rotation,
		opacity:  1,
	}, draw.CatmullRom)
	return nil
}

// renderTextImage draws one line of text onto a transparent image sized to the face metrics.
func renderTextImage(face font.Face, text string, textColor color.Color, decoration design.TextDecoration, thickness float64) *image.RGBA {
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	height := ascent + metrics.Descent.Ceil()
	width := font.MeasureString(face, text).Ceil()
	if width <= 0 || height <= 0 {
		return nil
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(0, ascent),
	}
	drawer.DrawString(text)

	line := int(math.Ceil(thickness))
	switch decoration {
	case design.TextDecorationUnderline:
		top := min(ascent+line, height-line)
		draw.Draw(img, image.Rect(0, top, width, top+line), image.NewUniform(textColor), image.Point{}, draw.Over)
	case design.TextDecorationLineThrough:
		top := ascent - metrics.XHeight.Ceil()/2 - line/2
		draw.Draw(img, image.Rect(0, top, width, top+line), image.NewUniform(textColor), image.Point{}, draw.Over)
	}
	return img
}
