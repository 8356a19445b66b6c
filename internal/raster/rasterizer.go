package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/design"
	"go.uber.org/zap"
)

const (
	// DefaultQuality is the JPEG quality used when none is configured.
	DefaultQuality = 90
	// ContentTypeJPEG is the content type of every output.
	ContentTypeJPEG = "image/jpeg"
)

// Config configures a Rasterizer.
type Config struct {
	Primary     Renderer
	Fallback    Renderer
	Backgrounds BackgroundLoader
	Quality     int
	MaxPixels   int
	Fill        color.Color
	Logger      *zap.Logger
}

// Output is an encoded preview.
type Output struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	Renderer    string
}

// Rasterizer flattens designs to JPEG, falling back to the secondary renderer when the
// primary fails.
type Rasterizer struct {
	primary     Renderer
	fallback    Renderer
	backgrounds BackgroundLoader
	quality     int
	maxPixels   int
	fill        color.Color
	logger      *zap.Logger
}

// NewRasterizer constructs a rasterizer; missing renderers default to the clean and canvas renderers.
func NewRasterizer(cfg Config) *Rasterizer {
	primary := cfg.Primary
	if primary == nil {
		primary = NewCleanRenderer()
	}
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = NewCanvasRenderer()
	}
	quality := cfg.Quality
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	maxPixels := cfg.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	fill := cfg.Fill
	if fill == nil {
		fill = color.White
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rasterizer{
		primary:     primary,
		fallback:    fallback,
		backgrounds: cfg.Backgrounds,
		quality:     quality,
		maxPixels:   maxPixels,
		fill:        fill,
		logger:      logger,
	}
}

// Rasterize renders the state at its current on-screen size and encodes it.
func (r *Rasterizer) Rasterize(ctx context.Context, state design.RenderState) (Output, error) {
	scene := NewScene(state, r.loadBackground(ctx, state.Design.BackgroundImage), r.fill, r.maxPixels)

	var lastErr error
	for _, renderer := range []Renderer{r.primary, r.fallback} {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		img, err := renderer.Render(ctx, scene)
		if err != nil {
			lastErr = err
			r.logger.Warn("renderer failed",
				zap.String("renderer", renderer.Name()),
				zap.Error(err),
			)
			continue
		}
		var buffer bytes.Buffer
		if err := jpeg.Encode(&buffer, img, &jpeg.Options{Quality: r.quality}); err != nil {
			lastErr = err
			r.logger.Warn("jpeg encode failed", zap.String("renderer", renderer.Name()), zap.Error(err))
			continue
		}
		bounds := img.Bounds()
		return Output{
			Data:        buffer.Bytes(),
			ContentType: ContentTypeJPEG,
			Width:       bounds.Dx(),
			Height:      bounds.Dy(),
			Renderer:    renderer.Name(),
		}, nil
	}
	return Output{}, fmt.Errorf("%w: %w", ErrRasterizationFailed, lastErr)
}

func (r *Rasterizer) loadBackground(ctx context.Context, ref string) image.Image {
	if ref == "" || r.backgrounds == nil {
		return nil
	}
	img, err := r.backgrounds.Load(ctx, ref)
	if err != nil {
		r.logger.Warn("mockup unavailable", zap.String("mockup", ref), zap.Error(err))
		return nil
	}
	return img
}
