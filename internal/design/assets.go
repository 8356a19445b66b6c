package design

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// LocalAssetScheme prefixes image layer URLs that point at the editor's in-memory assets.
	LocalAssetScheme = "local:"
	// MaxUploadBytes bounds the size of a single uploaded image.
	MaxUploadBytes = 10 << 20
	maxImagePixels = 40_000_000
)

// Asset is a decoded upload kept with the editor; it is never written to shared storage.
type Asset struct {
	ID     string
	Format string
	Image  image.Image
}

// Width returns the intrinsic width in pixels.
func (a Asset) Width() int {
	return a.Image.Bounds().Dx()
}

// Height returns the intrinsic height in pixels.
func (a Asset) Height() int {
	return a.Image.Bounds().Dy()
}

// URL returns the local reference stored on image layers.
func (a Asset) URL() string {
	return LocalAssetScheme + a.ID
}

// DecodeAsset reads and decodes an uploaded image. Any failure is reported as ErrUnreadableImage.
func DecodeAsset(ctx context.Context, reader io.Reader) (Asset, error) {
	if reader == nil {
		return Asset{}, fmt.Errorf("%w: empty upload", ErrUnreadableImage)
	}
	data, err := io.ReadAll(io.LimitReader(reader, MaxUploadBytes+1))
	if err != nil {
		return Asset{}, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	if len(data) == 0 {
		return Asset{}, fmt.Errorf("%w: empty upload", ErrUnreadableImage)
	}
	if len(data) > MaxUploadBytes {
		return Asset{}, fmt.Errorf("%w: exceeds %d bytes", ErrUnreadableImage, MaxUploadBytes)
	}
	if err := ctx.Err(); err != nil {
		return Asset{}, err
	}

	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Asset{}, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	if config.Width <= 0 || config.Height <= 0 || config.Width*config.Height > maxImagePixels {
		return Asset{}, fmt.Errorf("%w: unsupported dimensions %dx%d", ErrUnreadableImage, config.Width, config.Height)
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Asset{}, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	if err := ctx.Err(); err != nil {
		return Asset{}, err
	}

	identifier, err := uuid.NewV7()
	if err != nil {
		return Asset{}, err
	}
	return Asset{ID: identifier.String(), Format: format, Image: decoded}, nil
}

// assetCache holds decoded uploads by id.
type assetCache struct {
	assets map[string]Asset
}

func newAssetCache() *assetCache {
	return &assetCache{assets: make(map[string]Asset)}
}

func (c *assetCache) put(asset Asset) {
	c.assets[asset.ID] = asset
}

func (c *assetCache) drop(url string) {
	delete(c.assets, strings.TrimPrefix(url, LocalAssetScheme))
}

func (c *assetCache) clear() {
	c.assets = make(map[string]Asset)
}

// images returns the decoded images keyed by layer URL.
func (c *assetCache) images() map[string]image.Image {
	result := make(map[string]image.Image, len(c.assets))
	for id, asset := range c.assets {
		result[LocalAssetScheme+id] = asset.Image
	}
	return result
}
