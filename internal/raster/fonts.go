package raster

import (
	"fmt"
	"strings"
	"sync"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/design"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

type fontVariant struct {
	mono   bool
	bold   bool
	italic bool
}

func (v fontVariant) source() []byte {
	switch {
	case v.mono && v.bold && v.italic:
		return gomonobolditalic.TTF
	case v.mono && v.bold:
		return gomonobold.TTF
	case v.mono && v.italic:
		return gomonoitalic.TTF
	case v.mono:
		return gomono.TTF
	case v.bold && v.italic:
		return gobolditalic.TTF
	case v.bold:
		return gobold.TTF
	case v.italic:
		return goitalic.TTF
	default:
		return goregular.TTF
	}
}

// fontLibrary parses the embedded Go fonts once and hands out sized faces.
type fontLibrary struct {
	mu     sync.Mutex
	parsed map[fontVariant]*opentype.Font
}

func newFontLibrary() *fontLibrary {
	return &fontLibrary{parsed: make(map[fontVariant]*opentype.Font)}
}

func variantFor(layer design.TextLayer) fontVariant {
	return fontVariant{
		mono:   strings.EqualFold(layer.FontFamily, "Courier New"),
		bold:   layer.FontWeight == design.FontWeightBold,
		italic: layer.FontStyle == design.FontStyleItalic,
	}
}

// face returns a new face; callers close it.
func (l *fontLibrary) face(variant fontVariant, size float64) (font.Face, error) {
	parsed, err := l.font(variant)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("raster: build face: %w", err)
	}
	return face, nil
}

func (l *fontLibrary) font(variant fontVariant) (*opentype.Font, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if parsed, ok := l.parsed[variant]; ok {
		return parsed, nil
	}
	parsed, err := opentype.Parse(variant.source())
	if err != nil {
		return nil, fmt.Errorf("raster: parse font: %w", err)
	}
	l.parsed[variant] = parsed
	return parsed, nil
}
