package design

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	// MinFontSize is the smallest text size in design units.
	MinFontSize = 8.0
	// MaxFontSize is the largest text size in design units.
	MaxFontSize = 72.0
	// DefaultFontSize is applied to new text layers.
	DefaultFontSize = 24.0
	// MinImageSize bounds each image dimension from below.
	MinImageSize = 50.0
	// MaxImageSize bounds each image dimension from above.
	MaxImageSize = 500.0

	defaultImageBox  = 200.0
	textWidthFactor  = 0.6
	textHeightFactor = 1.2
)

// LayerKind tags the variant of a layer.
type LayerKind string

const (
	KindText  LayerKind = "text"
	KindImage LayerKind = "image"
)

// ParseLayerKind validates a raw kind string.
func ParseLayerKind(raw string) (LayerKind, error) {
	switch LayerKind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindText:
		return KindText, nil
	case KindImage:
		return KindImage, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLayerKind, raw)
	}
}

// ElementRef identifies one layer of either kind.
type ElementRef struct {
	Kind LayerKind `json:"kind"`
	ID   string    `json:"id"`
}

// TextRef builds a reference to a text layer.
func TextRef(id string) ElementRef {
	return ElementRef{Kind: KindText, ID: id}
}

// ImageRef builds a reference to an image layer.
func ImageRef(id string) ElementRef {
	return ElementRef{Kind: KindImage, ID: id}
}

type FontWeight string

const (
	FontWeightNormal FontWeight = "normal"
	FontWeightBold   FontWeight = "bold"
)

type FontStyle string

const (
	FontStyleNormal FontStyle = "normal"
	FontStyleItalic FontStyle = "italic"
)

type TextDecoration string

const (
	TextDecorationNone        TextDecoration = "none"
	TextDecorationUnderline   TextDecoration = "underline"
	TextDecorationLineThrough TextDecoration = "line-through"
)

// TextLayer is a run of text placed on the canvas.
type TextLayer struct {
	ID             string         `json:"id"`
	Text           string         `json:"text"`
	Position       Point          `json:"position"`
	FontFamily     string         `json:"font_family"`
	FontSize       float64        `json:"font_size"`
	Color          string         `json:"color"`
	FontWeight     FontWeight     `json:"font_weight"`
	FontStyle      FontStyle      `json:"font_style"`
	TextDecoration TextDecoration `json:"text_decoration"`
	Rotation       float64        `json:"rotation"`
}

// EstimatedSize approximates the rendered text box from character count and font size.
func (l TextLayer) EstimatedSize() Size {
	return estimateTextSize(l.Text, l.FontSize)
}

func estimateTextSize(text string, fontSize float64) Size {
	return Size{
		Width:  float64(utf8.RuneCountInString(text)) * fontSize * textWidthFactor,
		Height: fontSize * textHeightFactor,
	}
}

// ImageLayer is an uploaded picture placed on the canvas.
type ImageLayer struct {
	ID            string  `json:"id"`
	URL           string  `json:"url"`
	Position      Point   `json:"position"`
	Size          Size    `json:"size"`
	Opacity       float64 `json:"opacity"`
	Rotation      float64 `json:"rotation"`
	NaturalWidth  int     `json:"natural_width"`
	NaturalHeight int     `json:"natural_height"`
}

// TextPatch lists the text layer fields to change; nil fields are left untouched.
type TextPatch struct {
	Text           *string         `json:"text,omitempty"`
	Position       *Point          `json:"position,omitempty"`
	FontFamily     *string         `json:"font_family,omitempty"`
	FontSize       *float64        `json:"font_size,omitempty"`
	Color          *string         `json:"color,omitempty"`
	FontWeight     *FontWeight     `json:"font_weight,omitempty"`
	FontStyle      *FontStyle      `json:"font_style,omitempty"`
	TextDecoration *TextDecoration `json:"text_decoration,omitempty"`
	Rotation       *float64        `json:"rotation,omitempty"`
}

// ImagePatch lists the image layer fields to change; nil fields are left untouched.
type ImagePatch struct {
	Position *Point   `json:"position,omitempty"`
	Size     *Size    `json:"size,omitempty"`
	Opacity  *float64 `json:"opacity,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
}

// AllowedFontFamilies lists the font families offered to text layers.
var AllowedFontFamilies = []string{
	"Arial",
	"Helvetica",
	"Verdana",
	"Georgia",
	"Times New Roman",
	"Courier New",
	"Impact",
}

// AllowedTextColors is the fixed palette offered to text layers.
var AllowedTextColors = []string{
	"#000000",
	"#ffffff",
	"#e53935",
	"#1e88e5",
	"#43a047",
	"#fdd835",
	"#fb8c00",
	"#8e24aa",
	"#ec407a",
	"#6d4c41",
}

func canonicalFontFamily(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, family := range AllowedFontFamilies {
		if strings.EqualFold(family, trimmed) {
			return family, true
		}
	}
	return "", false
}

func canonicalTextColor(raw string) (string, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	for _, color := range AllowedTextColors {
		if color == trimmed {
			return color, true
		}
	}
	return "", false
}

func validFontWeight(value FontWeight) bool {
	return value == FontWeightNormal || value == FontWeightBold
}

func validFontStyle(value FontStyle) bool {
	return value == FontStyleNormal || value == FontStyleItalic
}

func validTextDecoration(value TextDecoration) bool {
	switch value {
	case TextDecorationNone, TextDecorationUnderline, TextDecorationLineThrough:
		return true
	default:
		return false
	}
}

func normalizeRotation(degrees float64) float64 {
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return 0
	}
	degrees = math.Mod(degrees, 360)
	if degrees < 0 {
		degrees += 360
	}
	return degrees
}

// fitImageSize scales the natural image size into the default box, keeping the aspect ratio,
// then clamps each dimension to the image bounds.
func fitImageSize(naturalWidth, naturalHeight int) Size {
	width := float64(naturalWidth)
	height := float64(naturalHeight)
	if width <= 0 || height <= 0 {
		return Size{Width: defaultImageBox, Height: defaultImageBox}
	}
	ratio := defaultImageBox / width
	if heightRatio := defaultImageBox / height; heightRatio < ratio {
		ratio = heightRatio
	}
	return clampImageSize(Size{Width: width * ratio, Height: height * ratio})
}

func clampImageSize(size Size) Size {
	return Size{
		Width:  clampFloat(size.Width, MinImageSize, MaxImageSize),
		Height: clampFloat(size.Height, MinImageSize, MaxImageSize),
	}
}
