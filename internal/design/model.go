package design

import (
	"errors"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/catalog"
)

var (
	// ErrEmptyText indicates a text layer would have no visible content.
	ErrEmptyText = errors.New("design: text is empty")
	// ErrUnknownFont indicates the font family is not in the allowed list.
	ErrUnknownFont = errors.New("design: font family not allowed")
	// ErrUnknownColor indicates the text color is not in the allowed palette.
	ErrUnknownColor = errors.New("design: color not allowed")
	// ErrInvalidTextStyle indicates an unsupported weight, style or decoration.
	ErrInvalidTextStyle = errors.New("design: invalid text style")
	// ErrInvalidOpacity indicates an opacity outside [0,1].
	ErrInvalidOpacity = errors.New("design: opacity must be within [0,1]")
	// ErrUnreadableImage indicates the uploaded file could not be decoded as an image.
	ErrUnreadableImage = errors.New("design: unreadable image")
	// ErrInvalidBaseProduct indicates the base product selection is incomplete or not offered.
	ErrInvalidBaseProduct = errors.New("design: invalid base product")
	// ErrUnknownLayerKind indicates an element reference with an unsupported kind.
	ErrUnknownLayerKind = errors.New("design: unknown layer kind")
	// ErrElementNotFound indicates a gesture targeted a layer that does not exist.
	ErrElementNotFound = errors.New("design: element not found")
	// ErrGestureInProgress indicates a drag or resize is already active.
	ErrGestureInProgress = errors.New("design: gesture already in progress")
	// ErrInvalidHandle indicates an unknown resize handle.
	ErrInvalidHandle = errors.New("design: invalid resize handle")
	// ErrInvalidViewport indicates a rendered canvas size beyond MaxRenderScale.
	ErrInvalidViewport = errors.New("design: invalid viewport")
)

// BaseProduct is the blank item being customized.
type BaseProduct struct {
	Type  string `json:"type"`
	Size  string `json:"size"`
	Color string `json:"color"`
}

// Complete reports whether type, size and color are all set.
func (b BaseProduct) Complete() bool {
	return b.Type != "" && b.Size != "" && b.Color != ""
}

// Design is the aggregate root of one customization session.
type Design struct {
	Base            BaseProduct  `json:"base_product"`
	BackgroundImage string       `json:"background_image"`
	BaseColorHex    string       `json:"base_color_hex"`
	CanvasWidth     float64      `json:"canvas_width"`
	CanvasHeight    float64      `json:"canvas_height"`
	Texts           []TextLayer  `json:"texts"`
	Images          []ImageLayer `json:"images"`
	// Order is the global render order across both kinds; later entries render on top.
	Order []ElementRef `json:"order"`
}

// Canvas returns the logical canvas size.
func (d Design) Canvas() Size {
	return Size{Width: d.CanvasWidth, Height: d.CanvasHeight}
}

// Clone returns a deep copy safe to hand outside the store.
func (d Design) Clone() Design {
	clone := d
	clone.Texts = append([]TextLayer(nil), d.Texts...)
	clone.Images = append([]ImageLayer(nil), d.Images...)
	clone.Order = append([]ElementRef(nil), d.Order...)
	return clone
}

// Text returns the text layer with the provided id.
func (d Design) Text(id string) (TextLayer, bool) {
	if index := d.textIndex(id); index >= 0 {
		return d.Texts[index], true
	}
	return TextLayer{}, false
}

// Image returns the image layer with the provided id.
func (d Design) Image(id string) (ImageLayer, bool) {
	if index := d.imageIndex(id); index >= 0 {
		return d.Images[index], true
	}
	return ImageLayer{}, false
}

func (d Design) textIndex(id string) int {
	for index := range d.Texts {
		if d.Texts[index].ID == id {
			return index
		}
	}
	return -1
}

func (d Design) imageIndex(id string) int {
	for index := range d.Images {
		if d.Images[index].ID == id {
			return index
		}
	}
	return -1
}

// bounds returns the design-space box of the referenced layer.
func (d Design) bounds(ref ElementRef) (Point, Size, bool) {
	switch ref.Kind {
	case KindText:
		if layer, ok := d.Text(ref.ID); ok {
			return layer.Position, layer.EstimatedSize(), true
		}
	case KindImage:
		if layer, ok := d.Image(ref.ID); ok {
			return layer.Position, layer.Size, true
		}
	}
	return Point{}, Size{}, false
}

// Pricing is derived from the design and the tenant catalog.
type Pricing struct {
	Currency         string        `json:"currency"`
	BaseProductPrice catalog.Money `json:"base_product_price"`
	TextPrice        catalog.Money `json:"text_price"`
	ImagePrice       catalog.Money `json:"image_price"`
	TextCount        int           `json:"text_count"`
	ImageCount       int           `json:"image_count"`
	TotalPrice       catalog.Money `json:"total_price"`
}

func computePricing(entry catalog.Catalog, design Design) Pricing {
	pricing := Pricing{
		Currency:   entry.Currency,
		TextPrice:  entry.TextPrice,
		ImagePrice: entry.ImagePrice,
		TextCount:  len(design.Texts),
		ImageCount: len(design.Images),
	}
	if product, ok := entry.Product(design.Base.Type); ok {
		pricing.BaseProductPrice = product.BasePrice
	}
	pricing.TotalPrice = pricing.BaseProductPrice +
		pricing.TextPrice*catalog.Money(pricing.TextCount) +
		pricing.ImagePrice*catalog.Money(pricing.ImageCount)
	return pricing
}
