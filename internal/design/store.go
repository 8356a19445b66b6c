package design

import (
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"strings"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/catalog"
)

// StoreConfig describes the dependencies of a design store.
type StoreConfig struct {
	Catalog    catalog.Catalog
	Canvas     Size
	IDProvider IDProvider
}

// Store is the single source of truth for one design. All mutations go through it so
// pricing and validity stay consistent. It is not safe for concurrent use; Editor serializes access.
type Store struct {
	catalog   catalog.Catalog
	ids       IDProvider
	design    Design
	pricing   Pricing
	transform *Transform
	assets    *assetCache
	selected  *ElementRef
	drag      *dragState
	resize    *resizeState
	version   int64
}

// InteractionState exposes the transient gesture state for rendering affordances.
type InteractionState struct {
	Selected *ElementRef `json:"selected"`
	Dragging *ElementRef `json:"dragging"`
	Resizing *ElementRef `json:"resizing"`
	Handle   Handle      `json:"handle,omitempty"`
}

// RenderState is everything a renderer needs to flatten the design at its current on-screen size.
type RenderState struct {
	Design   Design
	Rendered Size
	Scale    Scale
	Assets   map[string]image.Image
}

// NewStore constructs an empty store for a tenant catalog.
func NewStore(cfg StoreConfig) (*Store, error) {
	if !cfg.Catalog.HasCustomization() {
		return nil, catalog.ErrCustomizationUnavailable
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = NewUUIDProvider()
	}
	transform := NewTransform(cfg.Canvas)
	logical := transform.Logical()

	store := &Store{
		catalog:   cfg.Catalog,
		ids:       ids,
		transform: transform,
		assets:    newAssetCache(),
		design: Design{
			CanvasWidth:  logical.Width,
			CanvasHeight: logical.Height,
		},
	}
	store.refresh()
	return store, nil
}

// Snapshot returns a deep copy of the current design.
func (s *Store) Snapshot() Design {
	return s.design.Clone()
}

// Pricing returns the price breakdown for the current design.
func (s *Store) Pricing() Pricing {
	return s.pricing
}

// IsValid reports whether the base product type, size and color are all set.
func (s *Store) IsValid() bool {
	return s.design.Base.Complete()
}

// HasCustomization reports whether the tenant enables the customization tool.
func (s *Store) HasCustomization() bool {
	return s.catalog.HasCustomization()
}

// Version increases on every state change.
func (s *Store) Version() int64 {
	return s.version
}

// Transform exposes the coordinate transform for the interaction controller.
func (s *Store) Transform() *Transform {
	return s.transform
}

// Resize applies a rendered-size signal from the client. Either axis may be at most
// MaxRenderScale times the logical canvas; larger sizes are rejected and the scale is kept.
func (s *Store) Resize(renderedWidth, renderedHeight float64) (Scale, error) {
	logical := s.transform.Logical()
	if !viewportAxisAllowed(renderedWidth, logical.Width) || !viewportAxisAllowed(renderedHeight, logical.Height) {
		return s.transform.Scale(), fmt.Errorf("%w: %gx%g", ErrInvalidViewport, renderedWidth, renderedHeight)
	}
	scale := s.transform.Resize(renderedWidth, renderedHeight)
	s.touch()
	return scale, nil
}

func viewportAxisAllowed(rendered, logical float64) bool {
	return !math.IsNaN(rendered) && !math.IsInf(rendered, 0) && rendered <= logical*MaxRenderScale
}

// Interaction returns the current transient gesture state.
func (s *Store) Interaction() InteractionState {
	state := InteractionState{Selected: copyRef(s.selected)}
	if s.drag != nil {
		state.Dragging = copyRef(&s.drag.ref)
	}
	if s.resize != nil {
		state.Resizing = copyRef(&s.resize.ref)
		state.Handle = s.resize.handle
	}
	return state
}

// RenderState captures the design, rendered size and decoded assets for rasterization.
func (s *Store) RenderState() RenderState {
	return RenderState{
		Design:   s.design.Clone(),
		Rendered: s.transform.Rendered(),
		Scale:    s.transform.Scale(),
		Assets:   s.assets.images(),
	}
}

// UpdateBaseProduct sets the base product attributes. Empty values leave the attribute unset.
// Existing layers are kept.
func (s *Store) UpdateBaseProduct(productType, size, color string) error {
	productType = strings.TrimSpace(productType)
	size = strings.TrimSpace(size)
	color = strings.TrimSpace(color)

	base := BaseProduct{}
	background := ""
	colorHex := ""
	if productType == "" {
		if size != "" || color != "" {
			return fmt.Errorf("%w: size and color require a product type", ErrInvalidBaseProduct)
		}
	} else {
		product, canonicalSize, option, err := s.catalog.Resolve(productType, size, color)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidBaseProduct, err)
		}
		base = BaseProduct{Type: product.Name, Size: canonicalSize, Color: option.Name}
		background = option.Mockup
		colorHex = option.Hex
	}

	s.design.Base = base
	s.design.BackgroundImage = background
	s.design.BaseColorHex = colorHex
	s.refresh()
	return nil
}

// AddText appends a text layer with default styling and returns its id.
func (s *Store) AddText(text string, position Point, fontFamily, color string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	family, ok := canonicalFontFamily(fontFamily)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFont, fontFamily)
	}
	textColor, ok := canonicalTextColor(color)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownColor, color)
	}
	id, err := s.ids.NewID()
	if err != nil {
		return "", err
	}

	layer := TextLayer{
		ID:             id,
		Text:           text,
		FontFamily:     family,
		FontSize:       DefaultFontSize,
		Color:          textColor,
		FontWeight:     FontWeightNormal,
		FontStyle:      FontStyleNormal,
		TextDecoration: TextDecorationNone,
	}
	layer.Position = clampPosition(position, layer.EstimatedSize(), s.design.Canvas())

	s.design.Texts = append(s.design.Texts, layer)
	s.design.Order = append(s.design.Order, TextRef(id))
	s.refresh()
	return id, nil
}

// UpdateText applies a patch to a text layer. Unknown ids are ignored.
func (s *Store) UpdateText(id string, patch TextPatch) error {
	index := s.design.textIndex(id)
	if index < 0 {
		return nil
	}
	layer := s.design.Texts[index]

	if patch.Text != nil {
		if strings.TrimSpace(*patch.Text) == "" {
			return ErrEmptyText
		}
		layer.Text = *patch.Text
	}
	if patch.FontFamily != nil {
		family, ok := canonicalFontFamily(*patch.FontFamily)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownFont, *patch.FontFamily)
		}
		layer.FontFamily = family
	}
	if patch.Color != nil {
		textColor, ok := canonicalTextColor(*patch.Color)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownColor, *patch.Color)
		}
		layer.Color = textColor
	}
	if patch.FontWeight != nil {
		if !validFontWeight(*patch.FontWeight) {
			return fmt.Errorf("%w: weight %q", ErrInvalidTextStyle, *patch.FontWeight)
		}
		layer.FontWeight = *patch.FontWeight
	}
	if patch.FontStyle != nil {
		if !validFontStyle(*patch.FontStyle) {
			return fmt.Errorf("%w: style %q", ErrInvalidTextStyle, *patch.FontStyle)
		}
		layer.FontStyle = *patch.FontStyle
	}
	if patch.TextDecoration != nil {
		if !validTextDecoration(*patch.TextDecoration) {
			return fmt.Errorf("%w: decoration %q", ErrInvalidTextStyle, *patch.TextDecoration)
		}
		layer.TextDecoration = *patch.TextDecoration
	}
	if patch.FontSize != nil {
		layer.FontSize = clampFloat(*patch.FontSize, MinFontSize, MaxFontSize)
	}
	if patch.Rotation != nil {
		layer.Rotation = normalizeRotation(*patch.Rotation)
	}
	if patch.Position != nil {
		layer.Position = *patch.Position
	}
	layer.Position = clampPosition(layer.Position, layer.EstimatedSize(), s.design.Canvas())

	s.design.Texts[index] = layer
	s.refresh()
	return nil
}

// RemoveText deletes a text layer. Unknown ids are ignored.
func (s *Store) RemoveText(id string) {
	index := s.design.textIndex(id)
	if index < 0 {
		return
	}
	s.design.Texts = append(s.design.Texts[:index], s.design.Texts[index+1:]...)
	s.forget(TextRef(id))
	s.refresh()
}

// AddImage decodes an uploaded file and appends an image layer. On failure the design is unchanged.
func (s *Store) AddImage(ctx context.Context, reader io.Reader, position Point) (string, error) {
	asset, err := DecodeAsset(ctx, reader)
	if err != nil {
		return "", err
	}
	return s.AddDecodedImage(asset, position)
}

// AddDecodedImage appends an image layer for an already decoded asset.
func (s *Store) AddDecodedImage(asset Asset, position Point) (string, error) {
	if asset.Image == nil {
		return "", fmt.Errorf("%w: missing pixels", ErrUnreadableImage)
	}
	id, err := s.ids.NewID()
	if err != nil {
		return "", err
	}

	layer := ImageLayer{
		ID:            id,
		URL:           asset.URL(),
		Size:          fitImageSize(asset.Width(), asset.Height()),
		Opacity:       1,
		NaturalWidth:  asset.Width(),
		NaturalHeight: asset.Height(),
	}
	layer.Position = clampPosition(position, layer.Size, s.design.Canvas())

	s.assets.put(asset)
	s.design.Images = append(s.design.Images, layer)
	s.design.Order = append(s.design.Order, ImageRef(id))
	s.refresh()
	return id, nil
}

// UpdateImage applies a patch to an image layer. Unknown ids are ignored.
func (s *Store) UpdateImage(id string, patch ImagePatch) error {
	index := s.design.imageIndex(id)
	if index < 0 {
		return nil
	}
	layer := s.design.Images[index]

	if patch.Opacity != nil {
		if *patch.Opacity < 0 || *patch.Opacity > 1 {
			return fmt.Errorf("%w: %v", ErrInvalidOpacity, *patch.Opacity)
		}
		layer.Opacity = *patch.Opacity
	}
	if patch.Size != nil {
		layer.Size = clampImageSize(*patch.Size)
	}
	if patch.Rotation != nil {
		layer.Rotation = normalizeRotation(*patch.Rotation)
	}
	if patch.Position != nil {
		layer.Position = *patch.Position
	}
	layer.Position = clampPosition(layer.Position, layer.Size, s.design.Canvas())

	s.design.Images[index] = layer
	s.refresh()
	return nil
}

// RemoveImage deletes an image layer and its decoded asset. Unknown ids are ignored.
func (s *Store) RemoveImage(id string) {
	index := s.design.imageIndex(id)
	if index < 0 {
		return
	}
	s.assets.drop(s.design.Images[index].URL)
	s.design.Images = append(s.design.Images[:index], s.design.Images[index+1:]...)
	s.forget(ImageRef(id))
	s.refresh()
}

// SelectElement marks one layer as selected; nil clears the selection.
func (s *Store) SelectElement(ref *ElementRef) error {
	if ref == nil {
		s.selected = nil
		s.touch()
		return nil
	}
	if _, _, ok := s.design.bounds(*ref); !ok {
		return fmt.Errorf("%w: %s %s", ErrElementNotFound, ref.Kind, ref.ID)
	}
	s.selected = copyRef(ref)
	s.touch()
	return nil
}

// BringToFront moves a layer to the top of the render order.
func (s *Store) BringToFront(ref ElementRef) error {
	position := -1
	for index, candidate := range s.design.Order {
		if candidate == ref {
			position = index
			break
		}
	}
	if position < 0 {
		return fmt.Errorf("%w: %s %s", ErrElementNotFound, ref.Kind, ref.ID)
	}
	order := append(s.design.Order[:position:position], s.design.Order[position+1:]...)
	s.design.Order = append(order, ref)
	s.touch()
	return nil
}

// ResetDesign clears every layer and the base product selection.
func (s *Store) ResetDesign() {
	s.design = Design{
		CanvasWidth:  s.design.CanvasWidth,
		CanvasHeight: s.design.CanvasHeight,
	}
	s.assets.clear()
	s.selected = nil
	s.drag = nil
	s.resize = nil
	s.refresh()
}

// setPosition routes a position change through the kind-specific update.
func (s *Store) setPosition(ref ElementRef, position Point) error {
	switch ref.Kind {
	case KindText:
		return s.UpdateText(ref.ID, TextPatch{Position: &position})
	case KindImage:
		return s.UpdateImage(ref.ID, ImagePatch{Position: &position})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLayerKind, ref.Kind)
	}
}

// forget drops every reference to a removed layer.
func (s *Store) forget(ref ElementRef) {
	order := s.design.Order[:0]
	for _, candidate := range s.design.Order {
		if candidate != ref {
			order = append(order, candidate)
		}
	}
	s.design.Order = order
	if s.selected != nil && *s.selected == ref {
		s.selected = nil
	}
	if s.drag != nil && s.drag.ref == ref {
		s.drag = nil
	}
	if s.resize != nil && s.resize.ref == ref {
		s.resize = nil
	}
}

func (s *Store) refresh() {
	s.pricing = computePricing(s.catalog, s.design)
	s.touch()
}

func (s *Store) touch() {
	s.version++
}

func copyRef(ref *ElementRef) *ElementRef {
	if ref == nil {
		return nil
	}
	clone := *ref
	return &clone
}
