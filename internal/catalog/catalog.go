package catalog

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

var (
	// ErrCustomizationUnavailable indicates the tenant has no customization configuration or has it disabled.
	ErrCustomizationUnavailable = errors.New("catalog: customization unavailable")
	// ErrUnknownProductType indicates the product type is not offered by the tenant.
	ErrUnknownProductType = errors.New("catalog: unknown product type")
	// ErrUnknownProductSize indicates the size is not offered for the product type.
	ErrUnknownProductSize = errors.New("catalog: unknown product size")
	// ErrUnknownProductColor indicates the color is not offered for the product type.
	ErrUnknownProductColor = errors.New("catalog: unknown product color")
)

// Money is an amount expressed in minor currency units (piasters for EGP).
type Money int64

// MoneyFromMajor converts a major-unit amount such as 150.00 into minor units.
func MoneyFromMajor(value float64) Money {
	return Money(math.Round(value * 100))
}

// String formats the amount with two decimals.
func (m Money) String() string {
	sign := ""
	value := int64(m)
	if value < 0 {
		sign = "-"
		value = -value
	}
	return fmt.Sprintf("%s%d.%02d", sign, value/100, value%100)
}

// ColorOption is one product color and the mockup rendered for it.
type ColorOption struct {
	Name   string `json:"name"`
	Hex    string `json:"hex"`
	Mockup string `json:"mockup"`
}

// ProductType describes a customizable base product.
type ProductType struct {
	Name      string        `json:"name"`
	BasePrice Money         `json:"base_price"`
	Sizes     []string      `json:"sizes"`
	Colors    []ColorOption `json:"colors"`
}

// Color returns the color option with the provided name.
func (p ProductType) Color(name string) (ColorOption, bool) {
	for _, option := range p.Colors {
		if strings.EqualFold(option.Name, strings.TrimSpace(name)) {
			return option, true
		}
	}
	return ColorOption{}, false
}

// Catalog is the customization configuration of one tenant.
type Catalog struct {
	TenantID   string        `json:"tenant_id"`
	Enabled    bool          `json:"enabled"`
	Currency   string        `json:"currency"`
	TextPrice  Money         `json:"text_price"`
	ImagePrice Money         `json:"image_price"`
	Products   []ProductType `json:"products"`
}

// HasCustomization reports whether the tenant offers the customization tool at all.
func (c Catalog) HasCustomization() bool {
	return c.Enabled && len(c.Products) > 0
}

// Product returns the product type with the provided name.
func (c Catalog) Product(name string) (ProductType, bool) {
	for _, product := range c.Products {
		if strings.EqualFold(product.Name, strings.TrimSpace(name)) {
			return product, true
		}
	}
	return ProductType{}, false
}

// Resolve validates a type/size/color selection and returns the canonical product, size
// and color option. An empty size or color is not checked and resolves to its zero value.
func (c Catalog) Resolve(productType, size, color string) (ProductType, string, ColorOption, error) {
	product, ok := c.Product(productType)
	if !ok {
		return ProductType{}, "", ColorOption{}, fmt.Errorf("%w: %q", ErrUnknownProductType, productType)
	}
	canonicalSize := ""
	if size = strings.TrimSpace(size); size != "" {
		index := slices.IndexFunc(product.Sizes, func(candidate string) bool {
			return strings.EqualFold(candidate, size)
		})
		if index < 0 {
			return ProductType{}, "", ColorOption{}, fmt.Errorf("%w: %q", ErrUnknownProductSize, size)
		}
		canonicalSize = product.Sizes[index]
	}
	var option ColorOption
	if strings.TrimSpace(color) != "" {
		option, ok = product.Color(color)
		if !ok {
			return ProductType{}, "", ColorOption{}, fmt.Errorf("%w: %q", ErrUnknownProductColor, color)
		}
	}
	return product, canonicalSize, option, nil
}

// Provider serves tenant catalogs by tenant identifier.
type Provider struct {
	tenants map[string]Catalog
}

// NewProvider indexes the supplied catalogs by tenant id.
func NewProvider(catalogs []Catalog) *Provider {
	tenants := make(map[string]Catalog, len(catalogs))
	for _, entry := range catalogs {
		key := normalizeTenant(entry.TenantID)
		if key == "" {
			continue
		}
		tenants[key] = entry
	}
	return &Provider{tenants: tenants}
}

// Lookup returns the catalog for the tenant or ErrCustomizationUnavailable.
func (p *Provider) Lookup(tenantID string) (Catalog, error) {
	if p == nil {
		return Catalog{}, ErrCustomizationUnavailable
	}
	entry, ok := p.tenants[normalizeTenant(tenantID)]
	if !ok || !entry.HasCustomization() {
		return Catalog{}, fmt.Errorf("%w: tenant %q", ErrCustomizationUnavailable, tenantID)
	}
	return entry, nil
}

func normalizeTenant(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
