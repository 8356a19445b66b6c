package catalog

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const tenantsConfigKey = "customization.tenants"

type tenantConfig struct {
	ID         string          `mapstructure:"id"`
	Enabled    bool            `mapstructure:"enabled"`
	Currency   string          `mapstructure:"currency"`
	TextPrice  float64         `mapstructure:"text_price"`
	ImagePrice float64         `mapstructure:"image_price"`
	Products   []productConfig `mapstructure:"products"`
}

type productConfig struct {
	Type      string        `mapstructure:"type"`
	BasePrice float64       `mapstructure:"base_price"`
	Sizes     []string      `mapstructure:"sizes"`
	Colors    []colorConfig `mapstructure:"colors"`
}

type colorConfig struct {
	Name   string `mapstructure:"name"`
	Hex    string `mapstructure:"hex"`
	Mockup string `mapstructure:"mockup"`
}

// LoadFromViper reads tenant catalogs from the customization.tenants configuration key.
func LoadFromViper(configViper *viper.Viper) ([]Catalog, error) {
	var raw []tenantConfig
	if err := configViper.UnmarshalKey(tenantsConfigKey, &raw); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", tenantsConfigKey, err)
	}

	catalogs := make([]Catalog, 0, len(raw))
	for index, tenant := range raw {
		entry, err := tenant.toCatalog()
		if err != nil {
			return nil, fmt.Errorf("catalog: tenant %d: %w", index, err)
		}
		catalogs = append(catalogs, entry)
	}
	return catalogs, nil
}

func (t tenantConfig) toCatalog() (Catalog, error) {
	tenantID := strings.TrimSpace(t.ID)
	if tenantID == "" {
		return Catalog{}, fmt.Errorf("id is required")
	}
	if t.TextPrice < 0 || t.ImagePrice < 0 {
		return Catalog{}, fmt.Errorf("tenant %s: element prices must not be negative", tenantID)
	}
	currency := strings.ToUpper(strings.TrimSpace(t.Currency))
	if currency == "" {
		currency = "EGP"
	}

	products := make([]ProductType, 0, len(t.Products))
	for _, product := range t.Products {
		name := strings.TrimSpace(product.Type)
		if name == "" {
			return Catalog{}, fmt.Errorf("tenant %s: product type is required", tenantID)
		}
		if product.BasePrice < 0 {
			return Catalog{}, fmt.Errorf("tenant %s: product %s: base price must not be negative", tenantID, name)
		}
		colors := make([]ColorOption, 0, len(product.Colors))
		for _, color := range product.Colors {
			colors = append(colors, ColorOption{
				Name:   strings.TrimSpace(color.Name),
				Hex:    strings.ToLower(strings.TrimSpace(color.Hex)),
				Mockup: strings.TrimSpace(color.Mockup),
			})
		}
		products = append(products, ProductType{
			Name:      name,
			BasePrice: MoneyFromMajor(product.BasePrice),
			Sizes:     product.Sizes,
			Colors:    colors,
		})
	}

	return Catalog{
		TenantID:   tenantID,
		Enabled:    t.Enabled,
		Currency:   currency,
		TextPrice:  MoneyFromMajor(t.TextPrice),
		ImagePrice: MoneyFromMajor(t.ImagePrice),
		Products:   products,
	}, nil
}
