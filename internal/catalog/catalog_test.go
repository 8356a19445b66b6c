package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

const tenantYAML = `
customization:
  tenants:
    - id: Acme
      enabled: true
      currency: egp
      text_price: 20
      image_price: 15
      products:
        - type: T-Shirt
          base_price: 150
          sizes: [S, M, L]
          colors:
            - name: Black
              hex: "#111111"
              mockup: tshirt-black.png
            - name: White
              hex: "#FFFFFF"
              mockup: tshirt-white.png
    - id: dormant
      enabled: false
      products:
        - type: Mug
          base_price: 90
          sizes: [Standard]
          colors:
            - name: White
`

func loadTestProvider(t *testing.T) *Provider {
	t.Helper()
	configViper := viper.New()
	configViper.SetConfigType("yaml")
	if err := configViper.ReadConfig(strings.NewReader(tenantYAML)); err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	catalogs, err := LoadFromViper(configViper)
	if err != nil {
		t.Fatalf("failed to load catalogs: %v", err)
	}
	return NewProvider(catalogs)
}

func TestLoadFromViperConvertsPrices(t *testing.T) {
	provider := loadTestProvider(t)

	entry, err := provider.Lookup("acme")
	if err != nil {
		t.Fatalf("expected tenant lookup to succeed: %v", err)
	}
	if entry.Currency != "EGP" {
		t.Fatalf("expected currency to be upper-cased, got %q", entry.Currency)
	}
	if entry.TextPrice != 2000 || entry.ImagePrice != 1500 {
		t.Fatalf("unexpected element prices: text=%d image=%d", entry.TextPrice, entry.ImagePrice)
	}
	product, ok := entry.Product("t-shirt")
	if !ok {
		t.Fatalf("expected product lookup to be case insensitive")
	}
	if product.BasePrice != 15000 {
		t.Fatalf("unexpected base price %d", product.BasePrice)
	}
	if color, ok := product.Color("black"); !ok || color.Hex != "#111111" {
		t.Fatalf("unexpected color option %#v", color)
	}
}

func TestLookupRejectsDisabledAndUnknownTenants(t *testing.T) {
	provider := loadTestProvider(t)

	for _, tenantID := range []string{"dormant", "missing", ""} {
		if _, err := provider.Lookup(tenantID); !errors.Is(err, ErrCustomizationUnavailable) {
			t.Fatalf("tenant %q: expected ErrCustomizationUnavailable, got %v", tenantID, err)
		}
	}
}

func TestResolveValidatesSelection(t *testing.T) {
	provider := loadTestProvider(t)
	entry, err := provider.Lookup("acme")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}

	tests := []struct {
		name        string
		productType string
		size        string
		color       string
		expected    error
	}{
		{name: "valid", productType: "T-Shirt", size: "M", color: "Black"},
		{name: "unknown-type", productType: "Hoodie", size: "M", color: "Black", expected: ErrUnknownProductType},
		{name: "unknown-size", productType: "T-Shirt", size: "XXL", color: "Black", expected: ErrUnknownProductSize},
		{name: "unknown-color", productType: "T-Shirt", size: "M", color: "Purple", expected: ErrUnknownProductColor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := entry.Resolve(tt.productType, tt.size, tt.color)
			if tt.expected == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.expected != nil && !errors.Is(err, tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestResolveCanonicalizesPartialSelection(t *testing.T) {
	provider := loadTestProvider(t)
	entry, err := provider.Lookup("acme")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}

	product, size, option, err := entry.Resolve("t-shirt", "m", "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if product.Name != "T-Shirt" || size != "M" || option.Name != "" {
		t.Fatalf("unexpected resolution %q %q %#v", product.Name, size, option)
	}
}

func TestMoneyString(t *testing.T) {
	if got := MoneyFromMajor(200).String(); got != "200.00" {
		t.Fatalf("unexpected formatting %q", got)
	}
	if got := Money(-1505).String(); got != "-15.05" {
		t.Fatalf("unexpected negative formatting %q", got)
	}
}
