package design

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/catalog"
)

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("id-%d", p.next), nil
}

func testCatalog() catalog.Catalog {
	return catalog.Catalog{
		TenantID:   "acme",
		Enabled:    true,
		Currency:   "EGP",
		TextPrice:  catalog.MoneyFromMajor(20),
		ImagePrice: catalog.MoneyFromMajor(15),
		Products: []catalog.ProductType{
			{
				Name:      "T-Shirt",
				BasePrice: catalog.MoneyFromMajor(150),
				Sizes:     []string{"S", "M", "L"},
				Colors: []catalog.ColorOption{
					{Name: "Black", Hex: "#111111", Mockup: "tshirt-black.png"},
					{Name: "White", Hex: "#ffffff", Mockup: "tshirt-white.png"},
				},
			},
			{
				Name:      "Mug",
				BasePrice: catalog.MoneyFromMajor(90),
				Sizes:     []string{"Standard"},
				Colors:    []catalog.ColorOption{{Name: "White", Hex: "#ffffff"}},
			},
		},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(StoreConfig{
		Catalog:    testCatalog(),
		IDProvider: &sequenceIDProvider{},
	})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	return store
}

func newBaseStore(t *testing.T) *Store {
	t.Helper()
	store := newTestStore(t)
	if err := store.UpdateBaseProduct("T-Shirt", "M", "Black"); err != nil {
		t.Fatalf("failed to select base product: %v", err)
	}
	return store
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buffer.Bytes()
}

func mustAddText(t *testing.T, store *Store, text string, position Point) string {
	t.Helper()
	id, err := store.AddText(text, position, "Arial", "#000000")
	if err != nil {
		t.Fatalf("failed to add text: %v", err)
	}
	return id
}

func mustAddImage(t *testing.T, store *Store, position Point) string {
	t.Helper()
	asset := Asset{ID: fmt.Sprintf("asset-%d", len(store.design.Images)), Format: "png", Image: image.NewRGBA(image.Rect(0, 0, 400, 200))}
	id, err := store.AddDecodedImage(asset, position)
	if err != nil {
		t.Fatalf("failed to add image: %v", err)
	}
	return id
}
