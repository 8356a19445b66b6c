package customization

import (
	"errors"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/design"
)

// Status tracks whether a record received its preview.
type Status string

const (
	// StatusPending marks a record created before rasterization.
	StatusPending Status = "pending"
	// StatusCompleted marks a record with its preview attached.
	StatusCompleted Status = "completed"
)

// ErrRecordNotFound indicates no record matches the id for the caller.
var ErrRecordNotFound = errors.New("customization: record not found")

// Record is the persisted form of a committed design.
type Record struct {
	ID               string `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	TenantID         string `gorm:"column:tenant_id;size:190;not null;index:idx_customizations_owner,priority:1" json:"tenant_id"`
	UserID           string `gorm:"column:user_id;size:190;not null;index:idx_customizations_owner,priority:2" json:"-"`
	SessionID        string `gorm:"column:session_id;size:190;not null" json:"session_id"`
	ProductType      string `gorm:"column:product_type;size:190;not null" json:"product_type"`
	ProductSize      string `gorm:"column:product_size;size:64;not null" json:"product_size"`
	ProductColor     string `gorm:"column:product_color;size:64;not null" json:"product_color"`
	DesignJSON       string `gorm:"column:design_json;type:text;not null" json:"-"`
	Currency         string `gorm:"column:currency;size:8;not null" json:"currency"`
	BasePriceMinor   int64  `gorm:"column:base_price_minor;not null" json:"base_price_minor"`
	TextPriceMinor   int64  `gorm:"column:text_price_minor;not null" json:"text_price_minor"`
	ImagePriceMinor  int64  `gorm:"column:image_price_minor;not null" json:"image_price_minor"`
	TotalPriceMinor  int64  `gorm:"column:total_price_minor;not null" json:"total_price_minor"`
	TextCount        int    `gorm:"column:text_count;not null;default:0" json:"text_count"`
	ImageCount       int    `gorm:"column:image_count;not null;default:0" json:"image_count"`
	PreviewURL       string `gorm:"column:preview_url;size:1024;not null;default:''" json:"preview_url,omitempty"`
	Status           Status `gorm:"column:status;size:16;not null;index" json:"status"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_customizations_owner,priority:3" json:"created_at"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "customizations"
}

// Draft is the input for a new record.
type Draft struct {
	TenantID  string
	UserID    string
	SessionID string
	Design    design.Design
	Pricing   design.Pricing
}

// documentJSON is what design_json stores: the layers plus the base product they sit on.
type documentJSON struct {
	Base            design.BaseProduct  `json:"base_product"`
	BackgroundImage string              `json:"background_image,omitempty"`
	CanvasWidth     float64             `json:"canvas_width"`
	CanvasHeight    float64             `json:"canvas_height"`
	Texts           []design.TextLayer  `json:"texts"`
	Images          []design.ImageLayer `json:"images"`
	Order           []design.ElementRef `json:"order"`
}

func newDocument(source design.Design) documentJSON {
	texts := source.Texts
	if texts == nil {
		texts = []design.TextLayer{}
	}
	images := source.Images
	if images == nil {
		images = []design.ImageLayer{}
	}
	order := source.Order
	if order == nil {
		order = []design.ElementRef{}
	}
	return documentJSON{
		Base:            source.Base,
		BackgroundImage: source.BackgroundImage,
		CanvasWidth:     source.CanvasWidth,
		CanvasHeight:    source.CanvasHeight,
		Texts:           texts,
		Images:          images,
		Order:           order,
	}
}
