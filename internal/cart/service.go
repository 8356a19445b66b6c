package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/catalog"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
	errMissingTenantID   = errors.New("tenant identifier is required")
	errMissingName       = errors.New("product name is required")
	errNegativePrice     = errors.New("price must not be negative")
	noOpLogger           = zap.NewNop()
)

// LineItem is one product in a signed-in user's cart.
type LineItem struct {
	ID               string `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	TenantID         string `gorm:"column:tenant_id;size:190;not null;index:idx_cart_owner,priority:1" json:"tenant_id"`
	UserID           string `gorm:"column:user_id;size:190;not null;index:idx_cart_owner,priority:2" json:"-"`
	CustomizationID  string `gorm:"column:customization_id;size:64;not null;default:''" json:"customization_id,omitempty"`
	Name             string `gorm:"column:name;size:190;not null" json:"name"`
	PriceMinor       int64  `gorm:"column:price_minor;not null" json:"price_minor"`
	Currency         string `gorm:"column:currency;size:8;not null" json:"currency"`
	ImageURL         string `gorm:"column:image_url;size:1024;not null;default:''" json:"image"`
	Color            string `gorm:"column:color;size:64;not null;default:''" json:"color"`
	Size             string `gorm:"column:size;size:64;not null;default:''" json:"size"`
	Type             string `gorm:"column:type;size:190;not null;default:''" json:"type"`
	Quantity         int    `gorm:"column:quantity;not null;default:1" json:"quantity"`
	MetadataJSON     string `gorm:"column:metadata_json;type:text;not null;default:'{}'" json:"metadata"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_cart_owner,priority:3" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (LineItem) TableName() string {
	return "cart_items"
}

// NewItem describes a product to add.
type NewItem struct {
	TenantID        string
	UserID          string
	CustomizationID string
	Name            string
	Price           catalog.Money
	Currency        string
	Image           string
	Color           string
	Size            string
	Type            string
	Metadata        any
}

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "cart.service.new"
	opAddItem    = "cart.add_item"
	opListItems  = "cart.list_items"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

type IDProvider interface {
	NewID() (string, error)
}

type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// AddItem appends a line item with quantity one.
func (s *Service) AddItem(ctx context.Context, item NewItem) (LineItem, error) {
	switch {
	case strings.TrimSpace(item.TenantID) == "":
		return LineItem{}, s.fail(opAddItem, "missing_tenant_id", errMissingTenantID)
	case strings.TrimSpace(item.UserID) == "":
		return LineItem{}, s.fail(opAddItem, "missing_user_id", errMissingUserID)
	case strings.TrimSpace(item.Name) == "":
		return LineItem{}, s.fail(opAddItem, "missing_name", errMissingName)
	case item.Price < 0:
		return LineItem{}, s.fail(opAddItem, "negative_price", errNegativePrice)
	}

	metadata := "{}"
	if item.Metadata != nil {
		encoded, err := json.Marshal(item.Metadata)
		if err != nil {
			return LineItem{}, s.fail(opAddItem, "encode_metadata_failed", err)
		}
		metadata = string(encoded)
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return LineItem{}, s.fail(opAddItem, "id_generation_failed", err)
	}

	lineItem := LineItem{
		ID:               id,
		TenantID:         item.TenantID,
		UserID:           item.UserID,
		CustomizationID:  item.CustomizationID,
		Name:             item.Name,
		PriceMinor:       int64(item.Price),
		Currency:         item.Currency,
		ImageURL:         item.Image,
		Color:            item.Color,
		Size:             item.Size,
		Type:             item.Type,
		Quantity:         1,
		MetadataJSON:     metadata,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&lineItem).Error; err != nil {
		s.logError(opAddItem, "insert_failed", err,
			zap.String("tenant_id", item.TenantID),
			zap.String("user_id", item.UserID))
		return LineItem{}, newServiceError(opAddItem, "insert_failed", err)
	}
	return lineItem, nil
}

// ListItems returns a user's cart, oldest first.
func (s *Service) ListItems(ctx context.Context, tenantID, userID string) ([]LineItem, error) {
	if userID == "" {
		return nil, s.fail(opListItems, "missing_user_id", errMissingUserID)
	}
	var items []LineItem
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("created_at_s ASC, id ASC").
		Find(&items).Error; err != nil {
		s.logError(opListItems, "query_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opListItems, "query_failed", err)
	}
	return items, nil
}

func (s *Service) fail(operation, reason string, err error) error {
	s.logError(operation, reason, err)
	return newServiceError(operation, reason, err)
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("cart service error", attrs...)
}
