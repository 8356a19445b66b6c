package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/cart"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/customization"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/design"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/raster"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/storage"
	"go.uber.org/zap"
)

var (
	// ErrCommitInProgress indicates an add-to-cart is already running for the editor.
	ErrCommitInProgress = errors.New("checkout: add to cart already in progress")
	// ErrInvalidDesign indicates the base product selection is incomplete.
	ErrInvalidDesign = errors.New("checkout: design is not valid")

	errMissingDependency = errors.New("dependency is required")
	errMissingUserID     = errors.New("user identifier is required")
	noOpLogger           = zap.NewNop()
)

// Warning codes attached to a successful commit whose optional steps failed.
const (
	WarningRasterizationFailed = "rasterization_failed"
	WarningUploadFailed        = "upload_failed"
	WarningPreviewAttachFailed = "preview_attach_failed"
)

const (
	opServiceNew = "checkout.service.new"
	opCommit     = "checkout.commit"
	opPreview    = "checkout.preview"

	previewPrefix = "previews"
)

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

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// Rasterizer flattens a render state into an encoded image.
type Rasterizer interface {
	Rasterize(ctx context.Context, state design.RenderState) (raster.Output, error)
}

// Uploader stores an encoded preview and returns its public URL.
type Uploader interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Records persists committed designs.
type Records interface {
	CreateSession(ctx context.Context, draft customization.Draft) (customization.Record, error)
	AttachPreview(ctx context.Context, recordID, previewURL string) (customization.Record, error)
}

// Cart receives the resulting line item.
type Cart interface {
	AddItem(ctx context.Context, item cart.NewItem) (cart.LineItem, error)
}

type ServiceConfig struct {
	Rasterizer Rasterizer
	Uploader   Uploader
	Records    Records
	Cart       Cart
	Logger     *zap.Logger
}

// Service runs the add-to-cart pipeline.
type Service struct {
	rasterizer Rasterizer
	uploader   Uploader
	records    Records
	cart       Cart
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Rasterizer == nil:
		return nil, newServiceError(opServiceNew, "missing_rasterizer", errMissingDependency)
	case cfg.Uploader == nil:
		return nil, newServiceError(opServiceNew, "missing_uploader", errMissingDependency)
	case cfg.Records == nil:
		return nil, newServiceError(opServiceNew, "missing_records", errMissingDependency)
	case cfg.Cart == nil:
		return nil, newServiceError(opServiceNew, "missing_cart", errMissingDependency)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		rasterizer: cfg.Rasterizer,
		uploader:   cfg.Uploader,
		records:    cfg.Records,
		cart:       cfg.Cart,
		logger:     logger,
	}, nil
}

// Result describes a completed add-to-cart.
type Result struct {
	Record     customization.Record `json:"customization"`
	Item       cart.LineItem        `json:"item"`
	PreviewURL string               `json:"preview_url,omitempty"`
	Renderer   string               `json:"renderer,omitempty"`
	Warnings   []string             `json:"warnings,omitempty"`
}

type lineItemMetadata struct {
	CustomizationID string              `json:"customization_id"`
	SessionID       string              `json:"session_id"`
	BaseProduct     design.BaseProduct  `json:"base_product"`
	Texts           []design.TextLayer  `json:"texts"`
	Images          []design.ImageLayer `json:"images"`
	Order           []design.ElementRef `json:"order"`
	Pricing         design.Pricing      `json:"pricing"`
	PreviewURL      string              `json:"preview_url,omitempty"`
}

// Commit freezes the editor, records the customization, renders and uploads the preview,
// and adds the line item. Only the record and cart steps are fatal; a cancelled context
// stops the pipeline and leaves the record pending without a cart item.
func (s *Service) Commit(ctx context.Context, editor *design.Editor, userID string) (Result, error) {
	if strings.TrimSpace(userID) == "" {
		return Result{}, newServiceError(opCommit, "missing_user_id", errMissingUserID)
	}
	if !editor.TryBeginCommit() {
		return Result{}, newServiceError(opCommit, "in_progress", ErrCommitInProgress)
	}
	defer editor.EndCommit()

	snapshot := editor.CommitSnapshot()
	fields := []zap.Field{
		zap.String("editor_id", snapshot.EditorID),
		zap.String("tenant_id", snapshot.TenantID),
		zap.String("user_id", userID),
	}
	if !snapshot.Valid {
		return Result{}, newServiceError(opCommit, "invalid_design", ErrInvalidDesign)
	}
	current := snapshot.Render.Design

	record, err := s.records.CreateSession(ctx, customization.Draft{
		TenantID:  snapshot.TenantID,
		UserID:    userID,
		SessionID: snapshot.EditorID,
		Design:    current,
		Pricing:   snapshot.Pricing,
	})
	if err != nil {
		s.logError(opCommit, "record_create_failed", err, fields...)
		return Result{}, newServiceError(opCommit, "record_create_failed", err)
	}
	fields = append(fields, zap.String("record_id", record.ID))
	result := Result{Record: record}

	if err := ctx.Err(); err != nil {
		return Result{}, s.cancelled(err, fields)
	}
	output, err := s.rasterizer.Rasterize(ctx, snapshot.Render)
	switch {
	case ctx.Err() != nil:
		return Result{}, s.cancelled(ctx.Err(), fields)
	case err != nil:
		s.logWarn(opCommit, WarningRasterizationFailed, err, fields...)
		result.Warnings = append(result.Warnings, WarningRasterizationFailed)
	default:
		result.Renderer = output.Renderer
		key := storage.NewObjectKey(previewPrefix+"/"+snapshot.TenantID, "jpg")
		previewURL, err := s.uploader.Put(ctx, key, output.Data, output.ContentType)
		switch {
		case ctx.Err() != nil:
			return Result{}, s.cancelled(ctx.Err(), fields)
		case err != nil:
			s.logWarn(opCommit, WarningUploadFailed, err, fields...)
			result.Warnings = append(result.Warnings, WarningUploadFailed)
		default:
			result.PreviewURL = previewURL
		}
	}

	image := result.PreviewURL
	if image == "" {
		image = current.BackgroundImage
	}
	item, err := s.cart.AddItem(ctx, cart.NewItem{
		TenantID:        snapshot.TenantID,
		UserID:          userID,
		CustomizationID: record.ID,
		Name:            fmt.Sprintf("Custom %s", current.Base.Type),
		Price:           snapshot.Pricing.TotalPrice,
		Currency:        snapshot.Pricing.Currency,
		Image:           image,
		Color:           current.Base.Color,
		Size:            current.Base.Size,
		Type:            snapshot.EditorID,
		Metadata: lineItemMetadata{
			CustomizationID: record.ID,
			SessionID:       snapshot.EditorID,
			BaseProduct:     current.Base,
			Texts:           current.Texts,
			Images:          current.Images,
			Order:           current.Order,
			Pricing:         snapshot.Pricing,
			PreviewURL:      result.PreviewURL,
		},
	})
	if err != nil {
		s.logError(opCommit, "cart_add_failed", err, fields...)
		return Result{}, newServiceError(opCommit, "cart_add_failed", err)
	}
	result.Item = item

	if result.PreviewURL != "" {
		updated, err := s.records.AttachPreview(context.WithoutCancel(ctx), record.ID, result.PreviewURL)
		if err != nil {
			s.logWarn(opCommit, WarningPreviewAttachFailed, err, fields...)
			result.Warnings = append(result.Warnings, WarningPreviewAttachFailed)
		} else {
			result.Record = updated
		}
	}

	s.logger.Info("design added to cart",
		append(fields,
			zap.String("item_id", item.ID),
			zap.String("renderer", result.Renderer),
			zap.Strings("warnings", result.Warnings))...,
	)
	return result, nil
}

// Preview rasterizes the editor's current state without committing it.
func (s *Service) Preview(ctx context.Context, editor *design.Editor) (raster.Output, error) {
	snapshot := editor.CommitSnapshot()
	output, err := s.rasterizer.Rasterize(ctx, snapshot.Render)
	if err != nil {
		s.logError(opPreview, "rasterization_failed", err, zap.String("editor_id", snapshot.EditorID))
		return raster.Output{}, newServiceError(opPreview, "rasterization_failed", err)
	}
	return output, nil
}

func (s *Service) cancelled(err error, fields []zap.Field) error {
	s.logWarn(opCommit, "cancelled", err, fields...)
	return newServiceError(opCommit, "cancelled", err)
}

func (s *Service) logWarn(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	s.logger.Warn("checkout step failed", append(attrs, fields...)...)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	s.logger.Error("checkout service error", append(attrs, fields...)...)
}
