package customization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingTenantID   = errors.New("tenant identifier is required")
	errMissingUserID     = errors.New("user identifier is required")
	errMissingRecordID   = errors.New("record identifier is required")
	errMissingPreviewURL = errors.New("preview url is required")
	errIncompleteBase    = errors.New("base product is incomplete")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a stable "operation.reason" code.
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
	opServiceNew     = "customization.service.new"
	opCreateSession  = "customization.create_session"
	opAttachPreview  = "customization.attach_preview"
	opGetRecord      = "customization.get"
	opListForUser    = "customization.list_for_user"
	maxListedRecords = 100
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

// Service persists committed designs.
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

// CreateSession stores a pending record for the draft.
func (s *Service) CreateSession(ctx context.Context, draft Draft) (Record, error) {
	tenantID := strings.TrimSpace(draft.TenantID)
	userID := strings.TrimSpace(draft.UserID)
	if tenantID == "" {
		s.logError(opCreateSession, "missing_tenant_id", errMissingTenantID)
		return Record{}, newServiceError(opCreateSession, "missing_tenant_id", errMissingTenantID)
	}
	if userID == "" {
		s.logError(opCreateSession, "missing_user_id", errMissingUserID)
		return Record{}, newServiceError(opCreateSession, "missing_user_id", errMissingUserID)
	}
	if !draft.Design.Base.Complete() {
		s.logError(opCreateSession, "incomplete_base_product", errIncompleteBase, zap.String("tenant_id", tenantID))
		return Record{}, newServiceError(opCreateSession, "incomplete_base_product", errIncompleteBase)
	}

	payload, err := json.Marshal(newDocument(draft.Design))
	if err != nil {
		s.logError(opCreateSession, "encode_failed", err, zap.String("tenant_id", tenantID))
		return Record{}, newServiceError(opCreateSession, "encode_failed", err)
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateSession, "id_generation_failed", err, zap.String("tenant_id", tenantID))
		return Record{}, newServiceError(opCreateSession, "id_generation_failed", err)
	}

	now := s.clock().UTC().Unix()
	record := Record{
		ID:               id,
		TenantID:         tenantID,
		UserID:           userID,
		SessionID:        draft.SessionID,
		ProductType:      draft.Design.Base.Type,
		ProductSize:      draft.Design.Base.Size,
		ProductColor:     draft.Design.Base.Color,
		DesignJSON:       string(payload),
		Currency:         draft.Pricing.Currency,
		BasePriceMinor:   int64(draft.Pricing.BaseProductPrice),
		TextPriceMinor:   int64(draft.Pricing.TextPrice),
		ImagePriceMinor:  int64(draft.Pricing.ImagePrice),
		TotalPriceMinor:  int64(draft.Pricing.TotalPrice),
		TextCount:        draft.Pricing.TextCount,
		ImageCount:       draft.Pricing.ImageCount,
		Status:           StatusPending,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logError(opCreateSession, "insert_failed", err,
			zap.String("tenant_id", tenantID),
			zap.String("record_id", id))
		return Record{}, newServiceError(opCreateSession, "insert_failed", err)
	}
	return record, nil
}

// AttachPreview stores the preview URL and completes the record.
func (s *Service) AttachPreview(ctx context.Context, recordID, previewURL string) (Record, error) {
	if strings.TrimSpace(recordID) == "" {
		s.logError(opAttachPreview, "missing_record_id", errMissingRecordID)
		return Record{}, newServiceError(opAttachPreview, "missing_record_id", errMissingRecordID)
	}
	if strings.TrimSpace(previewURL) == "" {
		s.logError(opAttachPreview, "missing_preview_url", errMissingPreviewURL)
		return Record{}, newServiceError(opAttachPreview, "missing_preview_url", errMissingPreviewURL)
	}

	var record Record
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", recordID).Take(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newServiceError(opAttachPreview, "not_found", ErrRecordNotFound)
			}
			s.logError(opAttachPreview, "select_failed", err, zap.String("record_id", recordID))
			return newServiceError(opAttachPreview, "select_failed", err)
		}
		record.PreviewURL = previewURL
		record.Status = StatusCompleted
		record.UpdatedAtSeconds = s.clock().UTC().Unix()
		if err := tx.Save(&record).Error; err != nil {
			s.logError(opAttachPreview, "update_failed", err, zap.String("record_id", recordID))
			return newServiceError(opAttachPreview, "update_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return Record{}, txErr
	}
	return record, nil
}

// Get returns a record owned by userID within tenantID.
func (s *Service) Get(ctx context.Context, tenantID, userID, recordID string) (Record, error) {
	if userID == "" {
		s.logError(opGetRecord, "missing_user_id", errMissingUserID)
		return Record{}, newServiceError(opGetRecord, "missing_user_id", errMissingUserID)
	}
	var record Record
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND user_id = ?", recordID, tenantID, userID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, newServiceError(opGetRecord, "not_found", ErrRecordNotFound)
	}
	if err != nil {
		s.logError(opGetRecord, "query_failed", err, zap.String("record_id", recordID))
		return Record{}, newServiceError(opGetRecord, "query_failed", err)
	}
	return record, nil
}

// ListForUser returns the newest records of a user within a tenant.
func (s *Service) ListForUser(ctx context.Context, tenantID, userID string) ([]Record, error) {
	if userID == "" {
		s.logError(opListForUser, "missing_user_id", errMissingUserID)
		return nil, newServiceError(opListForUser, "missing_user_id", errMissingUserID)
	}
	var records []Record
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("created_at_s DESC").
		Limit(maxListedRecords).
		Find(&records).Error; err != nil {
		s.logError(opListForUser, "query_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opListForUser, "query_failed", err)
	}
	return records, nil
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
	s.loggerOrDefault().Error("customization service error", attrs...)
}
