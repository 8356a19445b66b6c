package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// ServiceConfig describes the dependencies required for user identity resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages canonical customer identifiers and provider-specific identities.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
	cache  sync.Map
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
	}, nil
}

// ResolveCanonicalUserID returns the canonical customer id for the session claims, creating
// the identity mapping on first sight of a provider+subject pair. tenantID is recorded as the
// tenant the customer was last seen in.
func (s *Service) ResolveCanonicalUserID(ctx context.Context, tenantID string, claims auth.SessionClaims) (string, error) {
	provider, subject := providerSubject(claims)
	if subject == "" {
		return "", ErrInvalidIdentity
	}

	lookup := Identity{Provider: provider, Subject: subject}
	if cached, ok := s.cache.Load(lookup.cacheKey()); ok {
		if customerID, ok := cached.(string); ok {
			return customerID, nil
		}
	}

	db := s.db.WithContext(ctx)
	var identity Identity
	err := db.Where("provider = ? AND subject = ?", provider, subject).First(&identity).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		identity = newIdentity(provider, subject, tenantID, claims, s.now())
		if err := db.Create(&identity).Error; err != nil {
			return "", err
		}
		s.logger.Info("customer identity created",
			zap.String("provider", provider),
			zap.String("tenant_id", tenantID))
	case err != nil:
		return "", err
	default:
		changes := identity.profileChanges(tenantID, claims, s.now())
		if err := db.Model(&Identity{}).
			Where("provider = ? AND subject = ?", provider, subject).
			Updates(changes).Error; err != nil {
			s.logger.Warn("identity refresh failed",
				zap.String("provider", provider),
				zap.String("subject", subject),
				zap.Error(err))
		}
	}

	s.cache.Store(identity.cacheKey(), identity.CustomerID)
	return identity.CustomerID, nil
}
