package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/cart"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/checkout"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/customization"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/design"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/raster"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/storage"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	userIDContextKey   = "storefront_user_id"
	tenantIDContextKey = "storefront_tenant_id"
	ownerKeyContextKey = "storefront_editor_owner"

	tenantHeader              = "X-Tenant-ID"
	tenantQueryParameter      = "tenant"
	defaultEditorCookieName   = "storefront_editor"
	defaultSignInURL          = "/login"
	defaultUnavailableURL     = "/"
	editorCookieMaxAgeSeconds = 24 * 60 * 60
)

var (
	errMissingCatalogs       = errors.New("catalog provider dependency required")
	errMissingEditors        = errors.New("editor registry dependency required")
	errMissingCheckout       = errors.New("checkout dependency required")
	errMissingCart           = errors.New("cart dependency required")
	errMissingCustomizations = errors.New("customization dependency required")
	errMissingSessions       = errors.New("session validator dependency required")
	errMissingUsers          = errors.New("user resolver dependency required")
)

type CatalogProvider interface {
	Lookup(tenantID string) (catalog.Catalog, error)
}

type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

type UserResolver interface {
	ResolveCanonicalUserID(ctx context.Context, tenantID string, claims auth.SessionClaims) (string, error)
}

type Checkout interface {
	Commit(ctx context.Context, editor *design.Editor, userID string) (checkout.Result, error)
	Preview(ctx context.Context, editor *design.Editor) (raster.Output, error)
}

type CartReader interface {
	ListItems(ctx context.Context, tenantID, userID string) ([]cart.LineItem, error)
}

type CustomizationReader interface {
	Get(ctx context.Context, tenantID, userID, id string) (customization.Record, error)
	ListForUser(ctx context.Context, tenantID, userID string) ([]customization.Record, error)
}

// PreviewSource serves stored previews when the object store has no public endpoint of its own.
type PreviewSource interface {
	Get(ctx context.Context, key string) (storage.Object, error)
}

type Dependencies struct {
	Catalogs       CatalogProvider
	Editors        *design.Registry
	Checkout       Checkout
	Cart           CartReader
	Customizations CustomizationReader
	Sessions       SessionValidator
	Users          UserResolver
	Previews       PreviewSource
	Realtime       *RealtimeDispatcher
	Uploads        *UploadLimiter
	Logger         *zap.Logger

	AllowedOrigins   []string
	EditorCookieName string
	SecureCookies    bool
	SignInURL        string
	UnavailableURL   string
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Catalogs == nil:
		return nil, errMissingCatalogs
	case deps.Editors == nil:
		return nil, errMissingEditors
	case deps.Checkout == nil:
		return nil, errMissingCheckout
	case deps.Cart == nil:
		return nil, errMissingCart
	case deps.Customizations == nil:
		return nil, errMissingCustomizations
	case deps.Sessions == nil:
		return nil, errMissingSessions
	case deps.Users == nil:
		return nil, errMissingUsers
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}

	handler := &httpHandler{
		catalogs:         deps.Catalogs,
		editors:          deps.Editors,
		checkout:         deps.Checkout,
		cart:             deps.Cart,
		customizations:   deps.Customizations,
		sessions:         deps.Sessions,
		users:            deps.Users,
		previews:         deps.Previews,
		realtime:         realtime,
		uploads:          deps.Uploads,
		logger:           logger,
		editorCookieName: valueOrDefault(deps.EditorCookieName, defaultEditorCookieName),
		secureCookies:    deps.SecureCookies,
		signInURL:        valueOrDefault(deps.SignInURL, defaultSignInURL),
		unavailableURL:   valueOrDefault(deps.UnavailableURL, defaultUnavailableURL),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "editors": handler.editors.Len()})
	})
	if handler.previews != nil {
		router.GET(storage.DefaultPublicBaseURL+"/*key", handler.handlePreviewObject)
	}

	scoped := router.Group("/")
	scoped.Use(handler.resolveTenant)
	scoped.GET("/catalog", handler.handleCatalog)

	designs := scoped.Group("/designs")
	designs.Use(handler.editorSession)
	designs.POST("", handler.handleCreateDesign)
	designs.GET("/:id", handler.handleGetDesign)
	designs.DELETE("/:id", handler.handleDeleteDesign)
	designs.PUT("/:id/base", handler.handleUpdateBase)
	designs.POST("/:id/viewport", handler.handleViewport)
	designs.POST("/:id/texts", handler.handleAddText)
	designs.PATCH("/:id/texts/:layer", handler.handleUpdateText)
	designs.DELETE("/:id/texts/:layer", handler.handleRemoveText)
	designs.POST("/:id/images", handler.handleAddImage)
	designs.PATCH("/:id/images/:layer", handler.handleUpdateImage)
	designs.DELETE("/:id/images/:layer", handler.handleRemoveImage)
	designs.POST("/:id/select", handler.handleSelect)
	designs.POST("/:id/front", handler.handleBringToFront)
	designs.POST("/:id/pointer", handler.handlePointer)
	designs.POST("/:id/click-to-add", handler.handleClickToAdd)
	designs.POST("/:id/pending-text", handler.handlePendingText)
	designs.POST("/:id/keys", handler.handleKey)
	designs.POST("/:id/reset", handler.handleReset)
	designs.GET("/:id/events", handler.handleDesignEvents)
	designs.GET("/:id/preview", handler.handlePreview)
	designs.POST("/:id/cart", handler.authorizeRequest, handler.handleAddToCart)

	protected := scoped.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/cart", handler.handleListCart)
	protected.GET("/customizations", handler.handleListCustomizations)
	protected.GET("/customizations/:id", handler.handleGetCustomization)

	return router, nil
}

type httpHandler struct {
	catalogs       CatalogProvider
	editors        *design.Registry
	checkout       Checkout
	cart           CartReader
	customizations CustomizationReader
	sessions       SessionValidator
	users          UserResolver
	previews       PreviewSource
	realtime       *RealtimeDispatcher
	uploads        *UploadLimiter
	logger         *zap.Logger

	editorCookieName string
	secureCookies    bool
	signInURL        string
	unavailableURL   string
}

// corsMiddleware reflects credentials only for an explicit origin list; a wildcard
// configuration answers every origin without cookies or authorization.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{"Authorization", "Content-Type", tenantHeader},
		MaxAge:       12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
		config.AllowCredentials = true
	}
	return cors.New(config)
}

func (h *httpHandler) resolveTenant(c *gin.Context) {
	tenantID := strings.TrimSpace(c.GetHeader(tenantHeader))
	if tenantID == "" {
		tenantID = strings.TrimSpace(c.Query(tenantQueryParameter))
	}
	if tenantID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_tenant"})
		return
	}
	c.Set(tenantIDContextKey, tenantID)
	c.Next()
}

// editorSession identifies the browser through a cookie issued on first use; editors are
// only reachable from the tenant and browser that created them.
func (h *httpHandler) editorSession(c *gin.Context) {
	value, err := c.Cookie(h.editorCookieName)
	value = strings.TrimSpace(value)
	if err != nil || value == "" {
		value = uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(h.editorCookieName, value, editorCookieMaxAgeSeconds, "/", "", h.secureCookies, true)
	}
	c.Set(ownerKeyContextKey, c.GetString(tenantIDContextKey)+"/"+value)
	c.Next()
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		h.logger.Info("session validation failed", zap.Error(err))
		h.abortUnauthorized(c)
		return
	}
	tenantID := c.GetString(tenantIDContextKey)
	if !claims.AllowsTenant(tenantID) {
		h.logger.Warn("session used outside its tenant",
			zap.String("tenant_id", tenantID),
			zap.String("claimed_tenant_id", claims.TenantID))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "tenant_mismatch"})
		return
	}
	userID, err := h.users.ResolveCanonicalUserID(c.Request.Context(), tenantID, claims)
	if err != nil {
		if errors.Is(err, users.ErrInvalidIdentity) {
			h.abortUnauthorized(c)
			return
		}
		h.logger.Error("failed to resolve user identity", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "identity_resolution_failed"})
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}

func (h *httpHandler) abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "sign_in_url": h.signInURL})
}

func (h *httpHandler) handleCatalog(c *gin.Context) {
	entry, err := h.catalogs.Lookup(c.GetString(tenantIDContextKey))
	if err != nil {
		h.respondError(c, "catalog.lookup", err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
