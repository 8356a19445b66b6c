package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/storage"
	"github.com/spf13/viper"
)

const (
	envPrefix                = "STOREFRONT"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "storefront.db"
	defaultLogLevel          = "info"
	defaultSessionCookieName = "storefront_session"
	defaultSessionIssuer     = "storefront-auth"
	defaultSignInURL         = "/login"
	defaultEditorCookieName  = "storefront_editor"
	defaultEditorIdleTimeout = 30 * time.Minute
	defaultEvictionInterval  = time.Minute
	defaultCanvasWidth       = 600
	defaultCanvasHeight      = 500
	defaultStorageDirectory  = "previews"
	defaultRasterQuality     = 90
	defaultRasterMaxPixels   = 4096 * 4096
	defaultMockupRoot        = "mockups"
	defaultUploadsPerMinute  = 30
	defaultUploadBurst       = 5
	defaultUnavailableURL    = "/"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	DatabasePath   string
	LogLevel       string
	AllowedOrigins []string
	Auth           AuthConfig
	Editor         EditorConfig
	Storage        storage.Config
	Raster         RasterConfig
	Upload         UploadConfig
	Catalogs       []catalog.Catalog
}

// AuthConfig describes session validation and the sign-in redirect.
type AuthConfig struct {
	SigningSecret string
	Issuer        string
	CookieName    string
	SignInURL     string
}

// EditorConfig describes the in-memory editing sessions.
type EditorConfig struct {
	CookieName       string
	SecureCookie     bool
	IdleTimeout      time.Duration
	EvictionInterval time.Duration
	CanvasWidth      float64
	CanvasHeight     float64
	UnavailableURL   string
}

// RasterConfig describes preview rendering.
type RasterConfig struct {
	Quality    int
	MaxPixels  int
	MockupRoot string
}

// UploadConfig bounds image uploads per browser session.
type UploadConfig struct {
	PerMinute float64
	Burst     int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{"*"})
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.issuer", defaultSessionIssuer)
	configViper.SetDefault("auth.cookie_name", defaultSessionCookieName)
	configViper.SetDefault("auth.sign_in_url", defaultSignInURL)
	configViper.SetDefault("editor.cookie_name", defaultEditorCookieName)
	configViper.SetDefault("editor.secure_cookie", false)
	configViper.SetDefault("editor.idle_timeout", defaultEditorIdleTimeout)
	configViper.SetDefault("editor.eviction_interval", defaultEvictionInterval)
	configViper.SetDefault("editor.canvas_width", defaultCanvasWidth)
	configViper.SetDefault("editor.canvas_height", defaultCanvasHeight)
	configViper.SetDefault("editor.unavailable_url", defaultUnavailableURL)
	configViper.SetDefault("storage.backend", storage.BackendFilesystem)
	configViper.SetDefault("storage.directory", defaultStorageDirectory)
	configViper.SetDefault("storage.public_base_url", storage.DefaultPublicBaseURL)
	configViper.SetDefault("raster.quality", defaultRasterQuality)
	configViper.SetDefault("raster.max_pixels", defaultRasterMaxPixels)
	configViper.SetDefault("raster.mockup_root", defaultMockupRoot)
	configViper.SetDefault("upload.per_minute", defaultUploadsPerMinute)
	configViper.SetDefault("upload.burst", defaultUploadBurst)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	catalogs, err := catalog.LoadFromViper(configViper)
	if err != nil {
		return AppConfig{}, err
	}

	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabasePath:   configViper.GetString("database.path"),
		LogLevel:       configViper.GetString("log.level"),
		AllowedOrigins: configViper.GetStringSlice("http.allowed_origins"),
		Auth: AuthConfig{
			SigningSecret: configViper.GetString("auth.signing_secret"),
			Issuer:        configViper.GetString("auth.issuer"),
			CookieName:    configViper.GetString("auth.cookie_name"),
			SignInURL:     configViper.GetString("auth.sign_in_url"),
		},
		Editor: EditorConfig{
			CookieName:       configViper.GetString("editor.cookie_name"),
			SecureCookie:     configViper.GetBool("editor.secure_cookie"),
			IdleTimeout:      configViper.GetDuration("editor.idle_timeout"),
			EvictionInterval: configViper.GetDuration("editor.eviction_interval"),
			CanvasWidth:      configViper.GetFloat64("editor.canvas_width"),
			CanvasHeight:     configViper.GetFloat64("editor.canvas_height"),
			UnavailableURL:   configViper.GetString("editor.unavailable_url"),
		},
		Storage: storage.Config{
			Backend:       configViper.GetString("storage.backend"),
			Directory:     configViper.GetString("storage.directory"),
			PublicBaseURL: configViper.GetString("storage.public_base_url"),
			Bucket:        configViper.GetString("storage.bucket"),
			Region:        configViper.GetString("storage.region"),
			Endpoint:      configViper.GetString("storage.endpoint"),
		},
		Raster: RasterConfig{
			Quality:    configViper.GetInt("raster.quality"),
			MaxPixels:  configViper.GetInt("raster.max_pixels"),
			MockupRoot: configViper.GetString("raster.mockup_root"),
		},
		Upload: UploadConfig{
			PerMinute: configViper.GetFloat64("upload.per_minute"),
			Burst:     configViper.GetInt("upload.burst"),
		},
		Catalogs: catalogs,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.Auth.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.Auth.CookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if strings.TrimSpace(c.Auth.Issuer) == "" {
		return fmt.Errorf("auth.issuer is required")
	}
	if len(c.AllowedOrigins) > 1 && slices.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("http.allowed_origins cannot mix \"*\" with explicit origins")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.Editor.CookieName) == "" {
		return fmt.Errorf("editor.cookie_name is required")
	}
	if c.Editor.IdleTimeout <= 0 || c.Editor.EvictionInterval <= 0 {
		return fmt.Errorf("editor.idle_timeout and editor.eviction_interval must be positive")
	}
	if c.Editor.CanvasWidth <= 0 || c.Editor.CanvasHeight <= 0 {
		return fmt.Errorf("editor canvas size must be positive")
	}
	if c.Raster.Quality < 1 || c.Raster.Quality > 100 {
		return fmt.Errorf("raster.quality must be within [1,100]")
	}
	if c.Raster.MaxPixels <= 0 {
		return fmt.Errorf("raster.max_pixels must be positive")
	}
	if c.Upload.PerMinute <= 0 || c.Upload.Burst <= 0 {
		return fmt.Errorf("upload.per_minute and upload.burst must be positive")
	}
	return nil
}
