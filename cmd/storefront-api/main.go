package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/cart"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/checkout"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/config"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/customization"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/database"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/design"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/raster"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/server"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/storage"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	shutdownTimeout    = 10 * time.Second
	mockupFetchTimeout = 5 * time.Second
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "storefront-api",
		Short: "Storefront product customization backend",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newIssueTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("storage-backend", defaults.GetString("storage.backend"), "Preview storage backend (filesystem, s3, memory)")
	cmd.PersistentFlags().String("storage-directory", defaults.GetString("storage.directory"), "Directory for the filesystem preview store")
	cmd.PersistentFlags().String("storage-bucket", "", "S3 bucket for previews")
	cmd.PersistentFlags().String("mockup-root", defaults.GetString("raster.mockup_root"), "Directory holding product mockup images")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "storage.backend", "storage-backend")
	bindFlag(cmd, "storage.directory", "storage-directory")
	bindFlag(cmd, "storage.bucket", "storage-bucket")
	bindFlag(cmd, "raster.mockup_root", "mockup-root")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func newIssueTokenCommand() *cobra.Command {
	var (
		userID   string
		email    string
		tenantID string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Print a signed session token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(appConfig.Auth.SigningSecret),
				Issuer:        appConfig.Auth.Issuer,
				TokenTTL:      ttl,
			})
			if err != nil {
				return err
			}
			token, expiresAt, err := issuer.Issue(auth.SessionClaims{
				UserID:    userID,
				UserEmail: email,
				TenantID:  tenantID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User identifier placed in the token subject")
	cmd.Flags().StringVar(&email, "email", "", "User email claim")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Restrict the token to one tenant")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	ids := design.NewUUIDProvider()
	records, err := customization.NewService(customization.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: ids,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	cartService, err := cart.NewService(cart.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: ids,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	userService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	previews, err := storage.Open(ctx, appConfig.Storage, logger)
	if err != nil {
		return err
	}
	rasterizer := raster.NewRasterizer(raster.Config{
		Backgrounds: raster.NewMockupLoader(appConfig.Raster.MockupRoot, &http.Client{Timeout: mockupFetchTimeout}),
		Quality:     appConfig.Raster.Quality,
		MaxPixels:   appConfig.Raster.MaxPixels,
		Logger:      logger,
	})
	checkoutService, err := checkout.NewService(checkout.ServiceConfig{
		Rasterizer: rasterizer,
		Uploader:   previews,
		Records:    records,
		Cart:       cartService,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.Auth.SigningSecret),
		Issuer:        appConfig.Auth.Issuer,
		CookieName:    appConfig.Auth.CookieName,
	})
	if err != nil {
		return err
	}

	editors := design.NewRegistry(design.RegistryConfig{
		IDProvider: ids,
		Clock:      time.Now,
		Canvas:     design.Size{Width: appConfig.Editor.CanvasWidth, Height: appConfig.Editor.CanvasHeight},
	})
	uploads := server.NewUploadLimiter(appConfig.Upload.PerMinute, appConfig.Upload.Burst)
	realtime := server.NewRealtimeDispatcher()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Catalogs:         catalog.NewProvider(appConfig.Catalogs),
		Editors:          editors,
		Checkout:         checkoutService,
		Cart:             cartService,
		Customizations:   records,
		Sessions:         validator,
		Users:            userService,
		Previews:         previews,
		Realtime:         realtime,
		Uploads:          uploads,
		Logger:           logger,
		AllowedOrigins:   appConfig.AllowedOrigins,
		EditorCookieName: appConfig.Editor.CookieName,
		SecureCookies:    appConfig.Editor.SecureCookie,
		SignInURL:        appConfig.Auth.SignInURL,
		UnavailableURL:   appConfig.Editor.UnavailableURL,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go evictIdleEditors(signalCtx, editors, realtime, uploads, appConfig.Editor, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.Int("tenants", len(appConfig.Catalogs)),
			zap.String("storage_backend", appConfig.Storage.Backend))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func evictIdleEditors(ctx context.Context, editors *design.Registry, realtime *server.RealtimeDispatcher, uploads *server.UploadLimiter, cfg config.EditorConfig, logger *zap.Logger) {
	ticker := time.NewTicker(cfg.EvictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := server.EvictIdleEditors(editors, realtime, cfg.IdleTimeout)
			pruned := uploads.Prune(cfg.IdleTimeout)
			if evicted > 0 || pruned > 0 {
				logger.Debug("idle sessions evicted", zap.Int("editors", evicted), zap.Int("upload_limiters", pruned))
			}
		}
	}
}
