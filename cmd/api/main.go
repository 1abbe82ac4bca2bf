package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"pantrypal-api/internal/app"
	"pantrypal-api/internal/barcode"
	"pantrypal-api/internal/clock"
	"pantrypal-api/internal/config"
	"pantrypal-api/internal/handler"
	"pantrypal-api/internal/logging"
	"pantrypal-api/internal/mailer"
	"pantrypal-api/internal/middleware"
	"pantrypal-api/internal/pantry"
	"pantrypal-api/internal/router"
	"pantrypal-api/internal/service"
	"pantrypal-api/internal/upload"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	log := logging.New(os.Stderr, logging.Options{
		JSON:  cfg.App.IsProduction(),
		Debug: cfg.App.Debug,
	})
	log.Info("starting PantryPal API", "version", cfg.App.Version, "environment", cfg.App.Environment)

	if problems := cfg.Validate(); len(problems) > 0 {
		for _, p := range problems {
			log.Warn("configuration problem", "problem", p)
		}
		if cfg.App.IsProduction() {
			log.Error("refusing to start with an incomplete production configuration")
			os.Exit(1)
		}
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = ephemeralSecret()
		log.Warn("using an ephemeral JWT secret, tokens will not survive a restart")
	}

	ctx := context.Background()
	deps, err := app.Open(ctx, cfg, log, app.Options{Migrate: !cfg.App.IsProduction()})
	if err != nil {
		log.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	clk := clock.Real{}

	// Pantry sessions
	hub := pantry.NewHub(deps.Live, pantry.NewNormalizer(clk, log), clk, log, pantry.HubConfig{
		IdleTimeout:  cfg.Session.IdleTimeout,
		ReapInterval: cfg.Session.ReapInterval,
	})
	hub.Start()

	// Services
	tokens := service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, deps.Cache, clk)
	mail := mailer.New(mailer.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
	}, log)
	auth := service.NewAuthService(deps.Users, tokens, deps.Cache, mail, clk, log, service.AuthConfig{
		AppName:    cfg.App.Name,
		ResetURL:   cfg.Auth.ResetURL,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	items := service.NewItemService(deps.Live, clk, log)
	lookup := barcode.NewClient(barcode.Config{
		BaseURL:   cfg.Barcode.BaseURL,
		Timeout:   cfg.Barcode.Timeout,
		CacheTTL:  cfg.Barcode.CacheTTL,
		UserAgent: cfg.Barcode.UserAgent,
	}, deps.Cache, log)

	uploader, err := upload.New(ctx, upload.Config{
		Provider: cfg.Upload.Provider,
		S3: upload.S3Config{
			Bucket:        cfg.Upload.S3Bucket,
			Region:        cfg.Upload.S3Region,
			Endpoint:      cfg.Upload.S3Endpoint,
			AccessKey:     cfg.Upload.S3AccessKey,
			SecretKey:     cfg.Upload.S3SecretKey,
			PathStyle:     cfg.Upload.S3PathStyle,
			PublicBaseURL: cfg.Upload.S3PublicBaseURL,
		},
		CloudinaryCloudName:    cfg.Upload.CloudinaryCloudName,
		CloudinaryUploadPreset: cfg.Upload.CloudinaryUploadPreset,
		CloudinaryFolder:       cfg.Upload.CloudinaryFolder,
		CloudinaryAPIKey:       cfg.Upload.CloudinaryAPIKey,
		CloudinaryAPISecret:    cfg.Upload.CloudinaryAPISecret,
	}, cfg.App.IsProduction(), log)
	if err != nil {
		log.Error("failed to configure image uploads", "error", err)
		hub.Close()
		deps.Close()
		os.Exit(1)
	}

	// Create router
	r := router.New(router.Config{
		Logger:          log,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Handler:         handler.New(cfg.App.Name, cfg.App.Version, deps.Probes()...),
		AuthHandler:     handler.NewAuthHandler(auth, hub, log),
		PantryHandler:   handler.NewPantryHandler(hub, items, clk, log),
		BarcodeHandler:  handler.NewBarcodeHandler(lookup, log),
		UploadHandler:   handler.NewUploadHandler(uploader, log),
		AdminHandler:    handler.NewAdminHandler(deps.Live, deps.Users, hub, deps.StoreType, deps.CacheType),
		AuthMiddleware:  middleware.RequireAuth(auth),
		AdminMiddleware: middleware.RequireLoginKey(cfg.App.LoginKey),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		log.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Closing the sessions ends open event streams so Shutdown can finish.
	hub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	log.Info("server stopped")
}

func ephemeralSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
