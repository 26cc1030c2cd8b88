package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/iete-tsec/ascension-registration/config"
	"github.com/iete-tsec/ascension-registration/db"
	"github.com/iete-tsec/ascension-registration/handlers"
	"github.com/iete-tsec/ascension-registration/ledger"
	"github.com/iete-tsec/ascension-registration/repositories"
	api "github.com/iete-tsec/ascension-registration/routes"
	"github.com/iete-tsec/ascension-registration/services"
	"github.com/iete-tsec/ascension-registration/storage"
)

// refreshInterval bounds how stale the ledger can get relative to writes
// that bypassed this process.
const refreshInterval = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.Int("capacity", cfg.Capacity))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	// Apply pending migrations.
	driver, err := migratepg.WithInstance(dbConn, &migratepg.Config{})
	if err != nil {
		logger.Error("failed to create migration driver", slog.Any("error", err))
		os.Exit(1)
	}
	migrator, err := migrate.NewWithDatabaseInstance("file://"+cfg.MigrationsDir, "postgres", driver)
	if err != nil {
		logger.Error("failed to create migrator", slog.Any("error", err))
		os.Exit(1)
	}
	if err = migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// Payment-proof storage is optional; without it registrations are
	// accepted without a screenshot.
	var uploader storage.FileUploader
	if cfg.ProofStorageConfigured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Info("proof storage not configured, registrations accepted without payment proof")
	}

	var mailer services.Mailer
	if cfg.SMTPHost != "" {
		mailer = services.NewEmailService(services.EmailConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		})
		logger.Info("email service initialized")
	}

	registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	adminRepo := repositories.NewPostgresAdminRepository(dbConn)

	registrationLedger := ledger.New(registrationRepo, cfg.Capacity, logger)
	capacityHub := ledger.NewHub(logger)
	registrationLedger.OnChange(capacityHub.BroadcastSnapshot)

	authService := services.NewAuthService(adminRepo, logger)
	registrationService := services.NewRegistrationService(
		registrationRepo,
		registrationLedger,
		uploader,
		mailer,
		cfg.RegistrationDeadline,
		logger,
	)
	moderationService := services.NewModerationService(registrationRepo, registrationLedger, uploader, logger)
	logger.Info("services initialized")

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if err = authService.EnsureAdmin(startupCtx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		cancelStartup()
		logger.Error("failed to ensure seed admin", slog.Any("error", err))
		os.Exit(1)
	}
	if err = registrationLedger.Refresh(startupCtx); err != nil {
		// Not fatal: the scheduler retries and the ledger serves what it has.
		logger.Error("initial ledger refresh failed", slog.Any("error", err))
	}
	cancelStartup()
	logger.Info("ledger primed", slog.Int("teams", registrationLedger.Count()))

	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	registrationHandler := handlers.NewRegistrationHandler(registrationService, registrationLedger, cfg.RegistrationDeadline)
	adminHandler := handlers.NewAdminHandler(moderationService)
	webSocketHandler := handlers.NewWebSocketHandler(capacityHub, registrationLedger)

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		registrationHandler,
		adminHandler,
		authHandler,
		webSocketHandler,
		cfg.JWTSecretKey,
		cfg.CORSAllowedOrigins,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		capacityHub.Run(gCtx)
		return nil
	})

	// Authoritative ledger refresh on an interval: reconciles any writes
	// this process did not make (manual DB edits, other instances).
	g.Go(func() error {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				if err := registrationLedger.Refresh(gCtx); err != nil {
					logger.Error("scheduled ledger refresh failed", slog.Any("error", err))
				}
			}
		}
	})

	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		logger.Info("shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err = g.Wait(); err != nil {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}
