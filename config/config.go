package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultCapacity = 16

// Config holds all configuration parameters of the application.
type Config struct {
	DatabaseURL   string
	MigrationsDir string
	JWTSecretKey  string
	ServerPort    int

	// Tournament registration settings.
	Capacity int
	// Deadline after which registration closes regardless of free slots.
	// Zero value means no deadline is enforced.
	RegistrationDeadline time.Time

	// Seed credentials for the admin account. Created at startup if no
	// admin with this email exists yet.
	AdminEmail    string
	AdminPassword string

	// Cloudflare R2 (payment-proof storage). All empty means the proof
	// upload flow is disabled and registrations are accepted without one.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	// SMTP (confirmation emails). Empty host disables sending.
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables.
// A .env file is loaded if present (useful for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	capacity := defaultCapacity
	if capStr := os.Getenv("REGISTRATION_CAPACITY"); capStr != "" {
		capacity, err = strconv.Atoi(capStr)
		if err != nil {
			return nil, fmt.Errorf("invalid REGISTRATION_CAPACITY environment variable: %w", err)
		}
		if capacity <= 0 {
			return nil, fmt.Errorf("REGISTRATION_CAPACITY must be positive, got %d", capacity)
		}
	}

	var deadline time.Time
	if deadlineStr := os.Getenv("REGISTRATION_DEADLINE"); deadlineStr != "" {
		deadline, err = time.Parse(time.RFC3339, deadlineStr)
		if err != nil {
			return nil, fmt.Errorf("invalid REGISTRATION_DEADLINE (expected RFC3339): %w", err)
		}
	}

	smtpPort := 0
	if smtpPortStr := os.Getenv("SMTP_PORT"); smtpPortStr != "" {
		smtpPort, err = strconv.Atoi(smtpPortStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT environment variable: %w", err)
		}
	}

	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}

	origins := []string{"*"}
	if raw := os.Getenv("CORS_ALLOWED_ORIGINS"); raw != "" {
		origins = origins[:0]
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}

	cfg := &Config{
		DatabaseURL:          dbURL,
		MigrationsDir:        migrationsDir,
		JWTSecretKey:         jwtKey,
		ServerPort:           port,
		Capacity:             capacity,
		RegistrationDeadline: deadline,
		AdminEmail:           os.Getenv("ADMIN_EMAIL"),
		AdminPassword:        os.Getenv("ADMIN_PASSWORD"),
		R2AccountID:          os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:        os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:    os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:         os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:      os.Getenv("R2_PUBLIC_BASE_URL"),
		SMTPHost:             os.Getenv("SMTP_HOST"),
		SMTPPort:             smtpPort,
		SMTPUser:             os.Getenv("SMTP_USER"),
		SMTPPass:             os.Getenv("SMTP_PASS"),
		SMTPFrom:             os.Getenv("SMTP_FROM"),
		CORSAllowedOrigins:   origins,
	}

	return cfg, nil
}

// ProofStorageConfigured reports whether all R2 settings are present.
// When true, the registration form requires a payment-proof upload.
func (c *Config) ProofStorageConfigured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" &&
		c.R2SecretAccessKey != "" && c.R2BucketName != "" && c.R2PublicBaseURL != ""
}
