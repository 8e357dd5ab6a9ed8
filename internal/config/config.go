package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the entire application configuration.
// Populated from environment variables.
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Email      EmailConfig
	Stripe     StripeConfig
	Adyen      AdyenConfig
	Braintree  BraintreeConfig
	Secrets    SecretsConfig
	Worker     WorkerConfig
	MinIO      MinIOConfig
	Resolution ResolutionConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	AccessTokenExpiry int // minutes
}

type EmailConfig struct {
	SMTPHost string
	SMTPPort string
	From     string
}

// =====================================================
// GATEWAY CONFIGURATION
// =====================================================

type StripeConfig struct {
	APIURL        string // Stripe API base URL
	WebhookSecret string // Secret for webhook HMAC-SHA256 signatures
}

type AdyenConfig struct {
	APIURL        string
	MerchantAccnt string // Adyen merchant account code
	HMACKey       string // Hex-encoded key for webhook HMAC-SHA256
}

type BraintreeConfig struct {
	APIURL        string
	WebhookSecret string
}

// SecretsConfig configures the secret store and envelope encryption.
type SecretsConfig struct {
	// MasterKey is the hex-encoded 32-byte KMS master key used to derive
	// per-record data keys. Rotations change MasterKeyID.
	MasterKey   string
	MasterKeyID string
	// CredentialTTLSeconds bounds how long decrypted gateway credentials
	// stay in the in-process cache.
	CredentialTTLSeconds int
}

type WorkerConfig struct {
	Concurrency        int
	MaxAttempts        int     // retries before a task is dead-lettered
	RetryInitialMs     int     // initial backoff
	RetryFactor        float64 // exponential backoff factor
	LockLeaseMs        int     // refund lock lease
	GatewaySweepEvery  string  // cron spec for CHECK_GATEWAY sweeps
	ApprovalTickEvery  string  // cron spec for APPROVAL_TICK
	VisibilityTimeoutS int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ResolutionConfig tunes the parameter resolver cache.
type ResolutionConfig struct {
	CacheTTLSeconds int
}

// Load reads config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Refunds API"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "refunds"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
			MinConns: getEnvInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenExpiry: getEnvInt("JWT_ACCESS_EXPIRY", 15),
		},
		Email: EmailConfig{
			SMTPHost: getEnv("SMTP_HOST", "localhost"),
			SMTPPort: getEnv("SMTP_PORT", "1025"),
			From:     getEnv("EMAIL_FROM", "refunds@example.com"),
		},
		Stripe: StripeConfig{
			APIURL:        getEnv("STRIPE_API_URL", "https://api.stripe.com"),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Adyen: AdyenConfig{
			APIURL:        getEnv("ADYEN_API_URL", "https://checkout-test.adyen.com"),
			MerchantAccnt: getEnv("ADYEN_MERCHANT_ACCOUNT", ""),
			HMACKey:       getEnv("ADYEN_HMAC_KEY", ""),
		},
		Braintree: BraintreeConfig{
			APIURL:        getEnv("BRAINTREE_API_URL", "https://api.sandbox.braintreegateway.com"),
			WebhookSecret: getEnv("BRAINTREE_WEBHOOK_SECRET", ""),
		},
		Secrets: SecretsConfig{
			MasterKey:            getEnv("SECRETS_MASTER_KEY", ""),
			MasterKeyID:          getEnv("SECRETS_MASTER_KEY_ID", "local-dev"),
			CredentialTTLSeconds: getEnvInt("SECRETS_CREDENTIAL_TTL", 120),
		},
		Worker: WorkerConfig{
			Concurrency:        getEnvInt("WORKER_CONCURRENCY", 20),
			MaxAttempts:        getEnvInt("WORKER_MAX_ATTEMPTS", 5),
			RetryInitialMs:     getEnvInt("WORKER_RETRY_INITIAL_MS", 2000),
			RetryFactor:        getEnvFloat("WORKER_RETRY_FACTOR", 2.0),
			LockLeaseMs:        getEnvInt("WORKER_LOCK_LEASE_MS", 30000),
			GatewaySweepEvery:  getEnv("WORKER_GATEWAY_SWEEP_CRON", "*/5 * * * *"),
			ApprovalTickEvery:  getEnv("WORKER_APPROVAL_TICK_CRON", "*/10 * * * *"),
			VisibilityTimeoutS: getEnvInt("WORKER_VISIBILITY_TIMEOUT", 60),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "refund-reports"),
			UseSSL:    false,
		},
		Resolution: ResolutionConfig{
			CacheTTLSeconds: getEnvInt("PARAM_CACHE_TTL", 300),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks critical configuration.
func (c *Config) Validate() error {
	if c.App.Environment == "production" {
		if c.JWT.Secret == "your-secret-key-change-in-production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}
		if c.Secrets.MasterKey == "" {
			return fmt.Errorf("SECRETS_MASTER_KEY must be set in production")
		}

		// Gateway validation - warn only, a deployment may run a subset
		if c.Stripe.WebhookSecret == "" {
			fmt.Println("WARNING: Stripe webhook secret not set - Stripe webhooks will be rejected")
		}
		if c.Adyen.HMACKey == "" {
			fmt.Println("WARNING: Adyen HMAC key not set - Adyen webhooks will be rejected")
		}
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
