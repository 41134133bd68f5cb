package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"3000"`
	AppEnv  string `env:"APP_ENV" envDefault:"development"`

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	DynamoTables   DynamoTables
	S3BucketName   string `env:"S3_BUCKET_NAME" envDefault:"school-notify"`

	JWTPrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH" envDefault:"./private_key.pem"`
	JWTPublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH" envDefault:"./public_key.pem"`
	JWTExpiry         time.Duration `env:"JWT_EXPIRY" envDefault:"1h"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	Roster   Roster
	Push     Push
	Dispatch Dispatch

	// LoginRateLimit is requests per second per client IP on the public auth routes.
	LoginRateLimit float64 `env:"LOGIN_RATE_LIMIT" envDefault:"5"`
	LoginRateBurst int     `env:"LOGIN_RATE_BURST" envDefault:"10"`
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-Ip. Set it
	// only when every request arrives through a proxy that overwrites them.
	TrustProxy bool `env:"TRUST_PROXY"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Identities      string `env:"DYNAMO_TABLE_IDENTITIES" envDefault:"identities"`
	Registrations   string `env:"DYNAMO_TABLE_REGISTRATIONS" envDefault:"registrations"`
	AddressBindings string `env:"DYNAMO_TABLE_ADDRESS_BINDINGS" envDefault:"address_bindings"`
	Notifications   string `env:"DYNAMO_TABLE_NOTIFICATIONS" envDefault:"notifications"`
}

// Roster configures the external school roster.
type Roster struct {
	// Source is "api" (the school's GetUsers endpoint) or "s3" (a JSON snapshot object).
	Source      string        `env:"ROSTER_SOURCE" envDefault:"api"`
	URL         string        `env:"ROSTER_URL" envDefault:"https://app.edisha.org/index.php/resource/GetUsers"`
	APIKey      string        `env:"ROSTER_API_KEY"`
	S3Key       string        `env:"ROSTER_S3_KEY" envDefault:"roster/users.json"`
	Timeout     time.Duration `env:"ROSTER_TIMEOUT" envDefault:"10s"`
	MaxAttempts int           `env:"ROSTER_MAX_ATTEMPTS" envDefault:"3"`
	RetryDelay  time.Duration `env:"ROSTER_RETRY_BASE_DELAY" envDefault:"250ms"`
	// CacheTTL of 0 disables caching and every lookup goes to the source.
	CacheTTL time.Duration `env:"ROSTER_CACHE_TTL" envDefault:"5m"`
	RedisURL string        `env:"REDIS_URL"`
	// Snapshot keeps the last good API roster at S3Key and serves it when the API fails.
	Snapshot bool `env:"ROSTER_S3_SNAPSHOT"`
}

// Push configures the delivery provider.
type Push struct {
	// Provider is one of "fcm", "expo", "sns" or "log" (development only).
	Provider           string        `env:"PUSH_PROVIDER" envDefault:"fcm"`
	FCMCredentialsFile string        `env:"FCM_CREDENTIALS_FILE"`
	FCMProjectID       string        `env:"FCM_PROJECT_ID"`
	FCMClientEmail     string        `env:"FCM_CLIENT_EMAIL"`
	FCMPrivateKey      string        `env:"FCM_PRIVATE_KEY"`
	ExpoURL            string        `env:"EXPO_PUSH_URL" envDefault:"https://exp.host/--/api/v2/push/send"`
	SNSRegion          string        `env:"SNS_REGION" envDefault:"us-east-1"`
	SendTimeout        time.Duration `env:"PUSH_SEND_TIMEOUT" envDefault:"5s"`
	MaxAttempts        int           `env:"PUSH_MAX_ATTEMPTS" envDefault:"3"`
	RetryDelay         time.Duration `env:"PUSH_RETRY_BASE_DELAY" envDefault:"200ms"`
}

// Dispatch configures the fan-out engine and its callers.
type Dispatch struct {
	Concurrency int `env:"DISPATCH_CONCURRENCY" envDefault:"8"`
	// APIKeys guard the send endpoints. They may be empty only in development,
	// where the endpoints are then open.
	APIKeys []string `env:"DISPATCH_API_KEYS" envSeparator:","`
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Dispatch.Concurrency < 1 {
		cfg.Dispatch.Concurrency = 1
	}
	if !cfg.IsDevelopment() {
		if len(cfg.Dispatch.APIKeys) == 0 {
			return nil, errors.New("DISPATCH_API_KEYS is required outside development")
		}
		if cfg.Push.Provider == "log" {
			return nil, errors.New(`PUSH_PROVIDER "log" is only allowed in development`)
		}
	}
	return &cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev"
}
