package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/SeakMengs/AutoSign/internal/env"
)

type Config struct {
	Port        string
	ENV         string
	DB          DatabaseConfig
	RateLimiter RateLimiterConfig
	Mail        MailConfig
	Auth        AuthConfig
	Minio       MinioConfig
	RabbitMQ    RabbitMQConfig
	Crypto      CryptoConfig
	Signing     SigningConfig
	Storage     StorageConfig
}

type RateLimiterConfig struct {
	RequestsPerTimeFrame int
	TimeFrame            time.Duration
	Enabled              bool
}

type AuthConfig struct {
	JWT_SECRET string
	// Owners sign in with Google
	GoogleOAuth OAuthClientConfig
}

type DatabaseConfig struct {
	DB_HOST      string
	DB_PORT      string
	DB_DATABASE  string
	DB_USERNAME  string
	DB_PASSWORD  string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  string
}

type MailConfig struct {
	SEND_GRID          SendGridConfig
	FROM_EMAIL         string
	GMAIL_USERNAME     string
	GMAIL_APP_PASSWORD string
	// "sendgrid" or "gmail"
	PROVIDER string
}

type SendGridConfig struct {
	API_KEY string
}

type MinioConfig struct {
	ENDPOINT   string
	ACCESS_KEY string
	SECRET_KEY string
	BUCKET     string
	USE_SSL    bool
}

type RabbitMQConfig struct {
	HOST     string
	PORT     string
	USERNAME string
	PASSWORD string
	VHOST    string
}

func (r RabbitMQConfig) GetConnectionString() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/%s", r.USERNAME, r.PASSWORD, r.HOST, r.PORT, strings.TrimPrefix(r.VHOST, "/"))
}

// CryptoConfig carries the master secret used to derive credential encryption keys.
// It is read once at startup and handed to the credential cipher.
type CryptoConfig struct {
	MASTER_KEY string
}

type SigningConfig struct {
	// Frontend base url used to build signing and verification links in emails.
	FRONTEND_URL string
	// How long a "continue on another device" session stays claimable.
	SessionTTL time.Duration
	// Interval of the best-effort sweep that marks stale sessions expired.
	SessionSweepInterval time.Duration
}

type OAuthClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type StorageConfig struct {
	GoogleDrive OAuthClientConfig
	Dropbox     OAuthClientConfig
	S3Region    string
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.ENV, "production")
}

func GetConfig() Config {
	rateLimiteTimeFrame, err := time.ParseDuration(env.GetString("RATE_LIMIT_TIME_FRAME", "1m"))
	if err != nil {
		rateLimiteTimeFrame = 60 * time.Second
	}

	return Config{
		Port: env.GetString("PORT", "8080"),
		ENV:  env.GetString("ENV", "development"),
		DB: DatabaseConfig{
			DB_HOST:      env.GetString("DB_HOST", "127.0.0.1"),
			DB_PORT:      env.GetString("DB_PORT", "5432"),
			DB_USERNAME:  env.GetString("DB_USERNAME", "root"),
			DB_PASSWORD:  env.GetString("DB_PASSWORD", ""),
			DB_DATABASE:  env.GetString("DB_DATABASE", "autosign"),
			MaxOpenConns: env.GetInt("DB_MAX_OPEN_CONNS", 30),
			MaxIdleConns: env.GetInt("DB_MAX_IDLE_CONNS", 30),
			MaxIdleTime:  env.GetString("DB_MAX_IDLE_TIME", "15m"),
		},
		// By default if not specified, we allow 5000 requests per minute on all routes
		RateLimiter: RateLimiterConfig{
			RequestsPerTimeFrame: env.GetInt("RATE_LIMIT_REQUESTS_PER_TIME_FRAME", 5000),
			TimeFrame:            rateLimiteTimeFrame,
			Enabled:              env.GetBool("RATE_LIMIT_ENABLED", true),
		},
		Mail: MailConfig{
			FROM_EMAIL: env.GetString("MAIL_FROM_MAIL", ""),
			SEND_GRID: SendGridConfig{
				API_KEY: env.GetString("MAIL_SEND_GRID_API_KEY", ""),
			},
			GMAIL_USERNAME:     env.GetString("MAIL_GMAIL_USERNAME", ""),
			GMAIL_APP_PASSWORD: env.GetString("MAIL_GMAIL_APP_PASSWORD", ""),
			PROVIDER:           env.GetString("MAIL_PROVIDER", "sendgrid"),
		},
		Auth: AuthConfig{
			JWT_SECRET: env.GetString("AUTH_JWT_SECRET", ""),
			GoogleOAuth: OAuthClientConfig{
				ClientID:     env.GetString("GOOGLE_CLIENT_ID", ""),
				ClientSecret: env.GetString("GOOGLE_CLIENT_SECRET", ""),
				RedirectURL:  env.GetString("GOOGLE_CALLBACK", "http://localhost:8080/api/v1/oauth/google/callback"),
			},
		},
		Minio: MinioConfig{
			ENDPOINT:   env.GetString("MINIO_ENDPOINT", "127.0.0.1:9000"),
			ACCESS_KEY: env.GetString("MINIO_ACCESS_KEY", ""),
			SECRET_KEY: env.GetString("MINIO_SECRET_KEY", ""),
			BUCKET:     env.GetString("MINIO_BUCKET", "autosign"),
			USE_SSL:    env.GetBool("MINIO_USE_SSL", false),
		},
		RabbitMQ: RabbitMQConfig{
			HOST:     env.GetString("RABBITMQ_HOST", "127.0.0.1"),
			PORT:     env.GetString("RABBITMQ_PORT", "5672"),
			USERNAME: env.GetString("RABBITMQ_USERNAME", "guest"),
			PASSWORD: env.GetString("RABBITMQ_PASSWORD", "guest"),
			VHOST:    env.GetString("RABBITMQ_VHOST", ""),
		},
		// No default on purpose, the cipher refuses to start without it.
		Crypto: CryptoConfig{
			MASTER_KEY: env.GetString("CRYPTO_MASTER_KEY", ""),
		},
		Signing: SigningConfig{
			FRONTEND_URL:         env.GetString("FRONTEND_URL", "http://localhost:3000"),
			SessionTTL:           env.GetDuration("SIGNING_SESSION_TTL", 15*time.Minute),
			SessionSweepInterval: env.GetDuration("SIGNING_SESSION_SWEEP_INTERVAL", 5*time.Minute),
		},
		Storage: StorageConfig{
			GoogleDrive: OAuthClientConfig{
				ClientID:     env.GetString("GOOGLE_DRIVE_CLIENT_ID", ""),
				ClientSecret: env.GetString("GOOGLE_DRIVE_CLIENT_SECRET", ""),
				RedirectURL:  env.GetString("GOOGLE_DRIVE_CALLBACK", "http://localhost:8080/api/v1/storage/google_drive/callback"),
			},
			Dropbox: OAuthClientConfig{
				ClientID:     env.GetString("DROPBOX_CLIENT_ID", ""),
				ClientSecret: env.GetString("DROPBOX_CLIENT_SECRET", ""),
				RedirectURL:  env.GetString("DROPBOX_CALLBACK", "http://localhost:8080/api/v1/storage/dropbox/callback"),
			},
			S3Region: env.GetString("EXPORT_S3_DEFAULT_REGION", "us-east-1"),
		},
	}
}
