// Package config はアプリケーション設定の読み込みと検証を提供する。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数（およびCONFIG_PATHで指定したYAML）から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL" env-required:"true"`

	// Server
	ServerPort string `yaml:"server_port" env:"SERVER_PORT" env-default:"8080"`
	BaseURL    string `yaml:"base_url"    env:"BASE_URL"    env-required:"true"`

	// Logging
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// Admin
	AdminJWTSecret string `yaml:"admin_jwt_secret" env:"ADMIN_JWT_SECRET" env-required:"true"`

	// Storage
	StorageDriver      string `yaml:"storage_driver"       env:"STORAGE_DRIVER"       env-default:"supabase"`
	StorageBucket      string `yaml:"storage_bucket"       env:"STORAGE_BUCKET"       env-default:"media"`
	SupabaseURL        string `yaml:"supabase_url"         env:"SUPABASE_URL"`
	SupabaseServiceKey string `yaml:"supabase_service_key" env:"SUPABASE_SERVICE_KEY"`
	MinioEndpoint      string `yaml:"minio_endpoint"       env:"MINIO_ENDPOINT"`
	MinioAccessKey     string `yaml:"minio_access_key"     env:"MINIO_ACCESS_KEY"`
	MinioSecretKey     string `yaml:"minio_secret_key"     env:"MINIO_SECRET_KEY"`
	MinioUseSSL        bool   `yaml:"minio_use_ssl"        env:"MINIO_USE_SSL"        env-default:"false"`
	MinioRegion        string `yaml:"minio_region"         env:"MINIO_REGION"         env-default:"us-east-1"`

	// Preview
	SignedURLTTL   time.Duration `yaml:"signed_url_ttl"  env:"SIGNED_URL_TTL"  env-default:"1h"`
	PreviewWidth   int           `yaml:"preview_width"   env:"PREVIEW_WIDTH"   env-default:"800"`
	PreviewQuality int           `yaml:"preview_quality" env:"PREVIEW_QUALITY" env-default:"75"`

	// Upload
	UploadMaxBytes int64 `yaml:"upload_max_bytes" env:"UPLOAD_MAX_BYTES" env-default:"10485760"`

	// Rate Limit（req/min）
	RateLimitGeneral int `yaml:"rate_limit_general" env:"RATE_LIMIT_GENERAL" env-default:"120"`

	// Purge worker
	PurgeInterval      time.Duration `yaml:"purge_interval"       env:"PURGE_INTERVAL"       env-default:"1m"`
	PurgeBatchSize     int           `yaml:"purge_batch_size"     env:"PURGE_BATCH_SIZE"     env-default:"50"`
	PurgeMaxConcurrent int           `yaml:"purge_max_concurrent" env:"PURGE_MAX_CONCURRENT" env-default:"4"`

	// Locale
	DefaultLocale string `yaml:"default_locale" env:"DEFAULT_LOCALE" env-default:"ru"`

	// Cookie（CookieSecureはBaseURLから導出する）
	CookieDomain string `yaml:"cookie_domain" env:"COOKIE_DOMAIN"`
	CookieSecure bool   `yaml:"-" env:"-"`

	// CORS
	CORSAllowedOrigin string `yaml:"cors_allowed_origin" env:"CORS_ALLOWED_ORIGIN" env-default:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// CONFIG_PATHが指定されている場合はYAMLファイルを読み込み、環境変数で上書きする。
// 必須環境変数が未設定の場合や値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate は読み込んだ設定値の整合性を検証する。
func (c *Config) Validate() error {
	var problems []string

	switch c.StorageDriver {
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			problems = append(problems, "SUPABASE_URL and SUPABASE_SERVICE_KEY are required for storage driver supabase")
		}
	case "minio":
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			problems = append(problems, "MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for storage driver minio")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}

	if c.StorageBucket == "" {
		problems = append(problems, "STORAGE_BUCKET must not be empty")
	}
	if c.SignedURLTTL <= 0 {
		problems = append(problems, "SIGNED_URL_TTL must be positive")
	}
	if c.PreviewQuality < 1 || c.PreviewQuality > 100 {
		problems = append(problems, "PREVIEW_QUALITY must be between 1 and 100")
	}
	if c.PreviewWidth <= 0 {
		problems = append(problems, "PREVIEW_WIDTH must be positive")
	}
	if c.UploadMaxBytes <= 0 {
		problems = append(problems, "UPLOAD_MAX_BYTES must be positive")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("unknown LOG_LEVEL %q", c.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %v", problems)
	}
	return nil
}
