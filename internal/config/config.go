package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the studio API and supporting services.
type Config struct {
	ListenAddr string `env:"HTTP_LISTEN_ADDR" envDefault:":8080"`
	LogLevel   int    `env:"LOG_LEVEL" envDefault:"0"`
	MySQLDSN   string `env:"MYSQL_DSN"`
	PlansFile  string `env:"PLANS_FILE"`

	Gemini     Gemini     `envPrefix:"GEMINI_"`
	Perplexity Perplexity `envPrefix:"PERPLEXITY_"`
	Timeouts   Timeouts
	Auth       Auth
	Credits    Credits
	Redis      Redis      `envPrefix:"REDIS_"`
	RateLimit  RateLimit  `envPrefix:"GENERATION_RATE_"`
	Intake     Intake     `envPrefix:"INTAKE_"`
	Archive    Archive
	S3         S3         `envPrefix:"S3_"`
	MinIO      MinIO      `envPrefix:"MINIO_"`

	// Plans is filled from the embedded catalogue or PLANS_FILE.
	Plans Catalogue
}

type Gemini struct {
	APIKey     string `env:"API_KEY"`
	TextModel  string `env:"TEXT_MODEL" envDefault:"gemini-2.5-flash"`
	ImageModel string `env:"IMAGE_MODEL" envDefault:"gemini-2.5-flash-image-preview"`
}

type Perplexity struct {
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL" envDefault:"https://api.perplexity.ai"`
	Model   string `env:"MODEL" envDefault:"llama-3.1-sonar-large-128k-online"`
}

// Timeouts bound each provider stage.
type Timeouts struct {
	Analyze  time.Duration `env:"ANALYZE_TIMEOUT" envDefault:"60s"`
	Generate time.Duration `env:"GENERATE_TIMEOUT" envDefault:"120s"`
}

type Auth struct {
	JWTSecret     string        `env:"AUTH_JWT_SECRET"`
	TokenTTL      time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`
	AdminUsername string        `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string        `env:"ADMIN_PASSWORD"`
}

type Credits struct {
	GuestGrant       int           `env:"GUEST_CREDITS" envDefault:"10"`
	TestAccountEmail string        `env:"TEST_ACCOUNT_EMAIL" envDefault:"test@magicpixa.com"`
	AnonymousTTL     time.Duration `env:"ANON_CREDITS_TTL" envDefault:"0s"`
	CacheTTL         time.Duration `env:"BALANCE_CACHE_TTL" envDefault:"5m"`
}

// Redis holds the anonymous counter store settings. An empty Addr selects the in-memory store.
type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type RateLimit struct {
	Interval time.Duration `env:"INTERVAL" envDefault:"10s"`
	Burst    int           `env:"BURST" envDefault:"2"`
}

type Intake struct {
	MaxBytes     int64 `env:"MAX_BYTES" envDefault:"5242880"`
	MaxDimension int   `env:"MAX_DIMENSION" envDefault:"1920"`
	JPEGQuality  int   `env:"JPEG_QUALITY" envDefault:"80"`
	MaxPixels    int64 `env:"MAX_PIXELS" envDefault:"50000000"`
}

// Archive selects where generated creations are copied: "", "s3" or "minio".
type Archive struct {
	Driver string `env:"ARCHIVE_DRIVER"`
}

type S3 struct {
	Endpoint      string `env:"ENDPOINT"`
	Region        string `env:"REGION"`
	AccessKey     string `env:"ACCESS_KEY"`
	SecretKey     string `env:"SECRET_KEY"`
	Bucket        string `env:"BUCKET"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	UsePathStyle  bool   `env:"USE_PATH_STYLE" envDefault:"false"`
	Prefix        string `env:"PREFIX" envDefault:"creations"`
}

type MinIO struct {
	Endpoint      string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey     string `env:"ACCESS_KEY"`
	SecretKey     string `env:"SECRET_KEY"`
	Bucket        string `env:"BUCKET_NAME" envDefault:"magicpixa-creations"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	UseSSL        bool   `env:"USE_SSL" envDefault:"false"`
	Prefix        string `env:"PREFIX" envDefault:"creations"`
}

// Load reads configuration from an optional env file and the process environment.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Perplexity.BaseURL = normalizeBaseURL(cfg.Perplexity.BaseURL, "https://api.perplexity.ai")
	cfg.Archive.Driver = strings.ToLower(strings.TrimSpace(cfg.Archive.Driver))

	plans, err := LoadCatalogue(cfg.PlansFile)
	if err != nil {
		return Config{}, err
	}
	cfg.Plans = plans

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	if c.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if c.Gemini.APIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}
	if c.Auth.AdminPassword == "" {
		missing = append(missing, "ADMIN_PASSWORD")
	}
	switch c.Archive.Driver {
	case "":
	case "s3":
		if c.S3.Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if c.S3.Bucket == "" {
			missing = append(missing, "S3_BUCKET")
		}
		if c.S3.PublicBaseURL == "" {
			missing = append(missing, "S3_PUBLIC_BASE_URL")
		}
	case "minio":
		if c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "" {
			missing = append(missing, "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY")
		}
	default:
		return fmt.Errorf("unknown ARCHIVE_DRIVER %q", c.Archive.Driver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	if c.Credits.GuestGrant < 0 {
		return fmt.Errorf("GUEST_CREDITS must not be negative")
	}
	if c.Timeouts.Analyze <= 0 || c.Timeouts.Generate <= 0 {
		return fmt.Errorf("provider timeouts must be positive")
	}
	return nil
}

// normalizeBaseURL fills a missing scheme and strips trailing slashes.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}
	return strings.TrimRight(parsed.String(), "/")
}

// loadEnvFile applies the first env file found. Running without one is allowed.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
