package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const minSecretLength = 16

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort      string        `envconfig:"SERVER_PORT" default:"8080"`
	DBDriver        string        `envconfig:"DB_DRIVER" default:"mysql"`
	DatabaseDSN     string        `envconfig:"DATABASE_DSN" default:"user:password@tcp(localhost:3306)/app?charset=utf8mb4&parseTime=True&loc=Local"`
	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	RedisPass       string        `envconfig:"REDIS_PASSWORD"`
	JWTSecret       string        `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"30m"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`
	BcryptCost      int           `envconfig:"BCRYPT_COST" default:"10"`
	UploadDir       string        `envconfig:"UPLOAD_DIR" default:"uploads"`
	MaxImageBytes   int64         `envconfig:"MAX_IMAGE_BYTES" default:"2097152"`
	UserCacheTTL    time.Duration `envconfig:"USER_CACHE_TTL" default:"5m"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	Env             string        `envconfig:"APP_ENV" default:"dev"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	SwaggerHost     string        `envconfig:"SWAGGER_HOST"`
	// CORSOrigins is a comma-separated list; "*" allows any origin.
	CORSOrigins     []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// Load reads an optional .env file and builds Config from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return errors.New("ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL")
	}
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.MaxImageBytes <= 0 {
		return errors.New("MAX_IMAGE_BYTES must be positive")
	}
	return nil
}

// LogValue keeps secrets out of structured logs.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("port", c.ServerPort),
		slog.String("db_driver", c.DBDriver),
		slog.Bool("redis_enabled", c.RedisAddr != ""),
		slog.Duration("access_ttl", c.AccessTokenTTL),
		slog.Duration("refresh_ttl", c.RefreshTokenTTL),
		slog.String("upload_dir", c.UploadDir),
		slog.String("env", c.Env),
		slog.Any("cors_origins", c.CORSOrigins),
	)
}
