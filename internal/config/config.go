package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Render   RenderConfig   `mapstructure:"render"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"` // SQLite database file path
}

// HTTPConfig contains HTTP server settings.
type HTTPConfig struct {
	Address    string `mapstructure:"address"`     // listen address (e.g., ":5000")
	CORSOrigin string `mapstructure:"cors_origin"` // Access-Control-Allow-Origin value; empty disables CORS headers
}

// GRPCConfig contains gRPC health server settings.
type GRPCConfig struct {
	Address string `mapstructure:"address"` // empty disables the gRPC server
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret"` // JWT signing secret
	BcryptCost int    `mapstructure:"bcrypt_cost"`
}

// IngestConfig controls spreadsheet uploads.
type IngestConfig struct {
	StagingDir     string `mapstructure:"staging_dir"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// RenderConfig controls certificate output.
type RenderConfig struct {
	AutoPrint bool `mapstructure:"auto_print"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

const devJWTSecret = "dev-secret-change-me"

// keys maps every setting to its default and the environment variable that
// overrides it.
var keys = []struct {
	key string
	env string
	def any
}{
	{"database.path", "DB_PATH", "certificates.db"},
	{"http.address", "HTTP_ADDRESS", ":5000"},
	{"http.cors_origin", "CORS_ORIGIN", "*"},
	{"grpc.address", "GRPC_ADDRESS", ":50051"},
	{"auth.jwt_secret", "JWT_SECRET", ""},
	{"auth.bcrypt_cost", "BCRYPT_COST", 10},
	{"ingest.staging_dir", "UPLOAD_DIR", "uploads/excel"},
	{"ingest.max_upload_bytes", "MAX_UPLOAD_BYTES", int64(32 << 20)},
	{"render.auto_print", "AUTO_PRINT", true},
	{"log.level", "LOG_LEVEL", "info"},
	{"log.format", "LOG_FORMAT", "text"},
}

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	return LoadFile("", false)
}

// LoadWithDefaults is like Load but uses a safe default for JWT_SECRET in development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	return LoadFile("", true)
}

// LoadFile layers defaults, the optional config file at path (format taken
// from its extension) and environment variables, in that order. Unless dev
// is set, a JWT secret must be provided.
func LoadFile(path string, dev bool) (*Config, error) {
	v := viper.New()
	for _, k := range keys {
		v.SetDefault(k.key, k.def)
		if err := v.BindEnv(k.key, k.env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k.env, err)
		}
	}
	if dev {
		v.SetDefault("auth.jwt_secret", devJWTSecret)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Validate critical settings
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set; required for production")
	}
	if cfg.Ingest.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES %d", cfg.Ingest.MaxUploadBytes)
	}
	return cfg, nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{DB: %s, HTTP: %s, gRPC: %s, Uploads: %s, Auth: *** (masked) ***}",
		c.Database.Path, c.HTTP.Address, c.GRPC.Address, c.Ingest.StagingDir)
}
