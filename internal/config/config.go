// Package config loads the service configuration from defaults, an
// optional YAML file and MLAPI_ environment variables, in increasing order
// of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/YuminosukeSato/mlapi/pkg/errors"
	"github.com/YuminosukeSato/mlapi/pkg/log"
)

// EnvPrefix prefixes environment overrides, e.g. MLAPI_SERVER_PORT.
const EnvPrefix = "MLAPI"

// Config is the application configuration.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Log       LogConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	ML        MLConfig
}

// AppConfig describes the application.
type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// ServerConfig configures the HTTP server. Timeouts are in seconds.
type ServerConfig struct {
	Host            string
	Port            int
	Mode            string
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
	MaxUploadMB     int64
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string
	Format string
}

// CORSConfig configures cross-origin access.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

// RateLimitConfig configures per-client rate limiting. A zero rate disables
// it.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// MLConfig configures training and model storage.
type MLConfig struct {
	ModelsDir   string
	Persist     bool
	NEstimators int
	RandomState int64
	MaxDepth    int
}

// Load reads the configuration. A missing file at path is not an error;
// an empty path skips the file entirely.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "failed to read config %s", path)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "mlapi")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 120)
	v.SetDefault("server.shutdownTimeout", 10)
	v.SetDefault("server.maxUploadMB", 32)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// CORS
	v.SetDefault("cors.allowedOrigins", []string{"*"})
	v.SetDefault("cors.allowCredentials", true)

	// Rate limit
	v.SetDefault("rateLimit.requestsPerSecond", 0)
	v.SetDefault("rateLimit.burst", 20)

	// ML
	v.SetDefault("ml.modelsDir", "trained_models")
	v.SetDefault("ml.persist", true)
	v.SetDefault("ml.nEstimators", 100)
	v.SetDefault("ml.randomState", 42)
	v.SetDefault("ml.maxDepth", 0)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.NewValidationError("server.port", "must be between 1 and 65535", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return errors.NewValidationError("server.mode", "must be debug, release or test", c.Server.Mode)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.ShutdownTimeout <= 0 {
		return errors.NewValidationError("server timeouts", "must be positive", nil)
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.NewValidationError("server.maxUploadMB", "must be positive", c.Server.MaxUploadMB)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return errors.NewValidationError("log.format", "must be json or text", c.Log.Format)
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return errors.NewValidationError("rateLimit.requestsPerSecond", "must not be negative", c.RateLimit.RequestsPerSecond)
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst < 1 {
		return errors.NewValidationError("rateLimit.burst", "must be at least 1", c.RateLimit.Burst)
	}
	if c.ML.NEstimators < 1 {
		return errors.NewValidationError("ml.nEstimators", "must be at least 1", c.ML.NEstimators)
	}
	if c.ML.MaxDepth < 0 {
		return errors.NewValidationError("ml.maxDepth", "must not be negative", c.ML.MaxDepth)
	}
	if c.ML.Persist && c.ML.ModelsDir == "" {
		return errors.NewValidationError("ml.modelsDir", "required when persistence is enabled", nil)
	}
	return nil
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeouts converts the configured seconds to durations.
func (c *ServerConfig) Timeouts() (read, write, shutdown time.Duration) {
	return time.Duration(c.ReadTimeout) * time.Second,
		time.Duration(c.WriteTimeout) * time.Second,
		time.Duration(c.ShutdownTimeout) * time.Second
}

// MaxUploadBytes returns the multipart body limit.
func (c *ServerConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
