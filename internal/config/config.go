// Package config provides centralized configuration management with
// environment variable support for secure credential handling.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/petroleumjelliffe/urlnorm/pkg/urlnorm"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Normalizer NormalizerConfig
	Polling    PollingConfig
	Cleanup    CleanupConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string
	Port            int
	TLSCertFile     string
	TLSKeyFile      string
	CORSAllowOrigin string
	RateLimitRPM    int // Requests per minute
}

// PollingConfig holds settings for scraping links from pages
type PollingConfig struct {
	Pages           []string
	IntervalMinutes int
	MaxConcurrent   int
	RequestsPerSec  int
	DomainDelayMs   int
}

// CleanupConfig holds link retention settings
type CleanupConfig struct {
	RetentionHours     int
	CleanupIntervalMin int
}

// NormalizerConfig holds the URL normalization rules. Load fills keys the
// config leaves unset from the defaults; an explicit empty list or a zero
// extension length turns that rule off.
type NormalizerConfig struct {
	IgnoredQueryParams           []string `mapstructure:"ignored_query_params"`
	TrimmedHostPrefixes          []string `mapstructure:"trimmed_host_prefixes"`
	TrimmedPathExtensionSuffixes []string `mapstructure:"trimmed_path_extension_suffixes"`
	PathExtensionLength          int      `mapstructure:"path_extension_length"`
}

// Load reads configuration from .env, the config file and environment
// variables. Environment variables take precedence over config file values.
// Sensitive values (passwords) should ONLY be set via environment variables in production.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is like Load but reads the given config file instead of
// searching ./config and the working directory.
func LoadFile(path string) (*Config, error) {
	// A missing .env is fine, a broken one is not
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// Enable environment variable support
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind specific environment variables for nested config
	bindEnvVars(v)

	// Read config file (optional in production - can use env vars only)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getStringWithEnvFallback(v, "database.host", "DB_HOST", "localhost"),
			Port:     getIntWithEnvFallback(v, "database.port", "DB_PORT", 5432),
			User:     getStringWithEnvFallback(v, "database.user", "DB_USER", "postgres"),
			Password: getStringWithEnvFallback(v, "database.password", "DB_PASSWORD", ""),
			DBName:   getStringWithEnvFallback(v, "database.dbname", "DB_NAME", "urlnorm"),
			SSLMode:  getStringWithEnvFallback(v, "database.sslmode", "DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Host:            getStringWithEnvFallback(v, "server.host", "SERVER_HOST", "0.0.0.0"),
			Port:            getIntWithEnvFallback(v, "server.port", "SERVER_PORT", 8080),
			TLSCertFile:     getStringWithEnvFallback(v, "server.tls_cert", "TLS_CERT_FILE", ""),
			TLSKeyFile:      getStringWithEnvFallback(v, "server.tls_key", "TLS_KEY_FILE", ""),
			CORSAllowOrigin: getStringWithEnvFallback(v, "server.cors_origin", "CORS_ALLOW_ORIGIN", "*"),
			RateLimitRPM:    getIntWithEnvFallback(v, "server.rate_limit_rpm", "RATE_LIMIT_RPM", 100),
		},
	}

	cfg.Polling = PollingConfig{
		Pages:           v.GetStringSlice("polling.pages"),
		IntervalMinutes: v.GetInt("polling.interval_minutes"),
		MaxConcurrent:   v.GetInt("polling.max_concurrent"),
		RequestsPerSec:  v.GetInt("polling.requests_per_sec"),
		DomainDelayMs:   v.GetInt("polling.domain_delay_ms"),
	}
	cfg.Cleanup = CleanupConfig{
		RetentionHours:     getIntWithEnvFallback(v, "cleanup.retention_hours", "CLEANUP_RETENTION_HOURS", 24*30),
		CleanupIntervalMin: getIntWithEnvFallback(v, "cleanup.cleanup_interval_minutes", "CLEANUP_INTERVAL_MIN", 60),
	}

	// Set defaults for polling if not configured
	if cfg.Polling.IntervalMinutes == 0 {
		cfg.Polling.IntervalMinutes = 15
	}
	if cfg.Polling.MaxConcurrent == 0 {
		cfg.Polling.MaxConcurrent = 4
	}
	if cfg.Polling.RequestsPerSec == 0 {
		cfg.Polling.RequestsPerSec = 5
	}
	if cfg.Polling.DomainDelayMs == 0 {
		cfg.Polling.DomainDelayMs = 1000
	}

	normalizer, err := loadNormalizerConfig(v)
	if err != nil {
		return nil, err
	}
	cfg.Normalizer = normalizer

	return cfg, nil
}

// DefaultNormalizerConfig returns the library's default rules
func DefaultNormalizerConfig() NormalizerConfig {
	opts := urlnorm.DefaultOptions()
	return NormalizerConfig{
		IgnoredQueryParams:           opts.IgnoredQueryParams,
		TrimmedHostPrefixes:          opts.TrimmedHostPrefixes,
		TrimmedPathExtensionSuffixes: opts.TrimmedPathExtensionSuffixes,
		PathExtensionLength:          opts.PathExtensionLength,
	}
}

// loadNormalizerConfig decodes the normalizer section, using the defaults
// only for keys that are not set at all
func loadNormalizerConfig(v *viper.Viper) (NormalizerConfig, error) {
	var c NormalizerConfig
	if err := v.UnmarshalKey("normalizer", &c); err != nil {
		return c, fmt.Errorf("error decoding normalizer rules: %w", err)
	}

	def := DefaultNormalizerConfig()
	if !v.IsSet("normalizer.ignored_query_params") {
		c.IgnoredQueryParams = def.IgnoredQueryParams
	}
	if !v.IsSet("normalizer.trimmed_host_prefixes") {
		c.TrimmedHostPrefixes = def.TrimmedHostPrefixes
	}
	if !v.IsSet("normalizer.trimmed_path_extension_suffixes") {
		c.TrimmedPathExtensionSuffixes = def.TrimmedPathExtensionSuffixes
	}

	// Env (NORMALIZER_PATH_EXTENSION_LENGTH) wins over the file, and 0 is a
	// real value here
	if v.IsSet("normalizer.path_extension_length") {
		c.PathExtensionLength = v.GetInt("normalizer.path_extension_length")
	} else {
		c.PathExtensionLength = def.PathExtensionLength
	}

	return c, nil
}

// Options returns the rule set as configured
func (c NormalizerConfig) Options() urlnorm.Options {
	return urlnorm.NewOptions().
		WithIgnoredQueryParams(c.IgnoredQueryParams...).
		WithTrimmedHostPrefixes(c.TrimmedHostPrefixes...).
		WithTrimmedPathExtensionSuffixes(c.TrimmedPathExtensionSuffixes...).
		WithPathExtensionLength(c.PathExtensionLength)
}

// Build compiles the configured rules into a Normalizer.
func (c NormalizerConfig) Build() (*urlnorm.Normalizer, error) {
	n, err := c.Options().Compile()
	if err != nil {
		return nil, fmt.Errorf("invalid normalizer config: %w", err)
	}
	return n, nil
}

// DatabaseConnString returns a PostgreSQL connection string.
// This method intentionally does NOT log the password.
func (c *DatabaseConfig) DatabaseConnString() string {
	if c.Password == "" {
		return c.DatabaseConnStringSafe()
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// DatabaseConnStringSafe returns a connection string with password redacted for logging
func (c *DatabaseConfig) DatabaseConnStringSafe() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.DBName, c.SSLMode,
	)
}

// IsTLSEnabled returns true if TLS certificate and key are configured
func (c *ServerConfig) IsTLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// bindEnvVars explicitly binds environment variables to viper keys
func bindEnvVars(v *viper.Viper) {
	// Database
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")

	// Server
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.tls_cert", "TLS_CERT_FILE")
	v.BindEnv("server.tls_key", "TLS_KEY_FILE")
	v.BindEnv("server.cors_origin", "CORS_ALLOW_ORIGIN")
	v.BindEnv("server.rate_limit_rpm", "RATE_LIMIT_RPM")

	// Cleanup
	v.BindEnv("cleanup.retention_hours", "CLEANUP_RETENTION_HOURS")
	v.BindEnv("cleanup.cleanup_interval_minutes", "CLEANUP_INTERVAL_MIN")

	// Normalizer
	v.BindEnv("normalizer.path_extension_length", "NORMALIZER_PATH_EXTENSION_LENGTH")
}

// getStringWithEnvFallback gets a string value, preferring env var over config file
func getStringWithEnvFallback(v *viper.Viper, viperKey, envKey, defaultVal string) string {
	// Check environment variable first
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	// Then check viper (config file)
	if val := v.GetString(viperKey); val != "" {
		return val
	}
	return defaultVal
}

// getIntWithEnvFallback gets an int value, preferring env var over config file
func getIntWithEnvFallback(v *viper.Viper, viperKey, envKey string, defaultVal int) int {
	// Check environment variable first
	if val := os.Getenv(envKey); val != "" {
		var intVal int
		fmt.Sscanf(val, "%d", &intVal)
		if intVal != 0 {
			return intVal
		}
	}
	// Then check viper (config file)
	if val := v.GetInt(viperKey); val != 0 {
		return val
	}
	return defaultVal
}
