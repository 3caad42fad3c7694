package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Redis     RedisConfig     `yaml:"redis"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`

	// DevMode disables the admin API key requirement. Env-only.
	DevMode bool `yaml:"-"`

	serving bool
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects and tunes the template store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"-"` // env-only, may carry credentials
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// CatalogConfig points at the catalog content.
type CatalogConfig struct {
	// Dir overrides the embedded content with a directory holding trades/ and translations/.
	Dir            string `yaml:"dir"`
	SourceLanguage string `yaml:"source_language"`
}

// ReconcileConfig controls default-template reconciliation.
type ReconcileConfig struct {
	OnStartup bool     `yaml:"on_startup"`
	Schedule  string   `yaml:"schedule"` // cron expression, empty disables
	LockTTL   Duration `yaml:"lock_ttl"`
	CreatedBy string   `yaml:"created_by"`
}

// RedisConfig enables the cross-process reconcile lock when URL is set.
type RedisConfig struct {
	URL     string `yaml:"-"` // env-only
	LockKey string `yaml:"lock_key"`
}

// EmbeddingConfig contains embedding service settings.
type EmbeddingConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
	Model  string `yaml:"model"`
}

// SnapshotConfig configures S3-compatible storage for template exports.
// An empty Bucket keeps exports local-only.
type SnapshotConfig struct {
	Bucket    string   `yaml:"bucket"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	Prefix    string   `yaml:"prefix"`
	AccessKey string   `yaml:"-"`
	SecretKey string   `yaml:"-"`
	UseSSL    *bool    `yaml:"use_ssl"`
	URLExpiry Duration `yaml:"url_expiry"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → .env → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	return load(true)
}

// LoadForTooling loads configuration for offline CLI commands, which never
// serve the admin API and so do not need ESTIMATOR_API_KEY.
func LoadForTooling() (*Config, error) {
	return load(false)
}

func load(serving bool) (*Config, error) {
	cfg := newDefaults()
	cfg.serving = serving

	configPath := getEnv("ESTIMATOR_CONFIG_PATH", "config/estimator.yaml")
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	if err := loadDotEnv(getEnv("ESTIMATOR_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific path, which must exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()
	cfg.serving = true

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Driver:   DriverSQLite,
			Path:     "data/estimator.db",
			MaxConns: 10,
			MinConns: 1,
		},
		Catalog: CatalogConfig{
			SourceLanguage: "en",
		},
		Reconcile: ReconcileConfig{
			OnStartup: true,
			LockTTL:   Duration(2 * time.Minute),
			CreatedBy: "system",
		},
		Redis: RedisConfig{
			LockKey: "estimator:reconcile:lock",
		},
		Embedding: EmbeddingConfig{
			Model: "text-embedding-3-small",
		},
		Snapshot: SnapshotConfig{
			Prefix:    "exports",
			URLExpiry: Duration(15 * time.Minute),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// loadDotEnv exports variables from a .env file without overriding ones
// already present in the environment. A missing file is ignored.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	setInt(&cfg.Server.Port, "ESTIMATOR_PORT")
	setDuration(&cfg.Server.ReadTimeout, "ESTIMATOR_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "ESTIMATOR_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "ESTIMATOR_SHUTDOWN_TIMEOUT")

	// Database
	setString(&cfg.Database.Driver, "ESTIMATOR_DB_DRIVER")
	setString(&cfg.Database.Path, "ESTIMATOR_DB_PATH")
	setString(&cfg.Database.DSN, "ESTIMATOR_DATABASE_DSN")
	if v := os.Getenv("ESTIMATOR_DB_MAX_CONNS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			cfg.Database.MaxConns = int32(n)
		}
	}

	// Catalog
	setString(&cfg.Catalog.Dir, "ESTIMATOR_CATALOG_DIR")
	setString(&cfg.Catalog.SourceLanguage, "ESTIMATOR_SOURCE_LANGUAGE")

	// Reconcile
	setBool(&cfg.Reconcile.OnStartup, "ESTIMATOR_RECONCILE_ON_STARTUP")
	setString(&cfg.Reconcile.Schedule, "ESTIMATOR_RECONCILE_SCHEDULE")
	setDuration(&cfg.Reconcile.LockTTL, "ESTIMATOR_RECONCILE_LOCK_TTL")

	// Redis
	setString(&cfg.Redis.URL, "ESTIMATOR_REDIS_URL")

	// Embedding (OPENAI_API_KEY is industry convention)
	setString(&cfg.Embedding.APIKey, "OPENAI_API_KEY")
	setString(&cfg.Embedding.Model, "ESTIMATOR_EMBEDDING_MODEL")

	// Snapshot storage
	setString(&cfg.Snapshot.Bucket, "ESTIMATOR_SNAPSHOT_BUCKET")
	setString(&cfg.Snapshot.Endpoint, "ESTIMATOR_S3_ENDPOINT")
	setString(&cfg.Snapshot.Region, "ESTIMATOR_S3_REGION")
	setString(&cfg.Snapshot.AccessKey, "ESTIMATOR_S3_ACCESS_KEY")
	setString(&cfg.Snapshot.SecretKey, "ESTIMATOR_S3_SECRET_KEY")
	setDuration(&cfg.Snapshot.URLExpiry, "ESTIMATOR_S3_URL_EXPIRY")
	if v := os.Getenv("ESTIMATOR_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Snapshot.UseSSL = &useSSL
	}

	// Auth
	setString(&cfg.Auth.APIKey, "ESTIMATOR_API_KEY")
	cfg.DevMode = os.Getenv("ESTIMATOR_DEV_MODE") == "true"

	// Log
	setString(&cfg.Log.Level, "ESTIMATOR_LOG_LEVEL")
	setString(&cfg.Log.Format, "ESTIMATOR_LOG_FORMAT")
}

// validate checks that configuration values are usable.
// In dev mode (ESTIMATOR_DEV_MODE=true), the admin API key is optional.
func (c *Config) validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("ESTIMATOR_DATABASE_DSN is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be sqlite or postgres", c.Database.Driver))
	}

	if c.Catalog.SourceLanguage == "" {
		errs = append(errs, errors.New("catalog.source_language is required"))
	}

	if c.Reconcile.Schedule != "" {
		if _, err := cron.ParseStandard(c.Reconcile.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("reconcile.schedule: %w", err))
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}

	if c.serving && c.Auth.APIKey == "" && !c.DevMode {
		errs = append(errs, errors.New("ESTIMATOR_API_KEY is required"))
	}

	return errors.Join(errs...)
}

// SearchEnabled reports whether semantic search has credentials.
func (c *Config) SearchEnabled() bool {
	return c.Embedding.APIKey != ""
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}
