package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration. Leaf fields carry
// no explicit envconfig names because envconfig also falls back to the bare
// name, which would let $PATH fill Summary.Path.
type Config struct {
	Remote    RemoteConfig    `yaml:"remote"`
	Mirror    MirrorConfig    `yaml:"mirror"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Server    ServerConfig    `yaml:"server"`
	Summary   SummaryConfig   `yaml:"summary"`
}

// RemoteConfig describes the report server and how requests are sent to it
type RemoteConfig struct {
	BaseURL   string        `yaml:"base_url" split_words:"true" validate:"required,url"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`
	UserAgent string        `yaml:"user_agent" split_words:"true" validate:"required"`
	// RateLimit is requests per second; 0 means unlimited.
	RateLimit float64 `yaml:"rate_limit" split_words:"true" validate:"gte=0"`
	Burst     int     `yaml:"burst" validate:"gte=1"`
	// Domain is prepended to the username as DOMAIN\user when set.
	Domain string `yaml:"domain"`
}

// MirrorConfig tunes the catalog walk
type MirrorConfig struct {
	// CheckDateFirst skips the content request for files whose name is out of range.
	CheckDateFirst bool `yaml:"check_date_first" split_words:"true"`
}

// StorageConfig selects where mirrored files are written
type StorageConfig struct {
	Kind string   `yaml:"kind" validate:"oneof=fs s3"`
	S3   S3Config `yaml:"s3"`
}

// S3Config contains object storage settings used when Kind is s3
type S3Config struct {
	Bucket          string `yaml:"bucket" validate:"required_if=Enabled true"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `yaml:"access_key_id" split_words:"true"`
	SecretAccessKey string `yaml:"secret_access_key" split_words:"true"`
	UsePathStyle    bool   `yaml:"use_path_style" split_words:"true"`

	// Enabled is derived from StorageConfig.Kind during validation.
	Enabled bool `yaml:"-" ignored:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" validate:"oneof=json text"`
	Output   string `yaml:"output" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" split_words:"true"`
}

// TelemetryConfig controls OpenTelemetry tracing and metrics
type TelemetryConfig struct {
	EnableTracing bool    `yaml:"enable_tracing" split_words:"true"`
	TraceExporter string  `yaml:"trace_exporter" split_words:"true" validate:"oneof=stdout none"`
	SampleRatio   float64 `yaml:"sample_ratio" split_words:"true" validate:"gte=0,lte=1"`
	EnableMetrics bool    `yaml:"enable_metrics" split_words:"true"`
	Environment   string  `yaml:"environment"`
}

// ServerConfig contains the optional status server configuration
type ServerConfig struct {
	// Addr is the listen address, e.g. ":9090". Empty disables the server.
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// SummaryConfig controls the machine-readable run summary
type SummaryConfig struct {
	// Path is where the summary is written. Empty disables the export.
	Path   string `yaml:"path"`
	Format string `yaml:"format" validate:"oneof=json csv xlsx"`
}

// Load loads configuration from defaults, an optional YAML file and the environment.
// Environment variables take precedence over the file, the file over defaults.
func Load() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence. All files are optional.
func loadEnvFiles() error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Overload(envFile); err != nil {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
	}

	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			return fmt.Errorf("failed to load .env.local: %w", err)
		}
	}

	return nil
}

// loadFromFile overlays YAML file values onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// getConfigFilePath returns the path to the config file, or "" if none exists
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	c.Storage.S3.Enabled = c.Storage.Kind == StorageKindS3

	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path is required when output is %q", c.Logging.Output)
	}

	return nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Remote: RemoteConfig{
			BaseURL:   DefaultBaseURL,
			Timeout:   DefaultHTTPTimeout,
			UserAgent: DefaultUserAgent,
			RateLimit: 0,
			Burst:     1,
		},
		Mirror: MirrorConfig{
			CheckDateFirst: true,
		},
		Storage: StorageConfig{
			Kind: StorageKindFS,
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   "console",
			FilePath: DefaultLogFile,
		},
		Telemetry: TelemetryConfig{
			EnableTracing: false,
			TraceExporter: "stdout",
			SampleRatio:   1.0,
			EnableMetrics: true,
			Environment:   "development",
		},
		Summary: SummaryConfig{
			Format: SummaryFormatJSON,
		},
	}
}
