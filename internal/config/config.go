// Package config loads and validates gscerrors configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// EnvPrefix namespaces environment overrides, e.g. GSCERRORS_FETCH_MAX_RETRIES.
const EnvPrefix = "GSCERRORS"

// Auth modes for the reporting API.
const (
	AuthInstalled = "installed"
	AuthDefault   = "default"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Report    ReportConfig    `mapstructure:"report"`
	Redirects RedirectsConfig `mapstructure:"redirects"`
	Output    OutputConfig    `mapstructure:"output"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// APIConfig points at the reporting API and its credentials.
type APIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	AuthMode       string `mapstructure:"auth_mode"`
	SecretsFile    string `mapstructure:"secrets_file"`
	TokenFile      string `mapstructure:"token_file"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// FetchConfig controls retry and rate limiting of report calls.
type FetchConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryInterval  time.Duration `mapstructure:"retry_interval"`
	RetryableCodes []int         `mapstructure:"retryable_codes"`
	RatePerMinute  int           `mapstructure:"rate_per_minute"`
}

// ReportConfig selects what to fetch and how tables are named.
type ReportConfig struct {
	PropertyURI  string   `mapstructure:"property_uri"`
	Categories   []string `mapstructure:"categories"`
	Platforms    []string `mapstructure:"platforms"`
	Accumulation string   `mapstructure:"accumulation"`
	FilePrefix   string   `mapstructure:"file_prefix"`
}

// RedirectsConfig drives the redirects command.
type RedirectsConfig struct {
	MapFile         string `mapstructure:"map_file"`
	OutputDir       string `mapstructure:"output_dir"`
	SkipInputHeader bool   `mapstructure:"skip_input_header"`
}

// OutputConfig chooses where tables are written.
type OutputConfig struct {
	Provider  string `mapstructure:"provider"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// NotifyConfig chooses how written tables are announced.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// MetricsConfig enables the optional metrics listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Binding ties a command-line flag to a config key.
type Binding struct {
	Flag string
	Key  string
}

// Load builds a Config from defaults, a config file, the environment and any
// bound flags, in increasing order of precedence. Without an explicit path a
// gscerrors.{yaml,json,toml} in the working directory or $HOME/.gscerrors is
// used when present.
func Load(path string, flags *pflag.FlagSet, bindings ...Binding) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("gscerrors")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.gscerrors")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if flags != nil {
		for _, b := range bindings {
			f := flags.Lookup(b.Flag)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(b.Key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", b.Flag, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://www.googleapis.com/webmasters/v3")
	v.SetDefault("api.auth_mode", AuthInstalled)
	v.SetDefault("api.secrets_file", "credentials.json")
	v.SetDefault("api.token_file", "webmaster_credentials.dat")
	v.SetDefault("api.timeout_seconds", 60)
	v.SetDefault("fetch.max_retries", 5)
	v.SetDefault("fetch.retry_interval", "4s")
	v.SetDefault("fetch.retryable_codes", []int{500, 503})
	v.SetDefault("fetch.rate_per_minute", 200)
	v.SetDefault("report.categories", []string{})
	v.SetDefault("report.platforms", []string{})
	v.SetDefault("report.accumulation", "concatenate")
	v.SetDefault("report.file_prefix", "")
	v.SetDefault("redirects.map_file", "wp_redirect_mapping.csv")
	v.SetDefault("redirects.output_dir", "exports/")
	v.SetDefault("redirects.skip_input_header", false)
	v.SetDefault("output.provider", "local")
	v.SetDefault("output.dir", "")
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.API.AuthMode {
	case AuthInstalled, AuthDefault:
	default:
		return fmt.Errorf("%w: api.auth_mode must be %q or %q", ErrInvalidConfig, AuthInstalled, AuthDefault)
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: api.timeout_seconds must be > 0", ErrInvalidConfig)
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("%w: fetch.max_retries must be >= 0", ErrInvalidConfig)
	}
	if c.Fetch.RetryInterval < 0 {
		return fmt.Errorf("%w: fetch.retry_interval must be >= 0", ErrInvalidConfig)
	}
	if c.Fetch.RatePerMinute < 0 {
		return fmt.Errorf("%w: fetch.rate_per_minute must be >= 0", ErrInvalidConfig)
	}
	switch c.Output.Provider {
	case "local", "memory":
	case "gcs":
		if c.Output.GCSBucket == "" {
			return fmt.Errorf("%w: output.gcs_bucket is required for the gcs provider", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown output.provider %q", ErrInvalidConfig, c.Output.Provider)
	}
	switch c.Notify.Provider {
	case "noop":
	case "pubsub":
		if c.Notify.ProjectID == "" || c.Notify.TopicID == "" {
			return fmt.Errorf("%w: notify.project_id and notify.topic_id are required for pubsub", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown notify.provider %q", ErrInvalidConfig, c.Notify.Provider)
	}
	return nil
}

// APITimeout converts api.timeout_seconds into a duration.
func (c Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}
