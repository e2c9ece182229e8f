// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults used when neither the config file, the environment nor a flag sets a value.
const (
	DefaultAPIBaseURL     = "http://localhost:8000/api"
	DefaultPollIntervalMS = 2000
	DefaultJobTimeoutSec  = 300
	DefaultHTTPTimeoutSec = 60
	DefaultServerAddr     = ":8080"
	DefaultWorkDir        = "./out"
	DefaultLogFormat      = "text"
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Processing API
	APIBaseURL     string `json:"api_base_url,omitempty" validate:"omitempty,url"`           // Base URL of the Processing API
	PollIntervalMS int    `json:"poll_interval_ms,omitempty" validate:"gte=0"`               // Delay between status polls
	JobTimeoutSec  int    `json:"job_timeout_seconds,omitempty" validate:"gte=0"`            // Overall deadline per job
	HTTPTimeoutSec int    `json:"http_timeout_seconds,omitempty" validate:"gte=0"`           // Per-request timeout
	UserAgent      string `json:"user_agent,omitempty"`                                      // User-Agent sent to the API
	LogFormat      string `json:"log_format,omitempty" validate:"omitempty,oneof=json text"` // json or text

	// Workflow
	WorkDir   string   `json:"work_dir,omitempty"`                           // Where produced documents are written
	Standards []string `json:"standards,omitempty" validate:"dive,required"` // Compliance standards to check
	Pro       bool     `json:"pro,omitempty"`                                // Pro or team entitlement
	Verbose   bool     `json:"verbose,omitempty"`                            // Print detailed debug information

	// Server
	ServerAddr  string   `json:"server_addr,omitempty"`                           // REST facade listen address
	CORSOrigins []string `json:"cors_origins,omitempty" validate:"dive,required"` // Allowed browser origins
	DatabaseURL string   `json:"database_url,omitempty"`                          // PostgreSQL connection URL for job history
}

var validate = validator.New()

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv reads configuration from environment variables. Unset variables leave
// fields empty so they can be merged with other sources.
func FromEnv() (*Config, error) {
	cfg := &Config{
		APIBaseURL:  os.Getenv("PREFLIGHT_API_URL"),
		UserAgent:   os.Getenv("PREFLIGHT_USER_AGENT"),
		LogFormat:   os.Getenv("PREFLIGHT_LOG_FORMAT"),
		WorkDir:     os.Getenv("PREFLIGHT_WORK_DIR"),
		ServerAddr:  os.Getenv("PREFLIGHT_ADDR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Standards:   splitList(os.Getenv("PREFLIGHT_STANDARDS")),
		CORSOrigins: splitList(os.Getenv("PREFLIGHT_CORS_ORIGINS")),
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"PREFLIGHT_POLL_INTERVAL_MS", &cfg.PollIntervalMS},
		{"PREFLIGHT_JOB_TIMEOUT_SECONDS", &cfg.JobTimeoutSec},
		{"PREFLIGHT_HTTP_TIMEOUT_SECONDS", &cfg.HTTPTimeoutSec},
	}
	for _, i := range ints {
		raw := os.Getenv(i.env)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %v", i.env, err)
		}
		*i.dst = v
	}

	if raw := os.Getenv("PREFLIGHT_PRO"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid PREFLIGHT_PRO: %v", err)
		}
		cfg.Pro = v
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		APIBaseURL:     DefaultAPIBaseURL,
		PollIntervalMS: DefaultPollIntervalMS,
		JobTimeoutSec:  DefaultJobTimeoutSec,
		HTTPTimeoutSec: DefaultHTTPTimeoutSec,
		WorkDir:        DefaultWorkDir,
		ServerAddr:     DefaultServerAddr,
		LogFormat:      DefaultLogFormat,
	}
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("config error: '%s' failed '%s' validation", jsonName(first.StructField()), first.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.WorkDir != "" {
		if info, err := os.Stat(c.WorkDir); err == nil && !info.IsDir() {
			return fmt.Errorf("config error: work_dir is not a directory: %s", c.WorkDir)
		}
	}

	return nil
}

var jsonNames = map[string]string{
	"APIBaseURL":     "api_base_url",
	"PollIntervalMS": "poll_interval_ms",
	"JobTimeoutSec":  "job_timeout_seconds",
	"HTTPTimeoutSec": "http_timeout_seconds",
	"LogFormat":      "log_format",
	"Standards":      "standards",
	"CORSOrigins":    "cors_origins",
}

func jsonName(field string) string {
	if name, ok := jsonNames[field]; ok {
		return name
	}
	return field
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.APIBaseURL == "" {
		result.APIBaseURL = defaults.APIBaseURL
	}
	if result.UserAgent == "" {
		result.UserAgent = defaults.UserAgent
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}
	if result.WorkDir == "" {
		result.WorkDir = defaults.WorkDir
	}
	if result.ServerAddr == "" {
		result.ServerAddr = defaults.ServerAddr
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	// Int fields: use default if zero
	if result.PollIntervalMS == 0 {
		result.PollIntervalMS = defaults.PollIntervalMS
	}
	if result.JobTimeoutSec == 0 {
		result.JobTimeoutSec = defaults.JobTimeoutSec
	}
	if result.HTTPTimeoutSec == 0 {
		result.HTTPTimeoutSec = defaults.HTTPTimeoutSec
	}

	// Slices: use default if empty
	if len(result.Standards) == 0 {
		result.Standards = defaults.Standards
	}
	if len(result.CORSOrigins) == 0 {
		result.CORSOrigins = defaults.CORSOrigins
	}

	// Bool fields: cannot distinguish unset from false, so we only OR them in
	result.Pro = result.Pro || defaults.Pro
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}

// Load resolves the effective configuration: the optional file first, then the
// environment, then built-in defaults.
func Load(path string) (Config, error) {
	merged := Config{}
	if path != "" {
		fileCfg, err := LoadConfig(path)
		if err != nil {
			return Config{}, err
		}
		merged = *fileCfg
	}

	envCfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	merged = merged.MergeWithDefaults(*envCfg)
	merged = merged.MergeWithDefaults(Defaults())

	if err := merged.Validate(); err != nil {
		return Config{}, err
	}
	return merged, nil
}

// PollInterval returns the delay between status polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// JobTimeout returns the overall job deadline. Zero means no deadline.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSec) * time.Second
}

// HTTPTimeout returns the per-request timeout for the Processing API client.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}
