// Package config resolves sheetintake settings.
//
// Precedence, lowest to highest: built-in defaults, the optional YAML file,
// environment variables, then command-line flags (applied by the caller).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sheetintake/internal/probe"
	"sheetintake/internal/session"
	"sheetintake/internal/storage"
	"sheetintake/internal/submit"
)

// Environment variables read by Load.
const (
	EnvAPIURL        = "SHEETINTAKE_API_URL"
	EnvAPIToken      = "SHEETINTAKE_API_TOKEN"
	EnvBackend       = "SHEETINTAKE_BACKEND"
	EnvDSN           = "DSN"
	EnvMetrics       = "METRICS_BACKEND"
	EnvDatadogTags   = "DD_TAGS"
	EnvSubmitRetries = "SHEETINTAKE_SUBMIT_RETRIES"
)

// Known storage backends and metrics sinks.
var (
	Backends        = []string{"sqlite", "postgres", "mssql"}
	MetricsBackends = []string{"none", "datadog"}
)

// Config is the resolved configuration.
type Config struct {
	API       API       `yaml:"api"`
	Storage   Storage   `yaml:"storage"`
	Inference Inference `yaml:"inference"`
	Metrics   Metrics   `yaml:"metrics"`
}

// API configures the storage service client.
type API struct {
	URL          string        `yaml:"url"`
	Token        string        `yaml:"token,omitempty"`
	Retries      int           `yaml:"retries"`
	RateLimitRPS float64       `yaml:"rate_limit_rps"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Storage configures the local sink used by the load command.
type Storage struct {
	Backend   string `yaml:"backend"`
	DSN       string `yaml:"dsn"`
	BatchSize int    `yaml:"batch_size"`
}

// Inference bounds plan building.
type Inference struct {
	SampleLimit int `yaml:"sample_limit"`
	HeaderScan  int `yaml:"header_scan"`
	PreviewRows int `yaml:"preview_rows"`
	Workers     int `yaml:"workers"`
}

// Metrics selects the metrics sink.
type Metrics struct {
	Backend string `yaml:"backend"`

	// DatadogTags is a comma-separated tag list, e.g. "env:prod,team:data".
	DatadogTags string `yaml:"dd_tags,omitempty"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		API: API{
			URL:          "http://localhost:8080",
			Retries:      3,
			RateLimitRPS: 5,
			Timeout:      30 * time.Second,
		},
		Storage: Storage{
			Backend:   "sqlite",
			DSN:       "file:sheetintake.db",
			BatchSize: storage.DefaultBatchSize,
		},
		Inference: Inference{
			SampleLimit: probe.DefaultSampleLimit,
			HeaderScan:  probe.DefaultHeaderScan,
			PreviewRows: probe.DefaultPreviewRows,
			Workers:     session.DefaultWorkers,
		},
		Metrics: Metrics{Backend: "none"},
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped
// when path is empty) and then the environment.
func Load(path string) (Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := decode(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// decode rejects unknown keys so typos do not silently fall back to defaults.
func decode(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvAPIURL)); v != "" {
		c.API.URL = v
	}
	if v := strings.TrimSpace(getenv(EnvAPIToken)); v != "" {
		c.API.Token = v
	}
	if v := strings.TrimSpace(getenv(EnvBackend)); v != "" {
		c.Storage.Backend = v
	}
	if v := strings.TrimSpace(getenv(EnvDSN)); v != "" {
		c.Storage.DSN = v
	}
	if v := strings.TrimSpace(getenv(EnvMetrics)); v != "" {
		c.Metrics.Backend = v
	}
	if v := strings.TrimSpace(getenv(EnvDatadogTags)); v != "" {
		c.Metrics.DatadogTags = v
	}
	if v := strings.TrimSpace(getenv(EnvSubmitRetries)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSubmitRetries, err)
		}
		c.API.Retries = n
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.API.URL) == "" {
		errs = append(errs, errors.New("api.url is empty"))
	}
	if c.API.Retries < 0 {
		errs = append(errs, fmt.Errorf("api.retries must be >= 0, got %d", c.API.Retries))
	}
	if c.API.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("api.rate_limit_rps must be >= 0, got %g", c.API.RateLimitRPS))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout))
	}
	if !oneOf(c.Storage.Backend, Backends) {
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of %v", c.Storage.Backend, Backends))
	}
	if c.Storage.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("storage.batch_size must be positive, got %d", c.Storage.BatchSize))
	}
	for _, f := range []struct {
		name string
		v    int
	}{
		{"inference.sample_limit", c.Inference.SampleLimit},
		{"inference.header_scan", c.Inference.HeaderScan},
		{"inference.preview_rows", c.Inference.PreviewRows},
		{"inference.workers", c.Inference.Workers},
	} {
		if f.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", f.name, f.v))
		}
	}
	if !oneOf(c.Metrics.Backend, MetricsBackends) {
		errs = append(errs, fmt.Errorf("metrics.backend %q is not one of %v", c.Metrics.Backend, MetricsBackends))
	}
	return errors.Join(errs...)
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

// PlanOptions converts the inference settings.
func (c Config) PlanOptions() probe.PlanOptions {
	return probe.PlanOptions{
		SampleLimit: c.Inference.SampleLimit,
		HeaderScan:  c.Inference.HeaderScan,
		PreviewRows: c.Inference.PreviewRows,
	}
}

// SessionOptions converts the inference settings for a session.Manager.
func (c Config) SessionOptions(logger session.Logger) session.Options {
	return session.Options{
		Workers: c.Inference.Workers,
		Plan:    c.PlanOptions(),
		Logger:  logger,
	}
}

// SubmitOptions converts the API settings.
func (c Config) SubmitOptions() submit.Options {
	return submit.Options{
		MaxRetries:     c.API.Retries,
		RequestTimeout: c.API.Timeout,
		RateLimitRPS:   c.API.RateLimitRPS,
	}
}

// StorageConfig converts the storage settings.
func (c Config) StorageConfig() storage.Config {
	return storage.Config{Kind: c.Storage.Backend, DSN: c.Storage.DSN}
}

// YAML renders c, omitting the API token.
func (c Config) YAML() ([]byte, error) {
	c.API.Token = ""
	return yaml.Marshal(c)
}
