// Package config loads the runtime configuration of the director binaries.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file, then DIRECTOR_* environment variables.
package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/director"
	"github.com/aretw0/director/internal/governor"
	"github.com/aretw0/director/internal/logging"
	"github.com/aretw0/director/pkg/persistence/middleware"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "DIRECTOR_"

// Config is the full runtime configuration.
type Config struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	Extraction director.ExtractionMode `yaml:"extraction" env:"EXTRACTION"`
	Thresholds director.Thresholds     `yaml:"thresholds"`

	// Overrides applied on top of Thresholds when non-zero.
	EvaluateTimeout time.Duration `yaml:"-" env:"EVALUATE_TIMEOUT"`
	CallTimeout     time.Duration `yaml:"-" env:"CALL_TIMEOUT"`
	MaxWorkers      int           `yaml:"-" env:"MAX_WORKERS"`
	RefocusCooldown int           `yaml:"-" env:"REFOCUS_COOLDOWN"`

	Budget     Budget     `yaml:"budget" envPrefix:"BUDGET_"`
	LLM        LLM        `yaml:"llm" envPrefix:"LLM_"`
	Evidence   Evidence   `yaml:"evidence" envPrefix:"EVIDENCE_"`
	Redis      Redis      `yaml:"redis" envPrefix:"REDIS_"`
	Encryption Encryption `yaml:"encryption" envPrefix:"ENCRYPTION_"`
	HTTP       HTTP       `yaml:"http" envPrefix:"HTTP_"`
}

// Budget limits calls to external services.
type Budget struct {
	PerMinute int `yaml:"per_minute" env:"PER_MINUTE"`
	PerDay    int `yaml:"per_day" env:"PER_DAY"`
}

// LLM configures the optional completion service.
type LLM struct {
	APIKey  string `yaml:"api_key" env:"API_KEY"`
	Model   string `yaml:"model" env:"MODEL"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
}

// Enabled reports whether a completer should be built.
func (l LLM) Enabled() bool {
	return l.APIKey != ""
}

// Evidence configures the encyclopedia lookups.
type Evidence struct {
	Disabled bool   `yaml:"disabled" env:"DISABLED"`
	Language string `yaml:"language" env:"LANGUAGE"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL"`
}

// Redis configures shared state. An empty address keeps everything in memory.
type Redis struct {
	Addr        string        `yaml:"addr" env:"ADDR"`
	Password    string        `yaml:"password" env:"PASSWORD"`
	DB          int           `yaml:"db" env:"DB"`
	Prefix      string        `yaml:"prefix" env:"PREFIX"`
	TTL         time.Duration `yaml:"ttl" env:"TTL"`
	SharedCache bool          `yaml:"shared_cache" env:"SHARED_CACHE"`
}

// Enabled reports whether Redis should be used.
func (r Redis) Enabled() bool {
	return r.Addr != ""
}

// Encryption seals stored snapshots. Keys are base64 encoded.
type Encryption struct {
	Key          string   `yaml:"key" env:"KEY"`
	FallbackKeys []string `yaml:"fallback_keys" env:"FALLBACK_KEYS" envSeparator:","`
}

// Enabled reports whether snapshots should be encrypted.
func (e Encryption) Enabled() bool {
	return e.Key != ""
}

// Config decodes the keys.
func (e Encryption) Config() (middleware.EncryptionConfig, error) {
	var out middleware.EncryptionConfig
	var err error
	if out.ActiveKey, err = base64.StdEncoding.DecodeString(e.Key); err != nil {
		return out, fmt.Errorf("encryption key is not base64: %w", err)
	}
	for i, k := range e.FallbackKeys {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(k))
		if err != nil {
			return out, fmt.Errorf("fallback key %d is not base64: %w", i, err)
		}
		out.FallbackKeys = append(out.FallbackKeys, key)
	}
	return out, out.Validate()
}

// HTTP configures the API server.
type HTTP struct {
	Addr         string        `yaml:"addr" env:"ADDR"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:   "info",
		LogFormat:  "text",
		Thresholds: director.DefaultThresholds(),
		Budget: Budget{
			PerMinute: governor.DefaultPerMinute,
			PerDay:    governor.DefaultPerDay,
		},
		Evidence: Evidence{Language: "ja"},
		Redis: Redis{
			Prefix: "director:",
			TTL:    24 * time.Hour,
		},
		HTTP: HTTP{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Load resolves the configuration. An empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to open config: %w", err)
		}
		defer f.Close()
		if err := cfg.ReadYAML(f); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ReadYAML overlays the document in r. Unknown keys are rejected.
func (c *Config) ReadYAML(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

// ApplyEnv overlays DIRECTOR_* variables. A nil environment reads the
// process environment.
func (c *Config) ApplyEnv(environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	c.applyOverrides()
	return nil
}

func (c *Config) applyOverrides() {
	if c.EvaluateTimeout > 0 {
		c.Thresholds.EvaluateTimeout = c.EvaluateTimeout
	}
	if c.CallTimeout > 0 {
		c.Thresholds.CallTimeout = c.CallTimeout
	}
	if c.MaxWorkers > 0 {
		c.Thresholds.MaxWorkers = c.MaxWorkers
	}
	if c.RefocusCooldown > 0 {
		c.Thresholds.Interventions.RefocusCooldown = c.RefocusCooldown
	}
}

// Validate reports every invalid value at once.
func (c Config) Validate() error {
	var errs []error
	if err := c.Thresholds.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Extraction != "" && !c.Extraction.Valid() {
		errs = append(errs, fmt.Errorf("unknown extraction mode %q", c.Extraction))
	}
	if c.Extraction != "" && c.Extraction != director.ExtractHeuristic && !c.LLM.Enabled() {
		errs = append(errs, fmt.Errorf("extraction mode %q needs llm.api_key", c.Extraction))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if c.Budget.PerMinute < 0 || c.Budget.PerDay < 0 {
		errs = append(errs, errors.New("budgets must not be negative"))
	}
	if c.Redis.TTL < 0 {
		errs = append(errs, errors.New("redis ttl must not be negative"))
	}
	if c.Encryption.Enabled() {
		if _, err := c.Encryption.Config(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	return errors.Join(errs...)
}

// Decode copies a free-form map, such as tool arguments, into target.
// Keys match the yaml tags of target; unknown keys are an error.
func Decode(input map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           target,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
