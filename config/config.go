// Package config loads the planner configuration from a JSON file and the
// environment. Environment variables win over the file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"trip_itinerary_planner/generator"
)

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = "config/config.json"

// Config holds every tunable of the planner.
type Config struct {
	LLM           *LLMConfig    `json:"llm,omitempty"`
	Tier          string        `json:"model_tier,omitempty"`
	MaxIterations int           `json:"max_review_iterations,omitempty"`
	// Threshold overrides the tier default when set; 0 approves every draft.
	Threshold     *float64      `json:"approval_threshold,omitempty"`
	Retry         RetryConfig   `json:"retry"`
	Weather       WeatherConfig `json:"weather"`
	MapsLinks     bool          `json:"enable_google_maps_links"`
	LogLevel      string        `json:"log_level,omitempty"`
	DBPath        string        `json:"db_path,omitempty"`
	OutputDir     string        `json:"output_dir,omitempty"`
	ServerAddr    string        `json:"server_addr,omitempty"`
}

// LLMConfig 大模型配置。
type LLMConfig struct {
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model,omitempty"`
	APIKey      string  `json:"api_key,omitempty"`
	BaseURL     string  `json:"base_url,omitempty"`
	Temperature float64 `json:"temperature"`
}

// RetryConfig mirrors generator.RetryPolicy; Unit is a Go duration string.
type RetryConfig struct {
	Attempts     int     `json:"attempts"`
	InitialDelay float64 `json:"initial_delay"`
	ExpBase      float64 `json:"exp_base"`
	Unit         string  `json:"unit"`
}

type WeatherConfig struct {
	APIKey string `json:"openweather_api_key,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LLM: &LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
		},
		Tier:          string(generator.TierStandard),
		MaxIterations: generator.DefaultMaxIterations,
		Retry: RetryConfig{
			Attempts:     5,
			InitialDelay: 1,
			ExpBase:      7,
			Unit:         "1s",
		},
		MapsLinks:  true,
		LogLevel:   "warn",
		DBPath:     "trip_planner.db",
		OutputDir:  "itineraries",
		ServerAddr: ":8080",
	}
}

// Load reads path over the defaults, applies the environment and validates.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, err
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if cfg.LLM == nil {
		cfg.LLM = Default().LLM
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a number", key, v))
				return
			}
			*dst = f
		}
	}
	optional := func(key string, dst **float64) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			f := new(float64)
			num(key, f)
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a boolean", key, v))
				return
			}
			*dst = b
		}
	}

	str("OPENAI_API_KEY", &c.LLM.APIKey)
	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_BASE_URL", &c.LLM.BaseURL)
	str("MODEL_NAME", &c.LLM.Model)
	num("TEMPERATURE", &c.LLM.Temperature)
	str("MODEL_TIER", &c.Tier)
	integer("MAX_REVIEW_ITERATIONS", &c.MaxIterations)
	optional("APPROVAL_THRESHOLD", &c.Threshold)
	integer("RETRY_ATTEMPTS", &c.Retry.Attempts)
	num("RETRY_INITIAL_DELAY", &c.Retry.InitialDelay)
	num("RETRY_EXP_BASE", &c.Retry.ExpBase)
	str("RETRY_UNIT", &c.Retry.Unit)
	str("OPENWEATHER_API_KEY", &c.Weather.APIKey)
	boolean("ENABLE_GOOGLE_MAPS_LINKS", &c.MapsLinks)
	str("LOG_LEVEL", &c.LogLevel)
	str("TRIP_PLANNER_DB", &c.DBPath)
	str("SERVER_ADDR", &c.ServerAddr)
	return errors.Join(errs...)
}

// Validate checks ranges. It does not require an API key; the mock provider
// runs without one.
func (c Config) Validate() error {
	var errs []error
	if c.LLM == nil {
		errs = append(errs, errors.New("llm config missing"))
	} else if t := c.LLM.Temperature; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("temperature must be within 0..1, got %v", t))
	}
	if _, err := generator.ParseTier(c.Tier); err != nil {
		errs = append(errs, err)
	}
	if c.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("max review iterations must be >= 1, got %d", c.MaxIterations))
	}
	if t := c.Threshold; t != nil && (*t < 0 || *t > 10) {
		errs = append(errs, fmt.Errorf("approval threshold must be within 0..10, got %v", *t))
	}
	if c.Retry.Attempts < 1 {
		errs = append(errs, fmt.Errorf("retry attempts must be >= 1, got %d", c.Retry.Attempts))
	}
	if c.Retry.InitialDelay < 0 {
		errs = append(errs, fmt.Errorf("retry initial delay must be >= 0, got %v", c.Retry.InitialDelay))
	}
	if c.Retry.ExpBase < 1 {
		errs = append(errs, fmt.Errorf("retry exponential base must be >= 1, got %v", c.Retry.ExpBase))
	}
	if _, err := c.retryUnit(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ModelTier resolves the deployment tier.
func (c Config) ModelTier() generator.Tier {
	t, err := generator.ParseTier(c.Tier)
	if err != nil {
		return generator.TierStandard
	}
	return t
}

// ApprovalThreshold is the configured threshold, or the tier default when unset.
func (c Config) ApprovalThreshold() float64 {
	if c.Threshold != nil {
		return *c.Threshold
	}
	return c.ModelTier().DefaultThreshold()
}

func (c Config) retryUnit() (time.Duration, error) {
	if c.Retry.Unit == "" {
		return time.Second, nil
	}
	d, err := time.ParseDuration(c.Retry.Unit)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("retry unit must be a positive duration, got %q", c.Retry.Unit)
	}
	return d, nil
}

func (c Config) RetryPolicy() (generator.RetryPolicy, error) {
	unit, err := c.retryUnit()
	if err != nil {
		return generator.RetryPolicy{}, err
	}
	return generator.RetryPolicy{
		Attempts:     c.Retry.Attempts,
		InitialDelay: c.Retry.InitialDelay,
		Base:         c.Retry.ExpBase,
		Unit:         unit,
	}, nil
}

func (c Config) LLMSettings() *generator.LLMSettings {
	return &generator.LLMSettings{
		Provider:    c.LLM.Provider,
		Model:       c.LLM.Model,
		APIKey:      c.LLM.APIKey,
		BaseURL:     c.LLM.BaseURL,
		Temperature: c.LLM.Temperature,
	}
}

// SlogLevel parses LogLevel. Empty means warn.
func (c Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
}

// Masked returns a copy safe to print.
func (c Config) Masked() Config {
	out := c
	if c.LLM != nil {
		llm := *c.LLM
		llm.APIKey = mask(llm.APIKey)
		out.LLM = &llm
	}
	out.Weather.APIKey = mask(c.Weather.APIKey)
	return out
}

func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}
