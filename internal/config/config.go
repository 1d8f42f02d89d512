package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/piwi3910/CutYield/internal/logging"
	"github.com/piwi3910/CutYield/internal/model"
	"gopkg.in/yaml.v3"
)

const (
	defaultSheetWidth     = 3500.0
	defaultSheetHeight    = 2500.0
	defaultPort           = "8080"
	defaultRateLimitRPS   = 10.0
	defaultRateLimitBurst = 20

	// HistoryDisabled turns off run recording when used as the history path.
	HistoryDisabled = "none"

	envPrefix = "CUTYIELD_"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	SheetWidth           float64
	SheetHeight          float64
	Kerf                 float64
	MinOffcutDimension   float64
	LogLevel             string
	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	HistoryDB            string
}

// Sheet returns the configured default stock sheet.
func (c Config) Sheet() model.StockSheet {
	return model.NewStockSheet("Sheet", c.SheetWidth, c.SheetHeight)
}

// Settings returns the configured cut settings.
func (c Config) Settings() model.CutSettings {
	return model.CutSettings{Kerf: c.Kerf}
}

// HistoryEnabled reports whether runs should be recorded.
func (c Config) HistoryEnabled() bool {
	return c.HistoryDB != "" && c.HistoryDB != HistoryDisabled
}

// yamlConfig represents the YAML configuration file structure. Pointer
// fields distinguish "absent" from an explicit zero.
type yamlConfig struct {
	Sheet              yamlSheet  `yaml:"sheet"`
	Kerf               *float64   `yaml:"kerf"`
	MinOffcutDimension *float64   `yaml:"min_offcut_dimension"`
	LogLevel           string     `yaml:"log_level"`
	HistoryDB          string     `yaml:"history_db"`
	Server             yamlServer `yaml:"server"`
}

type yamlSheet struct {
	Width  *float64 `yaml:"width"`
	Height *float64 `yaml:"height"`
}

type yamlServer struct {
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides. Nil fields were not set.
type CLIOverrides struct {
	ConfigFile     string
	SheetWidth     *float64
	SheetHeight    *float64
	Kerf           *float64
	LogLevel       *string
	Port           *string
	RateLimitRPS   *float64
	RateLimitBurst *int
	HistoryDB      *string
}

// DefaultConfigDir returns the default directory for application data.
// On all platforms this is ~/.cutyield/
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cutyield")
}

// DefaultConfigPath returns the default path for the YAML config file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultHistoryPath returns the default path for the run history database.
func DefaultHistoryPath() string {
	return filepath.Join(DefaultConfigDir(), "history.db")
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
//
// Without an explicit config file the default path is tried, and a missing
// default file is not an error.
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Environment variables sit below the YAML file, so apply them first.
	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	path, explicit := DefaultConfigPath(), false
	if overrides != nil && overrides.ConfigFile != "" {
		path, explicit = overrides.ConfigFile, true
	}
	yamlCfg, err := loadFromFile(path)
	switch {
	case err == nil:
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
	case !explicit && errors.Is(err, os.ErrNotExist):
		// No config file at the default location.
	default:
		return Config{}, fmt.Errorf("load YAML config: %w", err)
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		SheetWidth:           defaultSheetWidth,
		SheetHeight:          defaultSheetHeight,
		Kerf:                 model.DefaultKerf,
		MinOffcutDimension:   model.MinOffcutDimension,
		LogLevel:             logging.DefaultLevel,
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         30 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		HistoryDB:            DefaultHistoryPath(),
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Sheet.Width != nil {
		cfg.SheetWidth = *yamlCfg.Sheet.Width
	}
	if yamlCfg.Sheet.Height != nil {
		cfg.SheetHeight = *yamlCfg.Sheet.Height
	}
	if yamlCfg.Kerf != nil {
		cfg.Kerf = *yamlCfg.Kerf
	}
	if yamlCfg.MinOffcutDimension != nil {
		cfg.MinOffcutDimension = *yamlCfg.MinOffcutDimension
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.HistoryDB != "" {
		cfg.HistoryDB = yamlCfg.HistoryDB
	}

	srv := yamlCfg.Server
	if srv.Port != "" {
		cfg.Port = srv.Port
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"shutdown_grace_period", srv.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", srv.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", srv.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", srv.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("server.%s: %w", d.name, err)
		}
		*d.dst = v
	}

	if srv.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *srv.EnableRequestLogging
	}
	if srv.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *srv.RateLimit.RPS
	}
	if srv.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *srv.RateLimit.Burst
	}
	return nil
}

// applyEnvConfig applies CUTYIELD_* environment variables.
func applyEnvConfig(cfg *Config) error {
	floats := []struct {
		key string
		dst *float64
	}{
		{"SHEET_WIDTH", &cfg.SheetWidth},
		{"SHEET_HEIGHT", &cfg.SheetHeight},
		{"KERF", &cfg.Kerf},
		{"MIN_OFFCUT", &cfg.MinOffcutDimension},
		{"RATE_LIMIT_RPS", &cfg.RateLimitRPS},
	}
	for _, f := range floats {
		raw, ok := lookupEnv(f.key)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%s%s: invalid number %q", envPrefix, f.key, raw)
		}
		*f.dst = v
	}

	if raw, ok := lookupEnv("RATE_LIMIT_BURST"); ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT_BURST: invalid integer %q", envPrefix, raw)
		}
		cfg.RateLimitBurst = v
	}
	if raw, ok := lookupEnv("REQUEST_LOGGING"); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%sREQUEST_LOGGING: invalid boolean %q", envPrefix, raw)
		}
		cfg.EnableRequestLogging = v
	}
	if raw, ok := lookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = raw
	}
	if raw, ok := lookupEnv("PORT"); ok {
		cfg.Port = raw
	}
	if raw, ok := lookupEnv("HISTORY_DB"); ok {
		cfg.HistoryDB = raw
	}
	return nil
}

// lookupEnv returns the trimmed value of CUTYIELD_<key> if it is set and
// not blank.
func lookupEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	return v, v != ""
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.SheetWidth != nil {
		cfg.SheetWidth = *overrides.SheetWidth
	}
	if overrides.SheetHeight != nil {
		cfg.SheetHeight = *overrides.SheetHeight
	}
	if overrides.Kerf != nil {
		cfg.Kerf = *overrides.Kerf
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}
	if overrides.RateLimitRPS != nil {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}
	if overrides.RateLimitBurst != nil {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
	if overrides.HistoryDB != nil && *overrides.HistoryDB != "" {
		cfg.HistoryDB = *overrides.HistoryDB
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.SheetWidth <= 0 || cfg.SheetHeight <= 0 {
		return fmt.Errorf("sheet size must be positive, got %sx%s: %w",
			model.FormatDim(cfg.SheetWidth), model.FormatDim(cfg.SheetHeight), model.ErrInvalidSheet)
	}
	if cfg.Kerf < 0 {
		return fmt.Errorf("kerf must be >= 0, got %s: %w", model.FormatDim(cfg.Kerf), model.ErrInvalidKerf)
	}
	if cfg.MinOffcutDimension < 0 {
		return fmt.Errorf("min offcut dimension must be >= 0")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit burst must be >= 0")
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return fmt.Errorf("port cannot be empty")
	}
	return nil
}
