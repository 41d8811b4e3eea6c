// Package config provides configuration management for the panel explorer
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable LoadFromEnv reads
const EnvPrefix = "OCPANEL_"

// Default configuration values
const (
	DefaultDataPath     = "data/dados.xlsx"
	DefaultLoadTimeout  = 30 * time.Second
	DefaultTopN         = 10
	DefaultServerAddr   = ":8080"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultRankMetric   = "divev_dif"
	DefaultTickerColumn = "ticker"
	DefaultYearColumn   = "ano"
	DefaultSectorColumn = "setor"

	DefaultMetricsLogLimit = 1024
)

// Duration is a time.Duration that reads and writes as text such as "30s"
type Duration time.Duration

// UnmarshalText parses a Go duration string
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText formats the duration as a Go duration string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the configuration of the explorer: where the panel comes
// from, how its schema is named, and how the hosts expose it
type Config struct {
	// Source Configuration
	DataPath    string   `json:"data_path" yaml:"data_path"`
	Sheet       string   `json:"sheet" yaml:"sheet"`               // Workbook sheet (empty = first sheet)
	LoadTimeout Duration `json:"load_timeout" yaml:"load_timeout"` // Upper bound for one load

	// Schema Configuration
	TickerColumn      string   `json:"ticker_column" yaml:"ticker_column"`
	YearColumn        string   `json:"year_column" yaml:"year_column"`
	SectorColumn      string   `json:"sector_column" yaml:"sector_column"`
	IndicatorColumns  []string `json:"indicator_columns" yaml:"indicator_columns"`
	GovernanceColumns []string `json:"governance_columns" yaml:"governance_columns"`
	MetricColumns     []string `json:"metric_columns" yaml:"metric_columns"`
	DisplayColumns    []string `json:"display_columns" yaml:"display_columns"`
	AssetColumn       string   `json:"asset_column" yaml:"asset_column"`
	ResidualColumn    string   `json:"residual_column" yaml:"residual_column"`
	DerivedRules      []string `json:"derived_rules" yaml:"derived_rules"` // e.g. "divev_dif = divev - mediana_divev"

	// Ranking Configuration
	RankMetric  string `json:"rank_metric" yaml:"rank_metric"`
	DefaultTopN int    `json:"default_top_n" yaml:"default_top_n"`

	// Host Configuration
	ServerAddr     string `json:"server_addr" yaml:"server_addr"`
	LogLevel       string `json:"log_level" yaml:"log_level"`   // debug, info, warn, error
	LogFormat      string `json:"log_format" yaml:"log_format"` // text or json
	MetricsEnabled bool   `json:"metrics_enabled" yaml:"metrics_enabled"`

	// MetricsLogLimit caps the in-memory log of recent operations
	MetricsLogLimit int `json:"metrics_log_limit" yaml:"metrics_log_limit"`
}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		DataPath:    DefaultDataPath,
		LoadTimeout: Duration(DefaultLoadTimeout),

		TickerColumn:      DefaultTickerColumn,
		YearColumn:        DefaultYearColumn,
		SectorColumn:      DefaultSectorColumn,
		IndicatorColumns:  []string{"oc1", "oc2", "oc3", "oc4", "oc134", "oc234"},
		GovernanceColumns: []string{"n1", "n2", "nm"},
		MetricColumns:     []string{"wqtobin", "wroa", "wroaebit", "wroe", "wmgop", "wopor", "lnat", "divbrat"},
		DisplayColumns:    []string{"ticker", "setor", "ano", "divev", "mediana_divev", "divev_dif"},
		AssetColumn:       "creat",
		ResidualColumn:    "residuo",
		DerivedRules:      []string{"divev_dif = divev - mediana_divev"},

		RankMetric:  DefaultRankMetric,
		DefaultTopN: DefaultTopN,

		ServerAddr:     DefaultServerAddr,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
		MetricsEnabled: true,

		MetricsLogLimit: DefaultMetricsLogLimit,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataPath) == "" {
		return fmt.Errorf("DataPath must not be empty")
	}

	if c.LoadTimeout < 0 {
		return fmt.Errorf("LoadTimeout must be non-negative, got %s", c.LoadTimeout.Std())
	}

	if c.DefaultTopN <= 0 {
		return fmt.Errorf("DefaultTopN must be positive, got %d", c.DefaultTopN)
	}

	if c.MetricsLogLimit < 0 {
		return fmt.Errorf("MetricsLogLimit must be non-negative, got %d", c.MetricsLogLimit)
	}

	for name, column := range map[string]string{
		"TickerColumn": c.TickerColumn,
		"YearColumn":   c.YearColumn,
		"SectorColumn": c.SectorColumn,
		"RankMetric":   c.RankMetric,
	} {
		if strings.TrimSpace(column) == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LogFormat must be text or json, got %q", c.LogFormat)
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.DataPath == "" {
		c.DataPath = defaults.DataPath
	}
	if c.LoadTimeout == 0 {
		c.LoadTimeout = defaults.LoadTimeout
	}
	if c.TickerColumn == "" {
		c.TickerColumn = defaults.TickerColumn
	}
	if c.YearColumn == "" {
		c.YearColumn = defaults.YearColumn
	}
	if c.SectorColumn == "" {
		c.SectorColumn = defaults.SectorColumn
	}
	if c.IndicatorColumns == nil {
		c.IndicatorColumns = defaults.IndicatorColumns
	}
	if c.GovernanceColumns == nil {
		c.GovernanceColumns = defaults.GovernanceColumns
	}
	if c.MetricColumns == nil {
		c.MetricColumns = defaults.MetricColumns
	}
	if c.DisplayColumns == nil {
		c.DisplayColumns = defaults.DisplayColumns
	}
	if c.AssetColumn == "" {
		c.AssetColumn = defaults.AssetColumn
	}
	if c.ResidualColumn == "" {
		c.ResidualColumn = defaults.ResidualColumn
	}
	if c.DerivedRules == nil {
		c.DerivedRules = defaults.DerivedRules
	}
	if c.RankMetric == "" {
		c.RankMetric = defaults.RankMetric
	}
	if c.DefaultTopN == 0 {
		c.DefaultTopN = defaults.DefaultTopN
	}
	if c.ServerAddr == "" {
		c.ServerAddr = defaults.ServerAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaults.LogFormat
	}

	if c.MetricsLogLimit == 0 {
		c.MetricsLogLimit = defaults.MetricsLogLimit
	}

	// MetricsEnabled is left as decoded; an explicit false must survive.

	return c
}

// LoadFromJSON loads configuration from JSON data
func LoadFromJSON(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a JSON or YAML file
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	config := Config{MetricsEnabled: true}
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return config.WithDefaults(), nil
}

// LoadFromEnv loads configuration from environment variables over the defaults
func LoadFromEnv() Config {
	return ApplyEnv(NewConfig())
}

// ApplyEnv overrides config with any OCPANEL_* environment variables that are set.
// Values that fail to parse are ignored.
func ApplyEnv(config Config) Config {
	if val := os.Getenv(EnvPrefix + "DATA_PATH"); val != "" {
		config.DataPath = val
	}

	if val := os.Getenv(EnvPrefix + "SHEET"); val != "" {
		config.Sheet = val
	}

	if val := os.Getenv(EnvPrefix + "LOAD_TIMEOUT"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			config.LoadTimeout = Duration(parsed)
		}
	}

	if val := os.Getenv(EnvPrefix + "DERIVED_RULES"); val != "" {
		config.DerivedRules = splitList(val, ";")
	}

	if val := os.Getenv(EnvPrefix + "RANK_METRIC"); val != "" {
		config.RankMetric = val
	}

	if val := os.Getenv(EnvPrefix + "DEFAULT_TOP_N"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.DefaultTopN = parsed
		}
	}

	if val := os.Getenv(EnvPrefix + "SERVER_ADDR"); val != "" {
		config.ServerAddr = val
	}

	if val := os.Getenv(EnvPrefix + "LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	if val := os.Getenv(EnvPrefix + "LOG_FORMAT"); val != "" {
		config.LogFormat = val
	}

	if val := os.Getenv(EnvPrefix + "METRICS_LOG_LIMIT"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.MetricsLogLimit = parsed
		}
	}

	if val := os.Getenv(EnvPrefix + "METRICS_ENABLED"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.MetricsEnabled = parsed
		}
	}

	return config
}

// ParseLevel maps a level name to its slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LogLevel must be one of debug, info, warn, error, got %q", level)
	}
}

// NewLogger builds the slog logger the configuration describes
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func splitList(val, sep string) []string {
	var out []string
	for _, part := range strings.Split(val, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
