// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete docchat configuration.
type Config struct {
	// Backend connection
	Server ServerConfig `toml:"server" yaml:"server" json:"server"`

	// Chat list cache
	Cache CacheConfig `toml:"cache" yaml:"cache" json:"cache"`

	// Terminal UI
	UI UIConfig `toml:"ui" yaml:"ui" json:"ui"`

	// Log output
	Logging LoggingConfig `toml:"logging" yaml:"logging" json:"logging"`

	// Prometheus endpoint
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics" json:"metrics"`
}

// ServerConfig describes how to reach the document chat backend.
type ServerConfig struct {
	// BaseURL is the backend root, without the /api prefix
	BaseURL string `toml:"base_url" yaml:"base_url" json:"base_url"`
	// TimeoutSecs bounds non-streaming requests
	TimeoutSecs int `toml:"timeout_secs" yaml:"timeout_secs" json:"timeout_secs"`
	// RequestsPerSecond limits outgoing requests; negative disables the limit
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second" json:"requests_per_second"`
	// Burst is the limiter bucket size
	Burst int `toml:"burst" yaml:"burst" json:"burst"`
}

// CacheConfig controls the chat list cache.
type CacheConfig struct {
	// StaleAfterSecs is how long a loaded list or conversation is trusted; 0 disables expiry
	StaleAfterSecs int `toml:"stale_after_secs" yaml:"stale_after_secs" json:"stale_after_secs"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is "dark", "light" or "auto"
	Theme string `toml:"theme" yaml:"theme" json:"theme"`
	// PreviewWidth is the sidebar preview width in cells
	PreviewWidth int `toml:"preview_width" yaml:"preview_width" json:"preview_width"`
	// ToastSecs is the base notification lifetime
	ToastSecs int `toml:"toast_secs" yaml:"toast_secs" json:"toast_secs"`
}

// LoggingConfig controls the structured log file.
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `toml:"level" yaml:"level" json:"level"`
	// File is the log path; empty disables logging
	File string `toml:"file" yaml:"file" json:"file"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:9464"; empty disables it
	Addr string `toml:"addr" yaml:"addr" json:"addr"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:           "http://127.0.0.1:8000",
			TimeoutSecs:       30,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Cache: CacheConfig{
			StaleAfterSecs: 30,
		},
		UI: UIConfig{
			Theme:        "dark",
			PreviewWidth: 30,
			ToastSecs:    4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Timeout returns the request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutSecs) * time.Second
}

// StaleAfter returns the cache staleness window.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Cache.StaleAfterSecs) * time.Second
}

// ToastDuration returns the base notification lifetime.
func (c *Config) ToastDuration() time.Duration {
	return time.Duration(c.UI.ToastSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the docchat configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("DOCCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".docchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathYAML returns the path to the YAML config file.
func ConfigPathYAML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// HistoryPath returns the path of the repl history file.
func HistoryPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history"), nil
}

// Locate returns the config file Load would read, or "" if there is none.
func Locate() string {
	for _, fn := range []func() (string, error){ConfigPathTOML, ConfigPathYAML} {
		path, err := fn()
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv loads KEY=value pairs from the given files (".env" when none
// are given) into the environment. Missing files are ignored and variables
// already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the config file if there is one, applies environment overrides
// and validates the result.
func Load() (*Config, error) {
	if path := Locate(); path != "" {
		return LoadFromPath(path)
	}
	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Files ending in .yaml or .yml are read as YAML, anything else
// as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := LoadYAML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load YAML config from %s: %w", path, err)
		}
	default:
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	fillDefaults(cfg)
	return nil
}

// LoadYAML decodes a YAML file over cfg.
func LoadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// fillDefaults restores defaults for values a file set to their zero value
// where zero is not meaningful.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = defaults.Server.BaseURL
	}
	if cfg.Server.TimeoutSecs == 0 {
		cfg.Server.TimeoutSecs = defaults.Server.TimeoutSecs
	}
	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = defaults.Server.Burst
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.UI.PreviewWidth == 0 {
		cfg.UI.PreviewWidth = defaults.UI.PreviewWidth
	}
	if cfg.UI.ToastSecs == 0 {
		cfg.UI.ToastSecs = defaults.UI.ToastSecs
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes the configuration to path.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# docchat configuration file")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := writeFileAtomic(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveYAML writes the configuration to path as YAML.
func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := writeFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Save writes cfg to path, as YAML for .yaml and .yml files and TOML
// otherwise.
func Save(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return SaveYAML(cfg, path)
	default:
		return SaveTOML(cfg, path)
	}
}

// LoadFile decodes path over the defaults without environment overrides or
// validation, for editing the file in place.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = LoadYAML(cfg, path)
	default:
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// writeFileAtomic writes data to a temp file in the target directory,
// syncs it and renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	ok := false
	defer func() {
		if !ok {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	ok = true
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validThemes = map[string]bool{"dark": true, "light": true, "auto": true}

// Validate validates the configuration and returns any errors as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.Server.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, ValidationError{Field: "server.base_url", Message: err.Error()})
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, ValidationError{Field: "server.base_url", Message: fmt.Sprintf("scheme must be http or https, got %q", u.Scheme)})
	case u.Host == "":
		errs = append(errs, ValidationError{Field: "server.base_url", Message: "host is required"})
	}

	if c.Server.TimeoutSecs < 1 || c.Server.TimeoutSecs > 3600 {
		errs = append(errs, ValidationError{
			Field:   "server.timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 3600, got %d", c.Server.TimeoutSecs),
		})
	}
	if c.Server.Burst < 1 {
		errs = append(errs, ValidationError{Field: "server.burst", Message: "must be at least 1"})
	}
	if c.Cache.StaleAfterSecs < 0 {
		errs = append(errs, ValidationError{Field: "cache.stale_after_secs", Message: "must not be negative"})
	}

	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}
	if c.UI.PreviewWidth < 8 || c.UI.PreviewWidth > 200 {
		errs = append(errs, ValidationError{
			Field:   "ui.preview_width",
			Message: fmt.Sprintf("must be between 8 and 200, got %d", c.UI.PreviewWidth),
		})
	}
	if c.UI.ToastSecs < 1 || c.UI.ToastSecs > 60 {
		errs = append(errs, ValidationError{
			Field:   "ui.toast_secs",
			Message: fmt.Sprintf("must be between 1 and 60, got %d", c.UI.ToastSecs),
		})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - DOCCHAT_BASE_URL: overrides server.base_url
//   - DOCCHAT_TIMEOUT_SECS: overrides server.timeout_secs
//   - DOCCHAT_STALE_AFTER_SECS: overrides cache.stale_after_secs
//   - DOCCHAT_THEME: overrides ui.theme
//   - DOCCHAT_LOG_LEVEL: overrides logging.level
//   - DOCCHAT_LOG_FILE: overrides logging.file
//   - DOCCHAT_METRICS_ADDR: overrides metrics.addr
//
// Unparseable numbers are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("DOCCHAT_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if n, ok := envInt("DOCCHAT_TIMEOUT_SECS"); ok {
		c.Server.TimeoutSecs = n
	}
	if n, ok := envInt("DOCCHAT_STALE_AFTER_SECS"); ok {
		c.Cache.StaleAfterSecs = n
	}
	if v := os.Getenv("DOCCHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("DOCCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DOCCHAT_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("DOCCHAT_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "server.base_url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if key == "" || len(parts) != 2 {
		return reflect.Value{}, fmt.Errorf("invalid key: %q", key)
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"server.base_url",
		"server.timeout_secs",
		"server.requests_per_second",
		"server.burst",
		"cache.stale_after_secs",
		"ui.theme",
		"ui.preview_width",
		"ui.toast_secs",
		"logging.level",
		"logging.file",
		"metrics.addr",
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns an indented JSON rendering of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
