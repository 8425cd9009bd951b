// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/surveyor/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete surveyor configuration.
type Config struct {
	Gateway GatewayConfig `toml:"gateway" json:"gateway"`
	State   StateConfig   `toml:"state" json:"state"`
	Auth    AuthConfig    `toml:"auth" json:"auth"`
	Quota   QuotaConfig   `toml:"quota" json:"quota"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// GatewayConfig describes the inference gateway.
type GatewayConfig struct {
	// BaseURL is the API root, e.g. http://127.0.0.1:8000/api
	BaseURL string `toml:"base_url" json:"base_url"`
	// ChatPath is appended to BaseURL for conversation requests.
	ChatPath string `toml:"chat_path" json:"chat_path"`
	// TagsPath lists installed models.
	TagsPath string `toml:"tags_path" json:"tags_path"`
	// QuotaPath returns {remaining, limit, reset_at}.
	QuotaPath string `toml:"quota_path" json:"quota_path"`
	// RequestTimeoutSecs bounds a whole chat request. 0 disables the bound.
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`
}

// StateConfig selects the durable store for conversations and settings.
type StateConfig struct {
	// Backend is "file" or "sqlite".
	Backend string `toml:"backend" json:"backend"`
	// Path is a directory for the file backend and a database file for sqlite.
	Path string `toml:"path" json:"path"`
	// Key namespaces the persisted blob.
	Key string `toml:"key" json:"key"`
}

// AuthConfig lists where the bearer token comes from.
// Token wins over TokenFile when both are set.
type AuthConfig struct {
	Token     string `toml:"token" json:"token"`
	TokenFile string `toml:"token_file" json:"token_file"`
}

// QuotaConfig tunes the quota relay.
type QuotaConfig struct {
	// MinRefreshIntervalMs throttles explicit quota fetches. 0 = never throttle.
	MinRefreshIntervalMs int `toml:"min_refresh_interval_ms" json:"min_refresh_interval_ms"`
}

// UIConfig holds presentation settings for the CLI.
type UIConfig struct {
	ThinkingIntervalMs int  `toml:"thinking_interval_ms" json:"thinking_interval_ms"`
	Markdown           bool `toml:"markdown" json:"markdown"`
	WordWrap           int  `toml:"word_wrap" json:"word_wrap"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	File  string `toml:"file" json:"file"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultStateKey is the namespace of the persisted state blob.
const DefaultStateKey = "surveyor_ai_v2"

// Default returns a Config with sensible default values.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = filepath.Join(os.TempDir(), "surveyor")
	}

	return &Config{
		Gateway: GatewayConfig{
			BaseURL:   "http://127.0.0.1:8000/api",
			ChatPath:  "/chat",
			TagsPath:  "/tags",
			QuotaPath: "/user/rate-limit",
		},
		State: StateConfig{
			Backend: "file",
			Path:    filepath.Join(dir, "state"),
			Key:     DefaultStateKey,
		},
		Auth: AuthConfig{
			TokenFile: filepath.Join(dir, "token"),
		},
		UI: UIConfig{
			ThinkingIntervalMs: 120,
			Markdown:           true,
			WordWrap:           80,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// RequestTimeout returns the configured request bound, or 0 for none.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Gateway.RequestTimeoutSecs) * time.Second
}

// ThinkingInterval returns how often elapsed time is reported while waiting.
func (c *Config) ThinkingInterval() time.Duration {
	return time.Duration(c.UI.ThinkingIntervalMs) * time.Millisecond
}

// QuotaRefreshInterval returns the minimum spacing of quota fetches.
func (c *Config) QuotaRefreshInterval() time.Duration {
	return time.Duration(c.Quota.MinRefreshIntervalMs) * time.Millisecond
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the surveyor configuration directory.
// SURVEYOR_HOME overrides the default ~/.surveyor.
func ConfigDir() (string, error) {
	if dir := os.Getenv("SURVEYOR_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".surveyor"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.surveyor/config.toml, falling back to config.json and then
// to built-in defaults. Environment overrides are applied last.
//
// A broken config file does not stop surveyor: defaults are returned along
// with the load error so the caller can warn about it.
func Load() (*Config, error) {
	var loadErr error

	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err != nil {
			loadErr = err
			break
		}
		return cfg, nil
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file with full validation.
// Files ending in .json are decoded as JSON, everything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON config %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON config %s: %w", path, err)
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML config %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills zero-valued fields that must not be empty.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Gateway.BaseURL == "" {
		c.Gateway.BaseURL = defaults.Gateway.BaseURL
	}
	c.Gateway.BaseURL = strings.TrimRight(c.Gateway.BaseURL, "/")
	if c.Gateway.ChatPath == "" {
		c.Gateway.ChatPath = defaults.Gateway.ChatPath
	}
	if c.Gateway.TagsPath == "" {
		c.Gateway.TagsPath = defaults.Gateway.TagsPath
	}
	if c.Gateway.QuotaPath == "" {
		c.Gateway.QuotaPath = defaults.Gateway.QuotaPath
	}

	if c.State.Backend == "" {
		c.State.Backend = defaults.State.Backend
	}
	c.State.Backend = strings.ToLower(c.State.Backend)
	if c.State.Path == "" {
		c.State.Path = defaults.State.Path
	}
	// The default path is a directory; sqlite wants a database file beside it.
	if c.State.Backend == "sqlite" && c.State.Path == defaults.State.Path {
		c.State.Path = filepath.Join(filepath.Dir(defaults.State.Path), "state.db")
	}
	if c.State.Key == "" {
		c.State.Key = defaults.State.Key
	}

	if c.UI.ThinkingIntervalMs <= 0 {
		c.UI.ThinkingIntervalMs = defaults.UI.ThinkingIntervalMs
	}
	if c.UI.WordWrap <= 0 {
		c.UI.WordWrap = defaults.UI.WordWrap
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - SURVEYOR_GATEWAY_URL: overrides gateway.base_url
//   - SURVEYOR_TOKEN: overrides auth.token
//   - SURVEYOR_STATE_BACKEND: overrides state.backend
//   - SURVEYOR_STATE_PATH: overrides state.path
//   - SURVEYOR_LOG_LEVEL: overrides log.level
//   - SURVEYOR_LOG_FILE: overrides log.file
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SURVEYOR_GATEWAY_URL"); v != "" {
		c.Gateway.BaseURL = v
	}
	if v := os.Getenv("SURVEYOR_TOKEN"); v != "" {
		c.Auth.Token = v
	}
	if v := os.Getenv("SURVEYOR_STATE_BACKEND"); v != "" {
		c.State.Backend = v
	}
	if v := os.Getenv("SURVEYOR_STATE_PATH"); v != "" {
		c.State.Path = v
	}
	if v := os.Getenv("SURVEYOR_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SURVEYOR_LOG_FILE"); v != "" {
		c.Log.File = v
	}
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

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Gateway.BaseURL); err != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "gateway.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]/path", c.Gateway.BaseURL),
		})
	}
	for field, p := range map[string]string{
		"gateway.chat_path":  c.Gateway.ChatPath,
		"gateway.tags_path":  c.Gateway.TagsPath,
		"gateway.quota_path": c.Gateway.QuotaPath,
	} {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, ValidationError{Field: field, Message: "must start with '/'"})
		}
	}
	if c.Gateway.RequestTimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "gateway.request_timeout_secs", Message: "must be >= 0"})
	}

	switch c.State.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, ValidationError{
			Field:   "state.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, sqlite", c.State.Backend),
		})
	}
	if strings.ContainsAny(c.State.Key, `/\`) {
		errs = append(errs, ValidationError{Field: "state.key", Message: "must not contain path separators"})
	}

	if c.Quota.MinRefreshIntervalMs < 0 {
		errs = append(errs, ValidationError{Field: "quota.min_refresh_interval_ms", Message: "must be >= 0"})
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to ~/.surveyor/config.toml.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path with 0600 permissions since it may hold a token.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# surveyor configuration file\n")
	sb.WriteString("# Generated by surveyor - edit with care\n\n")

	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String renders the config as TOML with the token masked.
func (c *Config) String() string {
	masked := *c
	if masked.Auth.Token != "" {
		masked.Auth.Token = "****"
	}
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(masked); err != nil {
		return err.Error()
	}
	return sb.String()
}
