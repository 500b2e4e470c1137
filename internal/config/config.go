package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Config represents the veil configuration.
type Config struct {
	Provider     string         `json:"provider"`
	Model        string         `json:"model"`
	Format       string         `json:"format"`
	Types        []string       `json:"types,omitempty"`
	MaxTextBytes int            `json:"maxTextBytes"`
	RulesFile    string         `json:"rulesFile,omitempty"`
	Semantic     SemanticConfig `json:"semantic"`
	Cache        CacheConfig    `json:"cache"`
	Server       ServerConfig   `json:"server"`
}

// SemanticConfig controls the optional semantic index pass.
type SemanticConfig struct {
	URL    string `json:"url,omitempty"`
	APIKey string `json:"apiKey,omitempty"`
}

// CacheConfig bounds the per-session redaction cache.
type CacheConfig struct {
	MaxEntries int `json:"maxEntries"`
}

// ServerConfig controls the HTTP facade.
type ServerConfig struct {
	Addr              string `json:"addr"`
	RateLimit         int    `json:"rateLimit"`
	RateWindowSeconds int    `json:"rateWindowSeconds"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Provider:     "anthropic",
		Model:        "claude-sonnet-4-20250514",
		Format:       "text",
		MaxTextBytes: 1 << 20,
		Cache: CacheConfig{
			MaxEntries: 200,
		},
		Server: ServerConfig{
			Addr:              ":8484",
			RateLimit:         30,
			RateWindowSeconds: 60,
		},
	}
}

// ConfigDir returns the platform-appropriate config directory for veil.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "veil"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "veil"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "veil"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "veil"), nil
	default:
		return filepath.Join(home, ".config", "veil"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile loads config from the config file. Returns zero Config and nil
// error if the file doesn't exist.
func LoadFile() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Save writes the config to the config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds the effective config by merging: defaults <- file <- env <-
// overrides. The overrides map comes from CLI flags (only non-zero values
// should be set).
func Load(overrides map[string]string) (Config, error) {
	cfg := Default()

	fileCfg, err := LoadFile()
	if err != nil {
		return Config{}, err
	}
	mergeFile(&cfg, fileCfg)
	mergeEnv(&cfg)
	mergeOverrides(&cfg, overrides)

	return cfg, nil
}

func mergeFile(dst *Config, src Config) {
	if src.Provider != "" {
		dst.Provider = src.Provider
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	if len(src.Types) > 0 {
		dst.Types = src.Types
	}
	if src.MaxTextBytes > 0 {
		dst.MaxTextBytes = src.MaxTextBytes
	}
	if src.RulesFile != "" {
		dst.RulesFile = src.RulesFile
	}
	if src.Semantic.URL != "" {
		dst.Semantic.URL = src.Semantic.URL
	}
	if src.Semantic.APIKey != "" {
		dst.Semantic.APIKey = src.Semantic.APIKey
	}
	if src.Cache.MaxEntries > 0 {
		dst.Cache.MaxEntries = src.Cache.MaxEntries
	}
	if src.Server.Addr != "" {
		dst.Server.Addr = src.Server.Addr
	}
	if src.Server.RateLimit > 0 {
		dst.Server.RateLimit = src.Server.RateLimit
	}
	if src.Server.RateWindowSeconds > 0 {
		dst.Server.RateWindowSeconds = src.Server.RateWindowSeconds
	}
}

func mergeEnv(cfg *Config) {
	if v := os.Getenv("VEIL_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("VEIL_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("VEIL_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("VEIL_SEMANTIC_URL"); v != "" {
		cfg.Semantic.URL = v
	}
	if v := os.Getenv("VEIL_SEMANTIC_API_KEY"); v != "" {
		cfg.Semantic.APIKey = v
	}
	if v := os.Getenv("VEIL_MAX_TEXT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTextBytes = n
		}
	}
	if v := os.Getenv("VEIL_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

func mergeOverrides(cfg *Config, overrides map[string]string) {
	if overrides == nil {
		return
	}
	if v, ok := overrides["provider"]; ok && v != "" {
		cfg.Provider = v
	}
	if v, ok := overrides["model"]; ok && v != "" {
		cfg.Model = v
	}
	if v, ok := overrides["format"]; ok && v != "" {
		cfg.Format = v
	}
	if v, ok := overrides["rulesFile"]; ok && v != "" {
		cfg.RulesFile = v
	}
	if v, ok := overrides["semanticURL"]; ok && v != "" {
		cfg.Semantic.URL = v
	}
	if v, ok := overrides["maxTextBytes"]; ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTextBytes = n
		}
	}
	if v, ok := overrides["addr"]; ok && v != "" {
		cfg.Server.Addr = v
	}
}

// SetField sets a single config field by key name. Returns error if key is
// unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "provider":
		cfg.Provider = value
	case "model":
		cfg.Model = value
	case "format":
		cfg.Format = value
	case "rulesFile":
		cfg.RulesFile = value
	case "semantic.url":
		cfg.Semantic.URL = value
	case "semantic.apiKey":
		cfg.Semantic.APIKey = value
	case "server.addr":
		cfg.Server.Addr = value
	case "maxTextBytes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("maxTextBytes must be an integer: %w", err)
		}
		cfg.MaxTextBytes = n
	case "cache.maxEntries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("cache.maxEntries must be an integer: %w", err)
		}
		cfg.Cache.MaxEntries = n
	case "server.rateLimit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("server.rateLimit must be an integer: %w", err)
		}
		cfg.Server.RateLimit = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
