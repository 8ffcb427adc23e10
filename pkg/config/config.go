/*
Package config manages TOML (or YAML) config for nextword services.
*/
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bastiangx/nextword/internal/utils"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure
type Config struct {
	Server ServerConfig `toml:"server" yaml:"server"`
	Model  ModelConfig  `toml:"model" yaml:"model"`
	Engine EngineConfig `toml:"engine" yaml:"engine"`
	CLI    CliConfig    `toml:"cli" yaml:"cli"`
}

// ServerConfig has server related options.
type ServerConfig struct {
	MaxLimit       int    `toml:"max_limit" yaml:"max_limit"`
	MinPrefix      int    `toml:"min_prefix" yaml:"min_prefix"`
	MaxPrefix      int    `toml:"max_prefix" yaml:"max_prefix"`
	MaxContext     int    `toml:"max_context" yaml:"max_context"`
	Listen         string `toml:"listen" yaml:"listen"`
	ReloadSchedule string `toml:"reload_schedule" yaml:"reload_schedule"`
}

// ModelConfig says where the model lives and how it is trained.
type ModelConfig struct {
	Order       int    `toml:"order" yaml:"order"`
	Path        string `toml:"path" yaml:"path"`
	SkipInvalid bool   `toml:"skip_invalid" yaml:"skip_invalid"`
}

// EngineConfig tunes the prediction engine.
type EngineConfig struct {
	CacheSize        int     `toml:"cache_size" yaml:"cache_size"`
	PrefixWeight     float64 `toml:"prefix_weight" yaml:"prefix_weight"`
	ContextWeight    float64 `toml:"context_weight" yaml:"context_weight"`
	CompletionFactor int     `toml:"completion_factor" yaml:"completion_factor"`
	ContextFactor    int     `toml:"context_factor" yaml:"context_factor"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultLimit int `toml:"default_limit" yaml:"default_limit"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/
// 2. ~/Library/Application Support/ (macOS)
// 3. Current executable dir
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		return utils.ExecutableDir()
	}
	for _, dir := range []string{
		filepath.Join(homeDir, ".config", "nextword"),
		filepath.Join(homeDir, "Library", "Application Support", "nextword"),
	} {
		err := utils.WritableDir(dir)
		if err == nil {
			return dir, nil
		}
		log.Warnf("Config directory %s is not usable: %v", dir, err)
	}
	execDir, err := utils.ExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/nextword/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	customConfigPath = utils.ExpandHome(customConfigPath)
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			MaxLimit:   64,
			MinPrefix:  0,
			MaxPrefix:  60,
			MaxContext: 32,
		},
		Model: ModelConfig{
			Order: 3,
			Path:  "model.msgpack",
		},
		Engine: EngineConfig{
			CacheSize:        10000,
			PrefixWeight:     0.7,
			ContextWeight:    0.3,
			CompletionFactor: 2,
			ContextFactor:    3,
		},
		CLI: CliConfig{
			DefaultLimit: 5,
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	if err := utils.EnsureParentDir(configPath); err != nil {
		log.Warnf("%v. Using built-in defaults...", err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file, or a YAML file when the extension says so.
// Invalid values are reported; a TOML syntax error falls back to partial parsing.
func LoadConfig(configPath string) (*Config, error) {
	if isYAML(configPath) {
		return LoadYAML(configPath)
	}

	config := DefaultConfig()
	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		config = tryPartialParse(configPath)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// tryPartialParse keeps every well-typed value of a TOML file that failed to decode
// into Config and defaults the rest.
func tryPartialParse(configPath string) *Config {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config
	}

	if serverSection, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(serverSection, &config.Server)
	}
	if modelSection, ok := utils.ExtractSection(tempConfig, "model"); ok {
		extractModelConfig(modelSection, &config.Model)
	}
	if engineSection, ok := utils.ExtractSection(tempConfig, "engine"); ok {
		extractEngineConfig(engineSection, &config.Engine)
	}
	if cliSection, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractCliConfig(cliSection, &config.CLI)
	}
	return config
}

func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "max_limit"); ok {
		server.MaxLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "min_prefix"); ok {
		server.MinPrefix = val
	}
	if val, ok := utils.ExtractInt64(data, "max_prefix"); ok {
		server.MaxPrefix = val
	}
	if val, ok := utils.ExtractInt64(data, "max_context"); ok {
		server.MaxContext = val
	}
	if val, ok := utils.ExtractString(data, "listen"); ok {
		server.Listen = val
	}
	if val, ok := utils.ExtractString(data, "reload_schedule"); ok {
		server.ReloadSchedule = val
	}
}

func extractModelConfig(data map[string]any, m *ModelConfig) {
	if val, ok := utils.ExtractInt64(data, "order"); ok {
		m.Order = val
	}
	if val, ok := utils.ExtractString(data, "path"); ok {
		m.Path = val
	}
	if val, ok := utils.ExtractBool(data, "skip_invalid"); ok {
		m.SkipInvalid = val
	}
}

func extractEngineConfig(data map[string]any, engine *EngineConfig) {
	if val, ok := utils.ExtractInt64(data, "cache_size"); ok {
		engine.CacheSize = val
	}
	if val, ok := utils.ExtractFloat(data, "prefix_weight"); ok {
		engine.PrefixWeight = val
	}
	if val, ok := utils.ExtractFloat(data, "context_weight"); ok {
		engine.ContextWeight = val
	}
	if val, ok := utils.ExtractInt64(data, "completion_factor"); ok {
		engine.CompletionFactor = val
	}
	if val, ok := utils.ExtractInt64(data, "context_factor"); ok {
		engine.ContextFactor = val
	}
}

func extractCliConfig(data map[string]any, cli *CliConfig) {
	if val, ok := utils.ExtractInt64(data, "default_limit"); ok {
		cli.DefaultLimit = val
	}
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	return SaveConfig(DefaultConfig(), defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	if abs, err := filepath.Abs(configPath); err == nil {
		return abs
	}
	return configPath
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
