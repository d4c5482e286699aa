package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Generation GenerationConfig `yaml:"generation" validate:"required"`
	Paths      PathsConfig      `yaml:"paths"`
	Limits     Limits           `yaml:"limits" validate:"required"`
}

type GenerationConfig struct {
	Provider string `yaml:"provider" validate:"required,oneof=openai gemini mock"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model" validate:"required"`
}

type PathsConfig struct {
	DataDir   string `yaml:"data_dir"`
	BundleDir string `yaml:"bundle_dir"`
}

// Load reads the config file, falling back to defaults when none
// exists. The mock provider needs no credentials, so a fresh checkout
// runs without any setup.
func Load() (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(configFilePath())
	switch {
	case os.IsNotExist(err):
		cfg := &Config{
			Generation: GenerationConfig{Provider: "mock", Model: "mock-narrator"},
			Limits:     DefaultLimits(),
		}
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.resolveAPIKey()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveAPIKey pulls the key from the environment when the file leaves
// it out or carries a ${...} placeholder.
func (c *Config) resolveAPIKey() {
	if c.Generation.APIKey != "" && !strings.HasPrefix(c.Generation.APIKey, "${") {
		return
	}
	switch c.Generation.Provider {
	case "openai":
		c.Generation.APIKey = os.Getenv("OPENAI_API_KEY")
	case "gemini":
		c.Generation.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

// configFilePath resolves STORYARC_CONFIG, then the XDG config home,
// then ~/.config.
func configFilePath() string {
	if path := os.Getenv("STORYARC_CONFIG"); path != "" {
		return path
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "storyarc", "config.yaml")
}

func defaultDataDir() string {
	if base := os.Getenv("XDG_DATA_HOME"); base != "" {
		return filepath.Join(base, "storyarc")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "storyarc")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func (c *Config) validate() error {
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = defaultDataDir()
	} else {
		c.Paths.DataDir = expandHome(c.Paths.DataDir)
	}
	if c.Paths.BundleDir != "" {
		c.Paths.BundleDir = expandHome(c.Paths.BundleDir)
	}

	// An absent limits block means the zero value, not a misconfiguration.
	if c.Limits.EpilogueContext == 0 {
		c.Limits = DefaultLimits()
	}

	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Only the mock provider runs without a key.
	if c.Generation.Provider != "mock" && c.Generation.APIKey == "" {
		return fmt.Errorf("provider %q requires an API key", c.Generation.Provider)
	}
	return nil
}
