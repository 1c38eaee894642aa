package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the curator.
type Config struct {
	CatalogPath  string          `mapstructure:"catalog_path"`
	CacheDir     string          `mapstructure:"cache_dir"`
	CacheTTL     string          `mapstructure:"cache_ttl"`
	Providers    []string        `mapstructure:"providers"`
	DryRun       bool            `mapstructure:"dry_run"`
	NoCache      bool            `mapstructure:"no_cache"`
	NoPR         bool            `mapstructure:"no_pr"`
	FetchTimeout string          `mapstructure:"fetch_timeout"`
	RateLimitRPS float64         `mapstructure:"rate_limit_rps"`
	GitHub       GitHubConfig    `mapstructure:"github"`
	Anthropic    ProviderConfig  `mapstructure:"anthropic"`
	OpenAI       ProviderConfig  `mapstructure:"openai"`
	Mistral      ProviderConfig  `mapstructure:"mistral"`
	LogLevel     string          `mapstructure:"log_level"`
}

// GitHubConfig holds review-request settings.
type GitHubConfig struct {
	Token      string `mapstructure:"token"`
	Owner      string `mapstructure:"owner"`
	Repo       string `mapstructure:"repo"`
	BaseBranch string `mapstructure:"base_branch"`
}

// ProviderConfig holds per-provider API settings.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// CacheTTLDuration parses the cache_ttl setting, falling back to 1h.
func (c *Config) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return time.Hour
	}
	return d
}

// FetchTimeoutDuration parses the fetch_timeout setting, falling back to 2m.
func (c *Config) FetchTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// Load reads configuration from file, environment, and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("catalog_path", "../model-catalog")
	v.SetDefault("cache_dir", defaultCacheDir())
	v.SetDefault("cache_ttl", "1h")
	v.SetDefault("providers", []string{"anthropic", "openai", "mistral"})
	v.SetDefault("dry_run", false)
	v.SetDefault("no_cache", false)
	v.SetDefault("no_pr", false)
	v.SetDefault("fetch_timeout", "2m")
	v.SetDefault("rate_limit_rps", 2.0)
	v.SetDefault("log_level", "info")
	v.SetDefault("github.base_branch", "main")
	v.SetDefault("anthropic.base_url", "https://api.anthropic.com/v1")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("mistral.base_url", "https://api.mistral.ai/v1")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/curator")
	}

	v.SetEnvPrefix("CURATOR")
	v.AutomaticEnv()

	_ = v.BindEnv("github.token", "GITHUB_TOKEN")
	_ = v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("anthropic.base_url", "CURATOR_ANTHROPIC_BASE_URL")
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("openai.base_url", "CURATOR_OPENAI_BASE_URL")
	_ = v.BindEnv("mistral.api_key", "MISTRAL_API_KEY")
	_ = v.BindEnv("mistral.base_url", "CURATOR_MISTRAL_BASE_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if !filepath.IsAbs(cfg.CatalogPath) {
		abs, err := filepath.Abs(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("resolving catalog path: %w", err)
		}
		cfg.CatalogPath = abs
	}

	return &cfg, nil
}

// Provider returns the settings block for a provider name.
func (c *Config) Provider(name string) (ProviderConfig, error) {
	switch name {
	case "anthropic":
		return c.Anthropic, nil
	case "openai":
		return c.OpenAI, nil
	case "mistral":
		return c.Mistral, nil
	default:
		return ProviderConfig{}, fmt.Errorf("no configuration for provider: %s", name)
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/curator-cache"
	}
	return filepath.Join(home, ".cache", "curator")
}
