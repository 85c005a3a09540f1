package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr     string           `yaml:"listen_addr"`
	APIToken       string           `yaml:"api_token"`
	ThresholdsPath string           `yaml:"thresholds_path"`
	Log            LogConfig        `yaml:"log"`
	Generation     GenerationConfig `yaml:"generation"`
	Language       LanguageConfig   `yaml:"language"`
	Safety         SafetyConfig     `yaml:"safety"`
	Store          StoreConfig      `yaml:"store"`
	Archive        ArchiveConfig    `yaml:"archive"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type GenerationConfig struct {
	Provider    string  `yaml:"provider"`
	Endpoint    string  `yaml:"endpoint"`
	Deployment  string  `yaml:"deployment"`
	APIKey      string  `yaml:"api_key"`
	APIVersion  string  `yaml:"api_version"`
	MaxTokens   int     `yaml:"max_tokens"`

	// Nil means unset; an explicit 0 is kept.
	Temperature *float64 `yaml:"temperature"`
	TopP        *float64 `yaml:"top_p"`
}

type LanguageConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	APIVersion string `yaml:"api_version"`
}

type SafetyConfig struct {
	Endpoint   string   `yaml:"endpoint"`
	APIKey     string   `yaml:"api_key"`
	APIVersion string   `yaml:"api_version"`
	Blocklists []string `yaml:"blocklists"`
}

type StoreConfig struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	Table     string `yaml:"table"`
	Partition string `yaml:"partition"`
}

type ArchiveConfig struct {
	Driver   string `yaml:"driver"`
	Dir      string `yaml:"dir"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Prefix   string `yaml:"prefix"`

	// Static credentials for S3-compatible stores; both empty means anonymous.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

const (
	ProviderAzureOpenAI = "azure-openai"
	ProviderGemini      = "gemini"

	DefaultListenAddr    = ":8080"
	DefaultTemperature   = 0.7
	DefaultTopP          = 0.95
	DefaultTable         = "MyNewTable"
	DefaultPartition     = "SessionDataPartition"
	DefaultSafetyVersion = "2024-09-01"
)

// Load reads path, fills defaults and validates.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

// Read parses path as written, without defaults or validation, so callers can
// layer overrides first.
func Read(path string) (Config, error) {
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyDefaults fills every value a minimal file may omit.
func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Generation.Provider == "" {
		c.Generation.Provider = ProviderAzureOpenAI
	}
	if c.Generation.APIVersion == "" && c.Generation.Provider == ProviderAzureOpenAI {
		c.Generation.APIVersion = "2024-05-01-preview"
	}
	if c.Generation.MaxTokens == 0 {
		c.Generation.MaxTokens = 150
	}
	if c.Generation.Temperature == nil {
		c.Generation.Temperature = Float(DefaultTemperature)
	}
	if c.Generation.TopP == nil {
		c.Generation.TopP = Float(DefaultTopP)
	}
	if c.Language.APIVersion == "" {
		c.Language.APIVersion = "2023-04-01"
	}
	if c.Safety.APIVersion == "" {
		c.Safety.APIVersion = DefaultSafetyVersion
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Store.Table == "" {
		c.Store.Table = DefaultTable
	}
	if c.Store.Partition == "" {
		c.Store.Partition = DefaultPartition
	}
	if c.Archive.Driver == "" {
		c.Archive.Driver = "none"
	}
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}

	switch c.Generation.Provider {
	case "", ProviderAzureOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("generation.provider %q is not supported", c.Generation.Provider)
	}

	if t := c.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("generation.temperature %v is outside [0, 2]", *t)
	}
	if p := c.Generation.TopP; p != nil && (*p < 0 || *p > 1) {
		return fmt.Errorf("generation.top_p %v is outside [0, 1]", *p)
	}

	switch c.Store.Driver {
	case "", "memory":
	case "sqlite", "postgres", "aztable", "redis":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.driver=%s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}

	switch c.Archive.Driver {
	case "", "none":
	case "file":
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir is required when archive.driver=file")
		}
	case "s3":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required when archive.driver=s3")
		}
	default:
		return fmt.Errorf("archive.driver %q is not supported", c.Archive.Driver)
	}

	return nil
}

func Float(v float64) *float64 { return &v }
