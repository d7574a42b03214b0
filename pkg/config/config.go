package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is read from an optional YAML file and the environment; the
// environment wins. A .env file in the working directory is loaded first.
type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP    HTTPConfig    `yaml:"http"`
	Search  SearchConfig  `yaml:"search"`
	Sources SourcesConfig `yaml:"sources"`
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr" env:"HTTP_ADDR" env-default:":9090"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" env-default:"30s"`
	DocsDir        string        `yaml:"docs_dir" env:"DOCS_DIR" env-default:"./api"`
}

type SearchConfig struct {
	// Searches running at once across all requests.
	MaxConcurrent int `yaml:"max_concurrent" env:"MAX_CONCURRENT_SEARCHES" env-default:"3"`
}

type SourcesConfig struct {
	Timeout    time.Duration `yaml:"timeout" env:"SOURCE_TIMEOUT" env-default:"10s"`
	Limit      int           `yaml:"limit" env:"SOURCE_LIMIT" env-default:"5"`
	MomoRender bool          `yaml:"momo_render" env:"MOMO_RENDER" env-default:"false"`
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads path, or CONFIG_PATH when path is empty, or only the
// environment when neither is set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.HTTP.RequestTimeout <= 0 {
		return fmt.Errorf("http.request_timeout must be > 0")
	}
	if c.Search.MaxConcurrent <= 0 {
		return fmt.Errorf("search.max_concurrent must be > 0")
	}
	if c.Sources.Timeout <= 0 {
		return fmt.Errorf("sources.timeout must be > 0")
	}
	if c.Sources.Limit <= 0 {
		return fmt.Errorf("sources.limit must be > 0")
	}
	return nil
}
