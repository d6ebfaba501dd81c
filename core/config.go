package core

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFile = "teknoro.config.yml"

type ContactConfig struct {
	UpstreamURL string        `yaml:"upstreamURL" env:"UPSTREAM_URL"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type Config struct {
	OutputDir    string        `yaml:"outputDir" env:"OUTPUT_DIR"`
	CacheEnabled bool          `yaml:"cache" env:"CACHE"`
	DebugHeaders bool          `yaml:"debugHeaders" env:"DEBUG_HEADERS"`
	DebugLogs    bool          `yaml:"debugLogs" env:"DEBUG_LOGS"`
	Contact      ContactConfig `yaml:"contact" envPrefix:"CONTACT_"`
}

// LoadConfig reads the YAML file at path, then applies TEKNORO_* environment
// overrides. A missing file yields defaults.
var LoadConfig = func(path string) *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Ignoring malformed %s: %v\n", path, err)
			cfg = &Config{}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "TEKNORO_"}); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Ignoring environment overrides: %v\n", err)
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = "./cache"
	}

	return cfg
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Contact.UpstreamURL == "" {
		return ErrMissingUpstream
	}
	u, err := url.Parse(c.Contact.UpstreamURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUpstream, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q must be an absolute http(s) URL", ErrInvalidUpstream, c.Contact.UpstreamURL)
	}
	if c.Contact.Timeout < 0 {
		return fmt.Errorf("%w: must not be negative, got %s", ErrInvalidTimeout, c.Contact.Timeout)
	}
	return nil
}
