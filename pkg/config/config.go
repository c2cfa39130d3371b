package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rubiojr/marketsearch/pkg/core"
)

// cacheDirSample is the commented cache_dir line of the sample template.
const cacheDirSample = `# cache_dir = "/home/user/.cache/marketsearch"`

//go:embed config.toml.sample
var configTemplate string

const (
	EnvBaseURL  = "MARKETSEARCH_BASE_URL"
	EnvAPIToken = "MARKETSEARCH_API_TOKEN"

	appDir = "marketsearch"
)

var ErrInvalidModule = errors.New("invalid module")

type Config struct {
	BaseURL          string   `toml:"base_url"`
	APIToken         string   `toml:"api_token,omitempty"`
	Timeout          Duration `toml:"timeout"`
	SearchPath       string   `toml:"search_path"`
	SearchLimit      int      `toml:"search_limit"`
	PageSize         int      `toml:"page_size"`
	ProbeConcurrency int      `toml:"probe_concurrency"`
	CacheTTL         Duration `toml:"cache_ttl"`
	// CacheDir holds the persistent cache database. Empty keeps the cache in
	// memory only.
	CacheDir string   `toml:"cache_dir,omitempty"`
	Debounce Duration `toml:"debounce"`
	Listen   string   `toml:"listen"`
	// Modules enables a subset of modules. Empty enables all of them.
	Modules       []string                  `toml:"modules,omitempty"`
	ModulesConfig map[string]ModuleOverride `toml:"modules_config,omitempty"`
}

// ModuleOverride replaces parts of a module's default descriptor. An empty
// exists_path or route disables that template.
type ModuleOverride struct {
	ListPaths  []string `toml:"list_paths,omitempty"`
	ExistsPath *string  `toml:"exists_path,omitempty"`
	Route      *string  `toml:"route,omitempty"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() *Config {
	return &Config{
		Timeout:          Duration{10 * time.Second},
		SearchPath:       "/api/search",
		SearchLimit:      30,
		PageSize:         50,
		ProbeConcurrency: 16,
		CacheTTL:         Duration{2 * time.Minute},
		Debounce:         Duration{180 * time.Millisecond},
		Listen:           "127.0.0.1:8090",
		ModulesConfig:    make(map[string]ModuleOverride),
	}
}

// LoadConfig reads configPath. A missing file yields the defaults. Values
// left empty are filled from the environment and then from the defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := GetDefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("checking config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()
	return config, nil
}

func (c *Config) applyEnv() {
	if c.BaseURL == "" {
		c.BaseURL = os.Getenv(EnvBaseURL)
	}
	if c.APIToken == "" {
		c.APIToken = os.Getenv(EnvAPIToken)
	}
}

func (c *Config) applyDefaults() {
	d := GetDefaultConfig()
	if c.Timeout.Duration <= 0 {
		c.Timeout = d.Timeout
	}
	if c.SearchPath == "" {
		c.SearchPath = d.SearchPath
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = d.SearchLimit
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.ProbeConcurrency <= 0 {
		c.ProbeConcurrency = d.ProbeConcurrency
	}
	if c.CacheTTL.Duration <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.Debounce.Duration <= 0 {
		c.Debounce = d.Debounce
	}
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.ModulesConfig == nil {
		c.ModulesConfig = make(map[string]ModuleOverride)
	}
}

// Validate checks the settings needed to talk to the backend.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is not set (use the config file or %s)", EnvBaseURL)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url %q is not an http(s) URL", c.BaseURL)
	}
	if !strings.HasPrefix(c.SearchPath, "/") {
		return fmt.Errorf("search_path %q must start with /", c.SearchPath)
	}
	if _, err := c.EnabledModules(); err != nil {
		return err
	}
	for key, o := range c.ModulesConfig {
		if _, err := core.ParseModule(key); err != nil {
			return fmt.Errorf("%w in modules_config: %q", ErrInvalidModule, key)
		}
		for _, p := range o.ListPaths {
			if !strings.HasPrefix(p, "/") {
				return fmt.Errorf("modules_config.%s: list path %q must start with /", key, p)
			}
		}
	}
	return nil
}

// EnabledModules returns the configured module subset, or every module when
// none is configured.
func (c *Config) EnabledModules() ([]core.Module, error) {
	modules, err := core.ParseModules(c.Modules)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModule, err)
	}
	if len(modules) == 0 {
		return append([]core.Module(nil), core.AllModules...), nil
	}
	return modules, nil
}

// Registry returns a copy of the global module registry restricted to the
// enabled modules, with modules_config overrides applied.
func (c *Config) Registry() (*core.Registry, error) {
	modules, err := c.EnabledModules()
	if err != nil {
		return nil, err
	}

	overrides := make(map[core.Module]ModuleOverride, len(c.ModulesConfig))
	for key, o := range c.ModulesConfig {
		m, err := core.ParseModule(key)
		if err != nil {
			return nil, fmt.Errorf("%w in modules_config: %q", ErrInvalidModule, key)
		}
		overrides[m] = o
	}

	global := core.GetGlobalRegistry()
	registry := core.NewRegistry()
	for _, m := range modules {
		d, ok := global.Get(m)
		if !ok {
			d = core.DefaultDescriptor(m)
		}
		if o, ok := overrides[m]; ok {
			if len(o.ListPaths) > 0 {
				d.ListPaths = o.ListPaths
			}
			if o.ExistsPath != nil {
				d.ExistsPath = *o.ExistsPath
			}
			if o.Route != nil {
				d.Route = *o.Route
			}
		}
		if err := registry.Register(d); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// SaveTemplateConfig writes the commented sample configuration, with the
// base URL filled in when one is known.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(configPath, []byte(c.generateConfigTemplate()), 0600)
}

func (c *Config) generateConfigTemplate() string {
	tmpl := configTemplate
	if c.BaseURL != "" {
		tmpl = strings.Replace(tmpl, "https://marketplace.example.com", c.BaseURL, 1)
	}
	if c.CacheDir != "" {
		tmpl = strings.Replace(tmpl, cacheDirSample, fmt.Sprintf("cache_dir = %q", c.CacheDir), 1)
	}
	return tmpl
}

// GetConfigDir returns the configuration directory for marketsearch
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, appDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// GetDefaultCacheDir returns the directory suggested for the persistent
// search cache. It is not created.
func GetDefaultCacheDir() (string, error) {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		cacheDir = filepath.Join(homeDir, ".cache")
	}
	return filepath.Join(cacheDir, appDir), nil
}
