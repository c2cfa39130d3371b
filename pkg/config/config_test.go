package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rubiojr/marketsearch/pkg/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvAPIToken, "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Timeout.Duration != 10*time.Second || cfg.CacheTTL.Duration != 2*time.Minute {
		t.Errorf("unexpected durations %s %s", cfg.Timeout, cfg.CacheTTL)
	}
	if cfg.SearchLimit != 30 || cfg.PageSize != 50 || cfg.ProbeConcurrency != 16 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Debounce.Duration != 180*time.Millisecond || cfg.Listen != "127.0.0.1:8090" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error without base_url")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv(EnvBaseURL, "https://ignored.example.com")
	t.Setenv(EnvAPIToken, "from-env")

	path := writeConfig(t, `
base_url = "https://market.example.com"
timeout = "3s"
cache_ttl = "30s"
search_limit = 10
modules = ["rentals", "home-swap"]

[modules_config.homeswap]
list_paths = ["/v2/swaps"]
exists_path = ""
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "https://market.example.com" {
		t.Errorf("file value should win over env, got %q", cfg.BaseURL)
	}
	if cfg.APIToken != "from-env" {
		t.Errorf("expected token from env, got %q", cfg.APIToken)
	}
	if cfg.Timeout.Duration != 3*time.Second || cfg.CacheTTL.Duration != 30*time.Second {
		t.Errorf("unexpected durations %s %s", cfg.Timeout, cfg.CacheTTL)
	}
	if cfg.SearchLimit != 10 || cfg.PageSize != 50 {
		t.Errorf("unexpected limits %d %d", cfg.SearchLimit, cfg.PageSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	registry, err := cfg.Registry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	modules := registry.Modules()
	if len(modules) != 2 || modules[0] != core.Rentals || modules[1] != core.HomeSwap {
		t.Fatalf("unexpected modules %v", modules)
	}
	d, _ := registry.Get(core.HomeSwap)
	if len(d.ListPaths) != 1 || d.ListPaths[0] != "/v2/swaps" {
		t.Errorf("list path override not applied: %v", d.ListPaths)
	}
	if d.ExistsPath != "" {
		t.Errorf("exists path should be disabled, got %q", d.ExistsPath)
	}
	if d.Route != "/app/homeswap/{id}" {
		t.Errorf("route should keep its default, got %q", d.Route)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		module  bool
	}{
		{"valid", func(c *Config) {}, false, false},
		{"bad scheme", func(c *Config) { c.BaseURL = "ftp://x" }, true, false},
		{"relative search path", func(c *Config) { c.SearchPath = "api/search" }, true, false},
		{"unknown module", func(c *Config) { c.Modules = []string{"boats"} }, true, true},
		{"unknown override", func(c *Config) {
			c.ModulesConfig["boats"] = ModuleOverride{}
		}, true, true},
		{"relative list path", func(c *Config) {
			c.ModulesConfig["ads"] = ModuleOverride{ListPaths: []string{"ads"}}
		}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := GetDefaultConfig()
			c.BaseURL = "http://localhost:8080"
			tt.mutate(c)

			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if tt.module && !errors.Is(err, ErrInvalidModule) {
				t.Errorf("expected ErrInvalidModule, got %v", err)
			}
		})
	}
}

func TestSaveTemplateConfigRoundTrip(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvAPIToken, "")

	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	c := GetDefaultConfig()
	c.BaseURL = "http://127.0.0.1:9999"
	if err := c.SaveTemplateConfig(path); err != nil {
		t.Fatalf("save template: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.BaseURL != "http://127.0.0.1:9999" {
		t.Errorf("expected base URL from template, got %q", loaded.BaseURL)
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("template should validate: %v", err)
	}
}

func TestSaveTemplateConfigCacheDir(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvAPIToken, "")
	t.Setenv("XDG_CACHE_HOME", filepath.Join(t.TempDir(), "xdg-cache"))

	dir, err := GetDefaultCacheDir()
	if err != nil {
		t.Fatalf("default cache dir: %v", err)
	}
	if filepath.Base(dir) != "marketsearch" {
		t.Errorf("unexpected cache dir %s", dir)
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	c := GetDefaultConfig()
	c.BaseURL = "http://127.0.0.1:9999"
	c.CacheDir = dir
	if err := c.SaveTemplateConfig(path); err != nil {
		t.Fatalf("save template: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.CacheDir != dir {
		t.Errorf("expected cache_dir %s, got %q", dir, loaded.CacheDir)
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("expected 90s, got %s", d)
	}
	out, _ := d.MarshalText()
	if string(out) != "1m30s" {
		t.Errorf("expected 1m30s, got %s", out)
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("expected parse error")
	}
}
