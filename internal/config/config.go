// Package config provides configuration management for ssrgate using Viper
// for loading from files, environment variables, and command-line flags.
//
// Values come from .ssrgate.yml (or --config / SSRGATE_CONFIG_FILE), with
// environment overrides under the SSRGATE_ prefix, e.g.
// SSRGATE_LOCALES_SUPPORTED="ru,en" and SSRGATE_LOCALES_DEFAULT=en.
// Configuration is loaded once at process start and treated as immutable.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/conneroisu/ssrgate/internal/locale"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Locales     LocalesConfig     `yaml:"locales" mapstructure:"locales"`
	Document    DocumentConfig    `yaml:"document" mapstructure:"document"`
	Pages       PagesConfig       `yaml:"pages" mapstructure:"pages"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	Development DevelopmentConfig `yaml:"development" mapstructure:"development"`
}

type ServerConfig struct {
	Host              string        `yaml:"host" mapstructure:"host"`
	Port              int           `yaml:"port" mapstructure:"port"`
	Environment       string        `yaml:"environment" mapstructure:"environment"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LocalesConfig struct {
	Supported      []string      `yaml:"supported" mapstructure:"supported"`
	Default        string        `yaml:"default" mapstructure:"default"`
	CookieName     string        `yaml:"cookie_name" mapstructure:"cookie_name"`
	CookieMaxAge   time.Duration `yaml:"cookie_max_age" mapstructure:"cookie_max_age"`
	RedirectStatus int           `yaml:"redirect_status" mapstructure:"redirect_status"`
	APIPrefixes    []string      `yaml:"api_prefixes" mapstructure:"api_prefixes"`
	BypassPrefixes []string      `yaml:"bypass_prefixes" mapstructure:"bypass_prefixes"`
}

type DocumentConfig struct {
	Shell         string `yaml:"shell" mapstructure:"shell"`
	Manifest      string `yaml:"manifest" mapstructure:"manifest"`
	AssetBase     string `yaml:"asset_base" mapstructure:"asset_base"`
	StaticDir     string `yaml:"static_dir" mapstructure:"static_dir"`
	StateVariable string `yaml:"state_variable" mapstructure:"state_variable"`
	DefaultEntry  string `yaml:"default_entry" mapstructure:"default_entry"`
}

type PagesConfig struct {
	ContentDir string `yaml:"content_dir" mapstructure:"content_dir"`
	SiteName   string `yaml:"site_name" mapstructure:"site_name"`
	// FallbackLocale is resolved against the locale registry at startup;
	// empty means the registry's default locale.
	FallbackLocale string `yaml:"fallback_locale" mapstructure:"fallback_locale"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Path      string `yaml:"path" mapstructure:"path"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	Runtime   bool   `yaml:"runtime" mapstructure:"runtime"`
}

type DevelopmentConfig struct {
	WatchShell bool          `yaml:"watch_shell" mapstructure:"watch_shell"`
	Debounce   time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// SetDefaults registers every key with v so that environment overrides
// are visible to Unmarshal even when no config file sets them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.environment", "production")
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("locales.supported", []string{"en"})
	v.SetDefault("locales.default", "en")
	v.SetDefault("locales.cookie_name", "NEXT_LOCALE")
	v.SetDefault("locales.cookie_max_age", 365*24*time.Hour)
	v.SetDefault("locales.redirect_status", 307)
	v.SetDefault("locales.api_prefixes", []string{"/api"})
	v.SetDefault("locales.bypass_prefixes", []string{"/assets", "/static", "/_internal", "/healthz", "/metrics", "/favicon.ico", "/robots.txt"})

	v.SetDefault("document.shell", "dist/client/index.html")
	v.SetDefault("document.manifest", "")
	v.SetDefault("document.asset_base", "/")
	v.SetDefault("document.static_dir", "dist/client")
	v.SetDefault("document.state_variable", "__INITIAL_DATA__")
	v.SetDefault("document.default_entry", "main")

	v.SetDefault("pages.content_dir", "content")
	v.SetDefault("pages.site_name", "")
	v.SetDefault("pages.fallback_locale", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "ssrgate")
	v.SetDefault("metrics.runtime", true)

	v.SetDefault("development.watch_shell", false)
	v.SetDefault("development.debounce", 100*time.Millisecond)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads, normalizes and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// A single env var or flag arrives as one comma separated string.
	config.Locales.Supported = splitList(v.Get("locales.supported"))
	config.Locales.APIPrefixes = splitList(v.Get("locales.api_prefixes"))
	config.Locales.BypassPrefixes = splitList(v.Get("locales.bypass_prefixes"))
	config.Locales.Default = strings.TrimSpace(config.Locales.Default)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Environment, "development")
}

// splitList flattens a configured list. Entries may themselves hold comma
// separated values; blanks are dropped.
func splitList(raw interface{}) []string {
	var items []string
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		items = []string{v}
	case []string:
		items = v
	case []interface{}:
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
	default:
		items = []string{fmt.Sprint(v)}
	}

	var out []string
	for _, item := range items {
		out = append(out, locale.ParseList(item)...)
	}
	return out
}
