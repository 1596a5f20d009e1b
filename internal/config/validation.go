package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ValidationError describes one invalid configuration value.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// cookie-name token characters per RFC 6265 / RFC 2616
var cookieNamePattern = regexp.MustCompile("^[!#$%&'*+\\-.^_`|~0-9A-Za-z]+$")

// validateConfig validates configuration values for correctness. Every
// problem is reported, joined into one error.
func validateConfig(config *Config) error {
	var errs []error
	add := func(field string, value interface{}, format string, args ...interface{}) {
		errs = append(errs, &ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
	}

	validateServerConfig(&config.Server, add)
	validateLocalesConfig(&config.Locales, add)
	validateDocumentConfig(&config.Document, add)
	validateLoggingConfig(&config.Logging, add)

	if config.Metrics.Enabled && !strings.HasPrefix(config.Metrics.Path, "/") {
		add("metrics.path", config.Metrics.Path, "must start with /")
	}
	if config.Pages.ContentDir == "" {
		add("pages.content_dir", config.Pages.ContentDir, "must not be empty")
	}
	if config.Development.Debounce < 0 {
		add("development.debounce", config.Development.Debounce, "must not be negative")
	}

	return errors.Join(errs...)
}

type addFunc func(field string, value interface{}, format string, args ...interface{})

func validateServerConfig(config *ServerConfig, add addFunc) {
	// allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		add("server.port", config.Port, "port %d is not in valid range 0-65535", config.Port)
	}

	if strings.ContainsAny(config.Host, ";&|$`()<>\"'\\ /") {
		add("server.host", config.Host, "host contains invalid characters")
	}

	switch strings.ToLower(config.Environment) {
	case "development", "production":
	default:
		add("server.environment", config.Environment, "must be development or production")
	}

	if config.ShutdownTimeout <= 0 {
		add("server.shutdown_timeout", config.ShutdownTimeout, "must be positive")
	}
}

func validateLocalesConfig(config *LocalesConfig, add addFunc) {
	if len(config.Supported) == 0 {
		add("locales.supported", config.Supported, "at least one locale is required")
	}

	if !cookieNamePattern.MatchString(config.CookieName) {
		add("locales.cookie_name", config.CookieName, "not a valid cookie name")
	}

	switch config.RedirectStatus {
	case 301, 302, 303, 307, 308:
	default:
		add("locales.redirect_status", config.RedirectStatus, "must be one of 301, 302, 303, 307, 308")
	}

	for _, p := range config.APIPrefixes {
		validatePrefix("locales.api_prefixes", p, add)
	}
	for _, p := range config.BypassPrefixes {
		validatePrefix("locales.bypass_prefixes", p, add)
	}
}

func validatePrefix(field, prefix string, add addFunc) {
	if !strings.HasPrefix(prefix, "/") || prefix == "/" {
		add(field, prefix, "prefix %q must start with / and name a path", prefix)
		return
	}
	if strings.Contains(prefix, "..") || strings.ContainsAny(prefix, "?# ") {
		add(field, prefix, "prefix %q contains invalid characters", prefix)
	}
}

func validateDocumentConfig(config *DocumentConfig, add addFunc) {
	if config.Shell == "" {
		add("document.shell", config.Shell, "must not be empty")
	}
	if !identifierPattern.MatchString(config.StateVariable) {
		add("document.state_variable", config.StateVariable, "must be a JavaScript identifier")
	}
	if config.AssetBase != "" && !strings.HasPrefix(config.AssetBase, "/") &&
		!strings.HasPrefix(config.AssetBase, "http://") && !strings.HasPrefix(config.AssetBase, "https://") {
		add("document.asset_base", config.AssetBase, "must be an absolute path or URL")
	}
}

func validateLoggingConfig(config *LoggingConfig, add addFunc) {
	switch strings.ToLower(config.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level", config.Level, "unknown level %q", config.Level)
	}
	switch config.Format {
	case "json", "text":
	default:
		add("logging.format", config.Format, "must be json or text")
	}
}
