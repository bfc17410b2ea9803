// Package config provides configuration management for slotter using Viper
// for loading from files, environment variables, and command-line flags.
//
// Configuration is read from .slotter.yml (or the file named by --config or
// SLOTTER_CONFIG_FILE) with SLOTTER_ environment overrides. It holds the
// template defaults applied to documents, the preview server settings, file
// watching, and logging.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/slotter/internal/logging"
	"github.com/conneroisu/slotter/internal/pattern"
	"github.com/conneroisu/slotter/pkg/template"
)

// EnvPrefix prefixes environment overrides, e.g. SLOTTER_SERVER_PORT.
const EnvPrefix = "SLOTTER"

type Config struct {
	Template TemplateConfig `mapstructure:"template" yaml:"template"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	// Document is the page document served or rendered.
	Document string `mapstructure:"document" yaml:"document"`
}

// TemplateConfig holds defaults for props a document leaves unset.
type TemplateConfig struct {
	As              string `mapstructure:"as" yaml:"as"`
	DefaultValueTag string `mapstructure:"default_value_tag" yaml:"default_value_tag"`
	ValuePattern    string `mapstructure:"value_pattern" yaml:"value_pattern"`
	EscapeValues    bool   `mapstructure:"escape_values" yaml:"escape_values"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" yaml:"port"`
	Host            string        `mapstructure:"host" yaml:"host"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type WatchConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Debounce   time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Extensions []string      `mapstructure:"extensions" yaml:"extensions"`
}

type LogConfig struct {
	Level     string `mapstructure:"level" yaml:"level"`
	Format    string `mapstructure:"format" yaml:"format"`
	AddSource bool   `mapstructure:"add_source" yaml:"add_source"`
}

// SetDefaults registers the default values on the global viper instance.
func SetDefaults() {
	viper.SetDefault("template.as", template.DefaultAs)
	viper.SetDefault("template.default_value_tag", template.DefaultValueTag)
	viper.SetDefault("template.value_pattern", pattern.DefaultExpr)
	viper.SetDefault("template.escape_values", true)

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.allowed_origins", []string{})

	viper.SetDefault("watch.enabled", true)
	viper.SetDefault("watch.debounce", 100*time.Millisecond)
	viper.SetDefault("watch.extensions", []string{".yml", ".yaml", ".html"})

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.add_source", false)

	// Registered so SLOTTER_DOCUMENT is seen by Unmarshal.
	viper.SetDefault("document", "")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	SetDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Allowed origins may come from the environment as one comma separated value
	if len(config.Server.AllowedOrigins) == 1 && strings.Contains(config.Server.AllowedOrigins[0], ",") {
		config.Server.AllowedOrigins = splitList(config.Server.AllowedOrigins[0])
	}
	if len(config.Watch.Extensions) == 1 && strings.Contains(config.Watch.Extensions[0], ",") {
		config.Watch.Extensions = splitList(config.Watch.Extensions[0])
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Apply fills the props a document left empty.
func (c TemplateConfig) Apply(props *template.Props) {
	if props.As == "" {
		props.As = c.As
	}
	if props.DefaultValueTag == "" {
		props.DefaultValueTag = c.DefaultValueTag
	}
	if props.ValuePattern == "" && props.ValueRegexp == nil {
		props.ValuePattern = c.ValuePattern
	}
}

// LoggerConfig converts the log section for logging.NewLogger.
func (c LogConfig) LoggerConfig() (*logging.LoggerConfig, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = c.Format
	cfg.AddSource = c.AddSource
	return cfg, nil
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateTemplateConfig(&config.Template); err != nil {
		return fmt.Errorf("template config: %w", err)
	}
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateWatchConfig(&config.Watch); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	if config.Document != "" {
		if err := validatePath(config.Document); err != nil {
			return fmt.Errorf("invalid document path '%s': %w", config.Document, err)
		}
	}
	return nil
}

func validateTemplateConfig(config *TemplateConfig) error {
	props := template.Props{
		As:              config.As,
		DefaultValueTag: config.DefaultValueTag,
		ValuePattern:    config.ValuePattern,
	}
	return props.Validate()
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Validate port range (allow 0 for system-assigned ports in testing)
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	for _, origin := range config.AllowedOrigins {
		if origin == "*" {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("allowed origin %q must be an http(s) origin", origin)
		}
	}

	if config.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must not be negative")
	}
	return nil
}

func validateWatchConfig(config *WatchConfig) error {
	if config.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative")
	}
	for _, ext := range config.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	return nil
}

func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return err
	}
	switch config.Format {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q", config.Format)
	}
}

// validatePath validates a file path for security
func validatePath(path string) error {
	cleanPath := filepath.Clean(path)

	// Reject path traversal attempts
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
