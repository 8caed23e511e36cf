// Package config provides configuration management for demosnippet using
// Viper for loading from files, environment variables, and command-line
// flags.
//
// The configuration system supports YAML files, environment variable
// overrides with the DEMOSNIPPET_ prefix, defaults and validation. It covers
// the preview server, the demo project being viewed, highlighting, file
// watching and logging.
package config

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/viper"

	terrors "github.com/web-padawan/demosnippet/internal/errors"
	"github.com/web-padawan/demosnippet/internal/fetch"
	"github.com/web-padawan/demosnippet/internal/validation"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "DEMOSNIPPET"

// DefaultConfigFile is looked up in the working directory.
const DefaultConfigFile = ".demosnippet.yml"

// Defaults for unset durations.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultDebounce = 300 * time.Millisecond
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server" json:"server"`
	Project   ProjectConfig   `mapstructure:"project" yaml:"project" json:"project"`
	Highlight HighlightConfig `mapstructure:"highlight" yaml:"highlight" json:"highlight"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch" json:"watch"`
	Log       LogConfig       `mapstructure:"log" yaml:"log" json:"log"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port" json:"port"`
	Host           string   `mapstructure:"host" yaml:"host" json:"host"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
}

// ProjectConfig selects the demo. Paths are slash-separated and relative to
// Root, or to BaseURL when that is set.
type ProjectConfig struct {
	Root        string        `mapstructure:"root" yaml:"root" json:"root"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url" json:"base_url,omitempty"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Path        string        `mapstructure:"path" yaml:"path" json:"path"`
	Template    string        `mapstructure:"template" yaml:"template" json:"template"`
	Script      string        `mapstructure:"script" yaml:"script" json:"script,omitempty"`
	WhenDefined string        `mapstructure:"when_defined" yaml:"when_defined" json:"when_defined,omitempty"`
	ImportScope string        `mapstructure:"import_scope" yaml:"import_scope" json:"import_scope"`
}

type HighlightConfig struct {
	Style string `mapstructure:"style" yaml:"style" json:"style"`
}

type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
	Ignore   []string      `mapstructure:"ignore" yaml:"ignore" json:"ignore"`
}

// DefaultIgnore lists the glob patterns the watcher skips when watch.ignore is unset.
var DefaultIgnore = []string{"**/node_modules/**", "**/.git/**", "**/*~", "**/*.swp"}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Load reads the configuration from viper, applies defaults and validates it.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, terrors.WrapConfig(err, terrors.ErrCodeConfigInvalid, "failed to parse configuration")
	}

	applyDefaults(&config)

	// Validate configuration values
	if err := validateConfig(&config); err != nil {
		return nil, terrors.WrapConfig(err, terrors.ErrCodeConfigInvalid, "invalid configuration")
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if !viper.IsSet("server.port") && config.Server.Port == 0 {
		config.Server.Port = 8080
	}

	// Handle allowed origins set via viper (workaround for viper slice handling)
	if viper.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = viper.GetStringSlice("server.allowed_origins")
	}

	if config.Project.Root == "" {
		config.Project.Root = "."
	}
	if config.Project.Timeout <= 0 {
		config.Project.Timeout = DefaultTimeout
	}
	if config.Project.Template == "" && config.Project.Path != "" {
		config.Project.Template = path.Join(config.Project.Path, "index.html")
	}
	if !viper.IsSet("project.import_scope") {
		config.Project.ImportScope = "@vaadin"
	}

	if config.Highlight.Style == "" {
		config.Highlight.Style = "github"
	}

	if !viper.IsSet("watch.enabled") {
		config.Watch.Enabled = true
	}
	if config.Watch.Debounce <= 0 {
		config.Watch.Debounce = DefaultDebounce
	}
	if !viper.IsSet("watch.ignore") {
		config.Watch.Ignore = append([]string(nil), DefaultIgnore...)
	} else if len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = viper.GetStringSlice("watch.ignore")
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateProjectConfig(&config.Project); err != nil {
		return fmt.Errorf("project config: %w", err)
	}

	for _, pattern := range config.Watch.Ignore {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("watch config: invalid ignore pattern %q: %w", pattern, err)
		}
	}

	switch config.Log.Format {
	case "text", "json":
	default:
		return terrors.NewConfigError(terrors.ErrCodeConfigInvalid, fmt.Sprintf("log config: unknown format %q", config.Log.Format))
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Validate port range (allow 0 for system-assigned ports in testing)
	if config.Port < 0 || config.Port > 65535 {
		return terrors.NewFieldValidationError("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port))
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			return terrors.NewFieldValidationError("server.host", config.Host,
				fmt.Sprintf("host %q: %v", config.Host, err))
		}
	}

	for _, origin := range config.AllowedOrigins {
		if err := validation.ValidateOrigin(origin); err != nil {
			return terrors.NewFieldValidationError("server.allowed_origins", origin,
				fmt.Sprintf("allowed origin %q: %v", origin, err))
		}
	}

	return nil
}

func validateProjectConfig(config *ProjectConfig) error {
	if err := validateRoot(config.Root); err != nil {
		return terrors.NewFieldValidationError("project.root", config.Root,
			fmt.Sprintf("invalid root '%s': %v", config.Root, err))
	}

	if config.BaseURL != "" {
		if err := validation.ValidateURL(config.BaseURL); err != nil {
			return terrors.NewFieldValidationError("project.base_url", config.BaseURL,
				fmt.Sprintf("base_url %q: %v", config.BaseURL, err))
		}
	}

	for _, f := range []struct{ field, value string }{
		{"path", config.Path},
		{"template", config.Template},
		{"script", config.Script},
	} {
		if f.value == "" {
			continue
		}
		if _, err := fetch.CleanPath(f.value); err != nil {
			return terrors.NewFieldValidationError("project."+f.field, f.value,
				fmt.Sprintf("invalid %s '%s': %v", f.field, f.value, err))
		}
	}

	if strings.ContainsAny(config.WhenDefined, `'"<>\`) {
		return terrors.NewFieldValidationError("project.when_defined", config.WhenDefined,
			fmt.Sprintf("when_defined %q is not a valid element name", config.WhenDefined))
	}

	return nil
}

// validateRoot validates the project root directory for security
func validateRoot(root string) error {
	if root == "" {
		return fmt.Errorf("empty path")
	}

	// Reject dangerous characters
	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(root, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
