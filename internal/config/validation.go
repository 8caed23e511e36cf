package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/web-padawan/demosnippet/internal/fetch"
	"github.com/web-padawan/demosnippet/internal/logging"
	"github.com/web-padawan/demosnippet/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    - %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    - %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

// ValidateConfigWithDetails performs validation with detailed feedback. On
// top of the checks done by Load it warns about project files that do not
// exist on disk.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateServerConfigDetails(&config.Server, result)
	validateProjectConfigDetails(&config.Project, result)
	validateLogConfigDetails(&config.Log, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Value:   config.Port,
			Message: fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			Suggestions: []string{
				"Use a port between 1024-65535 for non-privileged access",
				"Use 0 to let the system pick a free port",
			},
		})
	} else if config.Port > 0 && config.Port < 1024 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:       "server.port",
			Value:       config.Port,
			Message:     fmt.Sprintf("port %d is privileged", config.Port),
			Suggestions: []string{"Use a port above 1024 unless running as root"},
		})
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:       "server.host",
				Value:       config.Host,
				Message:     err.Error(),
				Suggestions: []string{"Use localhost, an IP address or a plain hostname"},
			})
		}
	}

	for _, origin := range config.AllowedOrigins {
		if err := validation.ValidateOrigin(origin); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:       "server.allowed_origins",
				Value:       origin,
				Message:     err.Error(),
				Suggestions: []string{"Origins look like https://docs.example.com or http://localhost:3000"},
			})
		}
	}
}

func validateProjectConfigDetails(config *ProjectConfig, result *ValidationResult) {
	if err := validateRoot(config.Root); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "project.root",
			Value:   config.Root,
			Message: err.Error(),
		})
		return
	}

	if config.BaseURL != "" {
		if err := validation.ValidateURL(config.BaseURL); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:       "project.base_url",
				Value:       config.BaseURL,
				Message:     err.Error(),
				Suggestions: []string{"Use an http or https URL such as https://cdn.example.com/demos/"},
			})
		}
	}

	if config.Path == "" {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:       "project.path",
			Message:     "no project selected, the viewer shows an empty index",
			Suggestions: []string{"Pass the project directory as an argument or set project.path"},
		})
	}

	for _, f := range []struct{ field, value string }{
		{"project.path", config.Path},
		{"project.template", config.Template},
		{"project.script", config.Script},
	} {
		if f.value == "" {
			continue
		}
		name, err := fetch.CleanPath(f.value)
		if err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:       f.field,
				Value:       f.value,
				Message:     err.Error(),
				Suggestions: []string{"Use a path relative to project.root without '..' segments"},
			})
			continue
		}
		if config.BaseURL == "" && !pathExists(filepath.Join(config.Root, filepath.FromSlash(name))) {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   f.field,
				Value:   f.value,
				Message: fmt.Sprintf("%s does not exist under %s", f.value, config.Root),
			})
		}
	}

	if config.Path != "" && config.BaseURL == "" {
		manifest := filepath.Join(config.Root, filepath.FromSlash(config.Path), "demo.json")
		if !pathExists(manifest) {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:       "project.path",
				Value:       config.Path,
				Message:     "project has no demo.json manifest",
				Suggestions: []string{`Create demo.json with {"files": {"index.html": {}}}`},
			})
		}
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log.level",
			Value:       config.Level,
			Message:     err.Error(),
			Suggestions: []string{"Use one of debug, info, warn, error"},
		})
	}
	if config.Format != "text" && config.Format != "json" {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log.format",
			Value:       config.Format,
			Message:     fmt.Sprintf("unknown format %q", config.Format),
			Suggestions: []string{"Use text or json"},
		})
	}
}

// Helper validation functions

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateHostname(host string) error {
	// Check for dangerous characters
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	// Check if it's a valid IP address
	if net.ParseIP(host) != nil {
		return nil
	}

	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
