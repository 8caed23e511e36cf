package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/web-padawan/demosnippet/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage demosnippet configuration",
	Long: `Manage demosnippet configuration files and settings.

Examples:
  demosnippet config init                          # Write a starter .demosnippet.yml
  demosnippet config validate                      # Validate current configuration
  demosnippet config validate --file custom.yml    # Validate a specific file
  demosnippet config show -f json                  # Show resolved configuration`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [project-path]",
	Short: "Write a starter configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a demosnippet configuration file.

This command checks for:
- Valid port ranges and hostnames
- Project, template and script paths inside the project root
- Known highlight styles and log settings
- Watch ignore patterns that compile`,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE:  runConfigShow,
}

var (
	configFile   string
	configOutput string
	configStrict bool
	configFormat string
	configForce  bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configValidateCmd, configShowCmd)

	configInitCmd.Flags().StringVarP(&configOutput, "output", "o", config.DefaultConfigFile, "File to write")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")

	configValidateCmd.Flags().StringVar(&configFile, "file", "", "Configuration file to validate (default is .demosnippet.yml)")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "Treat warnings as errors")

	addFormatFlag(configShowCmd, &configFormat, FormatYAML, FormatYAML, FormatJSON)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configOutput); err == nil && !configForce {
		return fmt.Errorf("%s already exists, use --force to overwrite it", configOutput)
	}

	projectPath := "demo/button-disabled"
	if len(args) > 0 {
		projectPath = args[0]
	}

	cfg := starterConfig(projectPath)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	header := "# demosnippet configuration\n# Values can be overridden with DEMOSNIPPET_<SECTION>_<OPTION> environment variables.\n\n"
	if err := os.WriteFile(configOutput, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", configOutput, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configOutput)
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'demosnippet serve' to preview %s\n", projectPath)
	return nil
}

func starterConfig(projectPath string) *config.Config {
	projectPath = strings.TrimSuffix(projectPath, "/")
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, Host: "localhost"},
		Project: config.ProjectConfig{
			Root:        ".",
			Timeout:     config.DefaultTimeout,
			Path:        projectPath,
			Template:    projectPath + "/index.html",
			ImportScope: "@vaadin",
		},
		Highlight: config.HighlightConfig{Style: "github"},
		Watch: config.WatchConfig{
			Enabled:  true,
			Debounce: config.DefaultDebounce,
			Ignore:   append([]string(nil), config.DefaultIgnore...),
		},
		Log: config.LogConfig{Level: "info", Format: "text"},
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	targetFile := configFile
	if targetFile == "" {
		if _, err := os.Stat(config.DefaultConfigFile); err != nil {
			return errors.New("no configuration file found. Use --file to specify a config file " +
				"or run 'demosnippet config init' to create one")
		}
		targetFile = config.DefaultConfigFile
	}

	if _, err := os.Stat(targetFile); os.IsNotExist(err) {
		return fmt.Errorf("configuration file %s does not exist", targetFile)
	}

	fmt.Fprintf(out, "Validating configuration file: %s\n", targetFile)

	v := viper.New()
	v.SetConfigFile(targetFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	validation := config.ValidateConfigWithDetails(&cfg)

	if validation.Valid && !validation.HasWarnings() {
		fmt.Fprintln(out, "Configuration is valid.")
		return nil
	}

	fmt.Fprint(out, validation.String())

	if validation.HasErrors() {
		return fmt.Errorf("configuration validation failed with %d errors", len(validation.Errors))
	}

	if configStrict {
		return fmt.Errorf(
			"configuration validation failed in strict mode with %d warnings",
			len(validation.Warnings),
		)
	}

	fmt.Fprintf(out, "Configuration is valid with %d warnings. Use --strict to treat warnings as errors.\n",
		len(validation.Warnings))
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	switch strings.ToLower(configFormat) {
	case FormatYAML:
		return showConfigYAML(cmd.OutOrStdout(), cfg)
	case FormatJSON:
		return showConfigJSON(cmd.OutOrStdout(), cfg)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", configFormat)
	}
}

func showConfigYAML(w io.Writer, cfg *config.Config) error {
	fmt.Fprintln(w, "# Resolved from all sources (file, env vars, defaults)")
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(cfg)
}

func showConfigJSON(w io.Writer, cfg *config.Config) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg)
}
