// Package cmd provides the command-line interface for demosnippet.
//
// Configuration System:
//
//	Settings are read from several sources, highest priority first:
//	1. Command-line flags (--port, --template, positional project path, ...)
//	2. DEMOSNIPPET_<SECTION>_<OPTION> environment variables
//	3. The file named by --config or DEMOSNIPPET_CONFIG_FILE
//	4. .demosnippet.yml in the working directory
//
// A .env file in the working directory is loaded before anything else, so
// environment overrides can live next to the project.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/web-padawan/demosnippet/internal/config"
	terrors "github.com/web-padawan/demosnippet/internal/errors"
	"github.com/web-padawan/demosnippet/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "demosnippet",
	Short: "Preview demo snippets with highlighted sources and a live template",
	Long: `demosnippet shows a demo project the way a documentation page would: every
file listed in the project's demo.json as a highlighted tab, and the demo
template rendered underneath with its companion script applied.

Quick Start:
  demosnippet serve demo/button-disabled     Serve a project with live reload
  demosnippet render demo/button-disabled    Write the page as static HTML
  demosnippet list demo/button-disabled      Show the manifest entries
  demosnippet config validate                Check .demosnippet.yml`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .demosnippet.yml, can also use DEMOSNIPPET_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system with support for multiple config sources.
func initConfig() {
	// Missing .env files are fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(config.DefaultConfigFile, ".yml"))
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Without a config file the defaults apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// bindFlags binds command flags to configuration keys. Commands bind in
// PreRunE so that commands sharing a key do not overwrite each other's
// bindings.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := flags.Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// projectFlags are shared by the commands that load a project.
var projectFlags = map[string]string{
	"root":         "project.root",
	"base-url":     "project.base_url",
	"template":     "project.template",
	"script":       "project.script",
	"when-defined": "project.when_defined",
	"import-scope": "project.import_scope",
	"style":        "highlight.style",
}

func addProjectFlags(cmd *cobra.Command) {
	cmd.Flags().String("root", ".", "Directory project paths are resolved against")
	cmd.Flags().String("base-url", "", "Fetch project files over HTTP from this URL instead of --root")
	cmd.Flags().StringP("template", "t", "", "Template path (default is <project>/index.html)")
	cmd.Flags().StringP("script", "s", "", "Companion script run against the rendered template")
	cmd.Flags().String("when-defined", "", "Custom element the demo script waits for")
	cmd.Flags().String("import-scope", "@vaadin", "Package scope import paths are shortened to")
	cmd.Flags().String("style", "github", "Highlight style")
}

// setProjectPath applies the positional project argument.
func setProjectPath(args []string) {
	if len(args) > 0 {
		viper.Set("project.path", args[0])
	}
}

// loadConfig loads the configuration, wrapping failures with suggestions.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		configPath := viper.ConfigFileUsed()
		if configPath == "" {
			configPath = config.DefaultConfigFile
		}
		return nil, terrors.NewEnhancedError(
			"Failed to load configuration",
			err,
			terrors.ConfigurationError(err.Error(), configPath),
		)
	}
	return cfg, nil
}

// newLogger builds the logger described by the log section.
func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	}), nil
}
