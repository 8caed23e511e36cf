package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	terrors "github.com/web-padawan/demosnippet/internal/errors"
	"github.com/web-padawan/demosnippet/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve [project-path]",
	Short: "Start the preview server with live reload",
	Long: `Start the preview server for a demo project. The page shows every file
of the project's demo.json as a highlighted tab and renders the demo
template below it. Changes to the project files reload open pages.

Examples:
  demosnippet serve demo/button-disabled                 # Serve a project
  demosnippet serve demo/button-disabled -p 3000         # Serve on port 3000
  demosnippet serve demo/button -s demo/button/app.lua   # Run a companion script
  demosnippet serve demo/button --base-url https://cdn.example.com/demos/`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), serveFlags)
	},
	RunE: runServe,
}

var serveFlags = map[string]string{
	"port":     "server.port",
	"host":     "server.host",
	"no-watch": "watch.disabled",
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("no-watch", false, "Don't reload when project files change")
	addProjectFlags(serveCmd)

	AddFlagValidation(serveCmd, "port", ValidatePort)

	for flag, key := range projectFlags {
		serveFlags[flag] = key
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	setProjectPath(args)
	if viper.GetBool("watch.disabled") {
		viper.Set("watch.enabled", false)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		return terrors.NewEnhancedError(
			"Failed to create preview server",
			err,
			terrors.ProjectLoadError(cfg.Project.Path),
		)
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		logger.Info(ctx, "Shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error(ctx, shutdownErr, "Error during server shutdown")
		}

		cancel()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at http://%s:%d\n",
		displayProject(cfg.Project.Path), cfg.Server.Host, cfg.Server.Port)

	if err := srv.Start(ctx); err != nil {
		if strings.Contains(err.Error(), "address already in use") || strings.Contains(err.Error(), "bind") {
			return terrors.NewEnhancedError(
				fmt.Sprintf("Failed to start server on port %d", cfg.Server.Port),
				err,
				terrors.ServerStartError(err, cfg.Server.Port),
			)
		}
		return err
	}

	return nil
}

func displayProject(p string) string {
	if p == "" {
		return "the project root"
	}
	return p
}
