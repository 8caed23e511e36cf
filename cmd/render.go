package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	terrors "github.com/web-padawan/demosnippet/internal/errors"
	"github.com/web-padawan/demosnippet/internal/render"
	"github.com/web-padawan/demosnippet/internal/server"
)

var renderOutput string

var renderCmd = &cobra.Command{
	Use:   "render [project-path]",
	Short: "Render a demo project to a static HTML page",
	Long: `Load a demo project once and write the resulting page as HTML. The page
has the same tabs, panels and demo output as the preview server, without
live reload.

Examples:
  demosnippet render demo/button-disabled                # Write to stdout
  demosnippet render demo/button-disabled -o out.html    # Write to a file`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), projectFlags)
	},
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Output file (default stdout)")
	addProjectFlags(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	setProjectPath(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	components, err := server.NewComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Viewer.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Project.Timeout)
	defer cancel()

	components.Viewer.Render(ctx)
	view, err := components.Viewer.Wait(ctx)
	if err != nil {
		return fmt.Errorf("project did not load within %s: %w", cfg.Project.Timeout, err)
	}

	if snippets, _ := view.Snippets.Value(); snippets != nil && snippets.Project != nil && snippets.Project.Err != nil {
		logger.Warn(ctx, snippets.Project.Err, "Project fell back to the empty index", "project", cfg.Project.Path)
		fmt.Fprint(cmd.ErrOrStderr(), terrors.FormatSuggestions("Project could not be loaded", terrors.ProjectLoadError(cfg.Project.Path)))
	}

	var w io.Writer = cmd.OutOrStdout()
	if renderOutput != "" {
		if err := os.MkdirAll(filepath.Dir(renderOutput), 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		f, err := os.Create(renderOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := components.Renderer.Render(ctx, w, view, render.PageOptions{}); err != nil {
		return terrors.WrapInternal(err, terrors.ErrCodeInternalError, "failed to render page")
	}

	if renderOutput != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", renderOutput)
	}
	return nil
}
