package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/web-padawan/demosnippet/internal/project"
	"github.com/web-padawan/demosnippet/internal/server"
)

var listCmd = &cobra.Command{
	Use:     "list [project-path]",
	Aliases: []string{"l"},
	Short:   "List the files of a demo project",
	Long: `List the entries of a project's demo.json after validation. Entries that
would be skipped by the viewer are reported separately.

Examples:
  demosnippet list demo/button-disabled             # Table output
  demosnippet list demo/button-disabled -f json     # Output as JSON
  demosnippet list demo/button-disabled --check     # Also fetch every file`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), projectFlags)
	},
	RunE: runList,
}

var (
	listFormat string
	listCheck  bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	addFormatFlag(listCmd, &listFormat, FormatTable, FormatTable, FormatJSON, FormatYAML)
	listCmd.Flags().BoolVarP(&listCheck, "check", "c", false, "Fetch every entry and report its size")
	addProjectFlags(listCmd)
}

// listedFile is one manifest entry in list output.
type listedFile struct {
	File       string `json:"file" yaml:"file"`
	Extension  string `json:"extension" yaml:"extension"`
	IsTemplate bool   `json:"isTemplate" yaml:"is_template"`
	Status     string `json:"status,omitempty" yaml:"status,omitempty"`
	Size       int    `json:"size,omitempty" yaml:"size,omitempty"`
}

// listing is the list output for one project.
type listing struct {
	Project     string       `json:"project" yaml:"project"`
	Title       string       `json:"title,omitempty" yaml:"title,omitempty"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Files       []listedFile `json:"files" yaml:"files"`
	Skipped     []string     `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	manifest, err := project.NewLoader(components.Fetcher, logger).LoadManifest(ctx, cfg.Project.Path)
	if err != nil {
		return err
	}

	out := listing{
		Project:     manifest.Dir,
		Title:       manifest.Title,
		Description: manifest.Description,
		Files:       make([]listedFile, 0, len(manifest.Entries)),
		Skipped:     manifest.Skipped,
	}
	for _, entry := range manifest.Entries {
		f := listedFile{
			File:       entry.Filename(),
			Extension:  string(entry.Extension),
			IsTemplate: entry.IsTemplate,
		}
		if listCheck {
			resp, err := components.Fetcher.Fetch(ctx, manifest.Dir+entry.Filename())
			switch {
			case err != nil:
				f.Status = "error: " + err.Error()
			case resp.StatusCode == http.StatusNotFound:
				f.Status = "missing"
			default:
				f.Status = "ok"
				f.Size = len(resp.Body)
			}
		}
		out.Files = append(out.Files, f)
	}

	w := cmd.OutOrStdout()
	switch strings.ToLower(listFormat) {
	case FormatJSON:
		return outputListJSON(w, out)
	case FormatYAML:
		return outputListYAML(w, out)
	case FormatTable:
		return outputListTable(w, out, listCheck)
	default:
		return fmt.Errorf("unsupported format: %s", listFormat)
	}
}

func outputListJSON(w io.Writer, out listing) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func outputListYAML(w io.Writer, out listing) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(out)
}

func outputListTable(w io.Writer, out listing, withStatus bool) error {
	if out.Title != "" {
		fmt.Fprintf(w, "%s (%s)\n\n", out.Title, out.Project)
	} else {
		fmt.Fprintf(w, "%s\n\n", out.Project)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if withStatus {
		fmt.Fprintln(tw, "FILE\tEXTENSION\tTEMPLATE\tSTATUS\tSIZE")
	} else {
		fmt.Fprintln(tw, "FILE\tEXTENSION\tTEMPLATE")
	}
	for _, f := range out.Files {
		template := ""
		if f.IsTemplate {
			template = "yes"
		}
		if withStatus {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", f.File, f.Extension, template, f.Status, f.Size)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", f.File, f.Extension, template)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(out.Skipped) > 0 {
		fmt.Fprintf(w, "\nSkipped: %s\n", strings.Join(out.Skipped, ", "))
	}
	return nil
}
