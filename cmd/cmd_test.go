package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/web-padawan/demosnippet/internal/config"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetContext(context.Background())
	return cmd, out
}

// writeDemo creates demo/button under a temp root and points the
// configuration at it.
func writeDemo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"demo/button/demo.json": `{
  "title": "Disabled button",
  "files": {"index.html": {"isTemplate": true}, "button.js": {}, "notes.txt": {}}
}`,
		"demo/button/index.html": `<vaadin-button disabled>Click</vaadin-button>`,
		"demo/button/button.js":  `import '@vaadin/button';`,
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	viper.Set("project.root", root)
	viper.Set("watch.enabled", false)
	viper.Set("log.level", "error")
	return root
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldDir) })
}

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"serve", "render", "list", "config", "version"} {
		assert.True(t, names[name], "missing command %s", name)
	}
}

func TestListTable(t *testing.T) {
	resetViper(t)
	writeDemo(t)
	listFormat, listCheck = FormatTable, true
	t.Cleanup(func() { listFormat, listCheck = FormatTable, false })

	cmd, out := testCommand()
	require.NoError(t, runList(cmd, []string{"demo/button"}))

	output := out.String()
	assert.Contains(t, output, "Disabled button (demo/button/)")
	assert.Contains(t, output, "index.html")
	assert.Contains(t, output, "button.js")
	assert.Contains(t, output, "Skipped: notes.txt")
	assert.Contains(t, output, "ok")
}

func TestListJSON(t *testing.T) {
	resetViper(t)
	writeDemo(t)
	listFormat = FormatJSON
	t.Cleanup(func() { listFormat = FormatTable })

	cmd, out := testCommand()
	require.NoError(t, runList(cmd, []string{"demo/button"}))

	var got listing
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "demo/button/", got.Project)
	require.Len(t, got.Files, 2)
	assert.Equal(t, "index.html", got.Files[0].File)
	assert.True(t, got.Files[0].IsTemplate)
	assert.Equal(t, "button.js", got.Files[1].File)
	assert.Equal(t, []string{"notes.txt"}, got.Skipped)
}

func TestListMissingProject(t *testing.T) {
	resetViper(t)
	writeDemo(t)

	cmd, _ := testCommand()
	assert.Error(t, runList(cmd, []string{"demo/missing"}))
}

func TestRenderToFile(t *testing.T) {
	resetViper(t)
	writeDemo(t)
	output := filepath.Join(t.TempDir(), "site", "button.html")
	renderOutput = output
	t.Cleanup(func() { renderOutput = "" })

	cmd, _ := testCommand()
	require.NoError(t, runRender(cmd, []string{"demo/button"}))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	page := string(data)
	assert.Contains(t, page, "Disabled button")
	assert.Contains(t, page, "Click</vaadin-button>")
	assert.NotContains(t, page, "data-ws=")
}

func TestRenderStdout(t *testing.T) {
	resetViper(t)
	writeDemo(t)

	cmd, out := testCommand()
	require.NoError(t, runRender(cmd, []string{"demo/button"}))
	assert.True(t, strings.HasPrefix(out.String(), "<!DOCTYPE html>"))
	assert.Contains(t, out.String(), "<title>Disabled button</title>")
}

func TestRenderShippedDemo(t *testing.T) {
	resetViper(t)
	viper.Set("project.root", "..")
	viper.Set("project.script", "demo/button-disabled/button-disabled.lua")
	viper.Set("project.when_defined", "vaadin-button")
	viper.Set("log.level", "error")

	cmd, out := testCommand()
	require.NoError(t, runRender(cmd, []string{"demo/button-disabled"}))

	page := out.String()
	assert.Contains(t, page, "<title>Disabled button</title>")
	assert.Contains(t, page, "<strong>disabled</strong>")
	assert.Contains(t, page, `<vaadin-button disabled="">Button</vaadin-button>`)
	assert.Contains(t, page, "whenDefined")
}

func TestConfigInitAndValidate(t *testing.T) {
	resetViper(t)
	chdir(t, t.TempDir())

	configOutput, configForce, configFile = config.DefaultConfigFile, false, ""
	t.Cleanup(func() { configOutput, configForce, configStrict = config.DefaultConfigFile, false, false })

	cmd, out := testCommand()
	require.NoError(t, runConfigInit(cmd, []string{"demo/button"}))
	assert.FileExists(t, config.DefaultConfigFile)
	assert.Contains(t, out.String(), "Wrote "+config.DefaultConfigFile)

	data, err := os.ReadFile(config.DefaultConfigFile)
	require.NoError(t, err)
	var written config.Config
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Equal(t, "demo/button/index.html", written.Project.Template)

	// A second init without --force refuses to overwrite.
	assert.Error(t, runConfigInit(cmd, nil))

	// The project does not exist, which is a warning.
	cmd, out = testCommand()
	require.NoError(t, runConfigValidate(cmd, nil))
	assert.Contains(t, out.String(), "warnings")

	configStrict = true
	cmd, _ = testCommand()
	assert.Error(t, runConfigValidate(cmd, nil))
}

func TestConfigValidateErrors(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  port: 70000\nlog:\n  level: loud\n"), 0o644))

	configFile = file
	t.Cleanup(func() { configFile = "" })

	cmd, out := testCommand()
	err := runConfigValidate(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "errors")
	assert.Contains(t, out.String(), "server.port")
}

func TestConfigValidateMissingFile(t *testing.T) {
	resetViper(t)
	chdir(t, t.TempDir())
	configFile = ""

	cmd, _ := testCommand()
	err := runConfigValidate(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config init")
}

func TestConfigShowJSON(t *testing.T) {
	resetViper(t)
	viper.Set("project.path", "demo/button")
	configFormat = FormatJSON
	t.Cleanup(func() { configFormat = FormatYAML })

	cmd, out := testCommand()
	require.NoError(t, runConfigShow(cmd, nil))

	var got config.Config
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "demo/button/index.html", got.Project.Template)
	assert.Equal(t, 8080, got.Server.Port)
	assert.Equal(t, config.DefaultIgnore, got.Watch.Ignore)
}

func TestConfigShowYAML(t *testing.T) {
	resetViper(t)
	configFormat = FormatYAML

	cmd, out := testCommand()
	require.NoError(t, runConfigShow(cmd, nil))
	assert.Contains(t, out.String(), "highlight:")
	assert.Contains(t, out.String(), "style: github")
}

func TestVersionFormats(t *testing.T) {
	t.Cleanup(func() { versionFormat, versionShort, versionDetailed = FormatText, false, false })

	versionFormat = FormatText
	cmd, out := testCommand()
	require.NoError(t, runVersionCommand(cmd, nil))
	assert.True(t, strings.HasPrefix(out.String(), "demosnippet "))
	assert.Contains(t, out.String(), "Platform: ")

	versionDetailed = true
	cmd, out = testCommand()
	require.NoError(t, runVersionCommand(cmd, nil))
	assert.Contains(t, out.String(), "Build type: ")

	versionFormat = FormatJSON
	cmd, out = testCommand()
	require.NoError(t, runVersionCommand(cmd, nil))
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "is_release")
}

func TestValidateFormat(t *testing.T) {
	formats := []string{FormatTable, FormatJSON}
	assert.NoError(t, ValidateFormat("json", formats))
	assert.NoError(t, ValidateFormat("JSON", formats))

	err := ValidateFormat("csv", formats)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table, json")
}

func TestFormatFlagValidation(t *testing.T) {
	var format string
	c := &cobra.Command{Use: "x"}
	addFormatFlag(c, &format, FormatTable, FormatTable, FormatYAML)

	assert.Equal(t, FormatTable, format)
	assert.NoError(t, c.Flags().Set("format", "yaml"))
	assert.Equal(t, FormatYAML, format)
	assert.Error(t, c.Flags().Set("format", "xml"))
	assert.Equal(t, FormatYAML, format)
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"8080", false},
		{"1", false},
		{"65535", false},
		{"0", true},
		{"65536", true},
		{"http", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := ValidatePort(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBindFlags(t *testing.T) {
	resetViper(t)
	c := &cobra.Command{Use: "x"}
	addProjectFlags(c)
	require.NoError(t, bindFlags(c.Flags(), projectFlags))
	require.NoError(t, c.Flags().Set("template", "demo/x/page.html"))
	assert.Equal(t, "demo/x/page.html", viper.GetString("project.template"))

	assert.Error(t, bindFlags(c.Flags(), map[string]string{"nope": "x.y"}))
}
