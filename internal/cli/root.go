package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"taskdoc/internal/config"
	"taskdoc/internal/document"
	"taskdoc/internal/logging"
)

type App struct {
	PrettyJSON bool
	LogLevel   string
	LogFormat  string
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "taskdoc",
		Short:        "Task document editor server and tools",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the editor on :8888
  taskdoc serve

  # Render a saved document the way the preview pane shows it
  taskdoc render data/task_data.json > preview.html

  # Export to Word
  taskdoc export --format docx --title "Week 12" data/task_data.json
`),
	}

	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&app.LogFormat, "log-format", "", "Log format json|console (overrides LOG_FORMAT)")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newRenderCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newValidateCmd(app))
	cmd.AddCommand(newCollectCmd(app))
	cmd.AddCommand(newPopulateCmd(app))
	cmd.AddCommand(newHistoryCmd(app))

	return cmd
}

func (a *App) config() config.Config {
	cfg := config.Load()
	if a.LogLevel != "" {
		cfg.LogLevel = a.LogLevel
	}
	if a.LogFormat != "" {
		cfg.LogFormat = a.LogFormat
	}
	return cfg
}

func (a *App) logger(cmd *cobra.Command, cfg config.Config) zerolog.Logger {
	return logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: cmd.ErrOrStderr(),
	})
}

// openInput reads the named file, or stdin for "" and "-".
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "" || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, err
	}
	return f, nil
}

func readDocument(cmd *cobra.Command, args []string) (*document.Document, error) {
	r, err := openInput(cmd, args)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	doc, err := document.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return doc, nil
}

func writeJSON(cmd *cobra.Command, app *App, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	if app.PrettyJSON {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
