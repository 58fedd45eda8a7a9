package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskdoc/internal/app"
	"taskdoc/internal/document"
	"taskdoc/internal/editor"
	"taskdoc/internal/export"
	"taskdoc/internal/gitrepo"
	"taskdoc/internal/preview"
)

func newRenderCmd(a *App) *cobra.Command {
	var contentOnly bool
	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Print the preview markup for a document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, args)
			if err != nil {
				return err
			}
			out := preview.New(preview.Options{ShowContentOnlyTasks: contentOnly}).Render(doc)
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&contentOnly, "content-only-tasks", false, "Also show tasks that only hold tables or images")
	return cmd
}

func newExportCmd(a *App) *cobra.Command {
	var (
		format string
		title  string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export a document as html, msg, pdf or docx",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd, args)
			if err != nil {
				return err
			}
			cfg := a.config()
			exporter := export.NewService(export.Options{From: cfg.MailFrom, To: cfg.MailTo, Now: time.Now})
			result, err := exporter.Export(cmd.Context(), doc, export.Request{Format: f, Title: title})
			if err != nil {
				if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
					return fmt.Errorf("%w (install the converter or choose --format html)", err)
				}
				return err
			}
			if output == "." {
				output = result.Filename
			}
			if err := writeOutput(cmd, output, result.Data); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", output, len(result.Data))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "html", "Export format (html|msg|pdf|docx)")
	cmd.Flags().StringVar(&title, "title", "", "Title used for the page and the file name")
	cmd.Flags().StringVarP(&output, "output", "o", "", `Output file ("." uses the generated file name; default stdout)`)
	return cmd
}

// validationReport is what validate prints.
type validationReport struct {
	Valid  bool           `json:"valid"`
	Error  string         `json:"error,omitempty"`
	Stats  document.Stats `json:"stats"`
	NextID map[string]int `json:"nextId"`
}

func newValidateCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a document for duplicate or missing ids",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, args)
			if err != nil {
				return err
			}
			ids := document.NewAllocator()
			ids.Sync(doc)
			report := validationReport{Valid: true, Stats: doc.Stats(), NextID: map[string]int{}}
			for kind, n := range ids.Counters() {
				report.NextID[string(kind)] = n + 1
			}
			verr := doc.Validate()
			if verr != nil {
				report.Valid = false
				report.Error = verr.Error()
			}
			if err := writeJSON(cmd, a, report); err != nil {
				return err
			}
			if verr != nil {
				cmd.SilenceErrors = true
				return verr
			}
			return nil
		},
	}
	return cmd
}

func newCollectCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect [file]",
		Short: "Read editor markup and print the document JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer r.Close()
			doc, err := editor.Collect(r)
			if err != nil {
				return fmt.Errorf("parse markup: %w", err)
			}
			return writeJSON(cmd, a, doc)
		},
	}
	return cmd
}

func newPopulateCmd(a *App) *cobra.Command {
	var page bool
	cmd := &cobra.Command{
		Use:   "populate [file]",
		Short: "Print the editor markup for a document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, args)
			if err != nil {
				return err
			}
			if page {
				return editor.Page(cmd.OutOrStdout(), editor.PageData{Document: doc})
			}
			return editor.PopulateTo(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().BoolVar(&page, "page", false, "Wrap the markup in the full editor page")
	return cmd
}

func newHistoryCmd(a *App) *cobra.Command {
	var (
		limit int
		show  string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved versions of the document, or print one with --show",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			repo := gitrepo.New(cfg.HistoryDir)
			if strings.TrimSpace(show) != "" {
				doc, _, err := repo.DocumentAt(app.HistoryName, show)
				if err != nil {
					return err
				}
				return writeJSON(cmd, a, doc)
			}
			commits, err := repo.History(app.HistoryName, limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd, a, commits)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of versions")
	cmd.Flags().StringVar(&show, "show", "", "Print the document saved in this version")
	return cmd
}
