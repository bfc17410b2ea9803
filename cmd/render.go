package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/conneroisu/slotter/internal/document"
	"github.com/conneroisu/slotter/pkg/template"
)

var renderCmd = &cobra.Command{
	Use:   "render [document]",
	Short: "Render a document once on the static path",
	Long: `Render a page document to HTML. Components are rendered in place,
no mount points are kept.

Examples:
  slotter render page.yml
  slotter render page.yml --output page.html
  slotter render page.yml --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

// RenderResult is the json and yaml output of render.
type RenderResult struct {
	Document string `json:"document" yaml:"document"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	HTML     string `json:"html" yaml:"html"`
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("format", "f", "html", "Output format (html, json, yaml)")
	renderCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	renderCmd.Flags().Bool("escape", true, "Escape literal values a document does not configure")
}

func runRender(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	switch format {
	case "html", "json", "yaml":
	default:
		return fmt.Errorf("unsupported format: %s (supported: html, json, yaml)", format)
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	doc, err := document.Load(cfg.Document)
	if err != nil {
		return err
	}
	props, err := doc.PropsWith(newRegistry(), cfg.Template)
	if err != nil {
		return err
	}

	markup, err := template.Static(contextOf(cmd), props, template.WithLogger(logger))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return writeRender(w, format, RenderResult{Document: cfg.Document, Title: doc.Title, HTML: markup})
}

func writeRender(w io.Writer, format string, result RenderResult) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case "yaml":
		return yaml.NewEncoder(w).Encode(result)
	default:
		_, err := fmt.Fprintln(w, result.HTML)
		return err
	}
}
