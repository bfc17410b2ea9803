package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/conneroisu/slotter/internal/document"
	"github.com/conneroisu/slotter/internal/dom"
	"github.com/conneroisu/slotter/internal/portal"
	"github.com/conneroisu/slotter/pkg/template"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [document]",
	Short: "Run a live pass and report mount points and mounts",
	Long: `Run a document through the live path and report the scope, mount point
keys and projected mounts. Events may be dispatched to stateful content before
a second pass, which shows which mount points were recycled.

Examples:
  slotter inspect page.yml
  slotter inspect page.yml --event counter:1=click --event counter:1=click
  slotter inspect page.yml --format yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

// InspectReport is the result of inspect.
type InspectReport struct {
	Document string       `json:"document" yaml:"document"`
	Scope    string       `json:"scope" yaml:"scope"`
	Hosts    int          `json:"hosts" yaml:"hosts"`
	Keys     []string     `json:"keys" yaml:"keys"`
	Reused   []string     `json:"reused,omitempty" yaml:"reused,omitempty"`
	Fresh    []string     `json:"fresh,omitempty" yaml:"fresh,omitempty"`
	Dropped  []string     `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	Mounts   []MountEntry `json:"mounts" yaml:"mounts"`
	HTML     string       `json:"html,omitempty" yaml:"html,omitempty"`
}

// MountEntry describes one mount in an InspectReport.
type MountEntry struct {
	Key         string         `json:"key" yaml:"key"`
	Tag         string         `json:"tag" yaml:"tag"`
	Renders     int            `json:"renders" yaml:"renders"`
	Interactive bool           `json:"interactive" yaml:"interactive"`
	State       map[string]any `json:"state,omitempty" yaml:"state,omitempty"`
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringP("format", "f", "text", "Output format (text, json, yaml)")
	inspectCmd.Flags().StringArrayP("event", "e", nil, "Dispatch key=event before a second pass (repeatable)")
	inspectCmd.Flags().Bool("html", false, "Include the container HTML")
}

func runInspect(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	events, _ := cmd.Flags().GetStringArray("event")
	withHTML, _ := cmd.Flags().GetBool("html")
	switch format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", format)
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

	ctx := contextOf(cmd)
	tmpl := template.New(template.EnvLive, template.WithLogger(logger))
	defer tmpl.Close(ctx)

	out, err := tmpl.Update(ctx, props)
	if err != nil {
		return err
	}

	if len(events) > 0 {
		for _, e := range events {
			key, event, ok := strings.Cut(e, "=")
			if !ok || key == "" || event == "" {
				return fmt.Errorf("invalid event %q: want key=event", e)
			}
			if err := tmpl.Dispatch(ctx, key, event); err != nil {
				return err
			}
		}
		if out, err = tmpl.Update(ctx, props); err != nil {
			return err
		}
	}

	changes := tmpl.LastChanges()
	report := InspectReport{
		Document: cfg.Document,
		Scope:    tmpl.ScopeID(),
		Hosts:    out.Hosts,
		Keys:     tmpl.Keys(),
		Reused:   changes.Reused,
		Fresh:    changes.Fresh,
		Dropped:  changes.Dropped,
		Mounts:   mountEntries(tmpl.Mounts()),
	}
	if withHTML {
		if report.HTML, err = tmpl.HTML(); err != nil {
			return err
		}
	}

	return writeInspect(cmd.OutOrStdout(), format, report)
}

func mountEntries(mounts []*portal.Mount) []MountEntry {
	entries := make([]MountEntry, 0, len(mounts))
	for _, m := range mounts {
		_, interactive := m.Content.(portal.Handler)
		entries = append(entries, MountEntry{
			Key:         m.Key,
			Tag:         dom.Tag(m.Node),
			Renders:     m.Renders,
			Interactive: interactive,
			State:       m.State,
		})
	}
	return entries
}

func writeInspect(w io.Writer, format string, report InspectReport) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "yaml":
		return yaml.NewEncoder(w).Encode(report)
	}

	fmt.Fprintf(w, "Document: %s\n", report.Document)
	scope := report.Scope
	if scope == "" {
		scope = "(none)"
	}
	fmt.Fprintf(w, "Scope:    %s\n", scope)
	fmt.Fprintf(w, "Hosts:    %d\n", report.Hosts)
	if len(report.Reused)+len(report.Fresh)+len(report.Dropped) > 0 {
		fmt.Fprintf(w, "Reused:   %s\n", strings.Join(report.Reused, ", "))
		fmt.Fprintf(w, "Fresh:    %s\n", strings.Join(report.Fresh, ", "))
		fmt.Fprintf(w, "Dropped:  %s\n", strings.Join(report.Dropped, ", "))
	}

	if len(report.Mounts) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tTAG\tRENDERS\tINTERACTIVE\tSTATE")
		for _, m := range report.Mounts {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n", m.Key, m.Tag, m.Renders, m.Interactive, formatState(m.State))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if report.HTML != "" {
		fmt.Fprintf(w, "\n%s\n", report.HTML)
	}
	return nil
}

func formatState(state map[string]any) string {
	if len(state) == 0 {
		return "-"
	}
	data, err := json.Marshal(state)
	if err != nil {
		return "?"
	}
	return string(data)
}
