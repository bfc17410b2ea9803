package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/conneroisu/slotter/internal/registry"
)

var componentsCmd = &cobra.Command{
	Use:     "components",
	Aliases: []string{"ls"},
	Short:   "List the components documents can use",
	Args:    cobra.NoArgs,
	RunE:    runComponents,
}

type componentEntry struct {
	Name        string                   `json:"name" yaml:"name"`
	Description string                   `json:"description,omitempty" yaml:"description,omitempty"`
	Stateful    bool                     `json:"stateful" yaml:"stateful"`
	Parameters  []registry.ParameterInfo `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

func init() {
	rootCmd.AddCommand(componentsCmd)

	componentsCmd.Flags().StringP("format", "f", "table", "Output format (table, json, yaml)")
}

func runComponents(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")

	var entries []componentEntry
	for _, c := range newRegistry().GetAll() {
		entries = append(entries, componentEntry{
			Name:        c.Name,
			Description: c.Description,
			Stateful:    c.Stateful,
			Parameters:  c.Parameters,
		})
	}

	w := cmd.OutOrStdout()
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	case "yaml":
		return yaml.NewEncoder(w).Encode(entries)
	case "table":
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", format)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATEFUL\tPARAMETERS\tDESCRIPTION")
	for _, e := range entries {
		params := make([]string, 0, len(e.Parameters))
		for _, p := range e.Parameters {
			name := p.Name
			if p.Optional {
				name += "?"
			}
			params = append(params, name)
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", e.Name, e.Stateful, strings.Join(params, ","), e.Description)
	}
	return tw.Flush()
}
