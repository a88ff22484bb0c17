package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hfinfer/pkg/model/registry"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the model table and task mapping",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().String("type", "", "only list models of this type: text, image")
	modelsCmd.Flags().Bool("tasks", false, "list the pipeline tag to type mapping instead")
	modelsCmd.Flags().String("format", "table", "output format: table, json, yaml")
}

func runModels(cmd *cobra.Command, _ []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	if tasks, _ := cmd.Flags().GetBool("tasks"); tasks {
		m := reg.Tasks()
		if format != "table" {
			return encode(out, format, m)
		}
		names := make([]string, 0, len(m))
		for k := range m {
			names = append(names, k)
		}
		sort.Strings(names)

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "TASK\tTYPE")
		for _, n := range names {
			_, _ = fmt.Fprintf(tw, "%s\t%s\n", n, m[n])
		}
		return tw.Flush()
	}

	var opts []registry.ListOption
	if typ, _ := cmd.Flags().GetString("type"); typ != "" {
		t, err := registry.ParseType(typ)
		if err != nil {
			return err
		}
		opts = append(opts, registry.WithType(t))
	}
	entries := reg.List(opts...)
	if format != "table" {
		return encode(out, format, entries)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "MODEL\tTYPE\tPAYLOAD\tURL")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Type, e.Style(), e.URL)
	}
	return tw.Flush()
}
