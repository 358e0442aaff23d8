package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scadform/scadform/internal/params"
	"github.com/scadform/scadform/internal/types"
)

var paramsCmd = &cobra.Command{
	Use:   "params <file.scad>",
	Short: "Show a model's customizable parameters",
	Long: `Extract and print the customizable parameters of an OpenSCAD source
file: every annotated top-level assignment above the first module or
function, with its section, type, current value and constraints.`,
	Args: cobra.ExactArgs(1),
	RunE: runParams,
}

func init() {
	rootCmd.AddCommand(paramsCmd)

	paramsCmd.Flags().Bool("json", false, "Emit descriptors as JSON")
}

func runParams(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	descriptors := params.Extract(string(source))

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(descriptors)
	}

	if len(descriptors) == 0 {
		fmt.Println("No customizable parameters found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSECTION\tTYPE\tVALUE\tCONSTRAINT\tDESCRIPTION")
	for _, d := range descriptors {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Name, d.Section, d.Type,
			params.FormatValue(d.Value, d.Type),
			constraint(d), d.Description)
	}
	return w.Flush()
}

func constraint(d types.ParameterDescriptor) string {
	switch {
	case d.HasRange():
		if d.Step != nil {
			return fmt.Sprintf("[%g:%g:%g]", *d.Min, *d.Step, *d.Max)
		}
		return fmt.Sprintf("[%g:%g]", *d.Min, *d.Max)
	case len(d.Options) > 0:
		opts := make([]string, len(d.Options))
		for i, opt := range d.Options {
			opts[i] = fmt.Sprintf("%v", opt)
		}
		return "[" + strings.Join(opts, ", ") + "]"
	default:
		return ""
	}
}
