package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/artpar/cmskit/domain/field"
	"github.com/spf13/cobra"
)

var fieldTypesCmd = &cobra.Command{
	Use:   "field-types",
	Short: "List the supported custom field types",
	Long: `List every custom field type with its value shape, editor widget and
the options it accepts. Required options are marked with *.

Examples:
  cmskit field-types
  cmskit field-types --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printFieldTypes(cmd.OutOrStdout(), fieldTypesJSON)
	},
}

var fieldTypesJSON bool

func init() {
	rootCmd.AddCommand(fieldTypesCmd)

	fieldTypesCmd.Flags().BoolVar(&fieldTypesJSON, "json", false, "print the type table as JSON")
}

func printFieldTypes(out io.Writer, asJSON bool) error {
	specs := field.Specs()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(specs)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tLABEL\tSHAPE\tWIDGET\tOPTIONS")
	fmt.Fprintln(w, "----\t-----\t-----\t------\t-------")
	for _, s := range specs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Type, s.Label, s.Shape, s.Widget, optionList(s))
	}
	return w.Flush()
}

func optionList(s field.TypeSpec) string {
	if len(s.Options) == 0 {
		return "-"
	}
	required := map[field.OptionKey]bool{}
	for _, k := range s.RequiredOptions {
		required[k] = true
	}
	names := make([]string, 0, len(s.Options))
	for _, k := range s.Options {
		name := string(k)
		if required[k] {
			name += "*"
		}
		names = append(names, name)
	}
	return strings.Join(names, ",")
}
