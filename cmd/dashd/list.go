package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed dashboards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.bootstrap(cmd.Context()); err != nil {
				return err
			}
			defer a.sync()
			descs := a.svc.Dashboards()
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(descs)
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tPLUGIN\tTITLE\tCONTROLS\tSOURCE")
			for _, d := range descs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Key, d.Plugin, d.Title, strings.Join(d.Controls, ","), d.Source)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print descriptors as JSON")
	return cmd
}
