package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newToolsCmd(g *globalFlags) *cobra.Command {
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := g.system(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer sys.Close(cmd.Context())

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tCATEGORY\tDESCRIPTION")
			for _, t := range sys.Tools.GetToolConfigs() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.Kind, t.Category, t.Description)
			}
			return w.Flush()
		},
	}
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tool registry",
		RunE:  list.RunE,
	}
	cmd.AddCommand(list)
	return cmd
}
