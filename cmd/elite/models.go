package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/achintir-projects/elite-ai-agent/model"
	"github.com/achintir-projects/elite-ai-agent/router"
)

func newModelsCmd(g *globalFlags) *cobra.Command {
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered models",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := g.system(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer sys.Close(cmd.Context())

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPROVIDER\tCAPABILITY\tCONTEXT\tSTREAMING\tCOST/TOKEN")
			for _, m := range sys.Router.Models() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%g\n", m.Name, m.Provider, m.Capability,
					m.MaxContextTokens, m.SupportsStreaming, m.CostPerToken)
			}
			return w.Flush()
		},
	}

	var stream bool
	recommend := &cobra.Command{
		Use:   "recommend <prompt>",
		Short: "Rank models for a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := g.system(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer sys.Close(cmd.Context())

			req := router.Request{
				Messages: []model.Message{{Role: model.RoleUser, Content: strings.Join(args, " ")}},
				Stream:   stream,
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tSCORE\tTOKENS\tCOST\tREASONS")
			for _, r := range sys.Router.GetModelRecommendations(req) {
				fmt.Fprintf(w, "%s\t%.0f\t%d\t%.6f\t%s\n", r.Model.Name, r.Score, r.EstimatedTokens,
					r.EstimatedCost, strings.Join(r.Reasons, "; "))
			}
			return w.Flush()
		},
	}
	recommend.Flags().BoolVar(&stream, "stream", false, "rank for a streaming request")

	health := &cobra.Command{
		Use:   "health [model]",
		Short: "Probe model health",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := g.system(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer sys.Close(cmd.Context())

			var statuses []router.HealthStatus
			if len(args) == 1 {
				st, err := sys.Router.CheckModelHealth(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				statuses = append(statuses, st)
			} else {
				statuses = sys.Router.CheckAllModels(cmd.Context())
			}
			unhealthy := 0
			for _, st := range statuses {
				if st.Healthy {
					fmt.Printf("%s %s (%s)\n", color.GreenString("healthy  "), st.Model, st.Latency.Round(1e6))
					continue
				}
				unhealthy++
				fmt.Printf("%s %s: %s\n", color.RedString("unhealthy"), st.Model, st.Error)
			}
			if unhealthy > 0 {
				return fmt.Errorf("%d model(s) unhealthy", unhealthy)
			}
			return nil
		},
	}

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect the model router",
		RunE:  list.RunE,
	}
	cmd.AddCommand(list, recommend, health)
	return cmd
}
