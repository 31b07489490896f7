package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/achintir-projects/elite-ai-agent/config"
)

func newConfigCmd(g *globalFlags) *cobra.Command {
	var validateOnly bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging defaults, the user config
(` + config.UserConfigDir() + `/config.yaml), the project config and the
environment. API keys are redacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if validateOnly {
				fmt.Println("configuration is valid")
				return nil
			}
			out, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&validateOnly, "validate", false, "only validate the configuration")
	return cmd
}
