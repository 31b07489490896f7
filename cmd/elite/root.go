package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	eliteagent "github.com/achintir-projects/elite-ai-agent"
	"github.com/achintir-projects/elite-ai-agent/config"
)

type globalFlags struct {
	configPath string
	envFile    string
	workDir    string
	outDir     string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "elite",
		Short: "Multi-agent task orchestration engine",
		Long: `elite schedules software tasks (planning, research, code generation,
testing, packaging, review, security scanning, documentation) onto
specialized agents backed by a model router, a tool registry and a
memory manager.

Configuration is read from ~/.config/elite/config.yaml, then elite.yaml in
the project, then ELITE_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		Version:       eliteagent.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(g.envFile)
		},
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "project config file (default: search for elite.yaml)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", "", "dotenv file loaded before configuration (default: .env)")
	root.PersistentFlags().StringVar(&g.workDir, "work-dir", "", "override tools.work_dir")
	root.PersistentFlags().StringVarP(&g.outDir, "out", "o", "", "write generated artifacts below this directory (overrides store.artifacts_dir)")

	root.AddCommand(newRunCmd(g), newToolsCmd(g), newModelsCmd(g), newConfigCmd(g))
	return root
}

// loadEnvFile loads path into the environment. With no path the default .env
// is loaded if present; an explicit path must exist.
func loadEnvFile(path string) error {
	if path == "" {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if g.workDir != "" {
		cfg.Tools.WorkDir = g.workDir
	}
	if g.outDir != "" {
		cfg.Store.ArtifactsDir = g.outDir
	}
	return cfg, nil
}

// system builds a System from the loaded configuration.
func (g *globalFlags) system(ctx context.Context, skipAgents bool) (*eliteagent.System, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	return eliteagent.New(ctx, func(o *eliteagent.Options) {
		o.Config = cfg
		o.SkipAgents = skipAgents
	})
}
