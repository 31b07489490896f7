package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/orchestrator"
)

type runFlags struct {
	kind     string
	priority string
	depends  []string
	repo     string
	timeout  time.Duration
	quiet    bool
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [flags] <description>",
		Short: "Submit a task and stream its lifecycle",
		Example: `  elite run --kind planning "Build a REST API for todo items"
  elite run --kind security --priority high "Audit the handlers package"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if f.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, f.timeout)
				defer cancel()
			}
			return runTask(ctx, g, f, req)
		},
	}
	cmd.Flags().StringVarP(&f.kind, "kind", "k", "planning", "task kind: planning, research, code-generation, testing, packaging, review, security, documentation")
	cmd.Flags().StringVarP(&f.priority, "priority", "p", string(core.PriorityMedium), "low, medium, high or critical")
	cmd.Flags().StringSliceVar(&f.depends, "depends", nil, "ids of tasks this task depends on")
	cmd.Flags().StringVar(&f.repo, "repo", "", "watch this directory as repository memory for the task")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "give up waiting after this long")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "print only the result")
	return cmd
}

func (f *runFlags) request(desc string) (orchestrator.SubmitRequest, error) {
	kind, err := core.ParseTaskKind(f.kind)
	if err != nil {
		return orchestrator.SubmitRequest{}, err
	}
	p := core.Priority(f.priority)
	if !p.Valid() {
		return orchestrator.SubmitRequest{}, fmt.Errorf("unknown priority %q", f.priority)
	}
	return orchestrator.SubmitRequest{
		Description:  desc,
		Kind:         kind,
		Priority:     p,
		Dependencies: f.depends,
	}, nil
}

func runTask(ctx context.Context, g *globalFlags, f *runFlags, req orchestrator.SubmitRequest) error {
	sys, err := g.system(ctx, false)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = sys.Close(closeCtx)
	}()

	if f.repo != "" {
		w, err := sys.WatchRepo("cli", f.repo)
		if err != nil {
			return err
		}
		defer w.Close()
		req.Context.RepoID = "cli"
	}
	req.Context.Environment.WorkingDir = sys.Config().Tools.WorkDir

	out := newPrinter(os.Stdout)
	if !f.quiet {
		sys.Orchestrator.SubscribeAll(orchestrator.ListenerFunc(out.event))
	}
	task, err := sys.Run(ctx, req)
	if err != nil {
		return err
	}
	out.result(task)
	if task.Status != core.TaskStatusCompleted {
		return fmt.Errorf("task %s %s", task.ID, task.Status)
	}
	return nil
}
