package agent

import (
	"context"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/logging"
	"github.com/achintir-projects/elite-ai-agent/router"
	"github.com/achintir-projects/elite-ai-agent/tool"
)

// ModelClient generates text. *router.Router satisfies it.
type ModelClient interface {
	GenerateResponse(ctx context.Context, req router.Request) (*router.Response, error)
}

// ToolRunner executes registered tools. *tool.Registry satisfies it.
type ToolRunner interface {
	ExecuteTool(ctx context.Context, name string, args map[string]any) (*tool.Result, error)
}

var (
	_ ModelClient = (*router.Router)(nil)
	_ ToolRunner  = (*tool.Registry)(nil)
)

// Deps are the collaborators shared by every agent a Factory builds.
type Deps struct {
	Models ModelClient
	Tools  ToolRunner
	// Artifacts keeps generated file bodies; nil keeps only artifact metadata.
	Artifacts core.ArtifactStore
	Logger    logging.Logger
	// MaxModelCalls caps model calls per task execution; zero is unlimited.
	MaxModelCalls int
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logging.NoOpLogger{}
	}
	return d
}
