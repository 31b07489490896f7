package artifact

import (
	"path"
	"strings"

	"github.com/achintir-projects/elite-ai-agent/core"
)

func notFound(op, taskID, p string) error {
	return core.NewNotFoundError(op, "artifact", taskID+"/"+p)
}

// cleanPath normalizes an artifact path and rejects absolute paths and paths
// escaping the task scope.
func cleanPath(op, p string) (string, error) {
	if p == "" {
		return "", core.NewValidationError(op, "artifact path is empty")
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "/") {
		return "", core.NewValidationError(op, "artifact path must be relative", p)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", core.NewValidationError(op, "artifact path escapes the task directory", p)
	}
	return clean, nil
}

func validTaskID(op, taskID string) error {
	if taskID == "" || strings.ContainsAny(taskID, `/\`) || taskID == "." || taskID == ".." {
		return core.NewValidationError(op, "invalid task id", taskID)
	}
	return nil
}
