package agent

import "github.com/achintir-projects/elite-ai-agent/internal/util"

// render fills a prompt template. Templates are package constants, so a
// render error returns the raw template rather than failing the task.
func render(text string, data map[string]any) string {
	out, err := util.RenderTemplate(text, data)
	if err != nil {
		return text
	}
	return out
}
