package tool

import "time"

// DefaultConfigs returns the tools every registry starts with. web_search is
// included only when withModel is set since it needs a completer.
func DefaultConfigs(withModel bool) []Config {
	cfgs := []Config{
		{
			Name:        "file_read",
			Description: "Read a file from the working directory",
			Category:    CategoryFile,
			Kind:        KindBuiltin,
			Timeout:     10 * time.Second,
			Retryable:   true,
			Parameters: []Parameter{
				{Name: "path", Type: TypeString, Required: true, Description: "File path relative to the working directory"},
			},
		},
		{
			Name:        "file_write",
			Description: "Write content to a file in the working directory, creating parent directories",
			Category:    CategoryFile,
			Kind:        KindBuiltin,
			Timeout:     10 * time.Second,
			Parameters: []Parameter{
				{Name: "path", Type: TypeString, Required: true, Rules: &Rules{Min: float(1)}},
				{Name: "content", Type: TypeString, Required: true},
			},
		},
		{
			Name:        "list_files",
			Description: "List files under a directory",
			Category:    CategoryFile,
			Kind:        KindBuiltin,
			Timeout:     10 * time.Second,
			Retryable:   true,
			Parameters: []Parameter{
				{Name: "path", Type: TypeString},
				{Name: "pattern", Type: TypeString, Description: "Glob matched against file names"},
				{Name: "recursive", Type: TypeBoolean},
			},
		},
		{
			Name:        "shell_exec",
			Description: "Run a shell command",
			Category:    CategoryShell,
			Kind:        KindBuiltin,
			Timeout:     2 * time.Minute,
			Parameters: []Parameter{
				{Name: "command", Type: TypeString, Required: true, Rules: &Rules{Min: float(1)}},
				{Name: "cwd", Type: TypeString, Description: "Working directory relative to the registry root"},
				{Name: "env", Type: TypeObject, Description: "Extra environment variables"},
			},
		},
		{
			Name:        "secret_scan",
			Description: "Scan content or files for hard-coded credentials",
			Category:    CategorySecurity,
			Kind:        KindBuiltin,
			Timeout:     time.Minute,
			Retryable:   true,
			Parameters: []Parameter{
				{Name: "content", Type: TypeString},
				{Name: "path", Type: TypeString},
			},
		},
		{
			Name:        "go_vet",
			Description: "Run go vet on a package pattern",
			Category:    CategoryAnalysis,
			Kind:        KindExternal,
			Timeout:     5 * time.Minute,
			Command:     "go",
			Args:        []string{"vet", `{{default "./..." .package}}`},
			Parameters: []Parameter{
				{Name: "package", Type: TypeString, Rules: &Rules{Pattern: `^[\w./-]+$`}},
			},
		},
	}
	if withModel {
		cfgs = append(cfgs, Config{
			Name:        "web_search",
			Description: "Answer a research query using the model",
			Category:    CategorySearch,
			Kind:        KindModel,
			Timeout:     2 * time.Minute,
			Retryable:   true,
			Prompt: "Search your knowledge for the following query and summarize the {{default 5 .max_results}} " +
				"most relevant findings as a bulleted list with sources where known.\n\nQuery: {{.query}}",
			Parameters: []Parameter{
				{Name: "query", Type: TypeString, Required: true, Rules: &Rules{Min: float(1)}},
				{Name: "max_results", Type: TypeInteger, Rules: &Rules{Min: float(1), Max: float(10)}},
			},
		})
	}
	return cfgs
}
