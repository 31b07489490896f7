package core

// FileContext is a file snapshot attached to a task.
type FileContext struct {
	Path     string `json:"path"`
	Content  string `json:"content,omitempty"`
	Language string `json:"language,omitempty"`
	Modified bool   `json:"modified,omitempty"`
}

// Environment captures facts about where the task runs.
type Environment struct {
	OS             string   `json:"os,omitempty"`
	WorkingDir     string   `json:"working_dir,omitempty"`
	AvailableTools []string `json:"available_tools,omitempty"`
}

// TaskContext is the context snapshot supplied at submission and refreshed by
// the memory manager as steps complete. Readers receive copies.
type TaskContext struct {
	Files       []FileContext     `json:"files,omitempty"`
	Environment Environment       `json:"environment"`
	RepoID      string            `json:"repo_id,omitempty"`
	MemoryRefs  []string          `json:"memory_refs,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Clone deep copies the context.
func (c TaskContext) Clone() TaskContext {
	cp := c
	cp.Files = append([]FileContext(nil), c.Files...)
	cp.Environment.AvailableTools = append([]string(nil), c.Environment.AvailableTools...)
	cp.MemoryRefs = append([]string(nil), c.MemoryRefs...)
	if c.Metadata != nil {
		cp.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}

// File returns the file snapshot at path, if present.
func (c TaskContext) File(path string) (FileContext, bool) {
	for _, f := range c.Files {
		if f.Path == path {
			return f, true
		}
	}
	return FileContext{}, false
}
