package memory

import (
	"maps"
	"time"

	"github.com/achintir-projects/elite-ai-agent/core"
)

// StepStatus is the state of one task step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Step is one unit of progress recorded against a task.
type Step struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Status      StepStatus        `json:"status"`
	Input       string            `json:"input,omitempty"`
	Output      string            `json:"output,omitempty"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at,omitempty"`
}

// StepUpdate patches a step. Zero fields are left untouched; Metadata merges.
type StepUpdate struct {
	Status   StepStatus
	Output   string
	Error    string
	Metadata map[string]string
}

// TaskMemory is the working memory of one task.
type TaskMemory struct {
	TaskID    string                      `json:"task_id"`
	Context   core.TaskContext            `json:"context"`
	Steps     []Step                      `json:"steps"`
	Results   map[string]*core.TaskResult `json:"results"`
	AuditLog  []core.AuditEntry           `json:"audit_log"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// Clone deep copies the memory.
func (m *TaskMemory) Clone() *TaskMemory {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Context = m.Context.Clone()
	cp.Steps = make([]Step, len(m.Steps))
	for i, s := range m.Steps {
		s.Metadata = maps.Clone(s.Metadata)
		cp.Steps[i] = s
	}
	cp.Results = make(map[string]*core.TaskResult, len(m.Results))
	for k, r := range m.Results {
		cp.Results[k] = r.Clone()
	}
	cp.AuditLog = append([]core.AuditEntry(nil), m.AuditLog...)
	return &cp
}

// TaskMemorySummary condenses a task memory for display and prompts.
type TaskMemorySummary struct {
	TaskID         string        `json:"task_id"`
	Steps          int           `json:"steps"`
	CompletedSteps int           `json:"completed_steps"`
	FailedSteps    int           `json:"failed_steps"`
	Results        int           `json:"results"`
	AuditEntries   int           `json:"audit_entries"`
	LastAction     string        `json:"last_action,omitempty"`
	Files          int           `json:"files"`
	Age            time.Duration `json:"age"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// FileSummary describes one repository file.
type FileSummary struct {
	Path     string    `json:"path"`
	Language string    `json:"language,omitempty"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
	Summary  string    `json:"summary,omitempty"`
}

// Symbol is a named declaration found in the repository.
type Symbol struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

func (s Symbol) key() string { return s.Path + "#" + s.Kind + ":" + s.Name }

// Dependency is a third-party package used by the repository.
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Source  string `json:"source,omitempty"`
}

// Commit summarizes one change in the repository history.
type Commit struct {
	Hash      string    `json:"hash"`
	Author    string    `json:"author,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RepoMemory is long-lived knowledge about a repository.
type RepoMemory struct {
	RepoID       string                 `json:"repo_id"`
	Root         string                 `json:"root,omitempty"`
	Structure    map[string]FileSummary `json:"structure"`
	Symbols      map[string]Symbol      `json:"symbols"`
	Dependencies map[string]Dependency  `json:"dependencies"`
	History      []Commit               `json:"history"`
	Metadata     map[string]string      `json:"metadata"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Clone deep copies the memory.
func (m *RepoMemory) Clone() *RepoMemory {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Structure = maps.Clone(m.Structure)
	cp.Symbols = maps.Clone(m.Symbols)
	cp.Dependencies = maps.Clone(m.Dependencies)
	cp.History = append([]Commit(nil), m.History...)
	cp.Metadata = maps.Clone(m.Metadata)
	return &cp
}

// Entry is one generic cache entry.
type Entry struct {
	Key         string    `json:"key"`
	Type        string    `json:"type"`
	Value       any       `json:"value"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	AccessCount int64     `json:"access_count"`
	LastAccess  time.Time `json:"last_access,omitempty"`
}

func (e *Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Stats reports memory usage.
type Stats struct {
	TaskMemories  int       `json:"task_memories"`
	RepoMemories  int       `json:"repo_memories"`
	CacheEntries  int       `json:"cache_entries"`
	VectorEntries int       `json:"vector_entries"`
	CacheHits     int64     `json:"cache_hits"`
	CacheMisses   int64     `json:"cache_misses"`
	Evictions     int64     `json:"evictions"`
	Sweeps        int64     `json:"sweeps"`
	LastSweep     time.Time `json:"last_sweep,omitempty"`
}

// SweepReport counts what one sweep evicted.
type SweepReport struct {
	Skipped      bool `json:"skipped"`
	TaskMemories int  `json:"task_memories"`
	RepoMemories int  `json:"repo_memories"`
	CacheEntries int  `json:"cache_entries"`
	Vectors      int  `json:"vectors"`
}

// Total is the number of evicted items.
func (r SweepReport) Total() int {
	return r.TaskMemories + r.RepoMemories + r.CacheEntries + r.Vectors
}
