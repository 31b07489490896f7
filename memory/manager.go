package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/logging"
	"github.com/achintir-projects/elite-ai-agent/store"
)

// Manager owns task memories, repo memories, the cache and the vector index.
// It is safe for concurrent use.
type Manager struct {
	opts  Options
	tasks core.Store[*TaskMemory]
	repos core.Store[*RepoMemory]
	index VectorIndex

	// Serialize read-modify-write cycles against the stores.
	taskMu sync.Mutex
	repoMu sync.Mutex

	cacheMu sync.Mutex
	cache   map[string]*Entry

	sweeping  atomic.Bool
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	sweeps    atomic.Int64
	lastSweep atomic.Int64

	loopMu sync.Mutex
	stop   chan struct{}
	done   chan struct{}
}

// New creates a Manager. Without explicit stores, task and repo memories live
// in process memory. With the vector store enabled and no explicit index, a
// Qdrant index is used when a URL is configured and a FlatIndex otherwise.
func New(optFns ...func(o *Options)) (*Manager, error) {
	opts := Options{
		Config: DefaultConfig(),
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TaskStore == nil {
		opts.TaskStore = store.NewInMemory(func(o *store.InMemoryOptions[*TaskMemory]) {
			o.Clone = (*TaskMemory).Clone
			o.Name = "task memory"
		})
	}
	if opts.RepoStore == nil {
		opts.RepoStore = store.NewInMemory(func(o *store.InMemoryOptions[*RepoMemory]) {
			o.Clone = (*RepoMemory).Clone
			o.Name = "repo memory"
		})
	}

	m := &Manager{
		opts:  opts,
		tasks: opts.TaskStore,
		repos: opts.RepoStore,
		index: opts.Index,
		cache: make(map[string]*Entry),
	}
	if opts.EnableVectorStore && m.index == nil {
		if opts.VectorStore.QdrantURL != "" {
			q, err := NewQdrantIndex(QdrantConfig{
				URL:        opts.VectorStore.QdrantURL,
				APIKey:     opts.VectorStore.QdrantAPIKey,
				Collection: opts.VectorStore.Collection,
				Dims:       uint64(opts.VectorStore.Dimension),
			}, opts.Logger)
			if err != nil {
				return nil, err
			}
			m.index = q
		} else {
			m.index = NewFlatIndex()
		}
	}
	return m, nil
}

func (m *Manager) now() time.Time { return m.opts.Now() }

// -------------------- Task memory --------------------

// CreateTaskMemory initializes an empty memory for taskID. Creating a memory
// that already exists is a CONFLICT.
func (m *Manager) CreateTaskMemory(taskID string, tc core.TaskContext) (*TaskMemory, error) {
	const op = "memory.CreateTaskMemory"
	if taskID == "" {
		return nil, core.NewValidationError(op, "task id is required")
	}
	m.taskMu.Lock()
	defer m.taskMu.Unlock()

	if _, err := m.tasks.Get(taskID); err == nil {
		return nil, &core.Error{Kind: core.KindConflict, Op: op, Message: fmt.Sprintf("task memory %q already exists", taskID)}
	}
	now := m.now()
	tm := &TaskMemory{
		TaskID:    taskID,
		Context:   tc.Clone(),
		Steps:     []Step{},
		Results:   map[string]*core.TaskResult{},
		AuditLog:  []core.AuditEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.tasks.Put(taskID, tm); err != nil {
		return nil, err
	}
	m.opts.Logger.Debug("memory.task.created", "task_id", taskID)
	return tm.Clone(), nil
}

// GetTaskMemory returns a snapshot of the task memory.
func (m *Manager) GetTaskMemory(taskID string) (*TaskMemory, error) {
	return m.tasks.Get(taskID)
}

// DeleteTaskMemory frees a task memory.
func (m *Manager) DeleteTaskMemory(taskID string) error {
	m.taskMu.Lock()
	defer m.taskMu.Unlock()
	return m.tasks.Delete(taskID)
}

func (m *Manager) mutateTask(taskID string, fn func(tm *TaskMemory) error) error {
	m.taskMu.Lock()
	defer m.taskMu.Unlock()

	tm, err := m.tasks.Get(taskID)
	if err != nil {
		return err
	}
	if err := fn(tm); err != nil {
		return err
	}
	tm.UpdatedAt = m.now()
	return m.tasks.Put(taskID, tm)
}

// UpdateTaskContext replaces the context snapshot.
func (m *Manager) UpdateTaskContext(taskID string, tc core.TaskContext) error {
	return m.mutateTask(taskID, func(tm *TaskMemory) error {
		tm.Context = tc.Clone()
		return nil
	})
}

// AddTaskStep appends a step and returns its id. A pending status is assumed
// when none is given.
func (m *Manager) AddTaskStep(taskID string, step Step) (string, error) {
	if step.ID == "" {
		step.ID = core.NewID()
	}
	if step.Status == "" {
		step.Status = StepPending
	}
	err := m.mutateTask(taskID, func(tm *TaskMemory) error {
		if step.StartedAt.IsZero() {
			step.StartedAt = m.now()
		}
		tm.Steps = append(tm.Steps, step)
		return nil
	})
	if err != nil {
		return "", err
	}
	return step.ID, nil
}

// UpdateTaskStep patches a step.
func (m *Manager) UpdateTaskStep(taskID, stepID string, u StepUpdate) error {
	return m.mutateTask(taskID, func(tm *TaskMemory) error {
		for i := range tm.Steps {
			s := &tm.Steps[i]
			if s.ID != stepID {
				continue
			}
			if u.Status != "" {
				s.Status = u.Status
				if u.Status == StepCompleted || u.Status == StepFailed {
					s.CompletedAt = m.now()
				}
			}
			if u.Output != "" {
				s.Output = u.Output
			}
			if u.Error != "" {
				s.Error = u.Error
			}
			if len(u.Metadata) > 0 {
				if s.Metadata == nil {
					s.Metadata = make(map[string]string, len(u.Metadata))
				}
				for k, v := range u.Metadata {
					s.Metadata[k] = v
				}
			}
			return nil
		}
		return core.NewNotFoundError("memory.UpdateTaskStep", "step", stepID)
	})
}

// StoreTaskResult keeps a result snapshot under key.
func (m *Manager) StoreTaskResult(taskID, key string, result *core.TaskResult) error {
	return m.mutateTask(taskID, func(tm *TaskMemory) error {
		tm.Results[key] = result.Clone()
		return nil
	})
}

// AddAuditEntry appends to the task's audit log.
func (m *Manager) AddAuditEntry(taskID string, entry core.AuditEntry) error {
	return m.mutateTask(taskID, func(tm *TaskMemory) error {
		tm.AuditLog = append(tm.AuditLog, entry)
		return nil
	})
}

// GetTaskMemorySummary condenses a task memory.
func (m *Manager) GetTaskMemorySummary(taskID string) (TaskMemorySummary, error) {
	tm, err := m.tasks.Get(taskID)
	if err != nil {
		return TaskMemorySummary{}, err
	}
	s := TaskMemorySummary{
		TaskID:       tm.TaskID,
		Steps:        len(tm.Steps),
		Results:      len(tm.Results),
		AuditEntries: len(tm.AuditLog),
		Files:        len(tm.Context.Files),
		Age:          m.now().Sub(tm.CreatedAt),
		UpdatedAt:    tm.UpdatedAt,
	}
	for _, st := range tm.Steps {
		switch st.Status {
		case StepCompleted:
			s.CompletedSteps++
		case StepFailed:
			s.FailedSteps++
		}
	}
	if n := len(tm.AuditLog); n > 0 {
		s.LastAction = tm.AuditLog[n-1].Action
	}
	return s, nil
}

// -------------------- Repo memory --------------------

// CreateRepoMemory returns the memory for repoID, creating it when absent.
func (m *Manager) CreateRepoMemory(repoID, root string) (*RepoMemory, error) {
	const op = "memory.CreateRepoMemory"
	if repoID == "" {
		return nil, core.NewValidationError(op, "repo id is required")
	}
	m.repoMu.Lock()
	defer m.repoMu.Unlock()

	if rm, err := m.repos.Get(repoID); err == nil {
		return rm, nil
	}
	now := m.now()
	rm := &RepoMemory{
		RepoID:       repoID,
		Root:         root,
		Structure:    map[string]FileSummary{},
		Symbols:      map[string]Symbol{},
		Dependencies: map[string]Dependency{},
		History:      []Commit{},
		Metadata:     map[string]string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.repos.Put(repoID, rm); err != nil {
		return nil, err
	}
	m.opts.Logger.Debug("memory.repo.created", "repo_id", repoID, "root", root)
	return rm.Clone(), nil
}

// GetRepoMemory returns a snapshot of the repo memory.
func (m *Manager) GetRepoMemory(repoID string) (*RepoMemory, error) {
	return m.repos.Get(repoID)
}

func (m *Manager) mutateRepo(repoID string, fn func(rm *RepoMemory)) error {
	m.repoMu.Lock()
	defer m.repoMu.Unlock()

	rm, err := m.repos.Get(repoID)
	if err != nil {
		return err
	}
	fn(rm)
	rm.UpdatedAt = m.now()
	return m.repos.Put(repoID, rm)
}

// UpdateRepoStructure merges file summaries by path.
func (m *Manager) UpdateRepoStructure(repoID string, files ...FileSummary) error {
	return m.mutateRepo(repoID, func(rm *RepoMemory) {
		for _, f := range files {
			rm.Structure[f.Path] = f
		}
	})
}

// RemoveRepoFiles drops deleted files together with their symbols.
func (m *Manager) RemoveRepoFiles(repoID string, paths ...string) error {
	return m.mutateRepo(repoID, func(rm *RepoMemory) {
		for _, p := range paths {
			delete(rm.Structure, p)
			for k, s := range rm.Symbols {
				if s.Path == p {
					delete(rm.Symbols, k)
				}
			}
		}
	})
}

// UpdateRepoSymbols merges symbols by path, kind and name.
func (m *Manager) UpdateRepoSymbols(repoID string, symbols ...Symbol) error {
	return m.mutateRepo(repoID, func(rm *RepoMemory) {
		for _, s := range symbols {
			rm.Symbols[s.key()] = s
		}
	})
}

// UpdateRepoDependencies merges dependencies by name.
func (m *Manager) UpdateRepoDependencies(repoID string, deps ...Dependency) error {
	return m.mutateRepo(repoID, func(rm *RepoMemory) {
		for _, d := range deps {
			rm.Dependencies[d.Name] = d
		}
	})
}

// UpdateRepoHistory appends commits not yet known by hash.
func (m *Manager) UpdateRepoHistory(repoID string, commits ...Commit) error {
	return m.mutateRepo(repoID, func(rm *RepoMemory) {
		known := make(map[string]bool, len(rm.History))
		for _, c := range rm.History {
			known[c.Hash] = true
		}
		for _, c := range commits {
			if !known[c.Hash] {
				rm.History = append(rm.History, c)
				known[c.Hash] = true
			}
		}
	})
}

// UpdateRepoMetadata merges metadata keys.
func (m *Manager) UpdateRepoMetadata(repoID string, md map[string]string) error {
	return m.mutateRepo(repoID, func(rm *RepoMemory) {
		for k, v := range md {
			rm.Metadata[k] = v
		}
	})
}

// -------------------- Cache --------------------

// Store caches value under key. A zero ttl uses Config.CacheTTL; a negative
// ttl never expires.
func (m *Manager) Store(key string, value any, typ string, ttl time.Duration) {
	now := m.now()
	e := &Entry{Key: key, Type: typ, Value: value, CreatedAt: now}
	if ttl == 0 {
		ttl = m.opts.CacheTTL
	}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	m.cacheMu.Lock()
	m.cache[key] = e
	m.cacheMu.Unlock()
}

// Retrieve returns the value under key if present, unexpired and of the
// given type (an empty type matches any). Expired entries are evicted.
func (m *Manager) Retrieve(key, typ string) (any, bool) {
	now := m.now()
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	e, ok := m.cache[key]
	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	if e.expired(now) {
		delete(m.cache, key)
		m.evictions.Add(1)
		m.misses.Add(1)
		return nil, false
	}
	if typ != "" && e.Type != typ {
		m.misses.Add(1)
		return nil, false
	}
	e.AccessCount++
	e.LastAccess = now
	m.hits.Add(1)
	return e.Value, true
}

// RetrieveAs is Retrieve with a typed result; a value of another Go type is
// treated as absent.
func RetrieveAs[T any](m *Manager, key, typ string) (T, bool) {
	var zero T
	v, ok := m.Retrieve(key, typ)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Forget removes a cache entry.
func (m *Manager) Forget(key string) {
	m.cacheMu.Lock()
	delete(m.cache, key)
	m.cacheMu.Unlock()
}

// -------------------- Vector store --------------------

// AddToVectorStore indexes vector under key.
func (m *Manager) AddToVectorStore(ctx context.Context, key string, vector []float32, metadata map[string]string) error {
	const op = "memory.AddToVectorStore"
	if m.index == nil {
		return core.NewConfigurationError(op, "vector store is disabled")
	}
	if key == "" {
		return core.NewValidationError(op, "key is required")
	}
	if d := m.opts.VectorStore.Dimension; d > 0 && len(vector) != d {
		return core.NewValidationError(op, fmt.Sprintf("vector has %d dimensions, want %d", len(vector), d))
	}
	return m.index.Upsert(ctx, VectorEntry{Key: key, Vector: vector, Metadata: metadata, CreatedAt: m.now()})
}

// SearchVectorStore returns up to k entries at or above the similarity
// threshold, most similar first.
func (m *Manager) SearchVectorStore(ctx context.Context, query []float32, k int) ([]VectorMatch, error) {
	const op = "memory.SearchVectorStore"
	if m.index == nil {
		return nil, core.NewConfigurationError(op, "vector store is disabled")
	}
	if d := m.opts.VectorStore.Dimension; d > 0 && len(query) != d {
		return nil, core.NewValidationError(op, fmt.Sprintf("query has %d dimensions, want %d", len(query), d))
	}
	if k <= 0 {
		k = 10
	}
	return m.index.Search(ctx, query, k, m.opts.VectorStore.SimilarityThreshold)
}

// -------------------- Stats & lifecycle --------------------

// GetMemoryStats reports current usage and counters.
func (m *Manager) GetMemoryStats(ctx context.Context) (Stats, error) {
	tasks, err := m.tasks.List()
	if err != nil {
		return Stats{}, err
	}
	repos, err := m.repos.List()
	if err != nil {
		return Stats{}, err
	}
	m.cacheMu.Lock()
	cacheLen := len(m.cache)
	m.cacheMu.Unlock()

	s := Stats{
		TaskMemories: len(tasks),
		RepoMemories: len(repos),
		CacheEntries: cacheLen,
		CacheHits:    m.hits.Load(),
		CacheMisses:  m.misses.Load(),
		Evictions:    m.evictions.Load(),
		Sweeps:       m.sweeps.Load(),
	}
	if ts := m.lastSweep.Load(); ts > 0 {
		s.LastSweep = time.Unix(0, ts)
	}
	if m.index != nil {
		n, err := m.index.Len(ctx)
		if err != nil {
			return s, err
		}
		s.VectorEntries = n
	}
	return s, nil
}

// Start runs the sweep every SweepInterval until Stop or ctx is done.
func (m *Manager) Start(ctx context.Context) {
	if m.opts.SweepInterval <= 0 {
		return
	}
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		t := time.NewTicker(m.opts.SweepInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if _, err := m.Sweep(ctx); err != nil {
					m.opts.Logger.Warn("memory.sweep.failed", "error", err)
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}(m.stop, m.done)
}

// Stop halts the sweep loop and closes the vector index.
func (m *Manager) Stop() error {
	m.loopMu.Lock()
	if m.stop != nil {
		close(m.stop)
		<-m.done
		m.stop, m.done = nil, nil
	}
	m.loopMu.Unlock()

	if m.index != nil {
		return m.index.Close()
	}
	return nil
}
