package artifact

import (
	"bytes"
	"sort"
	"sync"

	"github.com/achintir-projects/elite-ai-agent/core"
)

// InMemoryStore is an in-process core.ArtifactStore. Bodies are copied on the
// way in and out.
type InMemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]map[string][]byte
}

var _ core.ArtifactStore = (*InMemoryStore)(nil)

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tasks: make(map[string]map[string][]byte)}
}

// Save stores or overwrites the body at path for the task.
func (s *InMemoryStore) Save(taskID, p string, data []byte) error {
	const op = "artifact.InMemoryStore.Save"
	if err := validTaskID(op, taskID); err != nil {
		return err
	}
	p, err := cleanPath(op, p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	files, ok := s.tasks[taskID]
	if !ok {
		files = make(map[string][]byte)
		s.tasks[taskID] = files
	}
	files[p] = bytes.Clone(data)
	return nil
}

// Get returns a copy of the body.
func (s *InMemoryStore) Get(taskID, p string) ([]byte, error) {
	const op = "artifact.InMemoryStore.Get"
	p, err := cleanPath(op, p)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.tasks[taskID][p]
	if !ok {
		return nil, notFound(op, taskID, p)
	}
	return bytes.Clone(data), nil
}

// List returns the task's artifact paths, sorted.
func (s *InMemoryStore) List(taskID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := s.tasks[taskID]
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// Delete removes one artifact.
func (s *InMemoryStore) Delete(taskID, p string) error {
	const op = "artifact.InMemoryStore.Delete"
	p, err := cleanPath(op, p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	files := s.tasks[taskID]
	if _, ok := files[p]; !ok {
		return notFound(op, taskID, p)
	}
	delete(files, p)
	if len(files) == 0 {
		delete(s.tasks, taskID)
	}
	return nil
}

// DeleteTask drops every artifact of the task.
func (s *InMemoryStore) DeleteTask(taskID string) {
	s.mu.Lock()
	delete(s.tasks, taskID)
	s.mu.Unlock()
}
