package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/achintir-projects/elite-ai-agent/core"
)

const tempPrefix = ".artifact-"

// DirStore writes artifacts to disk below a root directory.
type DirStore struct {
	root string
}

var _ core.ArtifactStore = (*DirStore)(nil)

// NewDirStore creates root if needed and returns a store over it.
func NewDirStore(root string) (*DirStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("artifact: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create root: %w", err)
	}
	return &DirStore{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *DirStore) Root() string { return s.root }

// Path returns where the artifact lives on disk.
func (s *DirStore) Path(taskID, p string) (string, error) {
	const op = "artifact.DirStore.Path"
	if err := validTaskID(op, taskID); err != nil {
		return "", err
	}
	clean, err := cleanPath(op, p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, taskID, filepath.FromSlash(clean)), nil
}

// Save writes the body, creating parent directories. The file is written to
// a temporary name and renamed into place.
func (s *DirStore) Save(taskID, p string, data []byte) error {
	target, err := s.Path(taskID, p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("artifact: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("artifact: create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("artifact: write %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("artifact: write %s: %w", p, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("artifact: rename %s: %w", p, err)
	}
	return nil
}

// Get reads the body.
func (s *DirStore) Get(taskID, p string) ([]byte, error) {
	target, err := s.Path(taskID, p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound("artifact.DirStore.Get", taskID, p)
	}
	return data, err
}

// List walks the task directory and returns slash-separated paths, sorted.
func (s *DirStore) List(taskID string) ([]string, error) {
	if err := validTaskID("artifact.DirStore.List", taskID); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, taskID)
	paths := []string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: list %s: %w", taskID, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Delete removes one artifact.
func (s *DirStore) Delete(taskID, p string) error {
	target, err := s.Path(taskID, p)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound("artifact.DirStore.Delete", taskID, p)
		}
		return err
	}
	return nil
}

// DeleteTask removes the task directory.
func (s *DirStore) DeleteTask(taskID string) error {
	if err := validTaskID("artifact.DirStore.DeleteTask", taskID); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.root, taskID))
}
