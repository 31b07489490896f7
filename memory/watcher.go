package memory

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/achintir-projects/elite-ai-agent/internal/util"
)

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

func skipDir(name string) bool {
	return skipDirs[name] || (strings.HasPrefix(name, ".") && name != ".")
}

// RepoWatcher keeps a repo memory's structure in sync with a directory tree.
type RepoWatcher struct {
	m      *Manager
	repoID string
	root   string

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// WatchRepo creates the repo memory if needed, records every file under root
// and then follows changes until Close.
func (m *Manager) WatchRepo(repoID, root string) (*RepoWatcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("memory: resolve repo root: %w", err)
	}
	if _, err := m.CreateRepoMemory(repoID, abs); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("memory: create watcher: %w", err)
	}
	rw := &RepoWatcher{m: m, repoID: repoID, root: abs, watcher: w, done: make(chan struct{})}

	if err := rw.scan(abs); err != nil {
		w.Close()
		return nil, err
	}
	rw.wg.Add(1)
	go rw.loop()
	return rw, nil
}

// scan walks dir, adding watches for directories and recording files.
func (rw *RepoWatcher) scan(dir string) error {
	var files []FileSummary
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			if err := rw.watcher.Add(path); err != nil {
				rw.m.opts.Logger.Warn("memory.watch.add_failed", "path", path, "error", err)
			}
			return nil
		}
		if sum, ok := rw.summarize(path); ok {
			files = append(files, sum)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("memory: scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil
	}
	return rw.m.UpdateRepoStructure(rw.repoID, files...)
}

func (rw *RepoWatcher) rel(path string) string {
	r, err := filepath.Rel(rw.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(r)
}

func (rw *RepoWatcher) summarize(path string) (FileSummary, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return FileSummary{}, false
	}
	return FileSummary{
		Path:     rw.rel(path),
		Language: util.DetectLanguage(path),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}, true
}

func (rw *RepoWatcher) loop() {
	defer rw.wg.Done()
	for {
		select {
		case <-rw.done:
			return
		case ev, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			rw.handle(ev)
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.m.opts.Logger.Warn("memory.watch.error", "repo_id", rw.repoID, "error", err)
		}
	}
}

func (rw *RepoWatcher) handle(ev fsnotify.Event) {
	var err error
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		err = rw.m.RemoveRepoFiles(rw.repoID, rw.rel(ev.Name))
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, statErr := os.Stat(ev.Name)
		if statErr != nil {
			return
		}
		if info.IsDir() {
			if !skipDir(info.Name()) {
				err = rw.scan(ev.Name)
			}
			break
		}
		if sum, ok := rw.summarize(ev.Name); ok {
			err = rw.m.UpdateRepoStructure(rw.repoID, sum)
		}
	}
	if err != nil {
		rw.m.opts.Logger.Warn("memory.watch.update_failed", "repo_id", rw.repoID, "path", ev.Name, "error", err)
	}
}

// Close stops watching.
func (rw *RepoWatcher) Close() error {
	var err error
	rw.once.Do(func() {
		close(rw.done)
		err = rw.watcher.Close()
		rw.wg.Wait()
	})
	return err
}
