package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achintir-projects/elite-ai-agent/core"
)

var (
	_ core.ArtifactStore = (*InMemoryStore)(nil)
	_ core.ArtifactStore = (*DirStore)(nil)
)

func newDirStore(t *testing.T) *DirStore {
	t.Helper()
	s, err := NewDirStore(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)
	return s
}

func exerciseArtifactStore(t *testing.T, s core.ArtifactStore) {
	t.Helper()

	paths, err := s.List("task-1")
	require.NoError(t, err)
	assert.Empty(t, paths)

	require.NoError(t, s.Save("task-1", "cmd/main.go", []byte("package main")))
	require.NoError(t, s.Save("task-1", "README.md", []byte("# app")))
	require.NoError(t, s.Save("task-2", "other.txt", []byte("x")))
	// Overwrite.
	require.NoError(t, s.Save("task-1", "./README.md", []byte("# app v2")))

	got, err := s.Get("task-1", "README.md")
	require.NoError(t, err)
	assert.Equal(t, "# app v2", string(got))

	paths, err = s.List("task-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "cmd/main.go"}, paths)

	_, err = s.Get("task-1", "missing.go")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.Get("task-2", "README.md")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.Delete("task-1", "cmd/main.go"))
	assert.ErrorIs(t, s.Delete("task-1", "cmd/main.go"), core.ErrNotFound)
	paths, _ = s.List("task-1")
	assert.Equal(t, []string{"README.md"}, paths)
}

func TestInMemoryStore(t *testing.T) {
	exerciseArtifactStore(t, NewInMemoryStore())
}

func TestDirStore(t *testing.T) {
	s := newDirStore(t)
	exerciseArtifactStore(t, s)

	onDisk, err := os.ReadFile(filepath.Join(s.Root(), "task-1", "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# app v2", string(onDisk))

	require.NoError(t, s.DeleteTask("task-1"))
	paths, err := s.List("task-1")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestStores_RejectEscapingPaths(t *testing.T) {
	for name, s := range map[string]core.ArtifactStore{"memory": NewInMemoryStore(), "dir": newDirStore(t)} {
		t.Run(name, func(t *testing.T) {
			for _, p := range []string{"", "/etc/passwd", "../x", "a/../../x"} {
				assert.ErrorIs(t, s.Save("task-1", p, []byte("x")), core.ErrValidation, p)
			}
			assert.ErrorIs(t, s.Save("../up", "a.txt", []byte("x")), core.ErrValidation)
		})
	}
}

func TestInMemoryStore_CopiesBodies(t *testing.T) {
	s := NewInMemoryStore()
	data := []byte("hello")
	require.NoError(t, s.Save("task-1", "main.go", data))
	data[0] = 'H'

	out, err := s.Get("task-1", "main.go")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))

	out[0] = 'x'
	again, _ := s.Get("task-1", "main.go")
	assert.Equal(t, "hello", string(again))
}

func TestInMemoryStore_Concurrency(t *testing.T) {
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Save("task-1", fmt.Sprintf("file%d.go", i%10), []byte("data")))
			_, _ = s.List("task-1")
		}(i)
	}
	wg.Wait()
	paths, err := s.List("task-1")
	require.NoError(t, err)
	assert.Len(t, paths, 10)
}

func TestInMemoryStore_DeleteTask(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Save("task-1", "a.go", []byte("a")))
	require.NoError(t, s.Save("task-2", "b.go", []byte("b")))

	s.DeleteTask("task-1")
	paths, _ := s.List("task-1")
	assert.Empty(t, paths)
	_, err := s.Get("task-2", "b.go")
	assert.NoError(t, err)
}
