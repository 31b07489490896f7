package core

// Store is the storage seam behind every in-memory map the engine keeps
// (task table, task memories, repo memories). Get and Delete return an
// ErrNotFound-kind error for unknown keys. List order is implementation
// defined. Implementations must be safe for concurrent use.
type Store[V any] interface {
	Get(key string) (V, error)
	Put(key string, value V) error
	Delete(key string) error
	List() ([]V, error)
}
