package core

// ArtifactStore keeps the bodies of artifacts produced by agents, scoped by
// task identifier. Short method names mirror Store for consistency.
type ArtifactStore interface {
	Save(taskID, path string, data []byte) error
	Get(taskID, path string) ([]byte, error)
	List(taskID string) ([]string, error)
	Delete(taskID, path string) error
}
