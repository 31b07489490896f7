package memory

import (
	"time"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/logging"
)

// VectorStoreConfig configures similarity search.
type VectorStoreConfig struct {
	Dimension           int           `mapstructure:"dimension"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
	CacheLifetime       time.Duration `mapstructure:"cache_lifetime"`
	// QdrantURL selects a Qdrant collection instead of the in-process index.
	QdrantURL    string `mapstructure:"qdrant_url"`
	QdrantAPIKey string `mapstructure:"qdrant_api_key"`
	Collection   string `mapstructure:"collection"`
}

// Config holds memory limits.
type Config struct {
	MaxTaskMemory int `mapstructure:"max_task_memory"`
	MaxRepoMemory int `mapstructure:"max_repo_memory"`
	// CacheTTL applies to cache entries stored without an explicit TTL. Zero
	// means such entries never expire.
	CacheTTL          time.Duration     `mapstructure:"cache_ttl"`
	EnableVectorStore bool              `mapstructure:"enable_vector_store"`
	VectorStore       VectorStoreConfig `mapstructure:"vector_store"`
	SweepInterval     time.Duration     `mapstructure:"sweep_interval"`
}

// DefaultConfig returns the baseline limits.
func DefaultConfig() Config {
	return Config{
		MaxTaskMemory: 100,
		MaxRepoMemory: 10,
		CacheTTL:      time.Hour,
		VectorStore: VectorStoreConfig{
			Dimension:           384,
			SimilarityThreshold: 0.7,
			CacheLifetime:       24 * time.Hour,
			Collection:          "elite_memory",
		},
		SweepInterval: 5 * time.Minute,
	}
}

// Options configures a Manager.
type Options struct {
	Config
	TaskStore core.Store[*TaskMemory]
	RepoStore core.Store[*RepoMemory]
	// Index overrides the vector index chosen from the config.
	Index  VectorIndex
	Logger logging.Logger
	Now    func() time.Time
}
