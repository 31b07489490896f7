package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is a standalone file of agent definitions.
type Manifest struct {
	Agents []AgentEntry `yaml:"agents"`
}

// LoadAgentManifest reads agent definitions from a YAML manifest. Unknown
// fields are rejected.
func LoadAgentManifest(path string) ([]AgentEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading agent manifest: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing agent manifest %s: %w", path, err)
	}
	return m.Agents, nil
}

// Marshal renders cfg as YAML with credentials redacted.
func Marshal(cfg *Config) ([]byte, error) {
	cp := *cfg
	cp.Providers.Anthropic.APIKey = redact(cp.Providers.Anthropic.APIKey)
	cp.Providers.OpenAI.APIKey = redact(cp.Providers.OpenAI.APIKey)
	cp.Memory.VectorStore.QdrantAPIKey = redact(cp.Memory.VectorStore.QdrantAPIKey)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&cp); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}
