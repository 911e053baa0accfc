package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Address)
	assert.Equal(t, 6000, cfg.RAG.MaxContextChars)
	assert.Equal(t, 1500, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 3, cfg.RAG.DefaultTopK)
	assert.Equal(t, DefaultPromptTemplate, cfg.RAG.PromptTemplate)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9000"
vector_store:
  type: qdrant
  qdrant:
    url: http://localhost:6333
`), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "uploads", cfg.Server.UploadDir)
	assert.Equal(t, "documents", cfg.VectorStore.Qdrant.Collection)
	assert.Equal(t, 15, cfg.VectorStore.Qdrant.TimeoutSecs)
}

func TestLoadRejectsTemplateWithoutPlaceholders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rag:
  prompt_template: "Answer using {context} only."
`), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{question}")
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "sk-test")
	c := LLMConfig{APIKeyEnv: "TEST_LLM_KEY"}
	assert.Equal(t, "sk-test", c.APIKey())
}
