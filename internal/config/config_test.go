package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 200, cfg.Ingest.ChunkSize)
	assert.Equal(t, 3, cfg.Chat.ContextChunks)
	assert.Equal(t, int64(16<<20), cfg.Server.MaxUploadBytes)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":8080"
ingest:
  chunk_size: 120
embedder:
  type: openai
  openai:
    model: nomic-embed-text
chat:
  temperature: 0.2
rate_limits:
  chat: 5/minute
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "uploads", cfg.Server.UploadDir)
	assert.Equal(t, 120, cfg.Ingest.ChunkSize)
	assert.Equal(t, "openai", cfg.Embedder.Type)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "nomic-embed-text", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "http://127.0.0.1:1234/v1", cfg.Embedder.OpenAI.BaseURL)
	assert.Equal(t, 30, cfg.Embedder.OpenAI.TimeoutSecs)
	assert.InDelta(t, 0.2, cfg.Chat.Temperature, 1e-6)
	assert.Equal(t, 500, cfg.Chat.MaxTokens)
	assert.Equal(t, "5/minute", cfg.RateLimits.Chat)
	assert.Equal(t, "10/hour", cfg.RateLimits.Upload)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"embedder.yaml": "embedder:\n  type: word2vec\n",
		"chunk.yaml":    "ingest:\n  chunk_size: -5\n",
		"chat.yaml":     "chat:\n  top_p: 3\n",
		"syntax.yaml":   "server: [",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := Load(path)
		assert.Error(t, err, name)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Server.Addr = ":9999"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", loaded.Server.Addr)
}
