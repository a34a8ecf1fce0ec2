package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, vectors ...[]float32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "local-model", body["model"])

		n := int(calls.Add(1)) - 1
		if n >= len(vectors) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"model unloaded","type":"server_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "local-model",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vectors[n]},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestEmbedLearnsDimension(t *testing.T) {
	srv, calls := embeddingServer(t, []float32{0.1, 0.2, 0.3}, []float32{0.4, 0.5, 0.6})
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", Model: "local-model"})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Dimension())

	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
	assert.Equal(t, 3, c.Dimension())

	_, err = c.Embed(context.Background(), "again")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestEmbedRejectsDimensionDrift(t *testing.T) {
	srv, _ := embeddingServer(t, []float32{1, 2})
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", Model: "local-model", Dimension: 3})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "dimension 2")
}

func TestEmbedServerError(t *testing.T) {
	srv, _ := embeddingServer(t)
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", Model: "local-model"})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "hello")
	require.Error(t, err)
}

func TestEmbedEmptyText(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://127.0.0.1:1/v1", Model: "local-model"})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "   ")
	assert.Error(t, err)
}

func TestNewClientRequiresKeyForHostedAPI(t *testing.T) {
	t.Setenv("RAGCHAT_TEST_EMPTY_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "RAGCHAT_TEST_EMPTY_KEY"})
	assert.Error(t, err)

	t.Setenv("RAGCHAT_TEST_KEY", "sk-test")
	c, err := NewClient(Config{APIKeyEnv: "RAGCHAT_TEST_KEY"})
	require.NoError(t, err)
	assert.Equal(t, 1536, c.Dimension())
	assert.Equal(t, "openai", c.Name())
}
