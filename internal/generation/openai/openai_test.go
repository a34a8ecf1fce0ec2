package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

type fakeServer struct {
	modelID      string
	entry        map[string]any // extra fields of the /models list entry
	details      map[string]any
	rejectTokens string // error message for oversized max_tokens, empty accepts
	lastChat     map[string]any
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		data := []map[string]any{}
		if f.modelID != "" {
			entry := map[string]any{"id": f.modelID, "object": "model", "owned_by": "organization_owner"}
			for k, v := range f.entry {
				entry[k] = v
			}
			data = append(data, entry)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	})
	mux.HandleFunc("/v1/models/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(f.details)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.lastChat = body
		if mt, ok := body["max_tokens"].(float64); ok && mt >= 16000 && f.rejectTokens != "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": f.rejectTokens, "type": "invalid_request_error"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "hello there"},
				"finish_reason": "stop",
			}},
		})
	})
	return mux
}

func newFake(t *testing.T, f *fakeServer) *Client {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/v1"})
}

func TestComplete(t *testing.T) {
	f := &fakeServer{}
	c := newFake(t, f)

	out, err := c.Complete(context.Background(), domain.GenerationRequest{
		SystemPrompt: "sys",
		UserMessage:  "hi",
		Temperature:  0.5,
		MaxTokens:    100,
		TopP:         0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	msgs := f.lastChat["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "sys", msgs[0].(map[string]any)["content"])
	assert.Equal(t, "hi", msgs[1].(map[string]any)["content"])
	assert.EqualValues(t, 100, f.lastChat["max_tokens"])
}

func TestCompleteSendsZeroSamplingValues(t *testing.T) {
	f := &fakeServer{}
	c := newFake(t, f)

	_, err := c.Complete(context.Background(), domain.GenerationRequest{UserMessage: "hi", MaxTokens: 5})
	require.NoError(t, err)
	require.Contains(t, f.lastChat, "temperature")
	require.Contains(t, f.lastChat, "top_p")
	assert.InDelta(t, 0, f.lastChat["temperature"], 1e-30)
	assert.InDelta(t, 0, f.lastChat["top_p"], 1e-30)
}

func TestCompleteServerDown(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1/v1"})
	_, err := c.Complete(context.Background(), domain.GenerationRequest{UserMessage: "hi"})
	assert.Error(t, err)
}

func TestModelInfoFromDetails(t *testing.T) {
	c := newFake(t, &fakeServer{modelID: "qwen2-7b", details: map[string]any{"id": "qwen2-7b", "max_context_length": 32768}})
	info, err := c.ModelInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "qwen2-7b", info.ModelName)
	assert.Equal(t, 32768, info.ContextWindow)
	assert.Equal(t, 32768, info.MaxTokens)
}

func TestModelInfoFromListEntry(t *testing.T) {
	f := &fakeServer{
		modelID:      "local-model",
		entry:        map[string]any{"context_length": 12288},
		details:      map[string]any{"id": "local-model"},
		rejectTokens: "maximum context length is 4000",
	}
	info, err := newFake(t, f).ModelInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12288, info.ContextWindow)
	assert.Nil(t, f.lastChat, "no chat request when the list entry publishes the window")
}

func TestModelInfoDetailsWinOverListEntry(t *testing.T) {
	c := newFake(t, &fakeServer{
		modelID: "local-model",
		entry:   map[string]any{"context_length": 12288},
		details: map[string]any{"context_window": 8192},
	})
	info, err := c.ModelInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8192, info.ContextWindow)
}

func TestModelInfoFromRejectedRequest(t *testing.T) {
	c := newFake(t, &fakeServer{
		modelID:      "custom-model",
		details:      map[string]any{"id": "custom-model"},
		rejectTokens: "This model's maximum context length is 8000 tokens",
	})
	info, err := c.ModelInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8000, info.ContextWindow)
}

func TestModelInfoFamilyFallback(t *testing.T) {
	c := newFake(t, &fakeServer{modelID: "Meta-Llama-3-8B", details: map[string]any{}})
	info, err := c.ModelInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4096, info.ContextWindow)
}

func TestModelInfoLastResort(t *testing.T) {
	accepting := newFake(t, &fakeServer{modelID: "unknown", details: map[string]any{}})
	info, err := accepting.ModelInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16384, info.ContextWindow)

	rejecting := newFake(t, &fakeServer{modelID: "unknown", details: map[string]any{}, rejectTokens: "too many tokens"})
	info, err = rejecting.ModelInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FallbackContextWindow, info.ContextWindow)
}

func TestModelInfoNoModels(t *testing.T) {
	c := newFake(t, &fakeServer{})
	_, err := c.ModelInfo(context.Background())
	assert.ErrorContains(t, err, "no models")
}

func TestFamilyContextLength(t *testing.T) {
	cases := map[string]int{
		"microsoft/phi-2":     2048,
		"phi-4-mini":          16384,
		"mistral-7b-instruct": 8192,
		"mixtral-8x7b":        32768,
		"gemma":               0,
	}
	for id, want := range cases {
		assert.Equal(t, want, familyContextLength(id), id)
	}
}
