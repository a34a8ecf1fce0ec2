package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"ragchat/internal/domain"
)

// DefaultBaseURL is LM Studio's local OpenAI-compatible endpoint.
const DefaultBaseURL = "http://127.0.0.1:1234/v1"

// FallbackContextWindow is reported when nothing better is known.
const FallbackContextWindow = 2048

var contextLimitRe = regexp.MustCompile(`maximum context length is (\d+)`)

// Config configures the chat completion client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	// Model is sent with every request; empty lets the server use its loaded model.
	Model   string
	Timeout time.Duration
}

// Client talks to an OpenAI-compatible chat completions API.
type Client struct {
	client  *goopenai.Client
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewClient creates a chat client. The API key is optional for local servers.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	key := ""
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	clientConfig := goopenai.DefaultConfig(key)
	clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientConfig.HTTPClient = httpClient
	return &Client{
		client:  goopenai.NewClientWithConfig(clientConfig),
		http:    httpClient,
		baseURL: clientConfig.BaseURL,
		apiKey:  key,
		model:   cfg.Model,
	}
}

// Complete sends a system prompt and a user message and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, req domain.GenerationRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: req.UserMessage},
		},
		Temperature: explicitZero(req.Temperature),
		MaxTokens:   req.MaxTokens,
		TopP:        explicitZero(req.TopP),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// explicitZero keeps a requested 0 on the wire. go-openai omits zero-valued
// sampling fields, which would let the server substitute its own default.
func explicitZero(v float32) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return v
}

// ModelInfo describes the model currently served.
type ModelInfo struct {
	ModelName     string         `json:"model_name"`
	ContextWindow int            `json:"context_window"`
	MaxTokens     int            `json:"max_tokens"`
	RawResponse   map[string]any `json:"raw_api_response,omitempty"`
}

// ModelInfo reports the first (active) model and its context window. The window
// comes from the model details or the model list entry when the server publishes
// it, then from probing the server's error message, then from well-known model
// families.
func (c *Client) ModelInfo(ctx context.Context) (ModelInfo, error) {
	var list struct {
		Data []map[string]any `json:"data"`
	}
	if err := c.getJSON(ctx, "/models", &list); err != nil {
		return ModelInfo{}, fmt.Errorf("list models: %w", err)
	}
	if len(list.Data) == 0 {
		return ModelInfo{}, errors.New("no models found in response")
	}
	entry := list.Data[0]
	modelID, _ := entry["id"].(string)
	if modelID == "" {
		return ModelInfo{}, errors.New("model ID not found in response")
	}

	var details map[string]any
	if err := c.getJSON(ctx, "/models/"+url.PathEscape(modelID), &details); err != nil {
		return ModelInfo{}, fmt.Errorf("model details: %w", err)
	}

	window := contextLength(details)
	if window == 0 {
		window = contextLength(entry)
	}
	if window == 0 {
		if n := c.contextLimitFromRejection(ctx, 32000); n > 0 {
			window = n
		}
	}
	if window == 0 {
		window = familyContextLength(modelID)
	}
	if window == 0 {
		if c.contextLimitFromRejection(ctx, 16384) == -1 {
			window = 16384
		} else {
			window = FallbackContextWindow
		}
	}

	return ModelInfo{
		ModelName:     modelID,
		ContextWindow: window,
		MaxTokens:     window,
		RawResponse:   map[string]any{"model_list": list.Data, "model_details": details},
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// contextLimitFromRejection asks for maxTokens and reads the server's limit from the
// rejection. It returns the parsed limit, -1 when the request was accepted, or 0
// when neither is known.
func (c *Client) contextLimitFromRejection(ctx context.Context, maxTokens int) int {
	_, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  []goopenai.ChatCompletionMessage{{Role: goopenai.ChatMessageRoleUser, Content: "test"}},
		MaxTokens: maxTokens,
	})
	if err == nil {
		return -1
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if m := contextLimitRe.FindStringSubmatch(apiErr.Message); m != nil {
			n, _ := strconv.Atoi(m[1])
			return n
		}
	}
	return 0
}

func contextLength(details map[string]any) int {
	for _, key := range []string{"context_length", "max_context_length", "max_tokens", "context_window"} {
		if v, ok := details[key].(float64); ok && v > 0 {
			return int(v)
		}
	}
	return 0
}

func familyContextLength(modelID string) int {
	id := strings.ToLower(modelID)
	switch {
	case strings.Contains(id, "phi-2"):
		return 2048
	case strings.Contains(id, "phi-4"):
		return 16384
	case strings.Contains(id, "llama"):
		return 4096
	case strings.Contains(id, "mixtral"):
		return 32768
	case strings.Contains(id, "mistral"):
		return 8192
	}
	return 0
}
