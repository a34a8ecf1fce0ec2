package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/embedding/hashing"
	"ragchat/internal/vectorstore/memory"
)

type recordingGenerator struct {
	got    domain.GenerationRequest
	answer string
	err    error
}

func (g *recordingGenerator) Complete(_ context.Context, req domain.GenerationRequest) (string, error) {
	g.got = req
	return g.answer, g.err
}

func TestChatSendsContextInSystemPrompt(t *testing.T) {
	gen := &recordingGenerator{answer: "**Paris**"}
	svc := NewRAGService(&stubExtractor{}, hashing.NewEmbedder(128), memory.NewStorage(), gen, Options{})
	_, err := svc.IngestDocument(context.Background(), domain.Document{Name: "geo.pdf", Text: "the capital of france is paris"}, 0)
	require.NoError(t, err)

	settings := DefaultChatSettings()
	settings.SystemPrompt = "Be brief."
	answer, err := svc.Chat(context.Background(), settings, "capital of france?")
	require.NoError(t, err)
	assert.Equal(t, "**Paris**", answer)

	assert.Equal(t, "Be brief.\n\nContext:\n[From geo.pdf] Document 1:\nthe capital of france is paris", gen.got.SystemPrompt)
	assert.Equal(t, "capital of france?", gen.got.UserMessage)
	assert.InDelta(t, 0.7, gen.got.Temperature, 1e-6)
	assert.Equal(t, 500, gen.got.MaxTokens)
	assert.InDelta(t, 0.95, gen.got.TopP, 1e-6)
}

func TestChatWithEmptyStoreStillAppendsContextHeader(t *testing.T) {
	gen := &recordingGenerator{answer: "I don't know"}
	svc := NewRAGService(&stubExtractor{}, hashing.NewEmbedder(16), memory.NewStorage(), gen, Options{})
	_, err := svc.Chat(context.Background(), DefaultChatSettings(), "hello")
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt+"\n\nContext:\n", gen.got.SystemPrompt)
}

func TestChatGenerationFailure(t *testing.T) {
	gen := &recordingGenerator{err: errors.New("connection refused")}
	svc := NewRAGService(&stubExtractor{}, hashing.NewEmbedder(16), memory.NewStorage(), gen, Options{})
	_, err := svc.Chat(context.Background(), DefaultChatSettings(), "hello")
	assert.ErrorIs(t, err, domain.ErrGeneration)
}

func TestChatWithoutGenerator(t *testing.T) {
	svc := NewRAGService(&stubExtractor{}, hashing.NewEmbedder(16), memory.NewStorage(), nil, Options{})
	_, err := svc.Chat(context.Background(), DefaultChatSettings(), "hello")
	assert.ErrorIs(t, err, domain.ErrGeneration)
}

func TestChatSettingsValidate(t *testing.T) {
	assert.NoError(t, DefaultChatSettings().Validate())

	cases := []func(*ChatSettings){
		func(c *ChatSettings) { c.Temperature = 2.5 },
		func(c *ChatSettings) { c.Temperature = -0.1 },
		func(c *ChatSettings) { c.TopP = 1.2 },
		func(c *ChatSettings) { c.MaxTokens = 0 },
		func(c *ChatSettings) { c.ContextChunks = -1 },
		func(c *ChatSettings) { c.Temperature = float32(math.NaN()) },
		func(c *ChatSettings) { c.TopP = float32(math.NaN()) },
		func(c *ChatSettings) { c.Temperature = float32(math.Inf(1)) },
		func(c *ChatSettings) { c.TopP = float32(math.Inf(-1)) },
	}
	for i, mutate := range cases {
		s := DefaultChatSettings()
		mutate(&s)
		assert.ErrorIs(t, s.Validate(), domain.ErrInvalidArgument, "case %d", i)
	}
}
