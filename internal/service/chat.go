package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ragchat/internal/domain"
)

// DefaultSystemPrompt instructs the model to answer in Markdown.
const DefaultSystemPrompt = `You are a helpful assistant with access to specific document knowledge. 
Format your responses using Markdown for better readability:
- Use **bold** for emphasis
- Use ` + "`code`" + ` for technical terms
- Use bullet points for lists
- Use numbered lists for steps
- Use headings when organizing information
- Use tables when comparing data
- Use code blocks with language specification for code
- Use > for quotes from the documents

When referencing information from documents, be clear but natural. Focus on accuracy and clarity.`

// ChatSettings are the per-conversation generation parameters.
type ChatSettings struct {
	SystemPrompt  string  `json:"system_prompt" yaml:"system_prompt"`
	Temperature   float32 `json:"temperature" yaml:"temperature"`
	MaxTokens     int     `json:"max_tokens" yaml:"max_tokens"`
	TopP          float32 `json:"top_p" yaml:"top_p"`
	ContextChunks int     `json:"context_chunks" yaml:"context_chunks"`
}

// DefaultChatSettings returns the built-in generation defaults.
func DefaultChatSettings() ChatSettings {
	return ChatSettings{
		SystemPrompt:  DefaultSystemPrompt,
		Temperature:   0.7,
		MaxTokens:     500,
		TopP:          0.95,
		ContextChunks: DefaultTopK,
	}
}

// Validate checks parameter ranges.
func (c ChatSettings) Validate() error {
	const op = "chat settings"
	// Written as negated ranges so NaN fails too.
	switch {
	case !(c.Temperature >= 0 && c.Temperature <= 2):
		return domain.Errorf(domain.KindInvalidArgument, op, "temperature must be within [0, 2]")
	case !(c.TopP >= 0 && c.TopP <= 1):
		return domain.Errorf(domain.KindInvalidArgument, op, "top_p must be within [0, 1]")
	case c.MaxTokens <= 0:
		return domain.Errorf(domain.KindInvalidArgument, op, "max_tokens must be positive")
	case c.ContextChunks < 0:
		return domain.Errorf(domain.KindInvalidArgument, op, "context_chunks must not be negative")
	}
	return nil
}

// BuildSystemPrompt appends the retrieved context to the system prompt.
func BuildSystemPrompt(systemPrompt, context string) string {
	return systemPrompt + "\n\nContext:\n" + context
}

// Chat answers message using the documents most relevant to it.
func (s *RAGService) Chat(ctx context.Context, settings ChatSettings, message string) (string, error) {
	if s.generator == nil {
		return "", domain.E(domain.KindGeneration, "chat", errors.New("no text generation service configured"))
	}
	if err := settings.Validate(); err != nil {
		return "", err
	}
	retrieved, err := s.Context(ctx, message, settings.ContextChunks)
	if err != nil {
		return "", err
	}

	start := time.Now()
	answer, err := s.generator.Complete(ctx, domain.GenerationRequest{
		SystemPrompt: BuildSystemPrompt(settings.SystemPrompt, retrieved),
		UserMessage:  message,
		Temperature:  settings.Temperature,
		MaxTokens:    settings.MaxTokens,
		TopP:         settings.TopP,
	})
	s.metrics.GenerationObserved(time.Since(start), err)
	if err != nil {
		return "", domain.E(domain.KindGeneration, "chat", err)
	}
	s.logger.Debug("chat answered",
		zap.Int("context_bytes", len(retrieved)),
		zap.Duration("generation", time.Since(start)))
	return answer, nil
}
