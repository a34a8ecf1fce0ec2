package domain

import (
	"context"
	"io"
	"time"
)

// Document is the flat text extracted from one source file.
type Document struct {
	Name      string
	Text      string
	PageCount int
}

// Chunk is a fixed-size word window of a document. Index is its position in the
// engine's append-only chunk sequence.
type Chunk struct {
	Index      int
	SourceFile string
	Text       string
}

// SourceFileRecord is the provenance kept for one ingested file. Chunks
// [StartIndex, StartIndex+ChunkCount) were produced by its latest ingestion.
type SourceFileRecord struct {
	Filename   string    `json:"filename"`
	ChunkCount int       `json:"chunks"`
	PageCount  int       `json:"pages"`
	IngestedAt time.Time `json:"processed_at"`
	StartIndex int       `json:"start_index"`
}

// Contains reports whether the chunk at index was produced by this record's ingestion.
func (r SourceFileRecord) Contains(index int) bool {
	return index >= r.StartIndex && index < r.StartIndex+r.ChunkCount
}

// SearchResult represents a matching chunk with its cosine similarity.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Chunker splits a document's text into chunk texts of size units.
type Chunker interface {
	// Size is the window used when a caller does not ask for one.
	Size() int
	Chunk(doc Document, size int) ([]string, error)
}

// Embedder maps text to a fixed-dimension dense vector.
type Embedder interface {
	Name() string
	// Dimension is the advertised vector length, or 0 when it is only known
	// after the first successful call.
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Extractor turns a source document into text.
type Extractor interface {
	Supports(filename string) bool
	Extract(r io.Reader, filename string) (Document, error)
}

// GenerationRequest is one system+user exchange sent to the text generation service.
type GenerationRequest struct {
	SystemPrompt string
	UserMessage  string
	Temperature  float32
	MaxTokens    int
	TopP         float32
}

// Generator produces text for a prompt. The engine treats it as opaque.
type Generator interface {
	Complete(ctx context.Context, req GenerationRequest) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
