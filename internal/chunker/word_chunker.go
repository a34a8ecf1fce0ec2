package chunker

import (
	"strings"

	"ragchat/internal/domain"
)

// DefaultChunkSize is the number of words per chunk used when callers have no preference.
const DefaultChunkSize = 200

// Split splits text on whitespace into words and groups consecutive words into
// non-overlapping windows of exactly size words. The final window may be shorter.
// Empty or all-whitespace text yields no chunks.
func Split(text string, size int) ([]string, error) {
	if size <= 0 {
		return nil, domain.Errorf(domain.KindInvalidArgument, "chunk", "chunk size must be positive, got %d", size)
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}
	chunks := make([]string, 0, (len(words)+size-1)/size)
	for start := 0; start < len(words); start += size {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks, nil
}

// WordChunker splits documents into word windows. Its size is the window
// used when a caller does not ask for one.
type WordChunker struct {
	size int
}

// NewWordChunker returns a chunker whose default window is size words.
func NewWordChunker(size int) (*WordChunker, error) {
	if size <= 0 {
		return nil, domain.Errorf(domain.KindInvalidArgument, "chunker", "chunk size must be positive, got %d", size)
	}
	return &WordChunker{size: size}, nil
}

// Default returns a chunker with DefaultChunkSize windows.
func Default() *WordChunker {
	return &WordChunker{size: DefaultChunkSize}
}

// Size returns the default window size in words.
func (c *WordChunker) Size() int { return c.size }

// Chunk splits a document's text into windows of size words.
func (c *WordChunker) Chunk(document domain.Document, size int) ([]string, error) {
	return Split(document.Text, size)
}
