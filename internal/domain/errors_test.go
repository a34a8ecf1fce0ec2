package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindMatching(t *testing.T) {
	cause := errors.New("model offline")
	err := fmt.Errorf("ingest a.pdf: %w", E(KindEmbedding, "embed chunk 3", cause))

	assert.True(t, errors.Is(err, ErrEmbedding))
	assert.False(t, errors.Is(err, ErrExtraction))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindEmbedding, KindOf(err))
	assert.True(t, IsKind(err, KindEmbedding))
	assert.Equal(t, KindUnknown, KindOf(cause))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "chunk: invalid_argument: size must be positive",
		Errorf(KindInvalidArgument, "chunk", "size must be positive").Error())
	assert.Equal(t, "extraction", E(KindExtraction, "", nil).Error())
	assert.Equal(t, "search: not_found", E(KindNotFound, "search", nil).Error())
}

func TestRecordContains(t *testing.T) {
	r := SourceFileRecord{Filename: "a.pdf", StartIndex: 3, ChunkCount: 2}
	assert.False(t, r.Contains(2))
	assert.True(t, r.Contains(3))
	assert.True(t, r.Contains(4))
	assert.False(t, r.Contains(5))
}
