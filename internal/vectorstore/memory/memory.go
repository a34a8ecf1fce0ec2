package memory

import (
	"container/heap"
	"math"
	"slices"
	"sync"
	"time"

	"ragchat/internal/domain"
)

type entry struct {
	chunk  domain.Chunk
	vector []float32
	norm   float64
}

// Storage is the in-memory document store and similarity index. Each entry holds
// its chunk and embedding together, so the two can never drift apart. Search is
// an exact brute-force cosine scan.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	entries   []entry
	records   map[string]domain.SourceFileRecord
	order     []string // filenames in first-ingestion order
	now       func() time.Time
}

// NewStorage returns an empty store. The vector dimension is fixed by the first append.
func NewStorage() *Storage {
	return &Storage{
		records: make(map[string]domain.SourceFileRecord),
		now:     time.Now,
	}
}

// Append adds one file's chunks and their embeddings in a single critical section
// and records (or replaces) the file's provenance. vectors[i] must embed texts[i].
// On any validation failure nothing is stored. Chunks from an earlier ingestion of
// the same filename stay in the store but are no longer covered by its record.
func (s *Storage) Append(sourceFile string, pageCount int, texts []string, vectors [][]float32) (domain.SourceFileRecord, error) {
	const op = "store append"
	if len(texts) != len(vectors) {
		return domain.SourceFileRecord{}, domain.Errorf(domain.KindInvalidArgument, op,
			"%d chunks but %d vectors", len(texts), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := domain.SourceFileRecord{
		Filename:   sourceFile,
		ChunkCount: len(texts),
		PageCount:  pageCount,
		IngestedAt: s.now(),
		StartIndex: len(s.entries),
	}
	if len(texts) == 0 {
		return record, nil
	}

	dim := s.dimension
	if dim == 0 {
		dim = len(vectors[0])
	}
	if dim == 0 {
		return domain.SourceFileRecord{}, domain.Errorf(domain.KindEmbedding, op, "empty embedding vector")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return domain.SourceFileRecord{}, domain.Errorf(domain.KindEmbedding, op,
				"vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}

	s.dimension = dim
	for i, text := range texts {
		s.entries = append(s.entries, entry{
			chunk:  domain.Chunk{Index: record.StartIndex + i, SourceFile: sourceFile, Text: text},
			vector: vectors[i],
			norm:   norm(vectors[i]),
		})
	}
	if _, seen := s.records[sourceFile]; !seen {
		s.order = append(s.order, sourceFile)
	}
	s.records[sourceFile] = record
	return record, nil
}

// Search returns up to k chunks ranked by descending cosine similarity to vector.
// Equal scores are ordered by ascending chunk index. k <= 0 or an empty store
// yields an empty result.
func (s *Storage) Search(vector []float32, k int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || len(s.entries) == 0 {
		return []domain.SearchResult{}, nil
	}
	if len(vector) != s.dimension {
		return nil, domain.Errorf(domain.KindInvalidArgument, "store search",
			"query vector has dimension %d, want %d", len(vector), s.dimension)
	}

	qnorm := norm(vector)
	top := make(topK, 0, min(k, len(s.entries)))
	for i := range s.entries {
		c := candidate{index: i, score: cosine(vector, s.entries[i].vector, qnorm, s.entries[i].norm)}
		if len(top) < k {
			heap.Push(&top, c)
			continue
		}
		if c.better(top[0]) {
			top[0] = c
			heap.Fix(&top, 0)
		}
	}

	ranked := []candidate(top)
	slices.SortFunc(ranked, func(a, b candidate) int {
		switch {
		case a.better(b):
			return -1
		case b.better(a):
			return 1
		default:
			return 0
		}
	})
	results := make([]domain.SearchResult, len(ranked))
	for i, c := range ranked {
		results[i] = domain.SearchResult{Chunk: s.entries[c.index].chunk, Score: c.score}
	}
	return results, nil
}

// ResolveSourceFile returns the filename whose current record covers index.
func (s *Storage) ResolveSourceFile(index int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, name := range s.order {
		if s.records[name].Contains(index) {
			return name, true
		}
	}
	return "", false
}

// SourceFiles lists provenance records in first-ingestion order. A re-ingested
// file keeps its original position.
func (s *Storage) SourceFiles() []domain.SourceFileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SourceFileRecord, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.records[name])
	}
	return out
}

// Chunks returns the chunks covered by the current record of filename.
func (s *Storage) Chunks(filename string) []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[filename]
	if !ok {
		return nil
	}
	out := make([]domain.Chunk, 0, r.ChunkCount)
	for i := r.StartIndex; i < r.StartIndex+r.ChunkCount; i++ {
		out = append(out, s.entries[i].chunk)
	}
	return out
}

// Len returns the number of stored chunks (and embeddings).
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Dimension returns the fixed vector dimension, or 0 before the first append.
func (s *Storage) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Cosine returns dot(a,b)/(|a||b|), or 0 when either vector has zero norm.
func Cosine(a, b []float32) float64 {
	return cosine(a, b, norm(a), norm(b))
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	n := min(len(a), len(b))
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	sim := sum / (na * nb)
	// rounding can push |sim| marginally past 1
	return math.Max(-1, math.Min(1, sim))
}

func norm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

type candidate struct {
	index int
	score float64
}

// better orders by score descending, then index ascending. NaN scores rank last.
func (c candidate) better(o candidate) bool {
	cn, on := math.IsNaN(c.score), math.IsNaN(o.score)
	switch {
	case cn != on:
		return on
	case !cn && c.score != o.score:
		return c.score > o.score
	default:
		return c.index < o.index
	}
}

// topK is a min-heap whose root is the worst retained candidate.
type topK []candidate

func (h topK) Len() int           { return len(h) }
func (h topK) Less(i, j int) bool { return h[j].better(h[i]) }
func (h topK) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *topK) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *topK) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}
