package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ragchat/internal/chunker"
	"ragchat/internal/domain"
	"ragchat/internal/extract"
	"ragchat/internal/metrics"
)

const (
	// DefaultTopK is the number of chunks retrieved when the caller does not say.
	DefaultTopK = 3
	// UnknownSource labels chunks whose provenance can no longer be resolved.
	UnknownSource = "unknown source"
)

// Store is the document store and similarity index the engine writes to.
type Store interface {
	Append(sourceFile string, pageCount int, texts []string, vectors [][]float32) (domain.SourceFileRecord, error)
	Search(vector []float32, k int) ([]domain.SearchResult, error)
	ResolveSourceFile(index int) (string, bool)
	SourceFiles() []domain.SourceFileRecord
	Chunks(filename string) []domain.Chunk
	Len() int
	// Dimension is the vector length fixed by the first append, or 0.
	Dimension() int
}

// IngestResult is returned to callers of the ingestion entrypoints.
type IngestResult struct {
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunks"`
	PageCount  int    `json:"pages"`
}

// Result is one ranked retrieval hit with resolved provenance. File is empty
// when no current record covers the chunk.
type Result struct {
	Index      int     `json:"index"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	File       string  `json:"file"`
}

// Options tunes a RAGService.
type Options struct {
	// Chunker defaults to word windows of chunker.DefaultChunkSize.
	Chunker      domain.Chunker
	EmbedWorkers int
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

// RAGService owns one document store and runs ingestion and retrieval against it.
// It is safe for concurrent use: embedding runs outside the store's lock and each
// batch is committed in one critical section.
type RAGService struct {
	extractor domain.Extractor
	embedder  domain.Embedder
	store     Store
	generator domain.Generator
	chunker   domain.Chunker
	workers   int
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewRAGService wires the engine. generator may be nil when only retrieval is used.
func NewRAGService(extractor domain.Extractor, embedder domain.Embedder, store Store, generator domain.Generator, opts Options) *RAGService {
	if opts.Chunker == nil {
		opts.Chunker = chunker.Default()
	}
	if opts.EmbedWorkers <= 0 {
		opts.EmbedWorkers = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &RAGService{
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		generator: generator,
		chunker:   opts.Chunker,
		workers:   opts.EmbedWorkers,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// ChunkSize returns the default chunk size in words.
func (s *RAGService) ChunkSize() int { return s.chunker.Size() }

// IngestFile extracts, chunks, embeds and stores the file at path. chunkSize 0
// uses the service default and a negative one is an InvalidArgument. Nothing is
// stored unless every step succeeds.
func (s *RAGService) IngestFile(ctx context.Context, path string, chunkSize int) (IngestResult, error) {
	doc, err := extract.ExtractFile(s.extractor, path)
	if err != nil {
		s.metrics.IngestFailed(domain.KindOf(err).String())
		return IngestResult{}, fmt.Errorf("ingest %s: %w", filepath.Base(path), err)
	}
	doc.Name = filepath.Base(path)
	return s.IngestDocument(ctx, doc, chunkSize)
}

// IngestReader ingests a document read from r. name selects the extractor and
// becomes the provenance filename.
func (s *RAGService) IngestReader(ctx context.Context, name string, r io.Reader, chunkSize int) (IngestResult, error) {
	doc, err := s.extractor.Extract(r, name)
	if err != nil {
		s.metrics.IngestFailed(domain.KindOf(err).String())
		return IngestResult{}, fmt.Errorf("ingest %s: %w", name, err)
	}
	doc.Name = filepath.Base(name)
	return s.IngestDocument(ctx, doc, chunkSize)
}

// IngestDocument chunks and stores already-extracted text.
func (s *RAGService) IngestDocument(ctx context.Context, doc domain.Document, chunkSize int) (IngestResult, error) {
	if chunkSize == 0 {
		chunkSize = s.chunker.Size()
	}
	chunks, err := s.chunker.Chunk(doc, chunkSize)
	if err != nil {
		return IngestResult{}, err
	}
	record, err := s.AddChunks(ctx, chunks, doc.Name, doc.PageCount)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest %s: %w", doc.Name, err)
	}
	return IngestResult{Filename: record.Filename, ChunkCount: record.ChunkCount, PageCount: record.PageCount}, nil
}

// IngestDocuments ingests every file matched by paths (glob patterns allowed),
// stopping at the first failure. Files already ingested stay ingested.
func (s *RAGService) IngestDocuments(ctx context.Context, paths []string) ([]IngestResult, error) {
	var results []IngestResult
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return results, domain.E(domain.KindInvalidArgument, "ingest "+p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			res, err := s.IngestFile(ctx, m, 0)
			if err != nil {
				return results, err
			}
			results = append(results, res)
		}
	}
	if len(results) == 0 {
		return nil, domain.Errorf(domain.KindInvalidArgument, "ingest", "no documents found")
	}
	return results, nil
}

// AddChunks embeds every chunk and then appends chunks, vectors and the file's
// record atomically. Any embedding failure aborts the batch before the store is
// touched. Embeddings are computed in parallel but land at their chunk's index.
func (s *RAGService) AddChunks(ctx context.Context, chunks []string, sourceFile string, pageCount int) (domain.SourceFileRecord, error) {
	start := time.Now()
	vectors, err := s.embedAll(ctx, chunks)
	if err != nil {
		s.metrics.IngestFailed(domain.KindOf(err).String())
		s.logger.Error("embedding failed, batch discarded",
			zap.String("file", sourceFile), zap.Int("chunks", len(chunks)), zap.Error(err))
		return domain.SourceFileRecord{}, err
	}
	record, err := s.store.Append(sourceFile, pageCount, chunks, vectors)
	if err != nil {
		s.metrics.IngestFailed(domain.KindOf(err).String())
		return domain.SourceFileRecord{}, err
	}
	s.metrics.IngestSucceeded(record.ChunkCount, s.store.Len(), time.Since(start))
	s.logger.Info("document ingested",
		zap.String("file", record.Filename),
		zap.Int("chunks", record.ChunkCount),
		zap.Int("pages", record.PageCount),
		zap.Int("start_index", record.StartIndex),
		zap.Duration("elapsed", time.Since(start)))
	return record, nil
}

func (s *RAGService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, text := range texts {
		g.Go(func() error {
			v, err := s.embedder.Embed(gctx, text)
			if err != nil {
				return domain.E(domain.KindEmbedding, fmt.Sprintf("embed chunk %d", i), err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := s.checkDimension(vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

// checkDimension rejects vectors whose length disagrees with the embedder's
// declared dimension or with what the store already holds.
func (s *RAGService) checkDimension(vectors [][]float32) error {
	want := s.embedder.Dimension()
	if want <= 0 {
		want = s.store.Dimension()
	} else if have := s.store.Dimension(); have > 0 && have != want {
		return domain.Errorf(domain.KindEmbedding, "embed", "embedder dimension %d does not match store dimension %d", want, have)
	}
	if want <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != want {
			return domain.Errorf(domain.KindEmbedding, fmt.Sprintf("embed chunk %d", i), "got %d dimensions, want %d", len(v), want)
		}
	}
	return nil
}

// Search embeds query and returns up to k ranked chunks with their source files.
// An empty store or k <= 0 returns an empty slice without calling the embedder.
func (s *RAGService) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 || s.store.Len() == 0 {
		return []Result{}, nil
	}
	start := time.Now()
	defer func() { s.metrics.QueryObserved(time.Since(start)) }()

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, domain.E(domain.KindEmbedding, "embed query", err)
	}
	hits, err := s.store.Search(vec, k)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(hits))
	for i, h := range hits {
		file, _ := s.store.ResolveSourceFile(h.Chunk.Index)
		results[i] = Result{Index: h.Chunk.Index, Content: h.Chunk.Text, Similarity: h.Score, File: file}
	}
	return results, nil
}

// Context returns the provenance-annotated context block for query, or "" when
// nothing is stored.
func (s *RAGService) Context(ctx context.Context, query string, k int) (string, error) {
	results, err := s.Search(ctx, query, k)
	if err != nil {
		return "", err
	}
	return AssembleContext(results), nil
}

// AssembleContext renders ranked results as "[From file] Document n:\ntext"
// blocks separated by a blank line. n is the 1-based rank.
func AssembleContext(results []Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		file := r.File
		if file == "" {
			file = UnknownSource
		}
		parts[i] = fmt.Sprintf("[From %s] Document %d:\n%s", file, i+1, r.Content)
	}
	return strings.Join(parts, "\n\n")
}

// SourceFiles lists provenance records in first-ingestion order.
func (s *RAGService) SourceFiles() []domain.SourceFileRecord {
	return s.store.SourceFiles()
}

// FileText returns the stored chunk text of filename's latest ingestion joined by spaces.
func (s *RAGService) FileText(filename string) string {
	chunks := s.store.Chunks(filename)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, " ")
}
