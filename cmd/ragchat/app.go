package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"ragchat/internal/chunker"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/embedding"
	"ragchat/internal/embedding/hashing"
	embopenai "ragchat/internal/embedding/openai"
	"ragchat/internal/extract"
	genopenai "ragchat/internal/generation/openai"
	"ragchat/internal/metrics"
	"ragchat/internal/service"
	"ragchat/internal/vectorstore/memory"
)

// app is the assembled engine and its collaborators.
type app struct {
	svc       *service.RAGService
	generator *genopenai.Client
	metrics   *metrics.Metrics
	registry  *prometheus.Registry
}

func buildApp(cfg *config.AppConfig, log *zap.Logger) (*app, error) {
	if env := cfg.PDF.LicenseKeyEnv; env != "" {
		if err := extract.SetPDFLicense(os.Getenv(env)); err != nil {
			log.Warn("pdf license not applied", zap.Error(err))
		}
	}

	emb, err := buildEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	if cfg.Embedder.CacheSize > 0 {
		cached, err := embedding.NewCached(emb, cfg.Embedder.CacheSize)
		if err != nil {
			return nil, err
		}
		emb = cached
	}

	var gen *genopenai.Client
	var generator domain.Generator
	if cfg.Generator.BaseURL != "" {
		gen = genopenai.NewClient(genopenai.Config{
			BaseURL:   cfg.Generator.BaseURL,
			APIKeyEnv: cfg.Generator.APIKeyEnv,
			Model:     cfg.Generator.Model,
			Timeout:   time.Duration(cfg.Generator.TimeoutSecs) * time.Second,
		})
		generator = gen
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	words, err := chunker.NewWordChunker(cfg.Ingest.ChunkSize)
	if err != nil {
		return nil, err
	}
	svc := service.NewRAGService(extract.NewRegistry(), emb, memory.NewStorage(), generator, service.Options{
		Chunker:      words,
		EmbedWorkers: cfg.Ingest.EmbedWorkers,
		Logger:       log.Named("engine"),
		Metrics:      m,
	})
	log.Info("engine ready",
		zap.String("embedder", emb.Name()),
		zap.Int("chunk_size", svc.ChunkSize()),
		zap.Bool("generation", gen != nil),
	)
	return &app{svc: svc, generator: gen, metrics: m, registry: reg}, nil
}

func buildEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		return hashing.NewEmbedder(cfg.Dimension), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			Dimension: cfg.OpenAI.Dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

// ingestAll ingests paths, logging each record.
func (a *app) ingestAll(ctx context.Context, log *zap.Logger, paths []string) ([]service.IngestResult, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	results, err := a.svc.IngestDocuments(ctx, paths)
	if err != nil {
		return results, err
	}
	for _, r := range results {
		log.Info("ingested", zap.String("file", r.Filename), zap.Int("chunks", r.ChunkCount), zap.Int("pages", r.PageCount))
	}
	return results, nil
}
