// Package app wires the components into one explicit application object and
// drives conversation turns.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chat-agent/internal/agent"
	"chat-agent/internal/chunker"
	"chat-agent/internal/classifier"
	"chat-agent/internal/config"
	"chat-agent/internal/domain"
	"chat-agent/internal/embedding"
	"chat-agent/internal/llm"
	"chat-agent/internal/logging"
	"chat-agent/internal/router"
	"chat-agent/internal/service"
	"chat-agent/internal/session"
	"chat-agent/internal/summarizer"
	"chat-agent/internal/tools"
	"chat-agent/internal/vectorstore"
)

// Model is the language model used for classification, document answers
// and the agent loop.
type Model interface {
	llm.Generator
	llm.ChatModel
}

// App owns every long-lived component of one assistant process.
type App struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Index    *service.RAGService
	Router   *router.Router
	Tools    *tools.Registry
	Agent    *agent.Agent
	Sessions *session.Store
	Driver   *Driver
}

// New builds an App talking to the configured OpenAI-compatible endpoint.
func New(cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	client, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKeyEnv:   cfg.LLM.APIKeyEnv,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	return NewWithModel(cfg, client, logger)
}

// NewWithModel builds an App around an already constructed model.
func NewWithModel(cfg *config.AppConfig, model Model, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)

	emb, err := embedding.New(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	store, err := vectorstore.New(cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	var ch domain.Chunker
	switch cfg.Chunker.Type {
	case "recursive", "":
		ch = chunker.NewRecursiveChunker(cfg.Chunker.Size, cfg.Chunker.Overlap)
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}
	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency", "":
		sum = summarizer.NewFrequencySummarizer()
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}

	index := service.NewRAGService(ch, emb, store, sum, model, service.Options{
		TopK:                cfg.Retrieval.TopK,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		Concurrency:         cfg.Embedder.Concurrency,
		Logger:              logger.Named("index"),
	})
	dir := cfg.Docs.Dir
	build := func(ctx context.Context) (string, error) {
		if err := service.EnsureCorpus(dir); err != nil {
			return "", fmt.Errorf("prepare corpus dir: %w", err)
		}
		return index.Build(ctx, dir)
	}
	rt := router.New(index, classifier.New(model, logger.Named("classifier")), build, logger.Named("router"))
	registry := tools.FromConfig(cfg.Tools, logger.Named("tools"))
	ag := agent.New(model, registry, cfg.Agent.MaxIterations, logger.Named("agent"))
	sessions := session.NewStore()

	return &App{
		Config:   cfg,
		Logger:   logger,
		Index:    index,
		Router:   rt,
		Tools:    registry,
		Agent:    ag,
		Sessions: sessions,
		Driver:   NewDriver(rt, ag, sessions, cfg.Session.HistoryPairs, logger.Named("driver")),
	}, nil
}

// Init builds the document index once and returns the corpus summary.
func (a *App) Init(ctx context.Context) (string, error) {
	return a.Router.Ensure(ctx)
}

// Turn answers one user input in the session named key.
func (a *App) Turn(ctx context.Context, key, input string) Reply {
	return a.Driver.Turn(ctx, key, input)
}
