// Package vectorstore selects the vector store described by the config.
package vectorstore

import (
	"fmt"
	"time"

	"chat-agent/internal/config"
	"chat-agent/internal/domain"
	"chat-agent/internal/vectorstore/memory"
	"chat-agent/internal/vectorstore/qdrant"
)

// New builds the vector store named by cfg.Type.
func New(cfg config.VectorStoreConfig) (domain.VectorStore, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.NewStorage(), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}
