package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-agent/internal/config"
	"chat-agent/internal/vectorstore/memory"
	"chat-agent/internal/vectorstore/qdrant"
)

func TestNew(t *testing.T) {
	st, err := New(config.VectorStoreConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &memory.Storage{}, st)

	st, err = New(config.VectorStoreConfig{Type: "qdrant", Qdrant: &config.QdrantConfig{URL: "http://localhost:6333", Collection: "docs"}})
	require.NoError(t, err)
	assert.IsType(t, &qdrant.Storage{}, st)

	_, err = New(config.VectorStoreConfig{Type: "qdrant"})
	assert.ErrorContains(t, err, "qdrant config missing")

	_, err = New(config.VectorStoreConfig{Type: "faiss"})
	assert.ErrorContains(t, err, "unknown vector store: faiss")
}
