package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-agent/internal/domain"
)

func chunk(id string) domain.Chunk { return domain.Chunk{ChunkID: id, Text: id} }

func TestInit_InvalidDimension(t *testing.T) {
	assert.Error(t, NewStorage().Init(context.Background(), 0))
}

func TestUpsert_Mismatch(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 2))

	assert.Error(t, s.Upsert(ctx, []domain.Chunk{chunk("a")}, nil))
	assert.Error(t, s.Upsert(ctx, []domain.Chunk{chunk("a")}, [][]float64{{1, 0, 0}}))
}

func TestSearch_OrdersByScoreThenInsertion(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx,
		[]domain.Chunk{chunk("a"), chunk("b"), chunk("c"), chunk("d")},
		[][]float64{{0, 1}, {1, 0}, {0.6, 0.8}, {1, 0}},
	))

	res, err := s.Search(ctx, []float64{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "b", res[0].Chunk.ChunkID)
	assert.Equal(t, "d", res[1].Chunk.ChunkID)
	assert.Equal(t, "c", res[2].Chunk.ChunkID)
	assert.InDelta(t, 0.6, res[2].Score, 1e-9)
}

func TestSearch_Empty(t *testing.T) {
	res, err := NewStorage().Search(context.Background(), []float64{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 1))
	require.NoError(t, s.Upsert(ctx, []domain.Chunk{chunk("a")}, [][]float64{{1}}))
	assert.Equal(t, 1, s.Len())
	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Len())
}
