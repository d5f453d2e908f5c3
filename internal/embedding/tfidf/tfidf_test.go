package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed_NotPrepared(t *testing.T) {
	e := NewEmbedder()
	_, err := e.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotPrepared)
}

func TestPrepare_EmptyCorpus(t *testing.T) {
	e := NewEmbedder()
	assert.ErrorIs(t, e.Prepare(nil), ErrEmptyCorpus)
}

func TestEmbed_Normalised(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{
		"Paris is the capital of France.",
		"Berlin is the capital of Germany.",
	}))
	assert.Equal(t, 5, e.Dimension()) // berlin capital france germany paris

	vec, err := e.Embed(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestEmbed_OutOfVocabularyIsZero(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"alpha beta"}))

	vec, err := e.Embed(context.Background(), "gamma delta")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestEmbed_SimilarTextScoresHigher(t *testing.T) {
	e := NewEmbedder()
	corpus := []string{"Paris is the capital of France.", "Bananas are yellow fruit."}
	require.NoError(t, e.Prepare(corpus))

	q, _ := e.Embed(context.Background(), "capital of France")
	a, _ := e.Embed(context.Background(), corpus[0])
	b, _ := e.Embed(context.Background(), corpus[1])
	assert.Greater(t, dot(q, a), dot(q, b))
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
