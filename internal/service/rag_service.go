package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chat-agent/internal/domain"
	"chat-agent/internal/embedding"
	"chat-agent/internal/llm"
	"chat-agent/internal/logging"
)

var ErrNoDocuments = errors.New("no .txt documents found")

// SampleDocument is written into a freshly created corpus directory.
const SampleDocument = "This is a sample document for the RAG system. Add your own documents to this directory."

const answerTemplate = `Answer the following question based on the provided context and your knowledge.

Context:
%s

Question:
%s

Answer:`

// Options configures RAGService.
type Options struct {
	TopK                int
	SummaryMaxSentences int
	Concurrency         int
	Logger              *zap.Logger
}

// Stats describes the current index contents.
type Stats struct {
	Documents int
	Chunks    int
}

// RAGService is the document index: it builds chunks and vectors from a
// directory of text files and answers questions from the top matches.
type RAGService struct {
	chunker    domain.Chunker
	embedder   domain.Embedder
	store      domain.VectorStore
	summarizer domain.Summarizer
	generator  llm.Generator
	opts       Options
	logger     *zap.Logger

	mu     sync.RWMutex
	chunks []domain.Chunk
	stats  Stats
	ready  bool
}

func NewRAGService(chunker domain.Chunker, embedder domain.Embedder, store domain.VectorStore, summarizer domain.Summarizer, generator llm.Generator, opts Options) *RAGService {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &RAGService{
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		summarizer: summarizer,
		generator:  generator,
		opts:       opts,
		logger:     logging.OrNop(opts.Logger),
	}
}

// EnsureCorpus creates dir with a sample document when it does not exist.
func EnsureCorpus(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "sample.txt"), []byte(SampleDocument), 0o644)
}

// LoadDocuments reads every .txt file under dir in lexical path order.
func LoadDocuments(dir string) ([]domain.Document, error) {
	var documents []domain.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".txt") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		documents = append(documents, domain.Document{ID: hashString(path), Path: path, Content: string(data)})
		return nil
	})
	return documents, err
}

// Build (re)indexes dir and returns a short summary of the corpus. When the
// directory holds no usable text the index is left unavailable and
// ErrNoDocuments is returned; callers treat that as non-fatal.
func (s *RAGService) Build(ctx context.Context, dir string) (string, error) {
	s.mu.Lock()
	s.ready = false
	s.chunks = nil
	s.stats = Stats{}
	s.mu.Unlock()

	documents, err := LoadDocuments(dir)
	if err != nil {
		return "", fmt.Errorf("load documents: %w", err)
	}
	var allChunks []domain.Chunk
	var allTexts []string
	var allTextConcat strings.Builder
	for _, d := range documents {
		chunks, err := s.chunker.Chunk(d)
		if err != nil {
			return "", fmt.Errorf("chunk %s: %w", d.Path, err)
		}
		for _, ch := range chunks {
			allChunks = append(allChunks, ch)
			allTexts = append(allTexts, ch.Text)
		}
		allTextConcat.WriteString("\n")
		allTextConcat.WriteString(d.Content)
	}
	if len(allChunks) == 0 {
		return "", ErrNoDocuments
	}

	if err := s.embedder.Prepare(allTexts); err != nil {
		return "", fmt.Errorf("prepare embedder: %w", err)
	}
	vectors, err := s.embedAll(ctx, allTexts)
	if err != nil {
		return "", err
	}
	dimension := s.embedder.Dimension()
	if dimension == 0 && len(vectors) > 0 {
		dimension = len(vectors[0])
	}
	if err := s.store.Clear(ctx); err != nil {
		return "", fmt.Errorf("clear store: %w", err)
	}
	if err := s.store.Init(ctx, dimension); err != nil {
		return "", fmt.Errorf("init store: %w", err)
	}
	if err := s.store.Upsert(ctx, allChunks, vectors); err != nil {
		return "", fmt.Errorf("upsert: %w", err)
	}

	summary := ""
	if s.summarizer != nil {
		summary, err = s.summarizer.Summarize(allTextConcat.String(), s.opts.SummaryMaxSentences)
		if err != nil {
			return "", fmt.Errorf("summarize: %w", err)
		}
	}

	s.mu.Lock()
	s.chunks = allChunks
	s.stats = Stats{Documents: len(documents), Chunks: len(allChunks)}
	s.ready = true
	s.mu.Unlock()

	s.logger.Info("document index built",
		zap.String("dir", dir),
		zap.Int("documents", len(documents)),
		zap.Int("chunks", len(allChunks)),
		zap.String("embedder", s.embedder.Name()),
		zap.Int("dimension", dimension))
	return summary, nil
}

func (s *RAGService) embedAll(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := range texts {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, texts[i])
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Ready reports whether the index holds at least one chunk.
func (s *RAGService) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Stats returns document and chunk counts of the last successful build.
func (s *RAGService) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Search returns the topK chunks closest to query; ties keep document order.
// An unbuilt index yields no results.
func (s *RAGService) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if !s.Ready() {
		return nil, nil
	}
	if topK <= 0 {
		topK = s.opts.TopK
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if embedding.IsZero(vec) {
		return s.lexicalSearch(query, topK), nil
	}
	res, err := s.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	allZero := true
	for _, r := range res {
		if r.Score > 1e-9 {
			allZero = false
			break
		}
	}
	if allZero {
		return s.lexicalSearch(query, topK), nil
	}
	return res, nil
}

// Answer retrieves context for query and asks the generator for an answer.
func (s *RAGService) Answer(ctx context.Context, query string) domain.Answer {
	if !s.Ready() {
		return domain.UnavailableAnswer()
	}
	results, err := s.Search(ctx, query, s.opts.TopK)
	if err != nil {
		return domain.FailedWith(fmt.Errorf("search: %w", err))
	}
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Chunk.Text)
	}
	s.logger.Debug("retrieved context", zap.Int("chunks", len(texts)))

	out, err := s.generator.Generate(ctx, BuildPrompt(strings.Join(texts, "\n\n"), query))
	if err != nil {
		return domain.FailedWith(fmt.Errorf("generate: %w", err))
	}
	return domain.AnsweredWith(strings.TrimSpace(out))
}

// BuildPrompt fills the answer template.
func BuildPrompt(contextText, question string) string {
	return fmt.Sprintf(answerTemplate, contextText, question)
}

var unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

func (s *RAGService) lexicalSearch(query string, topK int) []domain.SearchResult {
	s.mu.RLock()
	chunks := s.chunks
	s.mu.RUnlock()

	qset := toTokenSet(query)
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(chunks))
	for i, ch := range chunks {
		scores[i] = pair{i, overlapOchiai(qset, ch.Text)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]domain.SearchResult, 0, topK)
	for _, p := range scores[:topK] {
		out = append(out, domain.SearchResult{Chunk: chunks[p.idx], Score: p.score})
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// overlapOchiai is |A∩B| / sqrt(|A||B|) over unique lower-cased words.
func overlapOchiai(qset map[string]struct{}, text string) float64 {
	stoks := unicodeWordRe.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(stoks))
	inter := 0
	for _, t := range stoks {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
