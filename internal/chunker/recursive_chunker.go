package chunker

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"chat-agent/internal/domain"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// defaultSeparators are tried in order: paragraph, line, sentence, word, rune.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// RecursiveChunker splits text into chunks of at most size runes, preferring
// natural breakpoints, with up to overlap runes shared between neighbours.
type RecursiveChunker struct {
	size       int
	overlap    int
	separators []string
}

func NewRecursiveChunker(size, overlap int) *RecursiveChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	return &RecursiveChunker{size: size, overlap: overlap, separators: defaultSeparators}
}

// Size returns the maximum chunk length in runes.
func (c *RecursiveChunker) Size() int { return c.size }

// Overlap returns the maximum number of runes shared by adjacent chunks.
func (c *RecursiveChunker) Overlap() int { return c.overlap }

func (c *RecursiveChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(document.Content) == "" {
		return nil, nil
	}
	texts := c.Split(document.Content)
	chunks := make([]domain.Chunk, 0, len(texts))
	for idx, text := range texts {
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(idx),
			Source:     document.Path,
			Text:       text,
			Index:      idx,
		})
	}
	return chunks, nil
}

// Split returns the chunk texts for the given text.
func (c *RecursiveChunker) Split(text string) []string {
	return c.split(text, c.separators)
}

func (c *RecursiveChunker) split(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, s := range separators {
		if s == "" {
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var out, good []string
	for _, piece := range splitKeep(text, sep) {
		if utf8.RuneCountInString(piece) <= c.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, c.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, c.merge(splitKeep(piece, ""))...)
		} else {
			out = append(out, c.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, c.merge(good)...)
	}
	return out
}

// merge greedily packs pieces into chunks; each new chunk starts with the
// trailing pieces of the previous one that fit in the overlap.
func (c *RecursiveChunker) merge(pieces []string) []string {
	var chunks []string
	var window []string
	total := 0
	emit := func() {
		if text := strings.TrimSpace(strings.Join(window, "")); text != "" {
			chunks = append(chunks, text)
		}
	}
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > c.size && len(window) > 0 {
			emit()
			for len(window) > 0 && (total > c.overlap || total+n > c.size) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, p)
		total += n
	}
	if len(window) > 0 {
		emit()
	}
	return chunks
}

// splitKeep splits after each separator so no text is lost; an empty
// separator splits into single runes.
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
