package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// abbreviations never end a sentence even when a capital follows.
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {}, "st": {},
	"vs": {}, "etc": {}, "inc": {}, "ltd": {}, "co": {}, "no": {}, "fig": {},
	"approx": {}, "ca": {}, "mt": {},
}

// SplitSentences returns the trimmed, non-empty sentences of text in order.
// A run of terminal punctuation ends a sentence only when whitespace and a
// non-lowercase rune follow, so decimals ("3.14"), initialisms ("U.S.") and
// common abbreviations stay inside their sentence.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	flush := func(end int) {
		if s := strings.Join(strings.Fields(string(runes[start:end])), " "); s != "" {
			out = append(out, s)
		}
		start = end
	}
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		last := i
		for last+1 < len(runes) && isTerminal(runes[last+1]) {
			last++
		}
		end := last + 1
		for end < len(runes) && isClosing(runes[end]) {
			end++
		}
		mark := i
		i = end - 1
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			continue
		}
		next := end
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}
		if next == len(runes) {
			break
		}
		if unicode.IsLower(runes[next]) {
			continue
		}
		if mark == last && runes[mark] == '.' && isAbbreviation(runes[start:mark]) {
			continue
		}
		flush(end)
	}
	flush(len(runes))
	return out
}

func isTerminal(r rune) bool { return r == '.' || r == '!' || r == '?' }

func isClosing(r rune) bool { return strings.ContainsRune(`"')]”’»`, r) }

// isAbbreviation reports whether the word ending prefix is a single letter,
// an initialism or a known abbreviation.
func isAbbreviation(prefix []rune) bool {
	from := len(prefix)
	for from > 0 && !unicode.IsSpace(prefix[from-1]) {
		from--
	}
	word := strings.TrimLeft(string(prefix[from:]), `"'([“‘«`)
	if word == "" {
		return false
	}
	if utf8.RuneCountInString(word) == 1 || strings.Contains(word, ".") {
		return true
	}
	_, ok := abbreviations[strings.ToLower(word)]
	return ok
}

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct {
	stopwords map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{stopwords: defaultStopwords()}
}

// Summarize returns up to maxSentences of the highest-ranked sentences in
// their original order. Repeated sentences are counted once.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	all := SplitSentences(text)
	if len(all) == 0 {
		return strings.TrimSpace(text), nil
	}
	seen := make(map[string]struct{}, len(all))
	sentences := all[:0]
	for _, sent := range all {
		if _, dup := seen[sent]; dup {
			continue
		}
		seen[sent] = struct{}{}
		sentences = append(sentences, sent)
	}

	freq := map[string]float64{}
	maxF := 0.0
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			freq[tok]++
			if freq[tok] > maxF {
				maxF = freq[tok]
			}
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		score := 0.0
		for _, tok := range toks {
			score += freq[tok] / maxF
		}
		// normalise by length to avoid favouring long sentences
		if len(toks) > 0 {
			score /= math.Sqrt(float64(len(toks)))
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}

func (s *FrequencySummarizer) tokens(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := s.stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
