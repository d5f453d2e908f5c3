// Package classifier decides whether a query should be answered from the
// document index or by the tool-using agent.
package classifier

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"chat-agent/internal/domain"
	"chat-agent/internal/llm"
	"chat-agent/internal/logging"
)

const promptTemplate = `You are a query classifier that determines the most appropriate system to handle a user query.

Classify the following query into one of these categories:
1. DOCUMENT - If the query is asking about information that might be found in documents or requires retrieving specific content from a knowledge base.
2. TOOL - If the query is about weather, requires Wikipedia searches, needs code execution, or other tool-based operations.

Query: {query}

Classification (respond with only DOCUMENT or TOOL):`

// Classifier labels queries with one generation call each. It looks only at
// the current query, not at earlier turns.
type Classifier struct {
	generator llm.Generator
	logger    *zap.Logger
}

func New(generator llm.Generator, logger *zap.Logger) *Classifier {
	return &Classifier{generator: generator, logger: logging.OrNop(logger)}
}

// Prompt returns the classification prompt for query.
func Prompt(query string) string {
	return strings.Replace(promptTemplate, "{query}", query, 1)
}

// Classify returns DOCUMENT or TOOL. Generation errors and unexpected
// replies fall back to TOOL.
func (c *Classifier) Classify(ctx context.Context, query string) domain.Label {
	raw, err := c.generator.Generate(ctx, Prompt(query))
	if err != nil {
		c.logger.Warn("classification failed, using TOOL", zap.Error(err))
		return domain.LabelTool
	}
	label := Normalize(raw)
	c.logger.Debug("query classified", zap.String("raw", raw), zap.String("label", string(label)))
	return label
}

// Normalize maps a raw model reply onto a label: the trimmed, upper-cased
// reply must be exactly DOCUMENT or TOOL, anything else is TOOL.
func Normalize(raw string) domain.Label {
	switch domain.Label(strings.ToUpper(strings.TrimSpace(raw))) {
	case domain.LabelDocument:
		return domain.LabelDocument
	default:
		return domain.LabelTool
	}
}
