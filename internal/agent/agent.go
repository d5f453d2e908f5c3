// Package agent runs the tool-using reasoning loop: the model either
// answers or asks for tool calls, whose results are fed back until it
// answers or the iteration cap is hit.
package agent

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"chat-agent/internal/domain"
	"chat-agent/internal/llm"
	"chat-agent/internal/logging"
	"chat-agent/internal/tools"
)

// StoppedMessage is the answer when the loop runs out of iterations or time.
const StoppedMessage = "Agent stopped due to iteration limit or time limit."

const DefaultMaxIterations = 15

const SystemPrompt = `You are a helpful assistant who can answer questions about the weather, search Wikipedia for information, run Go code, and retrieve information from documents.
Use the provided tools when appropriate to answer user questions accurately.

If you don't know the answer, just say that you don't know, don't try to make up an answer.
If user asks about the weather, don't give just numbers. Give a proper summary with some of your suggestions for the weather condition.

When asked about the weather, ask for the location's latitude and longitude.
When asked to search for information, use the Wikipedia tool.
When asked to perform calculations or run code, use the code runner tool.
When asked about information that might be in documents, use what earlier answers in this conversation retrieved.`

type Agent struct {
	model         llm.ChatModel
	registry      *tools.Registry
	maxIterations int
	logger        *zap.Logger
}

func New(model llm.ChatModel, registry *tools.Registry, maxIterations int, logger *zap.Logger) *Agent {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Agent{model: model, registry: registry, maxIterations: maxIterations, logger: logging.OrNop(logger)}
}

// Messages builds the opening request: system prompt, history, then input.
func Messages(history []domain.Turn, input string) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt})
	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: input})
}

// Run answers input given the prior conversation. The final model reply is
// returned unchanged.
func (a *Agent) Run(ctx context.Context, history []domain.Turn, input string) (string, error) {
	msgs := Messages(history, input)
	defs := a.registry.Definitions()

	for i := 0; i < a.maxIterations; i++ {
		if ctx.Err() != nil {
			a.logger.Warn("agent stopped by context", zap.Error(ctx.Err()), zap.Int("iteration", i))
			return StoppedMessage, nil
		}
		reply, err := a.model.Chat(ctx, msgs, defs)
		if err != nil {
			return "", fmt.Errorf("agent step %d: %w", i+1, err)
		}
		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}
		if reply.Role == "" {
			reply.Role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, reply)
		for _, tc := range reply.ToolCalls {
			inv := a.registry.Dispatch(ctx, tc.Function.Name, tc.Function.Arguments)
			a.logger.Info("tool call",
				zap.Int("iteration", i+1),
				zap.String("tool", inv.Name),
				zap.Bool("ok", inv.Err == nil))
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    inv.Result,
				Name:       tc.Function.Name,
				ToolCallID: tc.ID,
			})
		}
	}
	a.logger.Warn("agent hit iteration limit", zap.Int("max_iterations", a.maxIterations))
	return StoppedMessage, nil
}
