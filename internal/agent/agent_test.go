package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-agent/internal/domain"
	"chat-agent/internal/tools"
)

func TestMain(m *testing.M) {
	tools.ServeSandbox()
	os.Exit(m.Run())
}

// scriptedModel replies with the next scripted message and records requests.
type scriptedModel struct {
	replies  []openai.ChatCompletionMessage
	err      error
	requests [][]openai.ChatCompletionMessage
	tools    []openai.Tool
}

func (m *scriptedModel) Chat(_ context.Context, msgs []openai.ChatCompletionMessage, defs []openai.Tool) (openai.ChatCompletionMessage, error) {
	m.requests = append(m.requests, append([]openai.ChatCompletionMessage(nil), msgs...))
	m.tools = defs
	if m.err != nil {
		return openai.ChatCompletionMessage{}, m.err
	}
	if len(m.requests) > len(m.replies) {
		return m.replies[len(m.replies)-1], nil
	}
	return m.replies[len(m.requests)-1], nil
}

func toolCall(id, name, args string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:       id,
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func answer(text string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text}
}

func TestRun_DirectAnswer(t *testing.T) {
	model := &scriptedModel{replies: []openai.ChatCompletionMessage{answer("Hello there.")}}
	a := New(model, tools.NewRegistry(nil, tools.NewCodeRunner(time.Second, 0)), 0, nil)

	history := []domain.Turn{
		{Role: domain.RoleUser, Text: "What is in the report?"},
		{Role: domain.RoleAssistant, Text: "The report covers Q3."},
	}
	out, err := a.Run(context.Background(), history, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", out)

	require.Len(t, model.requests, 1)
	sent := model.requests[0]
	require.Len(t, sent, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, sent[0].Role)
	assert.Equal(t, SystemPrompt, sent[0].Content)
	assert.Equal(t, openai.ChatMessageRoleAssistant, sent[2].Role)
	assert.Equal(t, "The report covers Q3.", sent[2].Content)
	assert.Equal(t, "hi", sent[3].Content)
	require.Len(t, model.tools, 1)
	assert.Equal(t, tools.CodeToolName, model.tools[0].Function.Name)
}

func TestRun_CodeToolRoundTrip(t *testing.T) {
	model := &scriptedModel{replies: []openai.ChatCompletionMessage{
		toolCall("call_1", tools.CodeToolName, `{"code": "6 * 7"}`),
		answer("The answer is 42."),
	}}
	a := New(model, tools.NewRegistry(nil, tools.NewCodeRunner(time.Second, 0)), 0, nil)

	out, err := a.Run(context.Background(), nil, "what is 6 times 7?")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", out)

	require.Len(t, model.requests, 2)
	second := model.requests[1]
	last := second[len(second)-1]
	assert.Equal(t, openai.ChatMessageRoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Equal(t, "42", last.Content)
	assert.Len(t, second[len(second)-2].ToolCalls, 1)
}

func TestRun_WeatherTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"hourly":{"temperature_2m":[20.1],"relative_humidity_2m":[40],"precipitation":[0.0],"wind_speed_10m":[5.0],"wind_direction_10m":[0],"weather_code":[0]}}`))
	}))
	defer srv.Close()

	model := &scriptedModel{replies: []openai.ChatCompletionMessage{
		toolCall("w1", tools.WeatherToolName, `{"latitude": 0, "longitude": 0}`),
		answer("Sunny and calm."),
	}}
	a := New(model, tools.NewRegistry(nil, tools.NewWeather(srv.URL, time.Second, nil)), 0, nil)

	out, err := a.Run(context.Background(), nil, "weather at 0,0?")
	require.NoError(t, err)
	assert.Equal(t, "Sunny and calm.", out)

	report := model.requests[1][len(model.requests[1])-1].Content
	assert.Contains(t, report, "Clear sky")
	assert.Contains(t, report, "from N")
}

func TestRun_UnknownToolIsReportedToModel(t *testing.T) {
	model := &scriptedModel{replies: []openai.ChatCompletionMessage{
		toolCall("x", "python-code-runner-tool", `{}`),
		answer("I cannot run Python."),
	}}
	a := New(model, tools.NewRegistry(nil), 0, nil)

	out, err := a.Run(context.Background(), nil, "run python")
	require.NoError(t, err)
	assert.Equal(t, "I cannot run Python.", out)
	feedback := model.requests[1][len(model.requests[1])-1].Content
	assert.True(t, strings.HasPrefix(feedback, "unknown tool"), feedback)
}

func TestRun_IterationLimit(t *testing.T) {
	model := &scriptedModel{replies: []openai.ChatCompletionMessage{
		toolCall("loop", tools.CodeToolName, `{"code": "1"}`),
	}}
	a := New(model, tools.NewRegistry(nil, tools.NewCodeRunner(time.Second, 0)), 3, nil)

	out, err := a.Run(context.Background(), nil, "loop forever")
	require.NoError(t, err)
	assert.Equal(t, StoppedMessage, out)
	assert.Len(t, model.requests, 3)
}

func TestRun_CancelledContext(t *testing.T) {
	model := &scriptedModel{replies: []openai.ChatCompletionMessage{answer("never")}}
	a := New(model, tools.NewRegistry(nil), 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := a.Run(ctx, nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, StoppedMessage, out)
	assert.Empty(t, model.requests)
}

func TestRun_ModelError(t *testing.T) {
	model := &scriptedModel{err: errors.New("rate limited")}
	a := New(model, tools.NewRegistry(nil), 0, nil)

	_, err := a.Run(context.Background(), nil, "hi")
	assert.ErrorContains(t, err, "rate limited")
}
