package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-agent/internal/app"
	"chat-agent/internal/domain"
	"chat-agent/internal/service"
)

type scriptedAssistant struct {
	summary string
	initErr error
	inputs  []string
}

func (s *scriptedAssistant) Init(context.Context) (string, error) { return s.summary, s.initErr }

func (s *scriptedAssistant) Turn(_ context.Context, key, input string) app.Reply {
	s.inputs = append(s.inputs, key+":"+input)
	if app.IsExit(input) {
		return app.Reply{Exit: true, Text: app.Farewell}
	}
	if strings.Contains(input, "capital") {
		return app.Reply{Path: domain.LabelDocument, Text: "Paris."}
	}
	return app.Reply{Path: domain.LabelTool, Text: "42"}
}

func TestRun_Conversation(t *testing.T) {
	in := strings.NewReader("What is the capital of France?\n\n6*7?\nbye\nnever read\n")
	var out bytes.Buffer
	asst := &scriptedAssistant{summary: "Paris is the capital of France."}

	require.NoError(t, New(in, &out, asst, "s1", "docs").Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Welcome to the AI Assistant! Type 'exit' to end the conversation.")
	assert.Contains(t, text, "Corpus summary: Paris is the capital of France.")
	assert.Contains(t, text, "questions about documents in the 'docs' directory")
	assert.Contains(t, text, "AI (Document): Paris.")
	assert.Contains(t, text, "AI (Tool): 42")
	assert.True(t, strings.HasSuffix(text, "AI: Goodbye! Have a great day!\n"), text)
	assert.Equal(t, []string{"s1:What is the capital of France?", "s1:6*7?", "s1:bye"}, asst.inputs)
}

func TestRun_EndOfInput(t *testing.T) {
	var out bytes.Buffer
	asst := &scriptedAssistant{initErr: service.ErrNoDocuments}

	require.NoError(t, New(strings.NewReader("hello"), &out, asst, "s", "docs").Run(context.Background()))
	assert.Contains(t, out.String(), "No documents found")
	assert.Contains(t, out.String(), "AI (Tool): 42")
	assert.True(t, strings.HasSuffix(out.String(), "AI: Goodbye! Have a great day!\n"))
}

func TestRun_IndexError(t *testing.T) {
	var out bytes.Buffer
	asst := &scriptedAssistant{initErr: errors.New("qdrant unreachable")}

	require.NoError(t, New(strings.NewReader(""), &out, asst, "s", "docs").Run(context.Background()))
	assert.Contains(t, out.String(), "Document index unavailable: qdrant unreachable")
	assert.Empty(t, asst.inputs)
}
