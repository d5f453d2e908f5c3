// Package console is the line-oriented chat loop on stdin/stdout.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"chat-agent/internal/app"
	"chat-agent/internal/domain"
	"chat-agent/internal/service"
)

// Assistant is the part of app.App the console drives.
type Assistant interface {
	Init(ctx context.Context) (string, error)
	Turn(ctx context.Context, key, input string) app.Reply
}

// Console reads one question per line and prints each answer with the
// path that produced it.
type Console struct {
	in        io.Reader
	out       io.Writer
	assistant Assistant
	key       string
	docsDir   string

	label lipgloss.Style
	muted lipgloss.Style
}

func New(in io.Reader, out io.Writer, assistant Assistant, sessionKey, docsDir string) *Console {
	// a renderer bound to out prints plain text when out is not a terminal
	r := lipgloss.NewRenderer(out)
	return &Console{
		in:        in,
		out:       out,
		assistant: assistant,
		key:       sessionKey,
		docsDir:   docsDir,
		label:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		muted:     r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Run loops until an exit word, end of input or ctx cancellation.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, "Welcome to the AI Assistant! Type 'exit' to end the conversation.")
	fmt.Fprintln(c.out, "This assistant can help with weather information, Wikipedia searches, running Go code, and retrieving information from documents.")
	fmt.Fprintln(c.out, "Initializing systems...")
	summary, err := c.assistant.Init(ctx)
	switch {
	case errors.Is(err, service.ErrNoDocuments):
		fmt.Fprintln(c.out, c.muted.Render("No documents found; questions will be answered with tools."))
	case err != nil:
		fmt.Fprintln(c.out, c.muted.Render("Document index unavailable: "+err.Error()))
	case summary != "":
		fmt.Fprintln(c.out, c.muted.Render("Corpus summary: "+summary))
	}
	fmt.Fprintf(c.out, "All systems initialized. You can now ask questions about documents in the '%s' directory or use tools.\n", c.docsDir)

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(c.out, "\n"+c.label.Render("You:")+" ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		reply := c.assistant.Turn(ctx, c.key, input)
		if reply.Exit {
			fmt.Fprintf(c.out, "\n%s %s\n", c.label.Render("AI:"), reply.Text)
			return nil
		}
		fmt.Fprintf(c.out, "\n%s %s\n", c.label.Render(pathLabel(reply.Path)), reply.Text)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\n%s %s\n", c.label.Render("AI:"), app.Farewell)
	return nil
}

func pathLabel(path domain.Label) string {
	if path == domain.LabelDocument {
		return "AI (Document):"
	}
	return "AI (Tool):"
}
