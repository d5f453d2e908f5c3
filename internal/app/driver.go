package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"chat-agent/internal/domain"
	"chat-agent/internal/logging"
	"chat-agent/internal/router"
	"chat-agent/internal/session"
)

const (
	Farewell = "Goodbye! Have a great day!"
	// DefaultHistoryPairs is k: a session keeps its last 2k turns.
	DefaultHistoryPairs = 5
)

var exitWords = map[string]struct{}{"exit": {}, "quit": {}, "bye": {}}

// IsExit reports whether input asks to end the conversation.
func IsExit(input string) bool {
	_, ok := exitWords[strings.ToLower(strings.TrimSpace(input))]
	return ok
}

// Router picks the answering path for a query.
type Router interface {
	Route(ctx context.Context, query string) router.Decision
}

// Agent answers a query with tools, given the conversation so far.
type Agent interface {
	Run(ctx context.Context, history []domain.Turn, input string) (string, error)
}

// Reply is what the user sees for one turn.
type Reply struct {
	Path domain.Label
	Text string
	Exit bool
}

// Driver runs one user turn at a time against a session store.
type Driver struct {
	router       Router
	agent        Agent
	sessions     *session.Store
	historyPairs int
	logger       *zap.Logger
}

func NewDriver(r Router, a Agent, sessions *session.Store, historyPairs int, logger *zap.Logger) *Driver {
	if historyPairs <= 0 {
		historyPairs = DefaultHistoryPairs
	}
	return &Driver{router: r, agent: a, sessions: sessions, historyPairs: historyPairs, logger: logging.OrNop(logger)}
}

// Turn answers input within the session named key. It never fails; agent
// errors become an apology on the TOOL path.
func (d *Driver) Turn(ctx context.Context, key, input string) Reply {
	if IsExit(input) {
		return Reply{Exit: true, Text: Farewell}
	}
	sess := d.sessions.Get(key)
	if n := sess.CountUserTurn(); n > d.historyPairs {
		sess.Truncate(d.historyPairs)
	}

	reply := d.answer(ctx, sess, input)
	sess.Append(domain.RoleUser, input)
	sess.Append(domain.RoleAssistant, reply.Text)
	d.logger.Info("turn answered",
		zap.String("session", key),
		zap.String("path", string(reply.Path)),
		zap.Int("history", sess.Len()))
	return reply
}

func (d *Driver) answer(ctx context.Context, sess *session.Session, input string) Reply {
	dec := d.router.Route(ctx, input)
	if dec.Path == domain.LabelDocument && dec.Text != "" && !strings.Contains(dec.Text, "not initialized") {
		return Reply{Path: domain.LabelDocument, Text: dec.Text}
	}
	out, err := d.agent.Run(ctx, sess.Turns(), input)
	if err != nil {
		d.logger.Error("agent failed", zap.Error(err))
		return Reply{Path: domain.LabelTool, Text: fmt.Sprintf("Sorry, I could not complete that request: %v", err)}
	}
	return Reply{Path: domain.LabelTool, Text: out}
}
