// Package router chooses the answering path for a query and applies the
// fallback policy between the document index and the agent.
package router

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"chat-agent/internal/domain"
	"chat-agent/internal/logging"
	"chat-agent/internal/service"
)

// Index is the document index as seen by the router.
type Index interface {
	Ready() bool
	Answer(ctx context.Context, query string) domain.Answer
}

// Classifier labels a query.
type Classifier interface {
	Classify(ctx context.Context, query string) domain.Label
}

// BuildFunc builds the index and returns a corpus summary.
type BuildFunc func(ctx context.Context) (string, error)

// Decision is the outcome of routing one query. Text is set only when Path
// is DOCUMENT; a TOOL decision leaves the answer to the agent.
type Decision struct {
	Path domain.Label
	Text string
}

type Router struct {
	index      Index
	classifier Classifier
	build      BuildFunc
	logger     *zap.Logger

	once     sync.Once
	summary  string
	buildErr error
}

func New(index Index, classifier Classifier, build BuildFunc, logger *zap.Logger) *Router {
	return &Router{index: index, classifier: classifier, build: build, logger: logging.OrNop(logger)}
}

// Ensure builds the index on first call and returns the cached result on
// every later call.
func (r *Router) Ensure(ctx context.Context) (string, error) {
	r.once.Do(func() {
		if r.build == nil {
			return
		}
		// a caller cancelling its own request must not poison the cached result
		r.summary, r.buildErr = r.build(context.WithoutCancel(ctx))
		switch {
		case errors.Is(r.buildErr, service.ErrNoDocuments):
			r.logger.Warn("no documents to index, document answers disabled")
		case r.buildErr != nil:
			r.logger.Error("index build failed", zap.Error(r.buildErr))
		}
	})
	return r.summary, r.buildErr
}

// Route never fails: every problem on the document path becomes a TOOL
// decision.
func (r *Router) Route(ctx context.Context, query string) Decision {
	_, _ = r.Ensure(ctx)
	if !r.index.Ready() {
		r.logger.Debug("index not ready, routing to tools")
		return Decision{Path: domain.LabelTool}
	}

	label := r.classifier.Classify(ctx, query)
	if label != domain.LabelDocument {
		r.logger.Debug("routed", zap.String("path", string(domain.LabelTool)))
		return Decision{Path: domain.LabelTool}
	}

	ans := r.index.Answer(ctx, query)
	switch ans.Kind {
	case domain.Answered:
		r.logger.Debug("routed", zap.String("path", string(domain.LabelDocument)))
		return Decision{Path: domain.LabelDocument, Text: ans.Text}
	case domain.Unavailable:
		r.logger.Info("document index unavailable, falling back to tools")
	default:
		r.logger.Warn("document answer failed, falling back to tools", zap.Error(ans.Err))
	}
	return Decision{Path: domain.LabelTool}
}
