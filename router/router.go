// Package router decides, per inbound request, whether the reply is an
// ephemeral message or a lifecycle-tracked task.
//
// The decision is made once per new request. Continuations of an existing,
// non-terminal task are always tasks; everything else goes through a
// pluggable classifier with a configured fallback for classifier failure.
package router

import (
	"context"
	"log/slog"

	"github.com/tasklinehq/taskline"
)

// Decision is the response type for an inbound request. Handle it with an
// exhaustive switch; there are exactly two values.
type Decision string

const (
	// DecisionMessage answers the request as a stateless message.
	DecisionMessage Decision = "message"

	// DecisionTask answers the request as a lifecycle-tracked task.
	// It is the safer fallback: a task preserves full lifecycle tracking,
	// a message cannot be upgraded after the fact.
	DecisionTask Decision = "task"
)

// Request is the routing input: the inbound user message plus, for
// continuations, the task it references.
type Request struct {
	Message  taskline.Message
	Existing *taskline.Task
}

// Classifier decides the response type from the extracted text of the
// user message.
type Classifier interface {
	Classify(ctx context.Context, text string) (Decision, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, text string) (Decision, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, text string) (Decision, error) {
	return f(ctx, text)
}

// Router computes response type decisions. It performs no writes and is
// safe to invoke before any task exists.
type Router struct {
	classifier Classifier
	fallback   Decision
	logger     *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithClassifier sets the classifier applied to new (non-continuation)
// requests. Without one the router always returns the fallback.
func WithClassifier(c Classifier) Option {
	return func(r *Router) {
		r.classifier = c
	}
}

// WithFallback sets the decision used when no classifier is configured or
// the classifier fails (default DecisionTask).
func WithFallback(d Decision) Option {
	return func(r *Router) {
		r.fallback = d
	}
}

// WithLogger sets the logger for classifier failures (default slog.Default).
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// New creates a Router.
func New(opts ...Option) *Router {
	r := &Router{
		fallback: DecisionTask,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Decide returns the response type for the request.
//
// A request that continues an existing, non-terminal task is a task
// unconditionally; continuations never downgrade to ephemeral messages.
// Otherwise the classifier runs over the message text, falling back to the
// configured default on failure.
func (r *Router) Decide(ctx context.Context, req Request) Decision {
	if req.Existing != nil && !req.Existing.Status.State.IsTerminal() {
		return DecisionTask
	}

	if r.classifier == nil {
		return r.fallback
	}

	decision, err := r.classifier.Classify(ctx, req.Message.TextContent())
	if err != nil {
		r.logger.Warn("response type classification failed, using fallback",
			"error", err, "fallback", string(r.fallback))
		return r.fallback
	}
	switch decision {
	case DecisionMessage, DecisionTask:
		return decision
	default:
		r.logger.Warn("classifier returned unknown decision, using fallback",
			"decision", string(decision), "fallback", string(r.fallback))
		return r.fallback
	}
}
