package agent

import (
	"context"

	"github.com/tasklinehq/taskline"
)

// CallContext is optional per-call context passed alongside the message
// history. All fields may be zero.
type CallContext struct {
	// TaskID is the task this call is executing under, if any.
	TaskID string

	// ContextID groups related calls into one conversation.
	ContextID string

	// Metadata carries caller-defined values through to the agent.
	Metadata map[string]any
}

// Agent is the conversational capability taskline adapts. Given a message
// history it either returns a single result or an ordered, finite,
// non-restartable sequence of events.
type Agent interface {
	// Generate runs the agent to completion and returns the final result.
	Generate(ctx context.Context, messages []taskline.Message, call *CallContext) (*Result, error)

	// Stream runs the agent and returns its event stream. The stream is
	// finite and may be consumed exactly once.
	Stream(ctx context.Context, messages []taskline.Message, call *CallContext) (Stream, error)
}
