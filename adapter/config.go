package adapter

import (
	"log/slog"

	"github.com/tasklinehq/taskline/durable"
	"github.com/tasklinehq/taskline/retry"
	"github.com/tasklinehq/taskline/router"
)

// Mode selects how the adapter invokes the agent.
type Mode string

const (
	// ModeStream consumes the agent's event stream, forwarding deltas as
	// they arrive. This is the default.
	ModeStream Mode = "stream"

	// ModeGenerate makes one blocking Generate call and synthesizes the
	// protocol events from its result. Required for durable replay of the
	// whole invocation.
	ModeGenerate Mode = "generate"
)

// Config is the static configuration for an Adapter. The zero value is
// usable: streaming mode, task-only routing, default extraction.
type Config struct {
	// Mode selects streaming or blocking agent invocation.
	Mode Mode

	// WorkingStatusText, when set, is attached as the status message of
	// the working status-update.
	WorkingStatusText string

	// IncludeHistoryInPrompt sends the task's full message history to the
	// agent rather than only the inbound message.
	IncludeHistoryInPrompt bool

	// Router decides message-vs-task per request. Nil means every request
	// becomes a task.
	Router *router.Router

	// Extractor maps tool results to artifacts. Nil uses DefaultExtractor.
	Extractor Extractor

	// DurableCache enables durable replay: in ModeGenerate the whole agent
	// invocation becomes a cached step keyed by task id and inbound message
	// id, and transient agent failures retry per RetryConfig.
	DurableCache durable.Cache

	// RetryConfig governs persistence write retries and, with durability
	// enabled, agent invocation retries. Zero value uses retry defaults.
	RetryConfig retry.Config

	// DebugLogging enables per-event debug logs.
	DebugLogging bool

	// Logger is the structured logger (default slog.Default).
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeStream
	}
	if c.Extractor == nil {
		c.Extractor = DefaultExtractor
	}
	if c.RetryConfig.MaxAttempts == 0 {
		c.RetryConfig = retry.DefaultConfig()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
