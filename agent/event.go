package agent

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of agent event.
type Type string

const (
	// TextDelta carries one streamed increment of response text.
	TextDelta Type = "text_delta"

	// ReasoningDelta carries one streamed increment of reasoning trace.
	ReasoningDelta Type = "reasoning_delta"

	// ToolCallStart fires when the agent begins a tool call.
	ToolCallStart Type = "tool_call_start"

	// ToolResult fires with the result of a completed tool call.
	ToolResult Type = "tool_result"

	// Finish terminates a successful stream and carries the finish reason.
	Finish Type = "finish"

	// Error terminates a failed stream and carries the cause.
	Error Type = "error"
)

// FinishReason explains why the agent stopped generating.
type FinishReason string

const (
	// FinishStop is natural completion.
	FinishStop FinishReason = "stop"

	// FinishInputRequired means the agent explicitly needs a follow-up
	// message before it can continue.
	FinishInputRequired FinishReason = "input-required"

	// FinishLength means generation hit an output limit.
	FinishLength FinishReason = "length"
)

// ToolCall describes a tool invocation requested by the agent.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolCallResult is the outcome of a tool execution.
type ToolCallResult struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	// Content is the textual result handed back to the model.
	Content string `json:"content,omitempty"`
	// Data is optional structured output, kept alongside Content so
	// artifact extraction does not have to re-parse text.
	Data    any  `json:"data,omitempty"`
	IsError bool `json:"isError,omitempty"`
}

// Event is one occurrence in an agent's generation stream. Events are
// emitted strictly in generation order and are never persisted.
type Event struct {
	// Type identifies the kind of event.
	Type Type

	// Delta contains streaming content for TextDelta and ReasoningDelta.
	Delta string

	// ToolCall is set for ToolCallStart.
	ToolCall *ToolCall

	// ToolResult is set for ToolResult events.
	ToolResult *ToolCallResult

	// Reason is set for Finish events.
	Reason FinishReason

	// Err is set for Error events.
	Err error

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Result is the outcome of a blocking Generate call.
type Result struct {
	// Content is the complete generated text.
	Content string

	// Reason explains why generation stopped.
	Reason FinishReason

	// ToolResults holds the results of any tool calls the agent made.
	ToolResults []ToolCallResult
}
