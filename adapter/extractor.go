package adapter

import (
	"encoding/json"
	"log/slog"

	"github.com/tasklinehq/taskline"
	"github.com/tasklinehq/taskline/agent"
)

// Extractor maps a tool result into zero or more artifacts. Extractors must
// be pure: no side effects, no panics relied on for control flow. Callers
// must not assume exactly one artifact per tool call.
type Extractor func(toolName string, result agent.ToolCallResult) []taskline.Artifact

// DefaultExtractor turns structured tool output into a data artifact and
// plain text output into a text artifact. Tool errors produce no artifacts;
// they surface through the conversation instead.
func DefaultExtractor(toolName string, result agent.ToolCallResult) []taskline.Artifact {
	if result.IsError {
		return nil
	}

	var parts []taskline.Part
	switch {
	case result.Data != nil:
		parts = append(parts, taskline.NewDataPart(result.Data))
	case looksLikeJSON(result.Content):
		var decoded any
		if err := json.Unmarshal([]byte(result.Content), &decoded); err == nil {
			parts = append(parts, taskline.NewDataPart(decoded))
			break
		}
		parts = append(parts, taskline.NewTextPart(result.Content))
	case result.Content != "":
		parts = append(parts, taskline.NewTextPart(result.Content))
	}

	if len(parts) == 0 {
		return nil
	}

	artifact := taskline.NewArtifact(toolName, "tool execution result", parts...)
	artifact.Metadata = map[string]any{
		"tool_call_id": result.ToolCallID,
		"tool_name":    toolName,
	}
	return []taskline.Artifact{artifact}
}

func looksLikeJSON(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', '[':
			return true
		default:
			return false
		}
	}
	return false
}

// safeExtract shields the consumption loop from a panicking extractor.
// Extraction failures become zero artifacts plus a logged warning; they
// never fail the task.
func safeExtract(extract Extractor, logger *slog.Logger, toolName string, result agent.ToolCallResult) (artifacts []taskline.Artifact) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("artifact extractor panicked", "tool", toolName, "panic", r)
			artifacts = nil
		}
	}()
	return extract(toolName, result)
}
