package adapter

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklinehq/taskline"
	"github.com/tasklinehq/taskline/agent"
)

func TestDefaultExtractorData(t *testing.T) {
	artifacts := DefaultExtractor("roll_dice", agent.ToolCallResult{
		ToolCallID: "tc-1",
		ToolName:   "roll_dice",
		Data:       map[string]any{"result": 4},
	})
	require.Len(t, artifacts, 1)
	assert.Equal(t, "roll_dice", artifacts[0].Name)
	require.Len(t, artifacts[0].Parts, 1)
	assert.IsType(t, taskline.DataPart{}, artifacts[0].Parts[0])
	assert.Equal(t, "tc-1", artifacts[0].Metadata["tool_call_id"])
}

func TestDefaultExtractorJSONContent(t *testing.T) {
	artifacts := DefaultExtractor("lookup", agent.ToolCallResult{Content: `{"hits": 2}`})
	require.Len(t, artifacts, 1)
	assert.IsType(t, taskline.DataPart{}, artifacts[0].Parts[0])
}

func TestDefaultExtractorTextContent(t *testing.T) {
	artifacts := DefaultExtractor("lookup", agent.ToolCallResult{Content: "two results"})
	require.Len(t, artifacts, 1)
	assert.IsType(t, taskline.TextPart{}, artifacts[0].Parts[0])
}

func TestDefaultExtractorSkipsErrorsAndEmpty(t *testing.T) {
	assert.Nil(t, DefaultExtractor("lookup", agent.ToolCallResult{Content: "boom", IsError: true}))
	assert.Nil(t, DefaultExtractor("lookup", agent.ToolCallResult{}))
}

func TestSafeExtractRecoversPanic(t *testing.T) {
	panicky := func(string, agent.ToolCallResult) []taskline.Artifact {
		panic("bad extractor")
	}
	artifacts := safeExtract(panicky, slog.Default(), "lookup", agent.ToolCallResult{Content: "x"})
	assert.Nil(t, artifacts)
}
