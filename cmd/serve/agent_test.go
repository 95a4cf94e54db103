package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklinehq/taskline"
	"github.com/tasklinehq/taskline/agent"
)

func msgs(texts ...string) []taskline.Message {
	out := make([]taskline.Message, len(texts))
	for i, t := range texts {
		out[i] = taskline.NewMessage(taskline.MessageRoleUser, taskline.NewTextPart(t))
	}
	return out
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		count int
		sides int
	}{
		{"notation", []string{"roll 3d6"}, 3, 6},
		{"bare notation", []string{"d20 please"}, 1, 20},
		{"plain number", []string{"roll a 12 sided die"}, 1, 12},
		{"follow-up answer", []string{"roll a die", "6"}, 1, 6},
		{"no sides", []string{"roll a die"}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, sides := parseRequest(msgs(tt.texts...))
			assert.Equal(t, tt.count, count)
			assert.Equal(t, tt.sides, sides)
		})
	}
}

func TestDiceAgentAsksForSides(t *testing.T) {
	d := newDiceAgent()
	result, err := d.Generate(context.Background(), msgs("roll a die"), nil)
	require.NoError(t, err)
	assert.Equal(t, agent.FinishInputRequired, result.Reason)
}

func TestDiceAgentRolls(t *testing.T) {
	d := &diceAgent{roll: func(sides int) int { return sides }}
	result, err := d.Generate(context.Background(), msgs("roll 2d6"), nil)
	require.NoError(t, err)
	assert.Equal(t, agent.FinishStop, result.Reason)
	assert.Contains(t, result.Content, "got 6, 6 (total 12).")
	require.Len(t, result.ToolResults, 1)
	assert.Equal(t, "roll_dice", result.ToolResults[0].ToolName)
}
