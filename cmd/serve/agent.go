package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tasklinehq/taskline"
	"github.com/tasklinehq/taskline/agent"
)

// diceAgent is a self-contained demo agent. It parses dice notation from
// the conversation, asks for the number of sides when none is given, and
// reports each roll as a tool result so it surfaces as a task artifact.
type diceAgent struct {
	roll func(sides int) int
}

func newDiceAgent() *diceAgent {
	return &diceAgent{roll: func(sides int) int { return rand.Intn(sides) + 1 }}
}

var (
	notationRe = regexp.MustCompile(`(?i)(\d*)d(\d+)`)
	numberRe   = regexp.MustCompile(`\d+`)
)

// parseRequest extracts (count, sides) from the latest user text, falling
// back over earlier turns so a bare "6" answers an earlier "roll a die".
func parseRequest(msgs []taskline.Message) (count, sides int) {
	for i := len(msgs) - 1; i >= 0; i-- {
		text := msgs[i].TextContent()
		if m := notationRe.FindStringSubmatch(text); m != nil {
			count = 1
			if m[1] != "" {
				count, _ = strconv.Atoi(m[1])
			}
			sides, _ = strconv.Atoi(m[2])
			return count, sides
		}
		if m := numberRe.FindString(text); m != "" {
			sides, _ = strconv.Atoi(m)
			return 1, sides
		}
	}
	return 0, 0
}

func (d *diceAgent) Generate(ctx context.Context, msgs []taskline.Message, call *agent.CallContext) (*agent.Result, error) {
	stream, err := d.Stream(ctx, msgs, call)
	if err != nil {
		return nil, err
	}
	return agent.Drain(ctx, stream)
}

func (d *diceAgent) Stream(ctx context.Context, msgs []taskline.Message, _ *agent.CallContext) (agent.Stream, error) {
	count, sides := parseRequest(msgs)
	if sides < 2 {
		return agent.FromSlice(
			agent.Event{Type: agent.TextDelta, Delta: "How many sides should the die have?"},
			agent.Event{Type: agent.Finish, Reason: agent.FinishInputRequired},
		), nil
	}
	if count < 1 {
		count = 1
	}
	if count > 100 {
		count = 100
	}

	events := []agent.Event{
		{Type: agent.TextDelta, Delta: fmt.Sprintf("Rolling %dd%d... ", count, sides)},
	}

	total := 0
	rolls := make([]int, 0, count)
	for i := 0; i < count; i++ {
		r := d.roll(sides)
		rolls = append(rolls, r)
		total += r
	}

	args, _ := json.Marshal(map[string]int{"count": count, "sides": sides})
	callID := uuid.New().String()
	events = append(events,
		agent.Event{Type: agent.ToolCallStart, ToolCall: &agent.ToolCall{
			ID:        callID,
			Name:      "roll_dice",
			Arguments: args,
		}},
		agent.Event{Type: agent.ToolResult, ToolResult: &agent.ToolCallResult{
			ToolCallID: callID,
			ToolName:   "roll_dice",
			Data:       map[string]any{"rolls": rolls, "total": total},
		}},
	)

	summary := make([]string, len(rolls))
	for i, r := range rolls {
		summary[i] = strconv.Itoa(r)
	}
	events = append(events,
		agent.Event{Type: agent.TextDelta, Delta: fmt.Sprintf("got %s (total %d).", strings.Join(summary, ", "), total)},
		agent.Event{Type: agent.Finish, Reason: agent.FinishStop},
	)

	return agent.FromSlice(events...), nil
}
