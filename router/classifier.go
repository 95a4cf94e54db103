package router

import (
	"context"
	"strings"

	"github.com/tasklinehq/taskline"
	"github.com/tasklinehq/taskline/agent"
)

// taskMarkers are phrases that suggest multi-step or long-running work.
// The heuristic is deliberately coarse; anything ambiguous routes to task.
var taskMarkers = []string{
	"generate",
	"create",
	"build",
	"write",
	"analyze",
	"research",
	"process",
	"convert",
	"plan",
	"book",
	"file",
	"submit",
	"run",
}

// Heuristic is a keyword classifier. Short conversational requests become
// messages; anything that reads like work becomes a task.
type Heuristic struct{}

var _ Classifier = Heuristic{}

// Classify applies the keyword heuristic.
func (Heuristic) Classify(_ context.Context, text string) (Decision, error) {
	lower := strings.ToLower(text)
	for _, marker := range taskMarkers {
		if strings.Contains(lower, marker) {
			return DecisionTask, nil
		}
	}
	return DecisionMessage, nil
}

const classifyPrompt = `Decide whether the user request below needs tracked, possibly long-running work ("task") or a direct conversational answer ("message"). Reply with exactly one word: task or message.

Request: `

// AgentClassifier asks a classification model, anything satisfying
// [agent.Agent], for the decision. Use a small, fast model here; the
// classification runs on the request path before any task exists.
type AgentClassifier struct {
	agent agent.Agent
}

// NewAgentClassifier creates a classifier backed by the given agent.
func NewAgentClassifier(a agent.Agent) *AgentClassifier {
	return &AgentClassifier{agent: a}
}

var _ Classifier = (*AgentClassifier)(nil)

// Classify sends the request text to the classification agent and parses
// its one-word answer. Any unparseable answer is an error, which the
// router converts into its fallback.
func (c *AgentClassifier) Classify(ctx context.Context, text string) (Decision, error) {
	prompt := taskline.NewMessage(taskline.MessageRoleUser, taskline.NewTextPart(classifyPrompt+text))

	result, err := c.agent.Generate(ctx, []taskline.Message{prompt}, nil)
	if err != nil {
		return "", err
	}

	answer := strings.ToLower(strings.TrimSpace(result.Content))
	switch {
	case strings.HasPrefix(answer, "task"):
		return DecisionTask, nil
	case strings.HasPrefix(answer, "message"):
		return DecisionMessage, nil
	default:
		return "", taskline.NewAgentError("classifier returned unparseable answer: "+answer, nil)
	}
}
