package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklinehq/taskline"
	"github.com/tasklinehq/taskline/adapter"
	"github.com/tasklinehq/taskline/agent"
	"github.com/tasklinehq/taskline/store"
)

// scriptAgent replays a fixed event script for every invocation.
type scriptAgent struct {
	events []agent.Event
}

func (s *scriptAgent) Generate(ctx context.Context, msgs []taskline.Message, call *agent.CallContext) (*agent.Result, error) {
	return agent.Drain(ctx, agent.FromSlice(s.events...))
}

func (s *scriptAgent) Stream(ctx context.Context, msgs []taskline.Message, call *agent.CallContext) (agent.Stream, error) {
	return agent.FromSlice(s.events...), nil
}

func newTestServer(t *testing.T, events []agent.Event) (*httptest.Server, store.TaskStore) {
	t.Helper()
	mem := store.NewMemory()
	a := adapter.New(&scriptAgent{events: events}, mem, adapter.Config{})
	h := NewHandler(a, mem, AgentCard{Name: "dice-agent", Version: "1.0.0"})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, mem
}

func rollScript() []agent.Event {
	return []agent.Event{
		{Type: agent.TextDelta, Delta: "Rolling a d6... "},
		{Type: agent.TextDelta, Delta: "got 4"},
		{Type: agent.Finish, Reason: agent.FinishStop},
	}
}

func TestSendMessageReturnsCompletedTask(t *testing.T) {
	srv, _ := newTestServer(t, rollScript())
	client := NewClient(srv.URL)

	task, err := client.SendText(context.Background(), "roll a d6")
	require.NoError(t, err)
	assert.Equal(t, taskline.TaskStateCompleted, task.Status.State)
	require.Len(t, task.History, 2)
	assert.Equal(t, "Rolling a d6... got 4", task.History[1].TextContent())
}

func TestSendMessageValidationError(t *testing.T) {
	srv, _ := newTestServer(t, rollScript())
	client := NewClient(srv.URL)

	_, err := client.SendMessage(context.Background(), taskline.NewMessage(taskline.MessageRoleUser))
	var rpcErr *rpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, codeInvalidParams, rpcErr.Code)
}

func TestStreamMessageDeliversEvents(t *testing.T) {
	srv, _ := newTestServer(t, rollScript())
	client := NewClient(srv.URL)

	events, err := client.StreamMessage(context.Background(),
		taskline.NewMessage(taskline.MessageRoleUser, taskline.NewTextPart("roll a d6")))
	require.NoError(t, err)

	var text strings.Builder
	var final *taskline.TaskStatusUpdateEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				require.NotNil(t, final)
				assert.Equal(t, taskline.TaskStateCompleted, final.Status.State)
				assert.Equal(t, "Rolling a d6... got 4", text.String())
				return
			}
			switch e := ev.(type) {
			case taskline.MessageDeltaEvent:
				text.WriteString(e.Delta)
			case taskline.TaskStatusUpdateEvent:
				if e.Final {
					final = &e
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for stream events")
		}
	}
}

func TestTasksGet(t *testing.T) {
	srv, mem := newTestServer(t, rollScript())
	client := NewClient(srv.URL)

	created, err := client.SendText(context.Background(), "roll a d6")
	require.NoError(t, err)

	got, err := client.GetTask(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, taskline.TaskStateCompleted, got.Status.State)

	// stored snapshot is untouched by the wire copy
	stored, err := mem.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Len(t, stored.History, 2)
}

func TestTasksGetHistoryLength(t *testing.T) {
	srv, _ := newTestServer(t, rollScript())
	client := NewClient(srv.URL)

	created, err := client.SendText(context.Background(), "roll a d6")
	require.NoError(t, err)

	one := 1
	raw := rpcCall(t, srv.URL, MethodTasksGet, TaskQueryParams{ID: created.ID, HistoryLength: &one})
	var task taskline.Task
	require.NoError(t, json.Unmarshal(raw, &task))
	require.Len(t, task.History, 1)
	assert.Equal(t, taskline.MessageRoleAgent, task.History[0].Role)
}

func TestTasksGetNotFound(t *testing.T) {
	srv, _ := newTestServer(t, rollScript())
	client := NewClient(srv.URL)

	_, err := client.GetTask(context.Background(), "missing")
	var rpcErr *rpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, codeTaskNotFound, rpcErr.Code)
}

func TestTasksCancelIdleTask(t *testing.T) {
	srv, mem := newTestServer(t, rollScript())
	client := NewClient(srv.URL)

	task := taskline.NewTask("task-1", "ctx-1")
	require.NoError(t, task.Transition(taskline.TaskStateWorking, nil))
	require.NoError(t, task.Transition(taskline.TaskStateInputRequired, nil))
	task.Revision = 1
	require.NoError(t, mem.Save(context.Background(), task))

	got, err := client.CancelTask(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, taskline.TaskStateCanceled, got.Status.State)
}

func TestTasksCancelNotFound(t *testing.T) {
	srv, _ := newTestServer(t, rollScript())
	client := NewClient(srv.URL)

	_, err := client.CancelTask(context.Background(), "missing")
	var rpcErr *rpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, codeTaskNotFound, rpcErr.Code)
}

func TestMethodNotFound(t *testing.T) {
	srv, _ := newTestServer(t, rollScript())

	body, _ := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: json.RawMessage(`"1"`), Method: "tasks/resubscribe"})
	resp, err := http.Post(srv.URL, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw := struct {
		Error *rpcError `json:"error"`
	}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	require.NotNil(t, raw.Error)
	assert.Equal(t, codeMethodNotFound, raw.Error.Code)
}

func TestAgentCardEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, rollScript())
	client := NewClient(srv.URL)

	card, err := client.AgentCard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dice-agent", card.Name)
	assert.True(t, card.Capabilities.Streaming)
	assert.Equal(t, []string{"text"}, card.DefaultInputModes)
}

func rpcCall(t *testing.T, url, method string, params any) json.RawMessage {
	t.Helper()
	rawParams, err := json.Marshal(params)
	require.NoError(t, err)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`"1"`),
		Method:  method,
		Params:  rawParams,
	})
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	require.Nil(t, rpcResp.Error)
	return rpcResp.Result
}
