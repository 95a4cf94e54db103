package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tasklinehq/taskline"
)

// Client calls a remote task adapter over JSON-RPC.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// NewClient creates a new client for the given endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage sends a message and blocks until the task reaches a resting
// state, returning the final snapshot.
func (c *Client) SendMessage(ctx context.Context, msg taskline.Message) (*taskline.Task, error) {
	raw, err := c.call(ctx, MethodMessageSend, SendMessageParams{Message: msg})
	if err != nil {
		return nil, err
	}
	var task taskline.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("failed to parse task: %w", err)
	}
	return &task, nil
}

// SendText is a convenience method that sends a text message.
func (c *Client) SendText(ctx context.Context, text string) (*taskline.Task, error) {
	return c.SendMessage(ctx, taskline.NewMessage(taskline.MessageRoleUser, taskline.NewTextPart(text)))
}

// GetTask fetches the current snapshot of a task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*taskline.Task, error) {
	raw, err := c.call(ctx, MethodTasksGet, TaskQueryParams{ID: taskID})
	if err != nil {
		return nil, err
	}
	var task taskline.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("failed to parse task: %w", err)
	}
	return &task, nil
}

// CancelTask requests cancellation and returns the resulting snapshot.
func (c *Client) CancelTask(ctx context.Context, taskID string) (*taskline.Task, error) {
	raw, err := c.call(ctx, MethodTasksCancel, TaskQueryParams{ID: taskID})
	if err != nil {
		return nil, err
	}
	var task taskline.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("failed to parse task: %w", err)
	}
	return &task, nil
}

// StreamMessage sends a message over message/stream and returns the decoded
// event channel. The channel closes when the server ends the stream; a
// decode failure is logged into the stream as a closed channel.
func (c *Client) StreamMessage(ctx context.Context, msg taskline.Message) (<-chan taskline.Event, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`"1"`),
		Method:  MethodMessageStream,
		Params:  mustMarshal(SendMessageParams{Message: msg}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		defer resp.Body.Close()
		return nil, c.parseErrorResponse(resp.Body)
	}

	events := make(chan taskline.Event)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			ev, err := decodeStreamEvent([]byte(strings.TrimPrefix(line, "data: ")))
			if err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// decodeStreamEvent unwraps one SSE data frame into a protocol event.
func decodeStreamEvent(data []byte) (taskline.Event, error) {
	var frame struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, err
	}
	if frame.Error != nil {
		return nil, frame.Error
	}

	var kind struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(frame.Result, &kind); err != nil {
		return nil, err
	}

	switch kind.Kind {
	case "status-update":
		var ev taskline.TaskStatusUpdateEvent
		return ev, json.Unmarshal(frame.Result, &ev)
	case "artifact-update":
		var ev taskline.TaskArtifactUpdateEvent
		return ev, json.Unmarshal(frame.Result, &ev)
	case "message-delta":
		var ev taskline.MessageDeltaEvent
		return ev, json.Unmarshal(frame.Result, &ev)
	case "message":
		var ev taskline.MessageEvent
		return ev, json.Unmarshal(frame.Result, &ev)
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind.Kind)
	}
}

// AgentCard fetches the discovery document.
func (c *Client) AgentCard(ctx context.Context) (*AgentCard, error) {
	endpoint := strings.TrimSuffix(c.endpoint, "/") + "/.well-known/agent.json"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("failed to parse agent card: %w", err)
	}
	return &card, nil
}

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`"1"`),
		Method:  method,
		Params:  mustMarshal(params),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result,omitempty"`
		Error  *rpcError       `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

func (c *Client) parseErrorResponse(body io.Reader) error {
	var rpcResp struct {
		Error *rpcError `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	return fmt.Errorf("stream request rejected")
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
