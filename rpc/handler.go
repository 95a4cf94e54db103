// Package rpc exposes the adapter over JSON-RPC 2.0 with SSE streaming.
//
// The handler serves message/send, message/stream, tasks/get, and
// tasks/cancel on POST /, and the agent card on GET /.well-known/agent.json.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tasklinehq/taskline"
	"github.com/tasklinehq/taskline/adapter"
	"github.com/tasklinehq/taskline/store"
)

// JSON-RPC method names.
const (
	MethodMessageSend   = "message/send"
	MethodMessageStream = "message/stream"
	MethodTasksGet      = "tasks/get"
	MethodTasksCancel   = "tasks/cancel"
)

// JSON-RPC error codes. The -32600 range is standard JSON-RPC; the -32000
// range carries protocol-specific task errors.
const (
	codeParseError         = -32700
	codeInvalidRequest     = -32600
	codeMethodNotFound     = -32601
	codeInvalidParams      = -32602
	codeInternalError      = -32603
	codeTaskNotFound       = -32001
	codeTaskNotCancelable  = -32002
	codeStreamNotSupported = -32004
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// SendMessageParams are the parameters of message/send and message/stream.
type SendMessageParams struct {
	Message taskline.Message `json:"message"`
}

// TaskQueryParams are the parameters of tasks/get and tasks/cancel.
type TaskQueryParams struct {
	ID            string `json:"id"`
	HistoryLength *int   `json:"historyLength,omitempty"`
}

// Handler serves the protocol over HTTP.
type Handler struct {
	adapter *adapter.Adapter
	store   store.TaskStore
	card    AgentCard
	logger  *slog.Logger
	mux     *http.ServeMux
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the request logger (default slog.Default).
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates an HTTP handler over the adapter and its store.
func NewHandler(a *adapter.Adapter, s store.TaskStore, card AgentCard, opts ...HandlerOption) *Handler {
	h := &Handler{
		adapter: a,
		store:   s,
		card:    card.withDefaults(),
		logger:  slog.Default(),
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.mux.HandleFunc("GET /.well-known/agent.json", h.handleAgentCard)
	h.mux.HandleFunc("POST /", h.handleRPC)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.card); err != nil {
		http.Error(w, "failed to encode agent card", http.StatusInternalServerError)
	}
}

func (h *Handler) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, nil, codeParseError, "failed to parse request")
		return
	}
	defer r.Body.Close()

	switch req.Method {
	case MethodMessageSend:
		h.handleSend(w, r, req)
	case MethodMessageStream:
		h.handleStream(w, r, req)
	case MethodTasksGet:
		h.handleGet(w, r, req)
	case MethodTasksCancel:
		h.handleCancel(w, r, req)
	default:
		h.writeError(w, req.ID, codeMethodNotFound, "unknown method "+req.Method)
	}
}

// handleSend runs the execution to completion and returns the final task
// snapshot, or the reply message for ephemeral executions.
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	var params SendMessageParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		h.writeError(w, req.ID, codeInvalidParams, "invalid message/send params")
		return
	}

	events, err := h.adapter.Execute(r.Context(), params.Message)
	if err != nil {
		h.writeExecuteError(w, req.ID, err)
		return
	}

	var last taskline.Event
	for ev := range events {
		last = ev
	}

	switch final := last.(type) {
	case taskline.MessageEvent:
		h.writeResult(w, req.ID, final.Message)
	case taskline.TaskStatusUpdateEvent:
		task, err := h.store.Get(r.Context(), final.TaskID)
		if err != nil {
			h.writeError(w, req.ID, codeInternalError, "task snapshot unavailable")
			return
		}
		h.writeResult(w, req.ID, task)
	default:
		h.writeError(w, req.ID, codeInternalError, "execution produced no final event")
	}
}

// handleStream forwards the execution's events over SSE, each framed as a
// JSON-RPC response.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, req.ID, codeStreamNotSupported, "streaming unsupported by connection")
		return
	}

	var params SendMessageParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		h.writeError(w, req.ID, codeInvalidParams, "invalid message/stream params")
		return
	}

	events, err := h.adapter.Execute(r.Context(), params.Message)
	if err != nil {
		h.writeExecuteError(w, req.ID, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for ev := range events {
		data, err := json.Marshal(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: ev})
		if err != nil {
			h.logger.Error("marshaling stream event", "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	var params TaskQueryParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		h.writeError(w, req.ID, codeInvalidParams, "invalid tasks/get params")
		return
	}

	task, err := h.store.Get(r.Context(), params.ID)
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, req.ID, codeTaskNotFound, "task not found")
		return
	}
	if err != nil {
		h.writeError(w, req.ID, codeInternalError, "loading task failed")
		return
	}

	if params.HistoryLength != nil && *params.HistoryLength >= 0 && len(task.History) > *params.HistoryLength {
		task.History = task.History[len(task.History)-*params.HistoryLength:]
	}
	h.writeResult(w, req.ID, task)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	var params TaskQueryParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		h.writeError(w, req.ID, codeInvalidParams, "invalid tasks/cancel params")
		return
	}

	task, err := h.adapter.CancelTask(r.Context(), params.ID)
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, req.ID, codeTaskNotFound, "task not found")
		return
	}
	if errors.Is(err, taskline.ErrInvalidTransition) {
		h.writeError(w, req.ID, codeTaskNotCancelable, "task cannot be canceled")
		return
	}
	if err != nil {
		h.writeError(w, req.ID, codeInternalError, "canceling task failed")
		return
	}
	h.writeResult(w, req.ID, task)
}

// writeExecuteError maps the error taxonomy onto RPC error codes.
func (h *Handler) writeExecuteError(w http.ResponseWriter, id json.RawMessage, err error) {
	switch taskline.CategoryOf(err) {
	case taskline.ErrorValidation:
		h.writeError(w, id, codeInvalidParams, err.Error())
	case taskline.ErrorTransient:
		h.writeError(w, id, codeInternalError, "temporarily unavailable")
	default:
		h.writeError(w, id, codeInternalError, err.Error())
	}
}

func (h *Handler) writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	h.writeResponse(w, rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (h *Handler) writeError(w http.ResponseWriter, id json.RawMessage, code int, msg string) {
	h.writeResponse(w, rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}})
}

func (h *Handler) writeResponse(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("encoding response", "error", err)
	}
}

// Serve runs the handler on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, h *Handler) error {
	srv := &http.Server{Addr: addr, Handler: h}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.WithoutCancel(ctx))
	case err := <-errCh:
		return err
	}
}
