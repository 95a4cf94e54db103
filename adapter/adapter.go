// Package adapter drives the A2A task lifecycle over a conversational
// agent's event stream.
//
// One adapter serves many concurrent executions; state is partitioned by
// task id and there is no global lock. Within one execution the emitted
// protocol events mirror the agent's own emission order exactly, and
// persistence writes are ordered relative to each other while staying
// decoupled from delta delivery: snapshots flush at tool boundaries and at
// finish, never per delta, so store latency cannot stall streaming.
package adapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tasklinehq/taskline"
	"github.com/tasklinehq/taskline/agent"
	"github.com/tasklinehq/taskline/durable"
	"github.com/tasklinehq/taskline/retry"
	"github.com/tasklinehq/taskline/router"
	"github.com/tasklinehq/taskline/store"
)

// Adapter owns task state machines while their agents are generating.
type Adapter struct {
	agent agent.Agent
	store store.TaskStore
	cfg   Config

	mu       sync.Mutex
	inflight map[string]*execution         // by inbound message id
	cancels  map[string]context.CancelFunc // by task id
}

// execution is the in-memory handle for one running request.
type execution struct {
	events *broadcaster
	taskID string
}

// New creates an Adapter over the given agent and store.
func New(a agent.Agent, s store.TaskStore, cfg Config) *Adapter {
	return &Adapter{
		agent:    a,
		store:    s,
		cfg:      cfg.withDefaults(),
		inflight: make(map[string]*execution),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Execute runs one inbound message through the lifecycle and returns the
// ordered protocol event stream. The channel always ends with a final
// event (completed, failed, canceled, or input-required) for every
// request accepted past validation.
//
// A duplicate message id attaches to the in-flight execution instead of
// starting a second one: both callers observe the same task id and the
// same events. ctx carries the caller's overall deadline; exceeding it is
// a fatal error, canceling it cancels the task.
func (a *Adapter) Execute(ctx context.Context, msg taskline.Message) (<-chan taskline.Event, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}
	if msg.ContextID == "" {
		msg.ContextID = uuid.New().String()
	}

	a.mu.Lock()
	if ex, ok := a.inflight[msg.MessageID]; ok {
		a.mu.Unlock()
		return ex.events.subscribe(ctx), nil
	}
	ex := &execution{events: newBroadcaster()}
	a.inflight[msg.MessageID] = ex
	a.mu.Unlock()

	release := func() {
		a.mu.Lock()
		delete(a.inflight, msg.MessageID)
		a.mu.Unlock()
		ex.events.close()
	}

	var existing *taskline.Task
	if msg.TaskID != "" {
		task, err := a.store.Get(ctx, msg.TaskID)
		if errors.Is(err, store.ErrNotFound) {
			release()
			return nil, taskline.NewValidationError("unknown task id "+msg.TaskID, err)
		}
		if err != nil {
			release()
			return nil, taskline.NewTransientError("loading task "+msg.TaskID, err)
		}
		existing = task
		// A message id already in the history is a redelivery, never a
		// new turn. If the task has since reached a resting state the
		// snapshot answers it; a task still mid-flight resumes through
		// the continuation path below.
		if historyHas(existing, msg.MessageID) && atRest(existing.Status.State) {
			return a.replaySnapshot(ctx, ex, existing, release), nil
		}
	} else if prior := a.findByMessageID(ctx, msg.ContextID, msg.MessageID); prior != nil {
		if atRest(prior.Status.State) {
			return a.replaySnapshot(ctx, ex, prior, release), nil
		}
		// The owning execution was interrupted before the task came to
		// rest; this redelivery resumes it instead of creating a twin.
		existing = prior
	}

	decision := router.DecisionTask
	if a.cfg.Router != nil {
		decision = a.cfg.Router.Decide(ctx, router.Request{Message: msg, Existing: existing})
	}

	if decision == router.DecisionMessage {
		go func() {
			defer release()
			a.runMessage(ctx, ex, msg)
		}()
		return ex.events.subscribe(ctx), nil
	}

	var task *taskline.Task
	continuation := false
	if existing != nil && !existing.Status.State.IsTerminal() {
		task = existing
		continuation = true
	} else {
		task = taskline.NewTask(uuid.New().String(), msg.ContextID)
	}
	msg.TaskID = task.ID
	msg.ContextID = task.ContextID
	ex.taskID = task.ID

	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancels[task.ID] = cancel
	a.mu.Unlock()

	go func() {
		defer func() {
			a.mu.Lock()
			delete(a.cancels, task.ID)
			a.mu.Unlock()
			cancel()
			release()
		}()
		a.run(runCtx, ex, task, msg, continuation)
	}()

	return ex.events.subscribe(ctx), nil
}

// Cancel requests cooperative cancellation of an in-flight execution.
// Returns false if no execution is running for the task id.
func (a *Adapter) Cancel(taskID string) bool {
	a.mu.Lock()
	cancel, ok := a.cancels[taskID]
	a.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// CancelTask cancels a task whether or not it is currently executing.
// In-flight executions are signaled and transition themselves; idle
// non-terminal tasks (input-required, or submitted after a crash) are
// transitioned and persisted here. Canceling a terminal task is a no-op
// returning the stored snapshot.
func (a *Adapter) CancelTask(ctx context.Context, taskID string) (*taskline.Task, error) {
	if a.Cancel(taskID) {
		return a.store.Get(ctx, taskID)
	}

	task, err := a.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status.State.IsTerminal() {
		return task, nil
	}
	if err := task.Transition(taskline.TaskStateCanceled, nil); err != nil {
		return nil, err
	}
	if err := a.persist(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func validate(msg taskline.Message) error {
	if msg.MessageID == "" {
		return taskline.NewValidationError("message id required", nil)
	}
	if msg.Role != taskline.MessageRoleUser {
		return taskline.NewValidationError("inbound message role must be user", nil)
	}
	if len(msg.Parts) == 0 {
		return taskline.NewValidationError("message has no parts", nil)
	}
	return nil
}

// findByMessageID scans the context's tasks for one whose history already
// contains the message id. Store errors degrade to "not found"; worst
// case a duplicate becomes a fresh execution.
func (a *Adapter) findByMessageID(ctx context.Context, contextID, messageID string) *taskline.Task {
	tasks, err := a.store.FindByContext(ctx, contextID)
	if err != nil {
		return nil
	}
	for _, task := range tasks {
		if historyHas(task, messageID) {
			return task
		}
	}
	return nil
}

func historyHas(task *taskline.Task, messageID string) bool {
	for _, m := range task.History {
		if m.MessageID == messageID {
			return true
		}
	}
	return false
}

// atRest reports whether a state closes the event stream: the terminal
// states plus input-required.
func atRest(s taskline.TaskState) bool {
	return s.IsTerminal() || s == taskline.TaskStateInputRequired
}

// replaySnapshot answers a redelivered message for a task already at rest
// with the stored final status.
func (a *Adapter) replaySnapshot(ctx context.Context, ex *execution, prior *taskline.Task, release func()) <-chan taskline.Event {
	ex.taskID = prior.ID
	go func() {
		defer release()
		ex.events.publish(taskline.NewTaskStatusUpdateEvent(prior.ID, prior.ContextID, prior.Status, true))
	}()
	return ex.events.subscribe(ctx)
}

// run drives one task execution from working to a final event.
func (a *Adapter) run(ctx context.Context, ex *execution, task *taskline.Task, msg taskline.Message, continuation bool) {
	logger := a.cfg.Logger.With("task_id", task.ID, "context_id", task.ContextID)
	// Terminal writes must survive the very cancellation they record.
	persistCtx := context.WithoutCancel(ctx)

	task.AppendHistory(msg)

	if !continuation {
		ex.events.publish(taskline.NewTaskStatusUpdateEvent(task.ID, task.ContextID, task.Status, false))
	}

	var workingMsg *taskline.Message
	if a.cfg.WorkingStatusText != "" {
		m := taskline.NewMessageWithContext(taskline.MessageRoleAgent, task.ContextID, task.ID,
			taskline.NewTextPart(a.cfg.WorkingStatusText))
		workingMsg = &m
	}
	if err := task.Transition(taskline.TaskStateWorking, workingMsg); err != nil {
		a.fail(persistCtx, ex, task, logger, err)
		return
	}
	ex.events.publish(taskline.NewTaskStatusUpdateEvent(task.ID, task.ContextID, task.Status, false))

	if err := a.persist(ctx, task); err != nil {
		a.fail(persistCtx, ex, task, logger, err)
		return
	}

	prompt := []taskline.Message{msg}
	if a.cfg.IncludeHistoryInPrompt {
		prompt = task.History
	}
	call := &agent.CallContext{TaskID: task.ID, ContextID: task.ContextID}

	var err error
	if a.cfg.Mode == ModeGenerate {
		err = a.runGenerate(ctx, ex, task, prompt, call, msg.MessageID, logger)
	} else {
		err = a.runStream(ctx, ex, task, prompt, call, logger)
	}
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, context.Canceled) || taskline.IsCanceled(err):
		a.canceled(persistCtx, ex, task, logger)
	default:
		// Deadline exhaustion included: a blown overall deadline is
		// fatal, never transient.
		a.fail(persistCtx, ex, task, logger, err)
	}
}

// runStream invokes the agent's stream and consumes it strictly in order.
// With durability enabled, a transient failure before anything has been
// forwarded re-invokes the stream per the retry policy; once the first
// event has reached the caller the stream is no longer safely restartable
// and errors fail the task.
func (a *Adapter) runStream(ctx context.Context, ex *execution, task *taskline.Task, prompt []taskline.Message, call *agent.CallContext, logger *slog.Logger) error {
	var buf strings.Builder
	messageID := uuid.New().String()
	forwarded := false

	for attempt := 0; ; attempt++ {
		stream, err := a.agent.Stream(ctx, prompt, call)
		if err == nil {
			err = a.consume(ctx, ex, task, stream, &buf, messageID, &forwarded, logger)
		}
		if err == nil {
			return nil
		}
		if !a.retryableInvocation(err, forwarded, attempt) {
			return err
		}
		logger.Warn("agent invocation failed, retrying", "error", err, "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.cfg.RetryConfig.Delay(attempt)):
		}
	}
}

func (a *Adapter) retryableInvocation(err error, forwarded bool, attempt int) bool {
	if a.cfg.DurableCache == nil || forwarded {
		return false
	}
	if attempt >= a.cfg.RetryConfig.MaxAttempts-1 {
		return false
	}
	return retry.IsTransient(err)
}

// consume pulls agent events until Finish, exhaustion, or error. Returning
// nil means a final event has been published.
func (a *Adapter) consume(ctx context.Context, ex *execution, task *taskline.Task, stream agent.Stream, buf *strings.Builder, messageID string, forwarded *bool, logger *slog.Logger) error {
	for {
		ev, err := stream.Next(ctx)
		if errors.Is(err, agent.ErrDone) {
			// Stream ended without an explicit Finish; treat as stop.
			return a.finalize(ctx, ex, task, buf, agent.FinishStop, logger)
		}
		if err != nil {
			return err
		}

		if a.cfg.DebugLogging {
			logger.Debug("agent event", "type", string(ev.Type))
		}

		switch ev.Type {
		case agent.TextDelta:
			buf.WriteString(ev.Delta)
			*forwarded = true
			ex.events.publish(taskline.NewMessageDeltaEvent(task.ID, task.ContextID, messageID, ev.Delta))

		case agent.ReasoningDelta:
			*forwarded = true
			delta := taskline.MessageDeltaEvent{
				Kind:      "message-delta",
				TaskID:    task.ID,
				ContextID: task.ContextID,
				MessageID: messageID,
				Reasoning: ev.Delta,
			}
			ex.events.publish(delta)

		case agent.ToolCallStart:
			*forwarded = true
			ex.events.publish(a.toolCallStatus(task, ev.ToolCall))

		case agent.ToolResult:
			*forwarded = true
			if ev.ToolResult != nil {
				artifacts := safeExtract(a.cfg.Extractor, logger, ev.ToolResult.ToolName, *ev.ToolResult)
				for _, artifact := range artifacts {
					task.AddArtifact(artifact)
					ex.events.publish(taskline.NewTaskArtifactUpdateEvent(task.ID, task.ContextID, artifact))
				}
			}
			// Tool boundary: flush a snapshot. A transient failure here
			// is recovered by the next checkpoint, not fatal.
			if err := a.persist(ctx, task); err != nil {
				logger.Warn("checkpoint write failed, continuing", "error", err)
			}

		case agent.Finish:
			return a.finalize(ctx, ex, task, buf, ev.Reason, logger)

		case agent.Error:
			cause := ev.Err
			if cause == nil {
				cause = errors.New("agent reported an unspecified error")
			}
			var ce taskline.CategorizedError
			if !errors.As(cause, &ce) {
				// keep explicit categories; wrap the rest as agent faults
				cause = taskline.NewAgentError("agent execution failed", cause)
			}
			return cause
		}
	}
}

// runGenerate makes one blocking agent call and synthesizes the protocol
// events from the result. With a durable cache configured the whole
// invocation is a replayable step keyed by task id and inbound message id,
// so a crashed and retried execution reuses the cached result instead of
// re-running side effects.
func (a *Adapter) runGenerate(ctx context.Context, ex *execution, task *taskline.Task, prompt []taskline.Message, call *agent.CallContext, messageID string, logger *slog.Logger) error {
	invoke := func(ctx context.Context) (*agent.Result, error) {
		return a.agent.Generate(ctx, prompt, call)
	}

	var result *agent.Result
	var err error
	if a.cfg.DurableCache != nil {
		runner := durable.NewRunner(task.ID+"/"+messageID, a.cfg.DurableCache,
			durable.WithRetryConfig(a.cfg.RetryConfig))
		result, err = durable.Step(ctx, runner, "agent.generate", invoke)
	} else {
		result, err = invoke(ctx)
	}
	if err != nil {
		return err
	}

	var buf strings.Builder
	streamedID := uuid.New().String()
	if result.Content != "" {
		buf.WriteString(result.Content)
		ex.events.publish(taskline.NewMessageDeltaEvent(task.ID, task.ContextID, streamedID, result.Content))
	}
	for _, tr := range result.ToolResults {
		artifacts := safeExtract(a.cfg.Extractor, logger, tr.ToolName, tr)
		for _, artifact := range artifacts {
			task.AddArtifact(artifact)
			ex.events.publish(taskline.NewTaskArtifactUpdateEvent(task.ID, task.ContextID, artifact))
		}
	}

	return a.finalize(ctx, ex, task, &buf, result.Reason, logger)
}

// runMessage answers a request the router judged ephemeral: no task, no
// persistence, a single MessageEvent terminal.
func (a *Adapter) runMessage(ctx context.Context, ex *execution, msg taskline.Message) {
	logger := a.cfg.Logger.With("message_id", msg.MessageID, "context_id", msg.ContextID)

	result, err := a.agent.Generate(ctx, []taskline.Message{msg}, &agent.CallContext{ContextID: msg.ContextID})
	if err != nil {
		logger.Warn("ephemeral generation failed", "error", err)
		reply := taskline.NewMessageWithContext(taskline.MessageRoleAgent, msg.ContextID, "",
			taskline.NewTextPart("The request could not be completed: "+err.Error()))
		reply.Metadata = map[string]any{"error": true}
		ex.events.publish(taskline.NewMessageEvent(reply))
		return
	}

	reply := taskline.NewMessageWithContext(taskline.MessageRoleAgent, msg.ContextID, "",
		taskline.NewTextPart(result.Content))
	ex.events.publish(taskline.NewMessageEvent(reply))
}

// finalize folds the buffered text into one agent message, moves the task
// to its resting state, flushes the final snapshot, and publishes the
// final event.
func (a *Adapter) finalize(ctx context.Context, ex *execution, task *taskline.Task, buf *strings.Builder, reason agent.FinishReason, logger *slog.Logger) error {
	var statusMsg *taskline.Message
	if text := buf.String(); text != "" {
		m := taskline.NewMessageWithContext(taskline.MessageRoleAgent, task.ContextID, task.ID,
			taskline.NewTextPart(text))
		task.AppendHistory(m)
		statusMsg = &m
	}

	state := taskline.TaskStateCompleted
	if reason == agent.FinishInputRequired {
		state = taskline.TaskStateInputRequired
	}
	if err := task.Transition(state, statusMsg); err != nil {
		return err
	}

	if err := a.persist(ctx, task); err != nil {
		// The caller still deserves its terminal event; the store keeps
		// the last checkpoint as the recoverable state.
		logger.Error("final snapshot write failed", "error", err)
	}

	ex.events.publish(taskline.NewTaskStatusUpdateEvent(task.ID, task.ContextID, task.Status, true))
	return nil
}

// fail moves the task to failed and publishes the failed final event.
func (a *Adapter) fail(ctx context.Context, ex *execution, task *taskline.Task, logger *slog.Logger, cause error) {
	logger.Warn("task failed", "error", cause)

	if !task.Status.State.IsTerminal() {
		m := taskline.NewMessageWithContext(taskline.MessageRoleAgent, task.ContextID, task.ID,
			taskline.NewTextPart(cause.Error()))
		if err := task.Transition(taskline.TaskStateFailed, &m); err == nil {
			if perr := a.persist(ctx, task); perr != nil {
				logger.Error("persisting failed state", "error", perr)
			}
		}
	}

	ex.events.publish(taskline.NewTaskStatusUpdateEvent(task.ID, task.ContextID, task.Status, true))
}

// canceled moves the task to canceled and publishes the canceled final
// event. No further deltas are delivered after this acknowledgment.
func (a *Adapter) canceled(ctx context.Context, ex *execution, task *taskline.Task, logger *slog.Logger) {
	if a.cfg.DebugLogging {
		logger.Debug("task canceled")
	}

	if !task.Status.State.IsTerminal() {
		if err := task.Transition(taskline.TaskStateCanceled, nil); err == nil {
			if perr := a.persist(ctx, task); perr != nil {
				logger.Error("persisting canceled state", "error", perr)
			}
		}
	}

	ex.events.publish(taskline.NewTaskStatusUpdateEvent(task.ID, task.ContextID, task.Status, true))
}

// toolCallStatus frames a tool call as a working status update without
// touching the task's own status.
func (a *Adapter) toolCallStatus(task *taskline.Task, tc *agent.ToolCall) taskline.TaskStatusUpdateEvent {
	var statusMsg *taskline.Message
	if tc != nil {
		m := taskline.NewMessageWithContext(taskline.MessageRoleAgent, task.ContextID, task.ID,
			taskline.NewDataPart(map[string]any{
				"type":      "tool_call",
				"id":        tc.ID,
				"name":      tc.Name,
				"arguments": string(tc.Arguments),
			}))
		statusMsg = &m
	}
	return taskline.NewTaskStatusUpdateEvent(task.ID, task.ContextID,
		taskline.NewTaskStatusWithMessage(taskline.TaskStateWorking, statusMsg), false)
}

// persist bumps the task revision and writes the snapshot, retrying
// transient store failures. A revision conflict refreshes against the
// stored revision and retries rather than overwriting; if it cannot be
// resolved the error surfaces as transient IO, never as silent corruption.
func (a *Adapter) persist(ctx context.Context, task *taskline.Task) error {
	task.Revision++

	_, err := retry.Do(ctx, a.cfg.RetryConfig, func() (struct{}, error) {
		err := a.store.Save(ctx, task)
		if errors.Is(err, store.ErrVersionConflict) {
			latest, gerr := a.store.Get(ctx, task.ID)
			if gerr == nil && latest != nil {
				task.Revision = latest.Revision + 1
			}
			return struct{}{}, taskline.NewTransientError("snapshot revision conflict", err)
		}
		return struct{}{}, err
	})
	if err != nil {
		if !taskline.IsTransient(err) {
			err = taskline.NewTransientError("persisting task "+task.ID, err)
		}
		return err
	}
	return nil
}
