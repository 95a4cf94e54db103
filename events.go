package taskline

// Event is a protocol-level event emitted by an adapter execution.
// The concrete kinds are TaskStatusUpdateEvent, TaskArtifactUpdateEvent,
// MessageDeltaEvent, and MessageEvent; handle them with a type switch.
type Event interface {
	isEvent()
}

func (TaskStatusUpdateEvent) isEvent()   {}
func (TaskArtifactUpdateEvent) isEvent() {}
func (MessageDeltaEvent) isEvent()       {}
func (MessageEvent) isEvent()            {}

// TaskStatusUpdateEvent reports a task state change. Final is set on the
// event that closes the stream: a terminal state or input-required.
type TaskStatusUpdateEvent struct {
	Kind      string     `json:"kind"`
	TaskID    string     `json:"taskId"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Final     bool       `json:"final"`
}

// NewTaskStatusUpdateEvent creates a new task status update event.
func NewTaskStatusUpdateEvent(taskID, contextID string, status TaskStatus, final bool) TaskStatusUpdateEvent {
	return TaskStatusUpdateEvent{
		Kind:      "status-update",
		TaskID:    taskID,
		ContextID: contextID,
		Status:    status,
		Final:     final,
	}
}

// TaskArtifactUpdateEvent reports an artifact appended to the task.
type TaskArtifactUpdateEvent struct {
	Kind      string   `json:"kind"`
	TaskID    string   `json:"taskId"`
	ContextID string   `json:"contextId"`
	Artifact  Artifact `json:"artifact"`
}

// NewTaskArtifactUpdateEvent creates a new task artifact update event.
func NewTaskArtifactUpdateEvent(taskID, contextID string, artifact Artifact) TaskArtifactUpdateEvent {
	return TaskArtifactUpdateEvent{
		Kind:      "artifact-update",
		TaskID:    taskID,
		ContextID: contextID,
		Artifact:  artifact,
	}
}

// MessageDeltaEvent carries one streamed increment of agent text. Reasoning
// is set instead of Delta for reasoning-trace increments.
type MessageDeltaEvent struct {
	Kind      string `json:"kind"`
	TaskID    string `json:"taskId,omitempty"`
	ContextID string `json:"contextId"`
	MessageID string `json:"messageId"`
	Delta     string `json:"delta,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}

// NewMessageDeltaEvent creates a text delta event.
func NewMessageDeltaEvent(taskID, contextID, messageID, delta string) MessageDeltaEvent {
	return MessageDeltaEvent{
		Kind:      "message-delta",
		TaskID:    taskID,
		ContextID: contextID,
		MessageID: messageID,
		Delta:     delta,
	}
}

// MessageEvent carries a complete message. It is the terminal event of an
// execution the router decided to answer as an ephemeral message rather
// than a task.
type MessageEvent struct {
	Kind    string  `json:"kind"`
	Message Message `json:"message"`
}

// NewMessageEvent creates a message event.
func NewMessageEvent(msg Message) MessageEvent {
	return MessageEvent{Kind: "message", Message: msg}
}
