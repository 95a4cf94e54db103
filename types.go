package taskline

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageRole indicates the originator of a message.
type MessageRole string

const (
	// MessageRoleUser is the role for messages from the user/client.
	MessageRoleUser MessageRole = "user"
	// MessageRoleAgent is the role for messages from the agent/server.
	MessageRoleAgent MessageRole = "agent"
)

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
)

// IsTerminal returns true if the state is a terminal state.
// Terminal tasks are immutable.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed:
		return true
	default:
		return false
	}
}

// transitions is the task state table. A state maps to the set of states it
// may move to; anything absent is an invalid transition.
var transitions = map[TaskState][]TaskState{
	TaskStateSubmitted:     {TaskStateWorking, TaskStateFailed, TaskStateCanceled},
	TaskStateWorking:       {TaskStateInputRequired, TaskStateCompleted, TaskStateFailed, TaskStateCanceled},
	TaskStateInputRequired: {TaskStateWorking, TaskStateCanceled},
}

// CanTransition reports whether a task may move from one state to another.
// A transition to the current state is allowed as a no-op.
func (s TaskState) CanTransition(to TaskState) bool {
	if s == to {
		return true
	}
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Message represents a single exchange between a user and an agent.
// Once appended to a task's history a message is immutable.
type Message struct {
	Kind      string         `json:"kind"`
	MessageID string         `json:"messageId"`
	Role      MessageRole    `json:"role"`
	Parts     []Part         `json:"parts"`
	ContextID string         `json:"contextId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewMessage creates a new message with the given role and parts.
func NewMessage(role MessageRole, parts ...Part) Message {
	return Message{
		Kind:      "message",
		MessageID: uuid.New().String(),
		Role:      role,
		Parts:     parts,
	}
}

// NewMessageWithContext creates a new message bound to a context and,
// optionally, an existing task.
func NewMessageWithContext(role MessageRole, contextID, taskID string, parts ...Part) Message {
	m := NewMessage(role, parts...)
	m.ContextID = contextID
	m.TaskID = taskID
	return m
}

// TextContent returns the concatenated text from all TextParts in the message.
func (m Message) TextContent() string {
	var text string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			text += tp.Text
		}
	}
	return text
}

// UnmarshalJSON implements custom JSON unmarshaling for Message.
// Parts is a []Part interface and needs per-kind decoding.
func (m *Message) UnmarshalJSON(data []byte) error {
	type messageAlias Message
	var tmp struct {
		messageAlias
		Parts []json.RawMessage `json:"parts"`
	}

	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}

	*m = Message(tmp.messageAlias)
	m.Parts = make([]Part, 0, len(tmp.Parts))

	for _, raw := range tmp.Parts {
		part, err := UnmarshalPart(raw)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, part)
	}

	return nil
}

// Part represents a segment of a message or artifact (text, file, or data).
type Part interface {
	partMarker()
	GetKind() string
}

// TextPart represents a text segment.
type TextPart struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (TextPart) partMarker()       {}
func (p TextPart) GetKind() string { return p.Kind }

// NewTextPart creates a new TextPart with the given text.
func NewTextPart(text string) TextPart {
	return TextPart{Kind: "text", Text: text}
}

// FilePart represents a file, either inline bytes or a URI reference.
type FilePart struct {
	Kind     string         `json:"kind"`
	File     FileContent    `json:"file"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (FilePart) partMarker()       {}
func (p FilePart) GetKind() string { return p.Kind }

// FileContent represents file content. Bytes and URI are mutually exclusive.
type FileContent struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Bytes    string `json:"bytes,omitempty"` // Base64 encoded
	URI      string `json:"uri,omitempty"`
}

// NewFilePartWithBytes creates a FilePart with inline base64-encoded content.
func NewFilePartWithBytes(name, mimeType, bytes string) FilePart {
	return FilePart{
		Kind: "file",
		File: FileContent{Name: name, MimeType: mimeType, Bytes: bytes},
	}
}

// NewFilePartWithURI creates a FilePart with a URI reference.
func NewFilePartWithURI(name, mimeType, uri string) FilePart {
	return FilePart{
		Kind: "file",
		File: FileContent{Name: name, MimeType: mimeType, URI: uri},
	}
}

// DataPart represents arbitrary structured data (JSON).
type DataPart struct {
	Kind     string         `json:"kind"`
	Data     any            `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (DataPart) partMarker()       {}
func (p DataPart) GetKind() string { return p.Kind }

// NewDataPart creates a new DataPart with the given data.
func NewDataPart(data any) DataPart {
	return DataPart{Kind: "data", Data: data}
}

// UnmarshalPart unmarshals a Part from JSON, dispatching on the kind tag.
// Unknown kinds decode as DataPart so foreign extensions round-trip.
func UnmarshalPart(data []byte) (Part, error) {
	var raw struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	switch raw.Kind {
	case "text":
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "file":
		var p FilePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		var p DataPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	}
}

// TaskStatus represents the current status of a task.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// NewTaskStatus creates a new TaskStatus with the given state.
func NewTaskStatus(state TaskState) TaskStatus {
	return TaskStatus{
		State:     state,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// NewTaskStatusWithMessage creates a new TaskStatus carrying a status message.
func NewTaskStatusWithMessage(state TaskState, msg *Message) TaskStatus {
	return TaskStatus{
		State:     state,
		Message:   msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Task represents a stateful, lifecycle-tracked unit of agent work.
//
// A task is owned by the adapter execution that is currently driving it;
// persisted snapshots are owned by the store thereafter. Revision increases
// by one on every persisted write, which is what lets a store reject stale
// snapshots instead of silently merging them.
type Task struct {
	Kind      string         `json:"kind"`
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	History   []Message      `json:"history,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Revision  int64          `json:"revision"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// NewTask creates a new task in the submitted state.
func NewTask(id, contextID string) *Task {
	now := time.Now().UTC()
	return &Task{
		Kind:      "task",
		ID:        id,
		ContextID: contextID,
		Status:    NewTaskStatus(TaskStateSubmitted),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the task to a new state, enforcing the state table.
// Returns ErrInvalidTransition for any move the table does not allow.
func (t *Task) Transition(state TaskState, msg *Message) error {
	if !t.Status.State.CanTransition(state) {
		return NewPermanentError("invalid task state transition from "+string(t.Status.State)+" to "+string(state), ErrInvalidTransition)
	}
	t.Status = NewTaskStatusWithMessage(state, msg)
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// AppendHistory appends a message to the task history. History is
// append-only; a message id already present in the history is dropped
// rather than duplicated.
func (t *Task) AppendHistory(msg Message) {
	for _, m := range t.History {
		if m.MessageID == msg.MessageID {
			return
		}
	}
	t.History = append(t.History, msg)
	t.UpdatedAt = time.Now().UTC()
}

// AddArtifact appends an artifact, keeping artifact ids unique within the
// task. An artifact with a duplicate id replaces the earlier one.
func (t *Task) AddArtifact(a Artifact) {
	for i, existing := range t.Artifacts {
		if existing.ArtifactID == a.ArtifactID {
			t.Artifacts[i] = a
			return
		}
	}
	t.Artifacts = append(t.Artifacts, a)
	t.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy of the task. Part values are immutable once
// built, so sharing them between copies is safe.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.History = make([]Message, len(t.History))
	copy(c.History, t.History)
	c.Artifacts = make([]Artifact, len(t.Artifacts))
	copy(c.Artifacts, t.Artifacts)
	if t.Metadata != nil {
		c.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Artifact represents a named output produced by tool execution, distinct
// from conversational text.
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewArtifact creates a new artifact with a generated id.
func NewArtifact(name, description string, parts ...Part) Artifact {
	return Artifact{
		ArtifactID:  uuid.New().String(),
		Name:        name,
		Description: description,
		Parts:       parts,
	}
}

// UnmarshalJSON decodes an artifact with part-aware decoding.
func (a *Artifact) UnmarshalJSON(data []byte) error {
	type artifactAlias Artifact
	var tmp struct {
		artifactAlias
		Parts []json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*a = Artifact(tmp.artifactAlias)
	a.Parts = make([]Part, 0, len(tmp.Parts))
	for _, raw := range tmp.Parts {
		part, err := UnmarshalPart(raw)
		if err != nil {
			return err
		}
		a.Parts = append(a.Parts, part)
	}
	return nil
}
