// Package taskline bridges conversational agents to the Agent-to-Agent (A2A)
// task lifecycle.
//
// An LLM-driven agent produces a stream of deltas, tool calls, and tool
// results. The A2A protocol wants something different: a Task that moves
// through a well-defined state machine, accumulates an append-only message
// history, and emits structured Artifacts. taskline is the adapter between
// the two.
//
// # Packages
//
//   - taskline (this package): the A2A data model (Task, Message, Part,
//     Artifact), the task state table, protocol events, and the error taxonomy.
//   - [github.com/tasklinehq/taskline/agent]: the boundary consumed from a
//     conversational agent: an event union and a pull-based stream.
//   - [github.com/tasklinehq/taskline/router]: decides whether a request is
//     answered as an ephemeral Message or a lifecycle-tracked Task.
//   - [github.com/tasklinehq/taskline/adapter]: the lifecycle adapter that
//     drives the state machine while the agent is still generating.
//   - [github.com/tasklinehq/taskline/store]: Task persistence with revision
//     checks; in-memory and Redis backends.
//   - [github.com/tasklinehq/taskline/durable]: replay-safe step caching so
//     retried work never re-executes side effects.
//   - [github.com/tasklinehq/taskline/rpc]: the JSON-RPC/SSE protocol surface
//     (message/send, message/stream, tasks/get, tasks/cancel).
//
// # Basic Usage
//
// Wire an agent, a store, and an adapter, then execute a message:
//
//	ad := adapter.New(myAgent, store.NewMemory(), adapter.Config{})
//	events, err := ad.Execute(ctx, taskline.NewMessage(taskline.MessageRoleUser,
//	    taskline.NewTextPart("roll a d6")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for ev := range events {
//	    switch e := ev.(type) {
//	    case taskline.MessageDeltaEvent:
//	        fmt.Print(e.Delta)
//	    case taskline.TaskStatusUpdateEvent:
//	        fmt.Println(e.Status.State)
//	    }
//	}
//
// The channel always ends with a terminal status update (completed, failed,
// canceled, or input-required) for every execution accepted past validation.
package taskline
