// Package agent defines the boundary taskline consumes from a conversational
// agent: a blocking Generate call, a streaming Stream call, and the typed
// event union both are expressed in.
//
// The package deliberately does not implement any model provider. Anything
// that can produce the event sequence (an LLM tool-calling loop, a scripted
// test double, a remote service) satisfies [Agent].
//
// Streams are finite, single-consumption, and pull-based: call [Stream.Next]
// until it returns [ErrDone] or an error. The pull model keeps cancellation
// and backpressure in the consumer's hands instead of an unbounded callback.
package agent
