package agent

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDone is returned by Stream.Next once the stream is exhausted.
var ErrDone = errors.New("agent: stream exhausted")

// Stream is a finite, single-consumption sequence of agent events.
//
// Next blocks until the next event is available, the stream ends (ErrDone),
// or ctx is canceled. After Next returns any error the stream must not be
// used again.
type Stream interface {
	Next(ctx context.Context) (Event, error)
}

// channelStream adapts a producer goroutine writing to a channel into a
// pull-based Stream. Closing the channel terminates the stream.
type channelStream struct {
	ch   <-chan Event
	done bool
}

// FromChannel wraps an event channel as a Stream. The producer signals
// exhaustion by closing the channel; an Error event is surfaced to the
// consumer as an event, not as a Next error, so the consumer decides how
// to classify it.
func FromChannel(ch <-chan Event) Stream {
	return &channelStream{ch: ch}
}

func (s *channelStream) Next(ctx context.Context) (Event, error) {
	if s.done {
		return Event{}, ErrDone
	}
	select {
	case <-ctx.Done():
		s.done = true
		return Event{}, ctx.Err()
	case ev, ok := <-s.ch:
		if !ok {
			s.done = true
			return Event{}, ErrDone
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now()
		}
		return ev, nil
	}
}

// sliceStream replays a fixed event sequence. Used by scripted agents and
// tests.
type sliceStream struct {
	mu     sync.Mutex
	events []Event
	pos    int
}

// FromSlice returns a Stream that yields the given events in order and
// then ErrDone.
func FromSlice(events ...Event) Stream {
	return &sliceStream{events: events}
}

func (s *sliceStream) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.events) {
		return Event{}, ErrDone
	}
	ev := s.events[s.pos]
	s.pos++
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	return ev, nil
}

// Drain consumes a stream to exhaustion, accumulating text and returning a
// Result. It is the bridge from Stream to the blocking Generate contract.
func Drain(ctx context.Context, s Stream) (*Result, error) {
	res := &Result{Reason: FinishStop}
	for {
		ev, err := s.Next(ctx)
		if errors.Is(err, ErrDone) {
			return res, nil
		}
		if err != nil {
			return nil, err
		}
		switch ev.Type {
		case TextDelta:
			res.Content += ev.Delta
		case ToolResult:
			if ev.ToolResult != nil {
				res.ToolResults = append(res.ToolResults, *ev.ToolResult)
			}
		case Finish:
			res.Reason = ev.Reason
		case Error:
			return nil, ev.Err
		}
	}
}
