package adapter

import (
	"context"
	"sync"

	"github.com/tasklinehq/taskline"
)

// broadcaster fans one execution's ordered event log out to any number of
// subscribers. Every subscriber sees the full log from the beginning, in
// order; a duplicate request attaching mid-flight replays what it missed
// and then follows live. Publishing never blocks on a slow subscriber;
// each subscriber paces its own delivery.
type broadcaster struct {
	mu     sync.Mutex
	cond   *sync.Cond
	log    []taskline.Event
	closed bool
}

func newBroadcaster() *broadcaster {
	b := &broadcaster{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// publish appends an event to the log and wakes subscribers.
func (b *broadcaster) publish(ev taskline.Event) {
	b.mu.Lock()
	if !b.closed {
		b.log = append(b.log, ev)
	}
	b.mu.Unlock()
	b.cond.Broadcast()
}

// close marks the log complete. Subscribers drain what remains and their
// channels close.
func (b *broadcaster) close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// subscribe returns a channel that yields the full event log in order and
// closes once the execution finishes. Canceling ctx abandons the
// subscription; the pump stops delivering and the channel closes without
// waiting for a reader.
func (b *broadcaster) subscribe(ctx context.Context) <-chan taskline.Event {
	ch := make(chan taskline.Event, 16)
	go func() {
		defer close(ch)
		next := 0
		for {
			b.mu.Lock()
			for next >= len(b.log) && !b.closed {
				b.cond.Wait()
			}
			if next >= len(b.log) && b.closed {
				b.mu.Unlock()
				return
			}
			ev := b.log[next]
			next++
			b.mu.Unlock()
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
