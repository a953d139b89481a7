package event

import (
	"sync"
)

// DefaultBacklog is the per-subscriber buffered event count.
const DefaultBacklog = 256

// Bus is a single-producer, multi-consumer broadcast channel for one
// job. Publication order is total; a slow subscriber loses
// intermediate events and sees an events_dropped marker in their
// place. The terminal event is always the last one delivered: it is
// kept outside the ring so backlog overflow cannot displace it, and
// subscribers that join after completion receive it alone.
type Bus struct {
	mu       sync.Mutex
	subs     map[int]*subscriber
	nextID   int
	backlog  int
	done     bool
	terminal Event
}

type subscriber struct {
	ch      chan Event
	quit    chan struct{}
	quitOne sync.Once
	lagged  bool
	dropped int
}

func (s *subscriber) stop() {
	s.quitOne.Do(func() { close(s.quit) })
}

// NewBus creates a bus with the given backlog per subscriber.
// A backlog <= 0 uses DefaultBacklog.
func NewBus(backlog int) *Bus {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Bus{
		subs:    make(map[int]*subscriber),
		nextID:  1,
		backlog: backlog,
	}
}

// Subscribe registers a new subscriber. The returned channel is
// closed after the terminal event. Subscribers joining after the job
// completed receive only the terminal event. The id is passed to
// Unsubscribe; id 0 means the subscription is already drained and
// needs no cleanup.
func (b *Bus) Subscribe() (int, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		ch := make(chan Event, 1)
		ch <- b.terminal
		close(ch)
		return 0, ch
	}

	id := b.nextID
	b.nextID++
	sub := &subscriber{
		ch:   make(chan Event, b.backlog),
		quit: make(chan struct{}),
	}
	b.subs[id] = sub
	return id, sub.ch
}

// Unsubscribe detaches a subscriber. The channel is not closed here;
// abandoning it is safe because publishers never block on it.
func (b *Bus) Unsubscribe(id int) {
	if id == 0 {
		return
	}
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		sub.stop()
	}
}

// Publish broadcasts a non-terminal event. Never blocks: a full
// subscriber drops the event and is marked lagged.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	for _, sub := range b.subs {
		b.send(sub, ev)
	}
}

func (b *Bus) send(sub *subscriber, ev Event) {
	if sub.lagged {
		// Need room for the marker and the event to resume cleanly.
		if cap(sub.ch)-len(sub.ch) >= 2 {
			sub.ch <- Event{
				Type:        TypeEventsDropped,
				TimestampMS: ev.TimestampMS,
				JobID:       ev.JobID,
				Data:        Dropped{Dropped: sub.dropped},
			}
			sub.lagged = false
			sub.dropped = 0
			sub.ch <- ev
			return
		}
		sub.dropped++
		return
	}
	select {
	case sub.ch <- ev:
	default:
		sub.lagged = true
		sub.dropped = 1
	}
}

// PublishTerminal broadcasts the terminal event and closes all
// subscriber channels once it is delivered. Delivery waits for slow
// subscribers rather than dropping, but gives up if the subscriber
// unsubscribes.
func (b *Bus) PublishTerminal(ev Event) {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return
	}
	b.done = true
	b.terminal = ev
	subs := b.subs
	b.subs = make(map[int]*subscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		go deliverTerminal(sub, ev)
	}
}

func deliverTerminal(sub *subscriber, ev Event) {
	if sub.lagged {
		marker := Event{
			Type:        TypeEventsDropped,
			TimestampMS: ev.TimestampMS,
			JobID:       ev.JobID,
			Data:        Dropped{Dropped: sub.dropped},
		}
		select {
		case sub.ch <- marker:
		case <-sub.quit:
			return
		}
	}
	select {
	case sub.ch <- ev:
		close(sub.ch)
	case <-sub.quit:
	}
}

// SubscriberCount returns the number of attached subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Completed reports whether the terminal event has been published.
func (b *Bus) Completed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}
