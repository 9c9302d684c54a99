package reactor

import "container/heap"

// ScheduledEvent is a unit of future work: fire the reactions in
// Reactions at Tag. Terminal marks the shutdown event.
type ScheduledEvent struct {
	Tag       Tag
	Reactions []LevelKey
	Terminal  bool
}

// eventHeap orders ScheduledEvents by (tag ascending, terminal descending
// at equal tag) so a terminal event at tag T is only popped after every
// non-terminal event already queued at T.
type eventHeap []*ScheduledEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if c := h[i].Tag.Compare(h[j].Tag); c != 0 {
		return c < 0
	}
	// At equal tag: non-terminal (false) sorts before terminal (true).
	return !h[i].Terminal && h[j].Terminal
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(*ScheduledEvent)) }

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// EventQueue is the scheduler's binary min-heap over ScheduledEvent
//. It is only ever touched from the scheduler goroutine;
// concurrent producers go through AsyncChannel instead, which the
// scheduler drains into the queue at the top of each loop iteration.
type EventQueue struct {
	h eventHeap
}

// NewEventQueue constructs an empty queue.
func NewEventQueue() *EventQueue {
	q := &EventQueue{}
	heap.Init(&q.h)
	return q
}

// Push inserts an event, merging it into any existing non-terminal event
// already queued at the same tag (so the two become one larger reaction
// set) rather than creating a duplicate heap entry. This is what lets
// multiple same-tag schedule_action calls from different reactions all
// land in one ScheduledEvent.
func (q *EventQueue) Push(evt *ScheduledEvent) {
	if !evt.Terminal {
		for _, existing := range q.h {
			if !existing.Terminal && existing.Tag.Equal(evt.Tag) {
				existing.Reactions = append(existing.Reactions, evt.Reactions...)
				return
			}
		}
	}
	heap.Push(&q.h, evt)
}

// PushAll pushes a batch of events, e.g. the future_events collected from
// one reaction batch's effects.
func (q *EventQueue) PushAll(events []*ScheduledEvent) {
	for _, e := range events {
		q.Push(e)
	}
}

// Pop removes and returns the earliest event, or nil if the queue is
// empty.
func (q *EventQueue) Pop() *ScheduledEvent {
	if q.h.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*ScheduledEvent)
}

// Peek returns the earliest event without removing it, or nil.
func (q *EventQueue) Peek() *ScheduledEvent {
	if q.h.Len() == 0 {
		return nil
	}
	return q.h[0]
}

// Len reports the number of pending events.
func (q *EventQueue) Len() int { return q.h.Len() }
