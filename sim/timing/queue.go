package timing

import "container/heap"

// queuedEvent remembers when an event was scheduled, so that events that tie
// on time and phase run in scheduling order.
type queuedEvent struct {
	evt Event
	seq uint64
}

func (a queuedEvent) before(b queuedEvent) bool {
	if ta, tb := a.evt.Time(), b.evt.Time(); ta != tb {
		return ta < tb
	}

	if pa, pb := a.evt.Phase(), b.evt.Phase(); pa != pb {
		return pa < pb
	}

	return a.seq < b.seq
}

// eventHeap implements heap.Interface. Use eventQueue instead.
type eventHeap []queuedEvent

func (h eventHeap) Len() int           { return len(h) }
func (h eventHeap) Less(i, j int) bool { return h[i].before(h[j]) }
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(queuedEvent))
}

func (h *eventHeap) Pop() any {
	old := *h
	last := old[len(old)-1]
	old[len(old)-1] = queuedEvent{}
	*h = old[:len(old)-1]

	return last
}

// eventQueue holds the pending events of an engine. It is not safe for
// concurrent use.
type eventQueue struct {
	events  eventHeap
	nextSeq uint64
}

func (q *eventQueue) len() int {
	return q.events.Len()
}

func (q *eventQueue) push(evt Event) {
	heap.Push(&q.events, queuedEvent{evt: evt, seq: q.nextSeq})
	q.nextSeq++
}

func (q *eventQueue) pop() Event {
	return heap.Pop(&q.events).(queuedEvent).evt
}
