package widget

import (
	"container/list"

	"github.com/ashureev/helpdesk-widget/internal/session"
)

// Event is a Change stamped with its stream event id.
type Event struct {
	ID     int64
	Change session.Change
}

// replayQueue buffers the most recent events of one session so a reconnecting
// stream can resume after its Last-Event-ID.
type replayQueue struct {
	events  *list.List
	maxSize int
}

func newReplayQueue(maxSize int) *replayQueue {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &replayQueue{events: list.New(), maxSize: maxSize}
}

func (q *replayQueue) push(ev Event) {
	q.events.PushBack(ev)
	for q.events.Len() > q.maxSize {
		q.events.Remove(q.events.Front())
	}
}

// after returns the events newer than id. The boolean is false when events
// after id were already evicted and a replay would leave a gap.
func (q *replayQueue) after(id int64) ([]Event, bool) {
	front := q.events.Front()
	if front == nil {
		return nil, true
	}
	if front.Value.(Event).ID > id+1 {
		return nil, false
	}
	var missed []Event
	for e := front; e != nil; e = e.Next() {
		ev := e.Value.(Event)
		if ev.ID > id {
			missed = append(missed, ev)
		}
	}
	return missed, true
}
