// Package widget is the browser adapter of a widget session: a JSON event
// endpoint, an SSE change stream with replay, and a websocket carrying both.
package widget

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/ashureev/helpdesk-widget/internal/domain"
	"github.com/ashureev/helpdesk-widget/internal/session"
)

// ErrUnknownSession is returned by Attach for a session the hub never saw.
var ErrUnknownSession = errors.New("unknown widget session")

const defaultSubscriberBuffer = 64

// Hub fans the changes of every live session out to stream subscribers. It
// stamps each change with a per-session event id, keeps a bounded replay
// queue and mirrors the transcript so a new subscriber gets a consistent
// snapshot without touching the controller.
type Hub struct {
	mu        sync.Mutex
	streams   map[string]*sessionStream
	queueSize int
	nextSubID int64
	logger    *slog.Logger
}

type sessionStream struct {
	owner    *session.Controller
	done     bool
	lastID   int64
	messages []domain.Message
	busy     bool
	queue    *replayQueue
	subs     map[int64]*Subscription
}

// Snapshot is the full state of a session at event id ID.
type Snapshot struct {
	ID       int64            `json:"id"`
	Messages []domain.Message `json:"messages"`
	Busy     bool             `json:"busy"`
}

// Subscription is one attached stream. Exactly one of Snapshot or Replay
// describes the state to send before reading C. C is closed when the session
// ends or the subscriber fell too far behind.
type Subscription struct {
	C        <-chan Event
	Snapshot *Snapshot
	Replay   []Event

	ch     chan Event
	hub    *Hub
	stream *sessionStream
	id     int64
	closed bool
}

// NewHub creates a hub keeping up to queueSize events per session for replay.
func NewHub(queueSize int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		streams:   make(map[string]*sessionStream),
		queueSize: queueSize,
		logger:    logger,
	}
}

func streamKey(visitorID, sessionID string) string {
	return visitorID + ":" + sessionID
}

// Bind tracks every controller the manager creates from now on.
func (h *Hub) Bind(m *session.Manager) {
	m.OnCreate(h.track)
	m.OnClose(h.forget)
}

// track runs before the controller starts, so the mirror sees the welcome
// message. A stream left under the same key by a controller that is still
// closing is replaced and its subscribers are dropped.
func (h *Hub) track(c *session.Controller) {
	key := streamKey(c.VisitorID(), c.SessionID())
	st := &sessionStream{
		owner: c,
		queue: newReplayQueue(h.queueSize),
		subs:  make(map[int64]*Subscription),
	}

	h.mu.Lock()
	if old, ok := h.streams[key]; ok {
		old.endLocked()
	}
	h.streams[key] = st
	h.mu.Unlock()

	c.Subscribe(func(ch session.Change) { h.publish(st, ch) })
}

// publish runs under the controller lock and never blocks: a subscriber whose
// buffer is full is dropped and resumes through Last-Event-ID.
func (h *Hub) publish(st *sessionStream, ch session.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if st.done {
		return
	}
	st.lastID++
	st.apply(ch)
	ev := Event{ID: st.lastID, Change: ch}
	st.queue.push(ev)

	for id, sub := range st.subs {
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("stream subscriber too slow, dropping",
				"session_key", streamKey(st.owner.VisitorID(), st.owner.SessionID()), "subscriber_id", id)
			delete(st.subs, id)
			sub.closeLocked()
		}
	}
}

func (st *sessionStream) apply(ch session.Change) {
	switch ch.Type {
	case session.ChangeMessageAppended:
		if ch.Message != nil {
			st.messages = append(st.messages, *ch.Message)
		}
	case session.ChangeCleared:
		st.messages = nil
		if ch.Message != nil {
			st.messages = append(st.messages, *ch.Message)
		}
	case session.ChangeBusy:
		if ch.Busy != nil {
			st.busy = *ch.Busy
		}
	}
}

// forget ends the stream of a closed controller. The key is left alone when
// it already belongs to a newer controller for the same tab.
func (h *Hub) forget(c *session.Controller) {
	key := streamKey(c.VisitorID(), c.SessionID())

	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.streams[key]
	if !ok || st.owner != c {
		return
	}
	st.endLocked()
	delete(h.streams, key)
}

func (st *sessionStream) endLocked() {
	st.done = true
	for id, sub := range st.subs {
		delete(st.subs, id)
		sub.closeLocked()
	}
}

// Attach subscribes to a session. With lastEventID > 0 the missed events are
// replayed when the queue still holds all of them; otherwise the subscriber
// starts from a snapshot.
func (h *Hub) Attach(visitorID, sessionID string, lastEventID int64) (*Subscription, error) {
	key := streamKey(visitorID, sessionID)

	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.streams[key]
	if !ok {
		return nil, ErrUnknownSession
	}

	h.nextSubID++
	ch := make(chan Event, defaultSubscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, hub: h, stream: st, id: h.nextSubID}

	replayed := false
	if lastEventID > 0 && lastEventID <= st.lastID {
		if missed, complete := st.queue.after(lastEventID); complete {
			sub.Replay = missed
			replayed = true
		}
	}
	if !replayed {
		msgs := make([]domain.Message, len(st.messages))
		copy(msgs, st.messages)
		sub.Snapshot = &Snapshot{ID: st.lastID, Messages: msgs, Busy: st.busy}
	}

	st.subs[sub.id] = sub
	return sub, nil
}

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	delete(s.stream.subs, s.id)
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Subscribers returns the number of attached subscribers across all sessions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, st := range h.streams {
		n += len(st.subs)
	}
	return n
}
