package session

import (
	"maps"
	"slices"
	"sync"

	"github.com/pion/webrtc/v4"
)

// EventKind enumerates the notifications a Session emits.
type EventKind int

const (
	EventLocalDescription EventKind = iota + 1 // Description
	EventICECandidate                          // Candidate
	EventDataChannel                           // Channel, remote-initiated only
	EventTrack                                 // Track, Receiver
	EventClosed                                // terminal, no payload
	EventError                                 // Err
)

func (k EventKind) String() string {
	switch k {
	case EventLocalDescription:
		return "local-description"
	case EventICECandidate:
		return "ice-candidate"
	case EventDataChannel:
		return "data-channel"
	case EventTrack:
		return "track"
	case EventClosed:
		return "closed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single outward notification. Only the fields documented for Kind
// are set.
type Event struct {
	Kind EventKind

	Description *webrtc.SessionDescription
	Candidate   *webrtc.ICECandidate
	Channel     DataChannel
	Track       *webrtc.TrackRemote
	Receiver    *webrtc.RTPReceiver
	Err         error
}

// emitter fans events out to subscribers on its own queue, so a handler may call
// back into the Session without blocking the session's execution queue.
type emitter struct {
	q *queue

	mu     sync.Mutex
	next   int
	subs   map[int]func(Event)
	closed bool
}

func newEmitter() *emitter {
	return &emitter{
		q:    newQueue(),
		subs: make(map[int]func(Event)),
	}
}

func (e *emitter) subscribe(fn func(Event)) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return NewSubscription(nil)
	}

	id := e.next
	e.next++
	e.subs[id] = fn

	return NewSubscription(func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	})
}

// emit queues ev for delivery. EventClosed is delivered last; emit is a no-op
// afterwards.
func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	e.q.post(func() { e.dispatch(ev) })

	if ev.Kind == EventClosed {
		e.closed = true
		e.q.stop()
	}
}

func (e *emitter) dispatch(ev Event) {
	e.mu.Lock()
	handlers := make([]func(Event), 0, len(e.subs))
	for _, id := range slices.Sorted(maps.Keys(e.subs)) {
		handlers = append(handlers, e.subs[id])
	}
	if ev.Kind == EventClosed {
		clear(e.subs)
	}
	e.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}
