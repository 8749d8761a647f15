// Package session negotiates a single peer-to-peer link on top of a Connection.
//
// A Session coordinates the offer/answer exchange, relays local candidates,
// tracks which data channels are open and surfaces everything to the
// application as a stream of typed Events. All connection notifications and
// commands are serialized on one execution queue, so negotiation cycles never
// interleave.
package session

import (
	"errors"

	"github.com/google/uuid"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateActive State = iota
	StateClosed
)

func (s State) String() string {
	if s == StateClosed {
		return "closed"
	}
	return "active"
}

// Option configures a Session.
type Option func(*Session)

// WithID overrides the generated session identifier.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithLoggerFactory sets the factory used to create the session logger.
func WithLoggerFactory(f logging.LoggerFactory) Option {
	return func(s *Session) { s.loggerFactory = f }
}

// OnEvent subscribes fn before the connection is attached, so no event can be
// missed.
func OnEvent(fn func(Event)) Option {
	return func(s *Session) { s.initial = append(s.initial, fn) }
}

// Session owns a Connection for its whole lifetime.
type Session struct {
	id            string
	conn          Connection
	loggerFactory logging.LoggerFactory
	initial       []func(Event)
	log           logging.LeveledLogger

	q        *queue
	events   *emitter
	neg      *negotiator
	channels *registry

	// Fields below are owned by the execution queue.
	state    State
	connSub  Subscription
	watches  map[DataChannel]Subscription
	closeErr error

	done chan struct{}
}

// New wraps conn and subscribes to its notifications. The session takes
// ownership of conn and closes it exactly once.
func New(conn Connection, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		conn:     conn,
		q:        newQueue(),
		events:   newEmitter(),
		channels: newRegistry(),
		watches:  make(map[DataChannel]Subscription),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loggerFactory == nil {
		s.loggerFactory = logging.NewDefaultLoggerFactory()
	}
	s.log = s.loggerFactory.NewLogger("session")

	for _, fn := range s.initial {
		s.events.subscribe(fn)
	}

	s.neg = &negotiator{
		conn:       conn,
		emit:       s.emit,
		onTerminal: func() { s.shutdown("connection ended") },
		log:        s.log,
	}

	s.connSub = conn.Subscribe(Handlers{
		NegotiationNeeded: func() {
			s.post(s.neg.negotiationNeeded)
		},
		ICECandidate: func(c *webrtc.ICECandidate) {
			s.post(func() { s.neg.localCandidate(c) })
		},
		ConnectionStateChange: func(state webrtc.PeerConnectionState) {
			s.post(func() { s.neg.connectionStateChanged(state) })
		},
		DataChannel: func(ch DataChannel) {
			s.post(func() { s.remoteChannel(ch) })
		},
		Track: func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
			s.post(func() {
				s.emit(Event{Kind: EventTrack, Track: track, Receiver: receiver})
			})
		},
	})

	s.log.Infof("session %s started", s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Done is closed once the session has closed and released the connection.
func (s *Session) Done() <-chan struct{} { return s.done }

// State reports whether the session is still active.
func (s *Session) State() State {
	select {
	case <-s.done:
		return StateClosed
	default:
		return StateActive
	}
}

// Subscribe registers fn for every subsequent event. Handlers run on a
// dedicated goroutine, one event at a time, and may call Session methods.
func (s *Session) Subscribe(fn func(Event)) Subscription {
	return s.events.subscribe(fn)
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

// SetSessionDescription applies a description received from the remote peer.
// An offer produces an EventLocalDescription carrying the answer.
func (s *Session) SetSessionDescription(desc webrtc.SessionDescription) error {
	if err := validateDescription(desc); err != nil {
		return err
	}
	return s.do(func() error { return s.neg.processDescription(desc) })
}

// AddICECandidate applies a candidate received from the remote peer.
func (s *Session) AddICECandidate(c webrtc.ICECandidateInit) error {
	return s.do(func() error { return s.neg.processCandidate(c) })
}

// CreateDataChannel creates a local channel and starts tracking it. A channel
// that is already open on return is already registered.
func (s *Session) CreateDataChannel(label string, init *webrtc.DataChannelInit) (DataChannel, error) {
	var ch DataChannel
	err := s.do(func() error {
		var err error
		ch, err = s.conn.CreateDataChannel(label, init)
		if err != nil {
			return err
		}
		s.watch(ch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// AddTrack attaches a local track to the connection.
func (s *Session) AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	var sender *webrtc.RTPSender
	err := s.do(func() error {
		var err error
		sender, err = s.conn.AddTrack(track)
		return err
	})
	return sender, err
}

// Channel returns the open channel with the given identifier.
func (s *Session) Channel(id uint16) (DataChannel, bool) {
	var (
		ch DataChannel
		ok bool
	)
	if err := s.do(func() error {
		ch, ok = s.channels.lookup(id)
		return nil
	}); err != nil {
		return nil, false
	}
	return ch, ok
}

// OpenChannels returns the number of registered channels.
func (s *Session) OpenChannels() int {
	var n int
	_ = s.do(func() error {
		n = s.channels.len()
		return nil
	})
	return n
}

// Close releases the connection and emits EventClosed. Repeated calls return
// the result of the first close.
func (s *Session) Close() error {
	err := s.do(func() error {
		s.shutdown("closed by application")
		return s.closeErr
	})
	if errors.Is(err, ErrSessionClosed) {
		<-s.done
		return s.closeErr
	}
	return err
}

// ---------------------------------------------------------------------------
// Execution queue helpers
// ---------------------------------------------------------------------------

// do runs fn on the execution queue unless the session has closed.
func (s *Session) do(fn func() error) error {
	return s.q.do(func() error {
		if s.state == StateClosed {
			return ErrSessionClosed
		}
		return fn()
	})
}

// post schedules a notification handler. Notifications that race with
// shutdown are dropped.
func (s *Session) post(fn func()) {
	s.q.post(func() {
		if s.state == StateClosed {
			return
		}
		fn()
	})
}

func (s *Session) emit(ev Event) {
	if s.state == StateClosed {
		return
	}
	s.events.emit(ev)
}

// ---------------------------------------------------------------------------
// Channel bookkeeping
// ---------------------------------------------------------------------------

func (s *Session) remoteChannel(ch DataChannel) {
	s.watch(ch)
	s.emit(Event{Kind: EventDataChannel, Channel: ch})
}

// watch observes ch and keeps the registry in sync with its ready state. The
// state check after attaching covers channels that opened before (or while)
// the observers were attached.
func (s *Session) watch(ch DataChannel) {
	s.watches[ch] = ch.Observe(ChannelHandlers{
		Open: func() {
			s.post(func() { s.channels.register(ch) })
		},
		Close: func() {
			s.post(func() { s.release(ch) })
		},
		Error: func(err error) {
			s.post(func() {
				s.log.Warnf("data channel %q: %v", ch.Label(), err)
				s.release(ch)
			})
		},
	})

	switch ch.ReadyState() {
	case webrtc.DataChannelStateOpen:
		s.channels.register(ch)
	case webrtc.DataChannelStateClosed:
		s.release(ch)
	}
}

func (s *Session) release(ch DataChannel) {
	s.channels.unregister(ch)
	if sub, ok := s.watches[ch]; ok {
		sub.Unsubscribe()
		delete(s.watches, ch)
	}
}

// ---------------------------------------------------------------------------
// Teardown
// ---------------------------------------------------------------------------

// shutdown moves the session to StateClosed. It runs on the execution queue and
// is a no-op after the first call.
func (s *Session) shutdown(reason string) {
	if s.state == StateClosed {
		return
	}

	s.connSub.Unsubscribe()
	for ch, sub := range s.watches {
		sub.Unsubscribe()
		delete(s.watches, ch)
	}
	s.channels.reset()

	s.events.emit(Event{Kind: EventClosed})
	s.state = StateClosed

	s.closeErr = s.conn.Close()
	s.q.stop()
	close(s.done)

	s.log.Infof("session %s closed: %s", s.id, reason)
}
