package session

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// Connection is the peer-to-peer engine a Session drives. The session treats it
// as an opaque state machine and only reacts to the notifications delivered
// through Subscribe.
type Connection interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	// LocalDescription returns the description currently in effect, or nil.
	LocalDescription() *webrtc.SessionDescription
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	CreateDataChannel(label string, init *webrtc.DataChannelInit) (DataChannel, error)
	AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	Close() error

	// Subscribe attaches h to the connection's notifications. Handlers may be
	// invoked from any goroutine.
	Subscribe(h Handlers) Subscription
}

// Handlers receives Connection notifications. Nil fields are ignored.
type Handlers struct {
	NegotiationNeeded func()
	// ICECandidate receives nil once gathering for the current round is complete.
	ICECandidate          func(c *webrtc.ICECandidate)
	ConnectionStateChange func(state webrtc.PeerConnectionState)
	DataChannel           func(ch DataChannel)
	Track                 func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
}

// DataChannel is a channel owned by the Connection.
type DataChannel interface {
	// ID is nil until the engine assigns a stream identifier.
	ID() *uint16
	Label() string
	ReadyState() webrtc.DataChannelState
	Observe(h ChannelHandlers) Subscription
}

// ChannelHandlers receives DataChannel lifecycle notifications.
type ChannelHandlers struct {
	Open  func()
	Close func()
	Error func(err error)
}

// Subscription is a handle returned at attach time.
type Subscription interface {
	// Unsubscribe detaches the handlers. It is safe to call more than once.
	Unsubscribe()
}

type subscription struct {
	once sync.Once
	fn   func()
}

// NewSubscription returns a Subscription that runs fn on the first Unsubscribe.
func NewSubscription(fn func()) Subscription {
	return &subscription{fn: fn}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.fn != nil {
			s.fn()
		}
	})
}
