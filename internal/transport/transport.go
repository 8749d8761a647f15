// Package transport adapts a pion PeerConnection to session.Connection.
package transport

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peerlink/internal/session"
)

// Compile-time interface check.
var _ session.Connection = (*Transport)(nil)

// Transport wraps a single PeerConnection. pion allows one handler per
// notification; Transport installs those once and fans them out to every
// Subscribe-r.
//
// Its lifecycle is bound to the context passed at construction and to the
// PeerConnection state: Done is closed when either ends.
type Transport struct {
	pc  *webrtc.PeerConnection
	log logging.LeveledLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	next    int
	subs    map[int]session.Handlers
	pcState webrtc.PeerConnectionState
	chans   []*Channel
}

// NewTransport creates a Transport backed by a new PeerConnection.
func NewTransport(ctx context.Context, opts Options) (*Transport, error) {
	pc, err := newPeerConnection(opts)
	if err != nil {
		return nil, err
	}

	factory := opts.LoggerFactory
	if factory == nil {
		factory = logging.NewDefaultLoggerFactory()
	}

	tCtx, tCancel := context.WithCancel(ctx)

	t := &Transport{
		pc:      pc,
		log:     factory.NewLogger("transport"),
		ctx:     tCtx,
		cancel:  tCancel,
		subs:    make(map[int]session.Handlers),
		pcState: webrtc.PeerConnectionStateNew,
	}

	pc.OnNegotiationNeeded(func() {
		for _, h := range t.handlers() {
			if h.NegotiationNeeded != nil {
				h.NegotiationNeeded()
			}
		}
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		for _, h := range t.handlers() {
			if h.ICECandidate != nil {
				h.ICECandidate(c)
			}
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		t.log.Debugf("PeerConnection state: %s", state)
		t.mu.Lock()
		t.pcState = state
		t.mu.Unlock()

		for _, h := range t.handlers() {
			if h.ConnectionStateChange != nil {
				h.ConnectionStateChange(state)
			}
		}

		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			tCancel()
		}
	})

	pc.OnDataChannel(func(raw *webrtc.DataChannel) {
		// Wrap before returning: pion opens the channel only after this
		// callback completes.
		ch := t.track(newChannel(raw))
		t.log.Debugf("remote DataChannel %q", raw.Label())

		for _, h := range t.handlers() {
			if h.DataChannel != nil {
				h.DataChannel(ch)
			}
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		t.log.Debugf("remote track kind=%s id=%s stream=%s", track.Kind(), track.ID(), track.StreamID())

		for _, h := range t.handlers() {
			if h.Track != nil {
				h.Track(track, receiver)
			}
		}
	})

	return t, nil
}

func (t *Transport) handlers() []session.Handlers {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]session.Handlers, 0, len(t.subs))
	for _, id := range slices.Sorted(maps.Keys(t.subs)) {
		out = append(out, t.subs[id])
	}
	return out
}

// Subscribe implements session.Connection.
func (t *Transport) Subscribe(h session.Handlers) session.Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.next
	t.next++
	t.subs[id] = h

	return session.NewSubscription(func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	})
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Done returns a channel that is closed when the Transport is shut down
// (PeerConnection failed/closed or parent context cancelled).
func (t *Transport) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Close closes every DataChannel created or accepted through t, then the
// PeerConnection itself.
func (t *Transport) Close() error {
	t.cancel()

	t.mu.Lock()
	chans := t.chans
	t.chans = nil
	t.mu.Unlock()

	var errs []error
	for _, ch := range chans {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := t.pc.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (t *Transport) track(ch *Channel) *Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chans = append(t.chans, ch)
	return ch
}

// ConnectionState returns the last observed PeerConnection state.
func (t *Transport) ConnectionState() webrtc.PeerConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pcState
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer.
func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	return t.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP.
func (t *Transport) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (t *Transport) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(sdp)
}

// LocalDescription returns the local SDP including gathered candidates.
func (t *Transport) LocalDescription() *webrtc.SessionDescription {
	return t.pc.LocalDescription()
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (t *Transport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}

// ---------------------------------------------------------------------------
// Channels and tracks
// ---------------------------------------------------------------------------

// CreateDataChannel creates a local DataChannel wrapped as a *Channel.
func (t *Transport) CreateDataChannel(label string, init *webrtc.DataChannelInit) (session.DataChannel, error) {
	raw, err := t.pc.CreateDataChannel(label, init)
	if err != nil {
		return nil, err
	}
	return t.track(newChannel(raw)), nil
}

// AddTrack attaches a local track. The track's StreamID selects the stream
// it is announced under.
func (t *Transport) AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	return t.pc.AddTrack(track)
}
