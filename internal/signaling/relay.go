package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peerlink/internal/session"
	"github.com/1ureka/peerlink/internal/util"
)

// Peer is the side of a session the relay drives.
type Peer interface {
	SetSessionDescription(desc webrtc.SessionDescription) error
	AddICECandidate(c webrtc.ICECandidateInit) error
	Subscribe(fn func(session.Event)) session.Subscription
	Done() <-chan struct{}
}

var _ Peer = (*session.Session)(nil)

// Relay forwards a session's local descriptions and candidates to the remote
// peer over a WebSocket, and feeds the remote peer's messages back into the
// session.
type Relay struct {
	conn *websocket.Conn
	peer Peer

	mu     sync.Mutex // serializes writes to conn
	closed bool
}

// NewRelay creates a Relay. Nothing is sent or read until Run is called.
func NewRelay(conn *websocket.Conn, peer Peer) *Relay {
	return &Relay{conn: conn, peer: peer}
}

// Run relays messages until the WebSocket fails, ctx is cancelled, or the
// session closes. The WebSocket is closed on return. A closed session is not
// an error.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.peer.Subscribe(r.forward)
	defer sub.Unsubscribe()

	readErr := make(chan error, 1)
	go func() {
		readErr <- r.readLoop()
	}()

	var err error
	select {
	case rerr := <-readErr:
		readErr <- rerr
		select {
		case <-r.peer.Done():
		default:
			err = fmt.Errorf("signaling connection lost: %w", rerr)
		}
	case <-ctx.Done():
		err = ctx.Err()
	case <-r.peer.Done():
	}

	r.close()
	<-readErr
	return err
}

func (r *Relay) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	_ = r.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = r.conn.Close()
}

// forward runs on the session's event goroutine.
func (r *Relay) forward(ev session.Event) {
	var (
		msg Message
		err error
	)

	switch ev.Kind {
	case session.EventLocalDescription:
		msg, err = descriptionMessage(*ev.Description)
	case session.EventICECandidate:
		msg, err = candidateMessage(ev.Candidate)
	case session.EventError:
		util.LogWarning("signaling: negotiation failed: %v", ev.Err)
		return
	default:
		return
	}

	if err != nil {
		util.LogWarning("signaling: cannot encode %s: %v", ev.Kind, err)
		return
	}
	r.send(msg)
}

func (r *Relay) send(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	if err := r.conn.WriteJSON(msg); err != nil {
		util.LogDebug("signaling: failed to send %s: %v", msg.Type, err)
		return
	}
	util.Stats.AddSignalSent()
}

func (r *Relay) readLoop() error {
	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			return err
		}
		util.Stats.AddSignalRecv()

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			util.LogWarning("signaling: malformed message: %v", err)
			continue
		}
		r.handle(msg)
	}
}

func (r *Relay) handle(msg Message) {
	switch msg.Type {
	case MsgTypeOffer, MsgTypeAnswer:
		desc, err := msg.Description()
		if err != nil {
			util.LogWarning("signaling: %v", err)
			return
		}
		if err := r.peer.SetSessionDescription(desc); err != nil {
			util.LogWarning("signaling: failed to apply remote %s: %v", msg.Type, err)
		}

	case MsgTypeCandidate:
		init, err := msg.CandidateInit()
		if err != nil {
			util.LogWarning("signaling: %v", err)
			return
		}
		if err := r.peer.AddICECandidate(init); err != nil {
			util.LogWarning("signaling: %v", err)
		}

	default:
		util.LogDebug("signaling: ignoring message type %q", msg.Type)
	}
}
